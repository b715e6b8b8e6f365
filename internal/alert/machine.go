package alert

const (
	ratioT70  = 0.70
	ratioT80  = 0.80
	ratioNear = 0.90
	ratioOver = 1.00
)

// StepOverall advances the overall scope for the current spent/budget ratio
// and returns the new state plus the level that fired, or LevelNone.
//
// Over budget fires once per excursion; the latch drops as soon as the ratio
// is back under 1. Below 1 the ladder only climbs, and falling under 0.70
// rearms it silently.
func StepOverall(prev State, ratio float64) (State, Level) {
	next := prev.normalized()

	if ratio >= ratioOver {
		if next.OverNotified {
			return next, LevelNone
		}
		next.OverNotified = true
		return next, LevelOver
	}
	next.OverNotified = false

	target := LevelNone
	switch {
	case ratio >= ratioT80:
		target = LevelT80
	case ratio >= ratioT70:
		target = LevelT70
	}

	if target == LevelNone {
		next.Level = LevelNone
		return next, LevelNone
	}
	if target.rank() > next.Level.rank() {
		next.Level = target
		return next, target
	}
	return next, LevelNone
}

// StepCategory moves a category scope between none, near and over. Every
// change to near or over fires; returning to none is silent.
func StepCategory(prev State, ratio float64) (State, Level) {
	next := prev.normalized()

	target := LevelNone
	switch {
	case ratio >= ratioOver:
		target = LevelOver
	case ratio >= ratioNear:
		target = LevelNear
	}

	if target == next.Level {
		return next, LevelNone
	}
	next.Level = target
	if target == LevelNone {
		return next, LevelNone
	}
	return next, target
}
