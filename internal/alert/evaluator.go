package alert

import (
	"context"
	"fmt"
	"sync"

	"budgetintel/internal/core"
)

// CategoryInput is the spend and cap of one category for the month.
type CategoryInput struct {
	Category core.Category
	Spent    int64
	Cap      int64
}

// Input is what one evaluation looks at.
type Input struct {
	Month      core.MonthKey
	Spent      int64
	Budget     int64
	Categories []CategoryInput
}

// InputFromLedger collects the month totals and every configured cap.
func InputFromLedger(l core.Ledger, m core.MonthKey) Input {
	in := Input{Month: m, Spent: l.Spent(m), Budget: l.Budget(m)}
	for _, key := range sortedKeys(l.CategoryCaps(m)) {
		cat, err := core.ParseCategoryKey(key)
		if err != nil {
			continue
		}
		in.Categories = append(in.Categories, CategoryInput{
			Category: cat,
			Spent:    l.SpentInCategory(cat, m),
			Cap:      l.CategoryBudget(cat, m),
		})
	}
	return in
}

// Evaluator runs the state machines against a StateStore. Evaluate holds a
// mutex across each read-modify-write so one Evaluator is a single writer.
// With an AtomicStore each step is also atomic against other Evaluators on
// the same store, in this process or another.
type Evaluator struct {
	store StateStore
	mu    sync.Mutex
}

func NewEvaluator(store StateStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate steps every scope of the month and returns the notifications
// that fired. Scopes without a budget or cap are left untouched.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) ([]core.NotificationRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []core.NotificationRequest

	if in.Budget > 0 {
		scope := Overall(in.Month)
		fired, err := e.step(ctx, scope, float64(in.Spent)/float64(in.Budget), StepOverall)
		if err != nil {
			return nil, err
		}
		if fired != LevelNone {
			out = append(out, overallNotification(in, fired))
		}
	}

	for _, c := range in.Categories {
		if c.Cap <= 0 {
			continue
		}
		scope := ForCategory(in.Month, c.Category.Key())
		fired, err := e.step(ctx, scope, float64(c.Spent)/float64(c.Cap), StepCategory)
		if err != nil {
			return nil, err
		}
		if fired != LevelNone {
			out = append(out, categoryNotification(in.Month, c, fired))
		}
	}
	return out, nil
}

func (e *Evaluator) step(ctx context.Context, scope Scope, ratio float64, fn func(State, float64) (State, Level)) (Level, error) {
	if as, ok := e.store.(AtomicStore); ok {
		fired := LevelNone
		err := as.Update(ctx, scope, func(prev State) State {
			next, f := fn(prev.normalized(), ratio)
			fired = f
			return next
		})
		if err != nil {
			return LevelNone, fmt.Errorf("update alert state %s: %w", scope, err)
		}
		return fired, nil
	}

	prev, err := e.store.Get(ctx, scope)
	if err != nil {
		return LevelNone, fmt.Errorf("load alert state %s: %w", scope, err)
	}
	prev = prev.normalized()
	next, fired := fn(prev, ratio)
	if next != prev {
		if err := e.store.Set(ctx, scope, next); err != nil {
			return LevelNone, fmt.Errorf("save alert state %s: %w", scope, err)
		}
	}
	return fired, nil
}
