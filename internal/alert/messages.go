package alert

import (
	"fmt"
	"sort"
	"time"

	"budgetintel/internal/core"
)

func monthLabel(m core.MonthKey) string {
	return m.Start(time.UTC).Format("January 2006")
}

func overallNotification(in Input, fired Level) core.NotificationRequest {
	spent, budget := core.FormatCents(in.Spent), core.FormatCents(in.Budget)
	n := core.NotificationRequest{
		Identifier: fmt.Sprintf("budget-%s-overall-%s", in.Month, fired),
		DeliverAt:  core.DeliverNow(),
	}
	switch fired {
	case LevelT70:
		n.Title = "70% of your budget used"
		n.Body = fmt.Sprintf("You have spent %s of %s for %s.", spent, budget, monthLabel(in.Month))
	case LevelT80:
		n.Title = "80% of your budget used"
		n.Body = fmt.Sprintf("You have spent %s of %s for %s.", spent, budget, monthLabel(in.Month))
	default:
		n.Title = "Monthly budget exceeded"
		n.Body = fmt.Sprintf("Spending for %s reached %s against a budget of %s.", monthLabel(in.Month), spent, budget)
	}
	return n
}

func categoryNotification(m core.MonthKey, c CategoryInput, fired Level) core.NotificationRequest {
	name := c.Category.DisplayName()
	n := core.NotificationRequest{
		Identifier: fmt.Sprintf("budget-%s-cat-%s-%s", m, c.Category.Key(), fired),
		DeliverAt:  core.DeliverNow(),
	}
	if fired == LevelOver {
		n.Title = name + " is over its cap"
		n.Body = fmt.Sprintf("%s spending reached %s against a cap of %s.", name, core.FormatCents(c.Spent), core.FormatCents(c.Cap))
	} else {
		n.Title = name + " is near its cap"
		n.Body = fmt.Sprintf("%s spending is at %.0f%% of its %s cap.", name, float64(c.Spent)/float64(c.Cap)*100, core.FormatCents(c.Cap))
	}
	return n
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
