package dedup

import (
	"sort"

	"budgetintel/internal/core"
)

// MergeBackup folds a backup into the existing ledger. Transactions are
// deduplicated by signature. For budgets, caps and custom names the existing
// value wins when both sides define a key; missing keys are added.
func MergeBackup(existing, incoming core.Ledger) (core.Ledger, MergeResult) {
	out := existing.Clone()
	mergeScalars(&out, incoming)
	res := appendUnique(&out, incoming.Transactions)
	return out, res
}

// ReplaceWithBackup discards the ledger content and takes the backup
// verbatim, without deduplication. Tombstones of the existing ledger are
// kept so pending deletions still reach other replicas.
func ReplaceWithBackup(existing, incoming core.Ledger) core.Ledger {
	out := incoming.Clone()
	if out.BudgetsByMonth == nil {
		out.BudgetsByMonth = map[core.MonthKey]int64{}
	}
	if out.CategoryBudgetsByMonth == nil {
		out.CategoryBudgetsByMonth = map[core.MonthKey]map[string]int64{}
	}
	out.DeletedTransactionIDs = unionSorted(existing.DeletedTransactionIDs, incoming.DeletedTransactionIDs)
	return out
}

func mergeScalars(dst *core.Ledger, incoming core.Ledger) {
	if dst.BudgetsByMonth == nil {
		dst.BudgetsByMonth = map[core.MonthKey]int64{}
	}
	for m, v := range incoming.BudgetsByMonth {
		if _, ok := dst.BudgetsByMonth[m]; !ok {
			dst.BudgetsByMonth[m] = v
		}
	}
	if dst.CategoryBudgetsByMonth == nil {
		dst.CategoryBudgetsByMonth = map[core.MonthKey]map[string]int64{}
	}
	for m, caps := range incoming.CategoryBudgetsByMonth {
		for key, v := range caps {
			if v <= 0 {
				continue
			}
			if dst.CategoryBudgetsByMonth[m] == nil {
				dst.CategoryBudgetsByMonth[m] = map[string]int64{}
			}
			if _, ok := dst.CategoryBudgetsByMonth[m][key]; !ok {
				dst.CategoryBudgetsByMonth[m][key] = v
			}
		}
	}
	for _, name := range incoming.CustomCategoryNames {
		_, _ = dst.AddCustomCategory(name)
	}
	if dst.SelectedMonth == "" {
		dst.SelectedMonth = incoming.SelectedMonth
	}
}

// ReplicaResult reports the effect of merging another device's ledger.
type ReplicaResult struct {
	Added      int
	Updated    int
	Removed    int
	Duplicates int
}

// MergeReplica merges the ledger of another device into local. Deletions
// recorded on either side win, a transaction known to both sides keeps the
// most recently modified version, and unseen transactions are added unless
// their signature is already present. Scalars follow MergeBackup.
func MergeReplica(local, remote core.Ledger) (core.Ledger, ReplicaResult) {
	var res ReplicaResult
	out := local.Clone()
	mergeScalars(&out, remote)

	tombstones := map[string]bool{}
	for _, id := range local.DeletedTransactionIDs {
		tombstones[id] = true
	}
	for _, id := range remote.DeletedTransactionIDs {
		tombstones[id] = true
	}

	kept := out.Transactions[:0:0]
	index := map[string]int{}
	for _, t := range out.Transactions {
		if tombstones[t.ID.String()] {
			res.Removed++
			continue
		}
		index[t.ID.String()] = len(kept)
		kept = append(kept, t)
	}
	out.Transactions = kept

	var fresh []core.Transaction
	for _, t := range remote.Transactions {
		id := t.ID.String()
		if tombstones[id] {
			continue
		}
		i, ok := index[id]
		if !ok {
			fresh = append(fresh, t)
			continue
		}
		if t.LastModified.After(out.Transactions[i].LastModified) {
			out.Transactions[i] = t
			res.Updated++
		}
	}

	added := appendUnique(&out, fresh)
	res.Added, res.Duplicates = added.Added, added.Duplicates
	out.DeletedTransactionIDs = unionSorted(local.DeletedTransactionIDs, remote.DeletedTransactionIDs)
	return out, res
}

func unionSorted(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
