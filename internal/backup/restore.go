package backup

import (
	"errors"
	"fmt"
	"strings"

	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
)

// Mode selects how a backup is applied.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMerge, "":
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q", s)
}

// RestoreResult is shown to the user after a restore.
type RestoreResult struct {
	OK         bool
	Reason     string
	Mode       Mode
	Added      int
	Duplicates int
}

// Restore decodes data and applies it to existing. On failure the returned
// ledger is existing itself and the error wraps one of the typed format errors.
func Restore(existing core.Ledger, data []byte, mode Mode) (core.Ledger, RestoreResult, error) {
	incoming, err := Decode(data)
	if err != nil {
		return existing, RestoreResult{Mode: mode, Reason: reason(err)}, err
	}

	switch mode {
	case ModeReplace:
		out := dedup.ReplaceWithBackup(existing, incoming)
		return out, RestoreResult{
			OK:     true,
			Mode:   mode,
			Reason: fmt.Sprintf("Replaced with %d transactions from backup.", len(incoming.Transactions)),
			Added:  len(incoming.Transactions),
		}, nil
	default:
		out, merged := dedup.MergeBackup(existing, incoming)
		return out, RestoreResult{
			OK:         true,
			Mode:       ModeMerge,
			Reason:     fmt.Sprintf("Merged %d transactions, %d already present.", merged.Added, merged.Duplicates),
			Added:      merged.Added,
			Duplicates: merged.Duplicates,
		}, nil
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedVersion):
		return "This backup was created by an unsupported version of the app."
	case errors.Is(err, ErrInvalidFormat):
		return "The file is not a valid backup."
	default:
		return err.Error()
	}
}
