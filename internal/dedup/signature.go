// Package dedup detects duplicate transactions by content rather than
// identity, and merges incoming batches (imports, backups, replicas) into a
// ledger as one atomic replacement.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"budgetintel/internal/core"
)

const dayLayout = "2006-01-02"

// DayString renders the calendar day of t without a time of day.
func DayString(t time.Time) string {
	return t.Format(dayLayout)
}

// Signature identifies a transaction by day, amount, category and note.
// Two transactions with equal signatures are duplicates whatever their IDs.
func Signature(t core.Transaction) string {
	var b strings.Builder
	b.WriteString(DayString(t.Date))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(t.Amount.Cents, 10))
	b.WriteByte('|')
	b.WriteString(t.Category.Key())
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(t.Note))
	return b.String()
}

// SignatureSet is a set of transaction signatures.
type SignatureSet map[string]struct{}

func NewSignatureSet(txs []core.Transaction) SignatureSet {
	s := make(SignatureSet, len(txs))
	for _, t := range txs {
		s.Add(t)
	}
	return s
}

func (s SignatureSet) Has(t core.Transaction) bool {
	_, ok := s[Signature(t)]
	return ok
}

func (s SignatureSet) Add(t core.Transaction) {
	s[Signature(t)] = struct{}{}
}

// DatasetDigest is the sha256 of the sorted signatures joined by newlines.
// It does not depend on row order or generated IDs.
func DatasetDigest(txs []core.Transaction) string {
	sigs := make([]string, len(txs))
	for i, t := range txs {
		sigs[i] = Signature(t)
	}
	sort.Strings(sigs)
	sum := sha256.Sum256([]byte(strings.Join(sigs, "\n")))
	return hex.EncodeToString(sum[:])
}
