package filter

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"finwave/internal/models"
)

// SortKey identifies a sortable transaction column.
type SortKey string

const (
	SortByDate       SortKey = "date"
	SortByAmount     SortKey = "amount"
	SortByAccount    SortKey = "account"
	SortByRecipient  SortKey = "recipient"
	SortByCategory   SortKey = "category"
	SortByReconciled SortKey = "reconciled"
)

// Sorter sorts transaction slices with locale-aware string comparison for
// display-name columns.
type Sorter struct {
	collator *collate.Collator
	resolver Resolver
}

// NewSorter builds a sorter for the given locale.
func NewSorter(tag language.Tag, r Resolver) *Sorter {
	return &Sorter{
		collator: collate.New(tag, collate.IgnoreCase),
		resolver: r,
	}
}

// Sort orders txns in place. The sort is stable, so toggling the direction
// twice restores the original order for equal keys.
func (s *Sorter) Sort(txns []models.Transaction, key SortKey, ascending bool) {
	less := s.lessFunc(txns, key)
	sort.SliceStable(txns, func(i, j int) bool {
		if ascending {
			return less(i, j)
		}
		return less(j, i)
	})
}

func (s *Sorter) lessFunc(txns []models.Transaction, key SortKey) func(i, j int) bool {
	switch key {
	case SortByAmount:
		return func(i, j int) bool { return txns[i].Amount < txns[j].Amount }
	case SortByAccount:
		return func(i, j int) bool {
			return s.collator.CompareString(
				s.resolver.AccountName(txns[i].AccountID),
				s.resolver.AccountName(txns[j].AccountID)) < 0
		}
	case SortByRecipient:
		return func(i, j int) bool {
			return s.collator.CompareString(txns[i].Payee, txns[j].Payee) < 0
		}
	case SortByCategory:
		return func(i, j int) bool {
			return s.collator.CompareString(
				categoryName(s.resolver, txns[i].CategoryID),
				categoryName(s.resolver, txns[j].CategoryID)) < 0
		}
	case SortByReconciled:
		return func(i, j int) bool { return !txns[i].Reconciled && txns[j].Reconciled }
	default: // SortByDate
		return func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) }
	}
}

func categoryName(r Resolver, id *string) string {
	if id == nil {
		return ""
	}
	return r.CategoryName(*id)
}

// Toggle returns the next sort state after clicking a column header:
// clicking the active key flips the direction, clicking a new key selects it
// ascending.
func Toggle(currentKey SortKey, ascending bool, clicked SortKey) (SortKey, bool) {
	if clicked == currentKey {
		return currentKey, !ascending
	}
	return clicked, true
}
