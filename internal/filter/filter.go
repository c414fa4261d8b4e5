// Package filter produces the visible transaction list from an in-memory
// snapshot: free-text search, field filters, and stable sorting. It is pure;
// nothing here touches storage.
package filter

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finwave/internal/models"
)

// DateBasis selects which date column range filters and search apply to.
// Account views filter on the booking date, category views on the value date.
type DateBasis string

const (
	BasisDate      DateBasis = "date"
	BasisValueDate DateBasis = "value_date"
)

// Resolver looks up display names for ids. Unknown ids resolve to the empty
// string; lookups never fail.
type Resolver interface {
	AccountName(id string) string
	CategoryName(id string) string
	RecipientName(id string) string
	TagName(id string) string
}

// Criteria is the combination of active filters. All set criteria must match
// (logical AND).
type Criteria struct {
	Query      string
	AccountID  *string
	CategoryID *string
	TagID      *string
	Type       *models.TransactionType
	Reconciled *bool
	From       *time.Time
	To         *time.Time
	Basis      DateBasis
}

// Apply returns the transactions matching every set criterion, preserving
// input order.
func Apply(txns []models.Transaction, c Criteria, r Resolver) []models.Transaction {
	basis := c.Basis
	if basis == "" {
		basis = BasisDate
	}

	out := make([]models.Transaction, 0, len(txns))
	for _, tx := range txns {
		if !matches(tx, c, basis, r) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func matches(tx models.Transaction, c Criteria, basis DateBasis, r Resolver) bool {
	if c.AccountID != nil && tx.AccountID != *c.AccountID {
		return false
	}
	if c.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *c.CategoryID) {
		return false
	}
	if c.TagID != nil && !tx.TagIDs.Contains(*c.TagID) {
		return false
	}
	if c.Type != nil && tx.Type != *c.Type {
		return false
	}
	if c.Reconciled != nil && tx.Reconciled != *c.Reconciled {
		return false
	}

	d := basisDate(tx, basis)
	if c.From != nil && d.Before(dayStart(*c.From)) {
		return false
	}
	if c.To != nil && d.After(dayEnd(*c.To)) {
		return false
	}

	return matchesQuery(tx, c.Query, r)
}

func basisDate(tx models.Transaction, basis DateBasis) time.Time {
	if basis == BasisValueDate {
		return tx.ValueDate
	}
	return tx.Date
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// matchesQuery performs the case-insensitive free-text match across the
// formatted date, note, payee, resolved account/category/tag names, and the
// amount. Amount queries accept both "," and "." as decimal separator.
func matchesQuery(tx models.Transaction, query string, r Resolver) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}

	haystacks := []string{
		tx.Date.Format("2006-01-02"),
		tx.Date.Format("02.01.2006"),
		strings.ToLower(tx.Note),
		strings.ToLower(tx.Payee),
		strings.ToLower(r.AccountName(tx.AccountID)),
	}
	if tx.CategoryID != nil {
		haystacks = append(haystacks, strings.ToLower(r.CategoryName(*tx.CategoryID)))
	}
	for _, tagID := range tx.TagIDs {
		haystacks = append(haystacks, strings.ToLower(r.TagName(tagID)))
	}
	for _, h := range haystacks {
		if strings.Contains(h, q) {
			return true
		}
	}

	return matchesAmount(tx.Amount, q)
}

// matchesAmount compares the query text against the transaction amount.
// "12,50", "12.50", "-12.5" and "12" all match an amount of -1250 cents:
// an integer query matches on the whole euro part, a decimal query on the
// exact value, sign-insensitively unless the query is signed.
func matchesAmount(cents int64, q string) bool {
	normalized := strings.ReplaceAll(q, ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return false
	}

	amount := decimal.New(cents, -2)
	signed := strings.HasPrefix(normalized, "-") || strings.HasPrefix(normalized, "+")
	if !signed {
		amount = amount.Abs()
		d = d.Abs()
	}

	if d.IsInteger() {
		return amount.Truncate(0).Equal(d)
	}
	return amount.Equal(d)
}
