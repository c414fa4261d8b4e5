package filter

import (
	"testing"
	"time"

	"golang.org/x/text/language"

	"finwave/internal/models"
)

type fakeResolver struct {
	accounts   map[string]string
	categories map[string]string
	recipients map[string]string
	tags       map[string]string
}

func (r fakeResolver) AccountName(id string) string   { return r.accounts[id] }
func (r fakeResolver) CategoryName(id string) string  { return r.categories[id] }
func (r fakeResolver) RecipientName(id string) string { return r.recipients[id] }
func (r fakeResolver) TagName(id string) string       { return r.tags[id] }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testData() ([]models.Transaction, fakeResolver) {
	catFood := "cat-food"
	catRent := "cat-rent"
	resolver := fakeResolver{
		accounts:   map[string]string{"acc-1": "Girokonto", "acc-2": "Sparkonto"},
		categories: map[string]string{catFood: "Lebensmittel", catRent: "Miete"},
		tags:       map[string]string{"tag-1": "Urlaub"},
	}
	txns := []models.Transaction{
		{
			Base:       models.Base{ID: "t1"},
			Date:       day(2024, 1, 5),
			ValueDate:  day(2024, 1, 5),
			AccountID:  "acc-1",
			CategoryID: &catFood,
			Type:       models.TransactionTypeExpense,
			Amount:     -1250,
			Payee:      "Supermarkt",
		},
		{
			Base:       models.Base{ID: "t2"},
			Date:       day(2024, 1, 10),
			ValueDate:  day(2024, 2, 1),
			AccountID:  "acc-1",
			CategoryID: &catRent,
			Type:       models.TransactionTypeExpense,
			Amount:     -80000,
			Payee:      "Vermieter GmbH",
			Reconciled: true,
		},
		{
			Base:      models.Base{ID: "t3"},
			Date:      day(2024, 1, 15),
			ValueDate: day(2024, 1, 15),
			AccountID: "acc-2",
			Type:      models.TransactionTypeIncome,
			Amount:    250000,
			Payee:     "Arbeitgeber",
			TagIDs:    models.StringList{"tag-1"},
		},
	}
	return txns, resolver
}

func ids(txns []models.Transaction) []string {
	out := make([]string, len(txns))
	for i, tx := range txns {
		out[i] = tx.ID
	}
	return out
}

func assertIDs(t *testing.T, got []models.Transaction, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotIDs)
		}
	}
}

func TestApplyNoCriteriaReturnsAll(t *testing.T) {
	txns, r := testData()
	assertIDs(t, Apply(txns, Criteria{}, r), "t1", "t2", "t3")
}

func TestApplyFiltersAreANDCombined(t *testing.T) {
	txns, r := testData()
	acc := "acc-1"
	cat := "cat-rent"

	byAccount := Apply(txns, Criteria{AccountID: &acc}, r)
	assertIDs(t, byAccount, "t1", "t2")

	byCategory := Apply(txns, Criteria{CategoryID: &cat}, r)
	assertIDs(t, byCategory, "t2")

	// Combined result equals the intersection of the independent filters.
	both := Apply(txns, Criteria{AccountID: &acc, CategoryID: &cat}, r)
	assertIDs(t, both, "t2")
}

func TestApplyTagAndReconciledFilters(t *testing.T) {
	txns, r := testData()
	tag := "tag-1"
	assertIDs(t, Apply(txns, Criteria{TagID: &tag}, r), "t3")

	reconciled := true
	assertIDs(t, Apply(txns, Criteria{Reconciled: &reconciled}, r), "t2")
}

func TestApplyDateRangeBasis(t *testing.T) {
	txns, r := testData()
	from := day(2024, 1, 8)
	to := day(2024, 1, 31)

	// t2 books on Jan 10 but has a February value date.
	onDate := Apply(txns, Criteria{From: &from, To: &to, Basis: BasisDate}, r)
	assertIDs(t, onDate, "t2", "t3")

	onValueDate := Apply(txns, Criteria{From: &from, To: &to, Basis: BasisValueDate}, r)
	assertIDs(t, onValueDate, "t3")
}

func TestApplyDateRangeIsInclusive(t *testing.T) {
	txns, r := testData()
	from := day(2024, 1, 5)
	to := day(2024, 1, 5)
	assertIDs(t, Apply(txns, Criteria{From: &from, To: &to}, r), "t1")
}

func TestQueryMatchesResolvedNames(t *testing.T) {
	txns, r := testData()
	assertIDs(t, Apply(txns, Criteria{Query: "lebensmittel"}, r), "t1")
	assertIDs(t, Apply(txns, Criteria{Query: "SPARKONTO"}, r), "t3")
	assertIDs(t, Apply(txns, Criteria{Query: "urlaub"}, r), "t3")
	assertIDs(t, Apply(txns, Criteria{Query: "vermieter"}, r), "t2")
}

func TestQueryMatchesDate(t *testing.T) {
	txns, r := testData()
	assertIDs(t, Apply(txns, Criteria{Query: "2024-01-05"}, r), "t1")
	assertIDs(t, Apply(txns, Criteria{Query: "05.01.2024"}, r), "t1")
}

func TestQueryMatchesAmountWithBothSeparators(t *testing.T) {
	txns, r := testData()
	assertIDs(t, Apply(txns, Criteria{Query: "12,50"}, r), "t1")
	assertIDs(t, Apply(txns, Criteria{Query: "12.50"}, r), "t1")
	// Integer query matches the whole-euro part.
	assertIDs(t, Apply(txns, Criteria{Query: "800"}, r), "t2")
}

func TestSortStableAndToggle(t *testing.T) {
	txns, r := testData()
	sorter := NewSorter(language.German, r)

	sorter.Sort(txns, SortByAmount, true)
	assertIDs(t, txns, "t2", "t1", "t3")

	sorter.Sort(txns, SortByAmount, false)
	assertIDs(t, txns, "t3", "t1", "t2")
}

func TestSortByResolvedNameUsesCollation(t *testing.T) {
	txns, r := testData()
	sorter := NewSorter(language.German, r)

	sorter.Sort(txns, SortByCategory, true)
	// Empty name (t3, no category) sorts first, then Lebensmittel, Miete.
	assertIDs(t, txns, "t3", "t1", "t2")
}

func TestToggle(t *testing.T) {
	key, asc := Toggle(SortByDate, true, SortByDate)
	if key != SortByDate || asc {
		t.Errorf("clicking active key should flip direction, got %v asc=%v", key, asc)
	}
	key, asc = Toggle(SortByDate, false, SortByAmount)
	if key != SortByAmount || !asc {
		t.Errorf("clicking new key should select it ascending, got %v asc=%v", key, asc)
	}
}

func TestToggleTwiceRestoresOrder(t *testing.T) {
	txns, r := testData()
	sorter := NewSorter(language.German, r)

	// Reconciled is a mostly-equal key, so the stable sort must keep the
	// relative order of equal elements across a double toggle.
	key, asc := Toggle(SortByDate, true, SortByReconciled)
	sorter.Sort(txns, key, asc)
	assertIDs(t, txns, "t1", "t3", "t2")

	key, asc = Toggle(key, asc, SortByReconciled)
	sorter.Sort(txns, key, asc)
	assertIDs(t, txns, "t2", "t1", "t3")

	key, asc = Toggle(key, asc, SortByReconciled)
	sorter.Sort(txns, key, asc)
	assertIDs(t, txns, "t1", "t3", "t2")
}
