package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/filter"
	"finwave/internal/models"
	"finwave/internal/tenant"
)

// transactionService handles transaction business logic, including transfer
// pairs, running balances and the search/sort pipeline.
type transactionService struct {
	tenants *tenant.Manager

	mu    sync.Mutex
	batch map[string]bool
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(tenants *tenant.Manager) TransactionServicer {
	return &transactionService{
		tenants: tenants,
		batch:   make(map[string]bool),
	}
}

func (s *transactionService) inBatch(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch[userID]
}

// SetBatchMode suppresses balance recomputation and cache invalidation while
// enabled. Disabling it runs one full pass over every account.
func (s *transactionService) SetBatchMode(userID string, enabled bool) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	was := s.batch[userID]
	s.batch[userID] = enabled
	s.mu.Unlock()

	if was && !enabled {
		var accounts []models.Account
		if err := sess.DB().Find(&accounts).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, account := range accounts {
			if err := recomputeAccount(sess.DB(), account.ID); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
	}
	return nil
}

// CreateTransaction creates a standard income or expense transaction.
func (s *transactionService) CreateTransaction(userID string, input TransactionInput) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	if input.Type != models.TransactionTypeExpense && input.Type != models.TransactionTypeIncome {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if _, err := getAccount(db, input.AccountID); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		if _, err := getCategory(db, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	valueDate := input.Date
	if input.ValueDate != nil {
		valueDate = *input.ValueDate
	}

	txn := &models.Transaction{
		Date:        input.Date,
		ValueDate:   valueDate,
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		Type:        input.Type,
		Amount:      input.Amount,
		RecipientID: input.RecipientID,
		TagIDs:      input.TagIDs,
		Note:        input.Note,
		Reconciled:  input.Reconciled,
	}
	if err := derivePayee(db, txn); err != nil {
		return nil, err
	}
	if txn.CategoryID == nil {
		if err := applyRules(db, txn); err != nil {
			return nil, err
		}
	}

	stamp(sess, txn)
	if err := db.Create(txn).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(db, EntityTransaction, models.SyncOpCreate, txn)

	if !s.inBatch(userID) {
		if err := recomputeAccount(db, txn.AccountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		invalidateMonthly(db, txn.AccountID, txn.Date)
	}
	return txn, nil
}

// CreateAccountTransfer books a linked pair of transactions moving amount
// (in cents, positive) from one account to another.
func (s *transactionService) CreateAccountTransfer(userID, fromAccountID, toAccountID string, amount int64, date time.Time, note string) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	if fromAccountID == toAccountID {
		return nil, apperrors.ErrSameAccountTransfer
	}
	if amount < 0 {
		amount = -amount
	}
	if _, err := getAccount(db, fromAccountID); err != nil {
		return nil, err
	}
	if _, err := getAccount(db, toAccountID); err != nil {
		return nil, err
	}

	out := &models.Transaction{
		Date: date, ValueDate: date,
		AccountID: fromAccountID,
		Type:      models.TransactionTypeAccountTransfer,
		Amount:    -amount,
		Note:      note,
	}
	in := &models.Transaction{
		Date: date, ValueDate: date,
		AccountID: toAccountID,
		Type:      models.TransactionTypeAccountTransfer,
		Amount:    amount,
		Note:      note,
	}

	stamp(sess, out)
	stamp(sess, in)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(out).Error; err != nil {
			return err
		}
		if err := tx.Create(in).Error; err != nil {
			return err
		}
		out.CounterTransactionID = &in.ID
		in.CounterTransactionID = &out.ID
		if err := tx.Model(out).UpdateColumn("counter_transaction_id", in.ID).Error; err != nil {
			return err
		}
		return tx.Model(in).UpdateColumn("counter_transaction_id", out.ID).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(db, EntityTransaction, models.SyncOpCreate, out)
	enqueueSync(db, EntityTransaction, models.SyncOpCreate, in)

	if !s.inBatch(userID) {
		if err := recomputeAccount(db, fromAccountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := recomputeAccount(db, toAccountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		invalidateMonthly(db, fromAccountID, date)
		invalidateMonthly(db, toAccountID, date)
	}
	return out, nil
}

// CreateCategoryTransfer moves budget between two envelopes as a linked pair
// of transactions. Category transfers carry no account and never touch
// account balances.
func (s *transactionService) CreateCategoryTransfer(userID, fromCategoryID, toCategoryID string, amount int64, date time.Time, note string) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	if fromCategoryID == toCategoryID {
		return nil, apperrors.ErrSameCategoryTransfer
	}
	if amount < 0 {
		amount = -amount
	}
	if _, err := getCategory(db, fromCategoryID); err != nil {
		return nil, err
	}
	if _, err := getCategory(db, toCategoryID); err != nil {
		return nil, err
	}

	out := &models.Transaction{
		Date: date, ValueDate: date,
		CategoryID: &fromCategoryID,
		Type:       models.TransactionTypeCategoryTransfer,
		Amount:     -amount,
		Note:       note,
	}
	in := &models.Transaction{
		Date: date, ValueDate: date,
		CategoryID: &toCategoryID,
		Type:       models.TransactionTypeCategoryTransfer,
		Amount:     amount,
		Note:       note,
	}

	stamp(sess, out)
	stamp(sess, in)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(out).Error; err != nil {
			return err
		}
		if err := tx.Create(in).Error; err != nil {
			return err
		}
		out.CounterTransactionID = &in.ID
		in.CounterTransactionID = &out.ID
		if err := tx.Model(out).UpdateColumn("counter_transaction_id", in.ID).Error; err != nil {
			return err
		}
		return tx.Model(in).UpdateColumn("counter_transaction_id", out.ID).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(db, EntityTransaction, models.SyncOpCreate, out)
	enqueueSync(db, EntityTransaction, models.SyncOpCreate, in)
	return out, nil
}

// ListTransactions loads, filters and sorts the tenant's transactions. The
// filter and sort run in memory over resolved display names, so free-text
// queries match account, category, recipient and tag names as well as dates
// and amounts.
func (s *transactionService) ListTransactions(userID string, criteria filter.Criteria, sortKey filter.SortKey, ascending bool) ([]models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	var txns []models.Transaction
	if err := db.Order("date desc, created_at desc").Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resolver, err := newDBResolver(db)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	txns = filter.Apply(txns, criteria, resolver)
	if sortKey != "" {
		filter.NewSorter(language.German, resolver).Sort(txns, sortKey, ascending)
	}
	return txns, nil
}

// GetTransactionByID retrieves a transaction by ID.
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	return getTransaction(sess.DB(), transactionID)
}

func getTransaction(db *gorm.DB, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := db.Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

// UpdateTransaction merges the provided fields into the transaction. Changing
// the amount or date of a transfer leg mirrors the change onto its counter
// transaction with the opposite sign.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdate) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	txn, err := getTransaction(db, transactionID)
	if err != nil {
		return nil, err
	}

	if fields.Date != nil {
		txn.Date = *fields.Date
	}
	if fields.ValueDate != nil {
		txn.ValueDate = *fields.ValueDate
	}
	if fields.CategoryID != nil {
		if *fields.CategoryID == "" {
			txn.CategoryID = nil
		} else {
			if _, err := getCategory(db, *fields.CategoryID); err != nil {
				return nil, err
			}
			txn.CategoryID = fields.CategoryID
		}
	}
	if fields.Amount != nil {
		txn.Amount = *fields.Amount
	}
	if fields.RecipientID != nil {
		if *fields.RecipientID == "" {
			txn.RecipientID = nil
		} else {
			txn.RecipientID = fields.RecipientID
		}
		if err := derivePayee(db, txn); err != nil {
			return nil, err
		}
	}
	if fields.TagIDs != nil {
		txn.TagIDs = *fields.TagIDs
	}
	if fields.Note != nil {
		txn.Note = *fields.Note
	}
	if fields.Reconciled != nil {
		txn.Reconciled = *fields.Reconciled
	}

	stamp(sess, txn)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(txn).Error; err != nil {
			return err
		}
		if txn.CounterTransactionID != nil && (fields.Amount != nil || fields.Date != nil) {
			var counter models.Transaction
			if err := tx.Where("id = ?", *txn.CounterTransactionID).First(&counter).Error; err != nil {
				return err
			}
			counter.Amount = -txn.Amount
			counter.Date = txn.Date
			counter.ValueDate = txn.ValueDate
			stamp(sess, &counter)
			if err := tx.Save(&counter).Error; err != nil {
				return err
			}
			enqueueSync(tx, EntityTransaction, models.SyncOpUpdate, &counter)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(db, EntityTransaction, models.SyncOpUpdate, txn)

	if !s.inBatch(userID) && txn.AccountID != "" {
		if err := recomputeAccount(db, txn.AccountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		invalidateMonthly(db, txn.AccountID, txn.Date)
	}
	return txn, nil
}

// DeleteTransaction soft-deletes a transaction. Deleting a transfer leg
// removes its counter transaction in the same step, so a pair never survives
// half-deleted.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}
	db := sess.DB()

	txn, err := getTransaction(db, transactionID)
	if err != nil {
		return err
	}

	legs := []*models.Transaction{txn}
	if txn.CounterTransactionID != nil {
		var counter models.Transaction
		err := db.Where("id = ?", *txn.CounterTransactionID).First(&counter).Error
		if err == nil {
			legs = append(legs, &counter)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, leg := range legs {
			stamp(sess, leg)
			if err := tx.Model(leg).UpdateColumn("revision", leg.Revision).Error; err != nil {
				return err
			}
			if err := tx.Delete(leg).Error; err != nil {
				return err
			}
			enqueueSync(tx, EntityTransaction, models.SyncOpDelete, leg)
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !s.inBatch(userID) {
		for _, leg := range legs {
			if leg.AccountID == "" {
				continue
			}
			if err := recomputeAccount(db, leg.AccountID); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			invalidateMonthly(db, leg.AccountID, leg.Date)
		}
	}
	return nil
}

// derivePayee mirrors the recipient's name into the transaction's Payee
// field, clearing it when no recipient is set.
func derivePayee(db *gorm.DB, txn *models.Transaction) error {
	if txn.RecipientID == nil {
		txn.Payee = ""
		return nil
	}
	var recipient models.Recipient
	if err := db.Where("id = ?", *txn.RecipientID).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRecipientNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	txn.Payee = recipient.Name
	return nil
}

// applyRules assigns category and recipient from the first matching active
// rule, highest priority first. Rules match by case-insensitive substring on
// the configured field.
func applyRules(db *gorm.DB, txn *models.Transaction) error {
	var rules []models.Rule
	err := db.Where("is_active = ?", true).Order("priority desc, name").Find(&rules).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, rule := range rules {
		var haystack string
		switch rule.MatchField {
		case models.RuleFieldPayee:
			haystack = txn.Payee
		case models.RuleFieldNote:
			haystack = txn.Note
		}
		if haystack == "" || rule.Pattern == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(haystack), strings.ToLower(rule.Pattern)) {
			continue
		}
		if rule.CategoryID != nil {
			txn.CategoryID = rule.CategoryID
		}
		if rule.RecipientID != nil && txn.RecipientID == nil {
			txn.RecipientID = rule.RecipientID
			if err := derivePayee(db, txn); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// recomputeAccount rebuilds the running balances of an account's history and
// the account's total. Derived columns are written with UpdateColumn so the
// pass never advances revisions or touches UpdatedAt.
func recomputeAccount(db *gorm.DB, accountID string) error {
	var txns []models.Transaction
	err := db.Where("account_id = ?", accountID).
		Order("date, created_at").Find(&txns).Error
	if err != nil {
		return err
	}

	var running int64
	for i := range txns {
		running += txns[i].Amount
		if txns[i].RunningBalance != running {
			err := db.Model(&txns[i]).UpdateColumn("running_balance", running).Error
			if err != nil {
				return err
			}
		}
	}
	return db.Model(&models.Account{}).Where("id = ?", accountID).
		UpdateColumn("balance", running).Error
}

// invalidateMonthly drops cached monthly balances for the account from the
// changed month onward. Failures only cost a recomputation later.
func invalidateMonthly(db *gorm.DB, accountID string, from time.Time) {
	year, month := from.Year(), int(from.Month())
	db.Where("account_id = ? AND (year > ? OR (year = ? AND month >= ?))",
		accountID, year, year, month).
		Delete(&models.MonthlyBalance{})
}

// dbResolver resolves entity IDs to display names from one upfront load,
// shared by the filter and sorter.
type dbResolver struct {
	accounts   map[string]string
	categories map[string]string
	recipients map[string]string
	tags       map[string]string
}

func newDBResolver(db *gorm.DB) (*dbResolver, error) {
	r := &dbResolver{
		accounts:   make(map[string]string),
		categories: make(map[string]string),
		recipients: make(map[string]string),
		tags:       make(map[string]string),
	}

	var accounts []models.Account
	if err := db.Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a.Name
	}

	var categories []models.Category
	if err := db.Find(&categories).Error; err != nil {
		return nil, err
	}
	for _, c := range categories {
		r.categories[c.ID] = c.Name
	}

	var recipients []models.Recipient
	if err := db.Find(&recipients).Error; err != nil {
		return nil, err
	}
	for _, re := range recipients {
		r.recipients[re.ID] = re.Name
	}

	var tags []models.Tag
	if err := db.Find(&tags).Error; err != nil {
		return nil, err
	}
	for _, t := range tags {
		r.tags[t.ID] = t.Name
	}
	return r, nil
}

func (r *dbResolver) AccountName(id string) string   { return r.accounts[id] }
func (r *dbResolver) CategoryName(id string) string  { return r.categories[id] }
func (r *dbResolver) RecipientName(id string) string { return r.recipients[id] }
func (r *dbResolver) TagName(id string) string       { return r.tags[id] }
