package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"leadmarket/internal/db"
	"leadmarket/internal/models"
	"leadmarket/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ContractorStore interface {
	Create(ctx context.Context, tx store.Execer, id, displayName string) error
	GetByID(ctx context.Context, contractorID string) (models.ContractorAccount, error)
	LockBalance(ctx context.Context, tx store.Getter, contractorID string) (int64, error)
	Credit(ctx context.Context, tx store.Getter, contractorID string, amount int64) (int64, error)
	DebitWithFloor(ctx context.Context, tx store.Getter, contractorID string, amount int64) (int64, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, entry store.LedgerEntryInput) error
	FindByKindAndReference(ctx context.Context, tx store.Getter, kind models.LedgerKind, referenceID string) (models.LedgerEntry, error)
	ListByContractor(ctx context.Context, contractorID string, limit, offset int) ([]models.LedgerEntry, error)
	SumByContractor(ctx context.Context, contractorID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID string, data map[string]any) error
}

// Notifier receives events after commit. Implementations must not block the
// caller and have no way to report failure back into the operation.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Notification) {}

// CreditService is the only writer of contractor balances. Every mutation
// appends a ledger entry and updates the cached balance in one transaction.
type CreditService struct {
	txRunner    db.TxRunner
	contractors ContractorStore
	ledger      LedgerStore
	audit       AuditStore
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewCreditService(txRunner db.TxRunner, contractors ContractorStore, ledger LedgerStore, audit AuditStore, notifier Notifier, logger *slog.Logger) *CreditService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditService{
		txRunner:    txRunner,
		contractors: contractors,
		ledger:      ledger,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

type CreditRequest struct {
	ContractorID string
	Amount       int64
	ReferenceID  string
	Description  string
}

type TopUpResult struct {
	Balance int64
	// Duplicate is set when the reference had already been credited and the
	// call changed nothing.
	Duplicate bool
}

type AdjustRequest struct {
	ContractorID string
	Delta        int64
	Reason       string
}

// TopUp credits a confirmed payment. A repeated ReferenceID is a no-op that
// reports the current balance.
func (s *CreditService) TopUp(ctx context.Context, actor models.Actor, req CreditRequest) (TopUpResult, error) {
	if err := requirePrivileged(actor); err != nil {
		return TopUpResult{}, err
	}
	if req.Amount <= 0 {
		return TopUpResult{}, ErrInvalidAmount
	}
	result, err := s.runTopUp(ctx, actor, req)
	if err != nil && req.ReferenceID != "" && db.IsUniqueViolation(err) {
		// a concurrent delivery of the same payment committed first
		result, err = s.runTopUp(ctx, actor, req)
	}
	if err != nil {
		return TopUpResult{}, classify("top up", err)
	}
	if !result.Duplicate {
		s.notify(ctx, models.Notification{
			Type:         models.NotificationTopUp,
			ContractorID: req.ContractorID,
			Amount:       req.Amount,
			Balance:      result.Balance,
			Summary:      req.Description,
		})
	} else {
		s.logger.Info("duplicate top-up ignored", "contractor_id", req.ContractorID, "reference_id", req.ReferenceID)
	}
	return result, nil
}

func (s *CreditService) runTopUp(ctx context.Context, actor models.Actor, req CreditRequest) (TopUpResult, error) {
	var result TopUpResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.topUpTx(ctx, tx, actor, req)
		return err
	})
	return result, err
}

func (s *CreditService) topUpTx(ctx context.Context, tx store.Tx, actor models.Actor, req CreditRequest) (TopUpResult, error) {
	if req.ReferenceID != "" {
		existing, err := s.ledger.FindByKindAndReference(ctx, tx, models.LedgerTopUp, req.ReferenceID)
		switch {
		case err == nil:
			if existing.ContractorID != req.ContractorID {
				return TopUpResult{}, ErrReferenceConflict
			}
			balance, err := s.lockBalance(ctx, tx, req.ContractorID)
			if err != nil {
				return TopUpResult{}, err
			}
			return TopUpResult{Balance: balance, Duplicate: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return TopUpResult{}, err
		}
	}
	balance, err := s.apply(ctx, tx, actor, models.LedgerTopUp, req.ContractorID, req.Amount, req.ReferenceID, req.Description)
	return TopUpResult{Balance: balance}, err
}

// Debit removes credit if, and only if, the balance covers it.
func (s *CreditService) Debit(ctx context.Context, actor models.Actor, req CreditRequest) (int64, error) {
	if err := requirePrivileged(actor); err != nil {
		return 0, err
	}
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = s.debitTx(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		return 0, classify("debit", err)
	}
	return balance, nil
}

func (s *CreditService) Refund(ctx context.Context, actor models.Actor, req CreditRequest) (int64, error) {
	if err := requirePrivileged(actor); err != nil {
		return 0, err
	}
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = s.refundTx(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		return 0, classify("refund", err)
	}
	return balance, nil
}

// Adjust applies a signed administrative correction.
func (s *CreditService) Adjust(ctx context.Context, actor models.Actor, req AdjustRequest) (int64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if req.Delta == 0 {
		return 0, ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual adjustment"
	}
	var balance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = s.apply(ctx, tx, actor, models.LedgerAdjustment, req.ContractorID, req.Delta, "", reason)
		return err
	})
	if err != nil {
		return 0, classify("adjust", err)
	}
	s.notify(ctx, models.Notification{
		Type:         models.NotificationAdjustment,
		ContractorID: req.ContractorID,
		Amount:       req.Delta,
		Balance:      balance,
		Summary:      reason,
	})
	return balance, nil
}

// OpenAccount creates a zero-balance account when a contractor is approved.
func (s *CreditService) OpenAccount(ctx context.Context, actor models.Actor, contractorID, displayName string) error {
	if err := requirePrivileged(actor); err != nil {
		return err
	}
	contractorID = strings.TrimSpace(contractorID)
	if contractorID == "" {
		return ErrInvalidAccount
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.contractors.Create(ctx, tx, contractorID, strings.TrimSpace(displayName)); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAccountExists
			}
			return err
		}
		return s.audit.Log(ctx, tx, actor.AuditName(), "account_open", "contractor_account", contractorID, map[string]any{
			"display_name": displayName,
		})
	})
	return classify("open account", err)
}

func (s *CreditService) Balance(ctx context.Context, actor models.Actor, contractorID string) (models.ContractorAccount, error) {
	if err := requireActsFor(actor, contractorID); err != nil {
		return models.ContractorAccount{}, err
	}
	account, err := s.contractors.GetByID(ctx, contractorID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContractorAccount{}, ErrContractorNotFound
	}
	if err != nil {
		return models.ContractorAccount{}, classify("balance", err)
	}
	return account, nil
}

func (s *CreditService) Ledger(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LedgerEntry, error) {
	if err := requireActsFor(actor, contractorID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListByContractor(ctx, contractorID, limit, offset)
	if err != nil {
		return nil, classify("ledger", err)
	}
	return entries, nil
}

// CheckBalance compares one contractor's stored balance with the sum of
// their ledger.
func (s *CreditService) CheckBalance(ctx context.Context, actor models.Actor, contractorID string) (store.BalanceDrift, error) {
	if err := requireAdmin(actor); err != nil {
		return store.BalanceDrift{}, err
	}
	account, err := s.contractors.GetByID(ctx, contractorID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.BalanceDrift{}, ErrContractorNotFound
	}
	if err != nil {
		return store.BalanceDrift{}, classify("check balance", err)
	}
	sum, err := s.ledger.SumByContractor(ctx, contractorID)
	if err != nil {
		return store.BalanceDrift{}, classify("check balance", err)
	}
	return store.BalanceDrift{
		ContractorID:  contractorID,
		StoredBalance: account.CreditBalance,
		LedgerSum:     sum,
		Difference:    account.CreditBalance - sum,
	}, nil
}

func (s *CreditService) debitTx(ctx context.Context, tx store.Tx, actor models.Actor, req CreditRequest) (int64, error) {
	return s.apply(ctx, tx, actor, models.LedgerLeadPurchase, req.ContractorID, -req.Amount, req.ReferenceID, req.Description)
}

func (s *CreditService) refundTx(ctx context.Context, tx store.Tx, actor models.Actor, req CreditRequest) (int64, error) {
	return s.apply(ctx, tx, actor, models.LedgerRefund, req.ContractorID, req.Amount, req.ReferenceID, req.Description)
}

// apply moves the balance by amount and appends the matching ledger entry.
// Negative amounts never take the balance below zero.
func (s *CreditService) apply(ctx context.Context, tx store.Tx, actor models.Actor, kind models.LedgerKind, contractorID string, amount int64, referenceID, description string) (int64, error) {
	var balance int64
	var err error
	if amount > 0 {
		balance, err = s.contractors.Credit(ctx, tx, contractorID, amount)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrContractorNotFound
		}
	} else {
		balance, err = s.contractors.DebitWithFloor(ctx, tx, contractorID, -amount)
		if errors.Is(err, sql.ErrNoRows) {
			current, lockErr := s.lockBalance(ctx, tx, contractorID)
			if lockErr != nil {
				return 0, lockErr
			}
			return 0, &InsufficientFundsError{Balance: current, Required: -amount}
		}
	}
	if err != nil {
		return 0, err
	}
	if err := s.ledger.Insert(ctx, tx, store.LedgerEntryInput{
		ID:           uuid.NewString(),
		ContractorID: contractorID,
		Amount:       amount,
		Kind:         kind,
		ReferenceID:  referenceID,
		Description:  description,
	}); err != nil {
		return 0, err
	}
	if err := s.audit.Log(ctx, tx, actor.AuditName(), "credit_"+string(kind), "contractor_account", contractorID, map[string]any{
		"amount":       amount,
		"reference_id": referenceID,
		"balance":      balance,
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *CreditService) lockBalance(ctx context.Context, tx store.Getter, contractorID string) (int64, error) {
	balance, err := s.contractors.LockBalance(ctx, tx, contractorID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrContractorNotFound
	}
	return balance, err
}

func (s *CreditService) notify(ctx context.Context, notification models.Notification) {
	notification.OccurredAt = s.now().UTC()
	s.notifier.Notify(ctx, notification)
}
