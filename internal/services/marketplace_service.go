package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"leadmarket/internal/db"
	"leadmarket/internal/models"
	"leadmarket/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type JobStore interface {
	CreateCustomer(ctx context.Context, tx store.Execer, input store.CustomerInput) error
	CreateAddress(ctx context.Context, tx store.Execer, input store.AddressInput) error
	Create(ctx context.Context, tx store.Execer, input store.JobInput) error
	GetByID(ctx context.Context, jobID string) (models.Job, error)
	GetForUpdate(ctx context.Context, tx store.Getter, jobID string) (models.Job, error)
	Transition(ctx context.Context, tx store.Execer, jobID string, from, to models.JobStatus) (int64, error)
	SetLocation(ctx context.Context, tx store.Execer, jobID string, lat, lng float64) (int64, error)
	GetContact(ctx context.Context, tx store.Getter, jobID string) (models.JobContact, error)
	ListOpen(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, tx store.Execer, input store.PurchaseInput) error
	GetForUpdate(ctx context.Context, tx store.Getter, purchaseID string) (models.LeadPurchase, error)
	ActiveByJob(ctx context.Context, tx store.Getter, jobID string) (models.LeadPurchase, error)
	MarkRefunded(ctx context.Context, tx store.Execer, purchaseID, reason string) (int64, error)
	ListByContractor(ctx context.Context, contractorID string, limit, offset int) ([]models.LeadPurchase, error)
}

// OpenJobsCache fronts the open-jobs listing. Invalidate must be called after
// every commit that changes which jobs are open.
type OpenJobsCache interface {
	Fetch(ctx context.Context, key string, load func(context.Context) ([]models.PublicJob, error)) ([]models.PublicJob, error)
	Invalidate(ctx context.Context) error
}

type MarketplaceService struct {
	txRunner  db.TxRunner
	jobs      JobStore
	purchases PurchaseStore
	credits   *CreditService
	audit     AuditStore
	cache     OpenJobsCache
	notifier  Notifier
	logger    *slog.Logger
}

func NewMarketplaceService(txRunner db.TxRunner, jobs JobStore, purchases PurchaseStore, credits *CreditService, audit AuditStore, cache OpenJobsCache, notifier Notifier, logger *slog.Logger) *MarketplaceService {
	if cache == nil {
		cache = passthroughCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketplaceService{
		txRunner:  txRunner,
		jobs:      jobs,
		purchases: purchases,
		credits:   credits,
		audit:     audit,
		cache:     cache,
		notifier:  notifier,
		logger:    logger,
	}
}

type UnlockResult struct {
	PurchaseID       string            `json:"purchase_id"`
	JobID            string            `json:"job_id"`
	Contact          models.JobContact `json:"contact"`
	PricePaid        int64             `json:"price_paid"`
	RemainingBalance int64             `json:"remaining_balance"`
}

type RefundResult struct {
	PurchaseID     string `json:"purchase_id"`
	JobID          string `json:"job_id"`
	ContractorID   string `json:"contractor_id"`
	RefundedAmount int64  `json:"refunded_amount"`
	Balance        int64  `json:"balance"`
}

// UnlockLead sells an open job to one contractor. The job transition, the
// debit and the purchase row commit together or not at all.
func (s *MarketplaceService) UnlockLead(ctx context.Context, actor models.Actor, contractorID, jobID string) (UnlockResult, error) {
	if err := requireContractor(actor, contractorID); err != nil {
		return UnlockResult{}, err
	}
	var result UnlockResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.unlockTx(ctx, tx, actor, contractorID, jobID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrJobNotAvailable) {
			s.logger.Error("unlock lead failed", "job_id", jobID, "contractor_id", contractorID, "error", err)
		}
		return UnlockResult{}, classify("unlock lead", err)
	}
	s.invalidate(ctx)
	s.credits.notify(ctx, models.Notification{
		Type:         models.NotificationUnlocked,
		ContractorID: contractorID,
		JobID:        jobID,
		Amount:       -result.PricePaid,
		Balance:      result.RemainingBalance,
	})
	return result, nil
}

func (s *MarketplaceService) unlockTx(ctx context.Context, tx store.Tx, actor models.Actor, contractorID, jobID string) (UnlockResult, error) {
	job, err := s.jobs.GetForUpdate(ctx, tx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return UnlockResult{}, ErrJobNotFound
	}
	if err != nil {
		return UnlockResult{}, err
	}
	if job.Status != models.JobOpen {
		return UnlockResult{}, ErrJobNotAvailable
	}
	rows, err := s.jobs.Transition(ctx, tx, jobID, models.JobOpen, models.JobUnlocked)
	if err != nil {
		return UnlockResult{}, err
	}
	if rows == 0 {
		return UnlockResult{}, ErrJobNotAvailable
	}
	balance, err := s.credits.debitTx(ctx, tx, actor, CreditRequest{
		ContractorID: contractorID,
		Amount:       job.LeadPrice,
		ReferenceID:  jobID,
		Description:  "lead unlock",
	})
	if err != nil {
		return UnlockResult{}, err
	}
	purchaseID := uuid.NewString()
	if err := s.purchases.Create(ctx, tx, store.PurchaseInput{
		ID:           purchaseID,
		JobID:        jobID,
		ContractorID: contractorID,
		PricePaid:    job.LeadPrice,
	}); err != nil {
		if db.IsUniqueViolation(err) {
			return UnlockResult{}, ErrJobNotAvailable
		}
		return UnlockResult{}, err
	}
	contact, err := s.jobs.GetContact(ctx, tx, jobID)
	if err != nil {
		return UnlockResult{}, err
	}
	if err := s.audit.Log(ctx, tx, actor.AuditName(), "lead_unlock", "job", jobID, map[string]any{
		"purchase_id":   purchaseID,
		"contractor_id": contractorID,
		"price_paid":    job.LeadPrice,
	}); err != nil {
		return UnlockResult{}, err
	}
	return UnlockResult{
		PurchaseID:       purchaseID,
		JobID:            jobID,
		Contact:          contact,
		PricePaid:        job.LeadPrice,
		RemainingBalance: balance,
	}, nil
}

// RefundLead reverses a purchase: the price paid goes back to the contractor
// and the job returns to the market.
func (s *MarketplaceService) RefundLead(ctx context.Context, actor models.Actor, purchaseID, reason string) (RefundResult, error) {
	if err := requireAdmin(actor); err != nil {
		return RefundResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "lead refund"
	}
	var result RefundResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.refundTx(ctx, tx, actor, purchaseID, reason)
		return err
	})
	if err != nil {
		return RefundResult{}, classify("refund lead", err)
	}
	s.invalidate(ctx)
	s.credits.notify(ctx, models.Notification{
		Type:         models.NotificationRefunded,
		ContractorID: result.ContractorID,
		JobID:        result.JobID,
		Amount:       result.RefundedAmount,
		Balance:      result.Balance,
		Summary:      reason,
	})
	return result, nil
}

func (s *MarketplaceService) refundTx(ctx context.Context, tx store.Tx, actor models.Actor, purchaseID, reason string) (RefundResult, error) {
	purchase, err := s.purchases.GetForUpdate(ctx, tx, purchaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return RefundResult{}, ErrPurchaseNotFound
	}
	if err != nil {
		return RefundResult{}, err
	}
	if purchase.RefundedAt != nil {
		return RefundResult{}, ErrAlreadyRefunded
	}
	rows, err := s.purchases.MarkRefunded(ctx, tx, purchaseID, reason)
	if err != nil {
		return RefundResult{}, err
	}
	if rows == 0 {
		return RefundResult{}, ErrAlreadyRefunded
	}
	rows, err = s.jobs.Transition(ctx, tx, purchase.JobID, models.JobUnlocked, models.JobOpen)
	if err != nil {
		return RefundResult{}, err
	}
	if rows == 0 {
		return RefundResult{}, ErrJobNotRefundable
	}
	balance, err := s.credits.refundTx(ctx, tx, actor, CreditRequest{
		ContractorID: purchase.ContractorID,
		Amount:       purchase.PricePaid,
		ReferenceID:  purchase.JobID,
		Description:  reason,
	})
	if err != nil {
		return RefundResult{}, err
	}
	if err := s.audit.Log(ctx, tx, actor.AuditName(), "lead_refund", "lead_purchase", purchaseID, map[string]any{
		"job_id":        purchase.JobID,
		"contractor_id": purchase.ContractorID,
		"amount":        purchase.PricePaid,
		"reason":        reason,
	}); err != nil {
		return RefundResult{}, err
	}
	return RefundResult{
		PurchaseID:     purchaseID,
		JobID:          purchase.JobID,
		ContractorID:   purchase.ContractorID,
		RefundedAmount: purchase.PricePaid,
		Balance:        balance,
	}, nil
}

// AdvanceJob drives the post-purchase workflow. The open/unlocked edges belong
// to UnlockLead and RefundLead and are refused here.
func (s *MarketplaceService) AdvanceJob(ctx context.Context, actor models.Actor, jobID string, to models.JobStatus) (models.Job, error) {
	if !actor.Authenticated() {
		return models.Job{}, ErrUnauthenticated
	}
	if !to.Valid() || to == models.JobOpen || to == models.JobUnlocked {
		return models.Job{}, ErrInvalidTransition
	}
	var job models.Job
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		job, err = s.jobs.GetForUpdate(ctx, tx, jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}
		if err := s.authorizeAdvance(ctx, tx, actor, job, to); err != nil {
			return err
		}
		from := job.Status
		if !from.CanTransitionTo(to) {
			return ErrInvalidTransition
		}
		rows, err := s.jobs.Transition(ctx, tx, jobID, from, to)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInvalidTransition
		}
		job.Status = to
		return s.audit.Log(ctx, tx, actor.AuditName(), "job_status", "job", jobID, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	})
	if err != nil {
		return models.Job{}, classify("advance job", err)
	}
	if to == models.JobCancelled {
		s.invalidate(ctx)
	}
	return job, nil
}

func (s *MarketplaceService) authorizeAdvance(ctx context.Context, tx store.Getter, actor models.Actor, job models.Job, to models.JobStatus) error {
	if actor.Privileged() {
		return nil
	}
	if to == models.JobCancelled || actor.Kind != models.ActorContractor {
		return ErrForbidden
	}
	purchase, err := s.purchases.ActiveByJob(ctx, tx, job.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if purchase.ContractorID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *MarketplaceService) PurchasesFor(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LeadPurchase, error) {
	if err := requireActsFor(actor, contractorID); err != nil {
		return nil, err
	}
	purchases, err := s.purchases.ListByContractor(ctx, contractorID, limit, offset)
	if err != nil {
		return nil, classify("purchases", err)
	}
	return purchases, nil
}

func (s *MarketplaceService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("open jobs cache invalidation failed", "error", err)
	}
}
