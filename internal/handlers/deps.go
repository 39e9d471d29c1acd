package handlers

import (
	"context"

	"leadmarket/internal/models"
	"leadmarket/internal/services"
	"leadmarket/internal/store"
)

type CreditService interface {
	TopUp(ctx context.Context, actor models.Actor, req services.CreditRequest) (services.TopUpResult, error)
	Adjust(ctx context.Context, actor models.Actor, req services.AdjustRequest) (int64, error)
	OpenAccount(ctx context.Context, actor models.Actor, contractorID, displayName string) error
	Balance(ctx context.Context, actor models.Actor, contractorID string) (models.ContractorAccount, error)
	Ledger(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LedgerEntry, error)
	CheckBalance(ctx context.Context, actor models.Actor, contractorID string) (store.BalanceDrift, error)
}

type MarketplaceService interface {
	ListOpenJobs(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error)
	UnlockLead(ctx context.Context, actor models.Actor, contractorID, jobID string) (services.UnlockResult, error)
	RefundLead(ctx context.Context, actor models.Actor, purchaseID, reason string) (services.RefundResult, error)
	AdvanceJob(ctx context.Context, actor models.Actor, jobID string, to models.JobStatus) (models.Job, error)
	PurchasesFor(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LeadPurchase, error)
}

type IntakeService interface {
	SubmitJob(ctx context.Context, actor models.Actor, sub services.JobSubmission) (string, error)
	SetJobLocation(ctx context.Context, actor models.Actor, jobID string, lat, lng float64) error
	GetJob(ctx context.Context, actor models.Actor, jobID string) (models.Job, error)
}

type ReconcileStore interface {
	Reconcile(ctx context.Context) ([]store.BalanceDrift, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}
