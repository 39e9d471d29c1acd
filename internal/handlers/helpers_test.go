package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadmarket/internal/auth"
	"leadmarket/internal/config"
	"leadmarket/internal/models"
	"leadmarket/internal/services"
	"leadmarket/internal/store"
	"leadmarket/internal/websocket"
)

const (
	testSecret     = "secret"
	testServiceKey = "collaborator-key"
)

type stubCredits struct {
	topUpFn       func(ctx context.Context, actor models.Actor, req services.CreditRequest) (services.TopUpResult, error)
	adjustFn      func(ctx context.Context, actor models.Actor, req services.AdjustRequest) (int64, error)
	openAccountFn func(ctx context.Context, actor models.Actor, contractorID, displayName string) error
	balanceFn     func(ctx context.Context, actor models.Actor, contractorID string) (models.ContractorAccount, error)
	ledgerFn      func(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LedgerEntry, error)
	checkFn       func(ctx context.Context, actor models.Actor, contractorID string) (store.BalanceDrift, error)
}

func (s stubCredits) TopUp(ctx context.Context, actor models.Actor, req services.CreditRequest) (services.TopUpResult, error) {
	if s.topUpFn == nil {
		return services.TopUpResult{}, nil
	}
	return s.topUpFn(ctx, actor, req)
}

func (s stubCredits) Adjust(ctx context.Context, actor models.Actor, req services.AdjustRequest) (int64, error) {
	if s.adjustFn == nil {
		return 0, nil
	}
	return s.adjustFn(ctx, actor, req)
}

func (s stubCredits) OpenAccount(ctx context.Context, actor models.Actor, contractorID, displayName string) error {
	if s.openAccountFn == nil {
		return nil
	}
	return s.openAccountFn(ctx, actor, contractorID, displayName)
}

func (s stubCredits) Balance(ctx context.Context, actor models.Actor, contractorID string) (models.ContractorAccount, error) {
	if s.balanceFn == nil {
		return models.ContractorAccount{ID: contractorID}, nil
	}
	return s.balanceFn(ctx, actor, contractorID)
}

func (s stubCredits) Ledger(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LedgerEntry, error) {
	if s.ledgerFn == nil {
		return nil, nil
	}
	return s.ledgerFn(ctx, actor, contractorID, limit, offset)
}

func (s stubCredits) CheckBalance(ctx context.Context, actor models.Actor, contractorID string) (store.BalanceDrift, error) {
	return s.checkFn(ctx, actor, contractorID)
}

type stubMarketplace struct {
	listFn      func(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error)
	unlockFn    func(ctx context.Context, actor models.Actor, contractorID, jobID string) (services.UnlockResult, error)
	refundFn    func(ctx context.Context, actor models.Actor, purchaseID, reason string) (services.RefundResult, error)
	advanceFn   func(ctx context.Context, actor models.Actor, jobID string, to models.JobStatus) (models.Job, error)
	purchasesFn func(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LeadPurchase, error)
}

func (s stubMarketplace) ListOpenJobs(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubMarketplace) UnlockLead(ctx context.Context, actor models.Actor, contractorID, jobID string) (services.UnlockResult, error) {
	if s.unlockFn == nil {
		return services.UnlockResult{}, nil
	}
	return s.unlockFn(ctx, actor, contractorID, jobID)
}

func (s stubMarketplace) RefundLead(ctx context.Context, actor models.Actor, purchaseID, reason string) (services.RefundResult, error) {
	if s.refundFn == nil {
		return services.RefundResult{}, nil
	}
	return s.refundFn(ctx, actor, purchaseID, reason)
}

func (s stubMarketplace) AdvanceJob(ctx context.Context, actor models.Actor, jobID string, to models.JobStatus) (models.Job, error) {
	if s.advanceFn == nil {
		return models.Job{ID: jobID, Status: to}, nil
	}
	return s.advanceFn(ctx, actor, jobID, to)
}

func (s stubMarketplace) PurchasesFor(ctx context.Context, actor models.Actor, contractorID string, limit, offset int) ([]models.LeadPurchase, error) {
	if s.purchasesFn == nil {
		return nil, nil
	}
	return s.purchasesFn(ctx, actor, contractorID, limit, offset)
}

type stubIntake struct {
	submitFn   func(ctx context.Context, actor models.Actor, sub services.JobSubmission) (string, error)
	locationFn func(ctx context.Context, actor models.Actor, jobID string, lat, lng float64) error
	getJobFn   func(ctx context.Context, actor models.Actor, jobID string) (models.Job, error)
}

func (s stubIntake) SubmitJob(ctx context.Context, actor models.Actor, sub services.JobSubmission) (string, error) {
	if s.submitFn == nil {
		return "job-1", nil
	}
	return s.submitFn(ctx, actor, sub)
}

func (s stubIntake) SetJobLocation(ctx context.Context, actor models.Actor, jobID string, lat, lng float64) error {
	if s.locationFn == nil {
		return nil
	}
	return s.locationFn(ctx, actor, jobID, lat, lng)
}

func (s stubIntake) GetJob(ctx context.Context, actor models.Actor, jobID string) (models.Job, error) {
	return s.getJobFn(ctx, actor, jobID)
}

type stubReconcile struct {
	reconcileFn func(ctx context.Context) ([]store.BalanceDrift, error)
}

func (s stubReconcile) Reconcile(ctx context.Context) ([]store.BalanceDrift, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

type stubAuditList struct {
	listFn func(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditList) List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type testDeps struct {
	credits     stubCredits
	marketplace stubMarketplace
	intake      stubIntake
	reconcile   stubReconcile
	audit       stubAuditList
}

func newTestRouter(t *testing.T, deps testDeps) http.Handler {
	t.Helper()
	hash, err := auth.HashServiceKey(testServiceKey)
	if err != nil {
		t.Fatalf("hash service key: %v", err)
	}
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: []string{"*"},
		ServiceKeyHash: hash,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, deps.credits, deps.marketplace, deps.intake, deps.reconcile, deps.audit, websocket.NewHub(), logger).Routes()
}

func tokenFor(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, subject, role, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doServiceRequest(t *testing.T, router http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("X-Service-Key", key)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
