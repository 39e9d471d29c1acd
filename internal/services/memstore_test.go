package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"leadmarket/internal/models"
	"leadmarket/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// memMarket is an in-memory stand-in for the database. Transactions are
// serialized and rolled back by restoring a snapshot, which gives the same
// all-or-nothing behaviour the services rely on from PostgreSQL.
type memMarket struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts  map[string]models.ContractorAccount
	ledger    []models.LedgerEntry
	jobs      map[string]models.Job
	customers map[string]store.CustomerInput
	addresses map[string]store.AddressInput
	purchases map[string]models.LeadPurchase
	audits    []string
}

type memSnapshot struct {
	accounts  map[string]models.ContractorAccount
	ledger    []models.LedgerEntry
	jobs      map[string]models.Job
	customers map[string]store.CustomerInput
	addresses map[string]store.AddressInput
	purchases map[string]models.LeadPurchase
	audits    []string
}

func newMemMarket() *memMarket {
	return &memMarket{
		accounts:  map[string]models.ContractorAccount{},
		jobs:      map[string]models.Job{},
		customers: map[string]store.CustomerInput{},
		addresses: map[string]store.AddressInput{},
		purchases: map[string]models.LeadPurchase{},
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memMarket) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		accounts:  copyMap(m.accounts),
		ledger:    append([]models.LedgerEntry(nil), m.ledger...),
		jobs:      copyMap(m.jobs),
		customers: copyMap(m.customers),
		addresses: copyMap(m.addresses),
		purchases: copyMap(m.purchases),
		audits:    append([]string(nil), m.audits...),
	}
}

func (m *memMarket) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = s.accounts
	m.ledger = s.ledger
	m.jobs = s.jobs
	m.customers = s.customers
	m.addresses = s.addresses
	m.purchases = s.purchases
	m.audits = s.audits
}

type memTxRunner struct {
	m *memMarket
}

func (r memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.m.txMu.Lock()
	defer r.m.txMu.Unlock()
	snap := r.m.snapshot()
	if err := fn(nil); err != nil {
		r.m.restore(snap)
		return err
	}
	return nil
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

type memContractors struct{ m *memMarket }

func (s memContractors) Create(ctx context.Context, tx store.Execer, id, displayName string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.accounts[id]; ok {
		return uniqueViolation("contractor_accounts_pkey")
	}
	now := time.Now()
	s.m.accounts[id] = models.ContractorAccount{ID: id, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s memContractors) GetByID(ctx context.Context, id string) (models.ContractorAccount, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	account, ok := s.m.accounts[id]
	if !ok {
		return models.ContractorAccount{}, sql.ErrNoRows
	}
	return account, nil
}

func (s memContractors) LockBalance(ctx context.Context, tx store.Getter, id string) (int64, error) {
	account, err := s.GetByID(ctx, id)
	return account.CreditBalance, err
}

func (s memContractors) Credit(ctx context.Context, tx store.Getter, id string, amount int64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	account, ok := s.m.accounts[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	account.CreditBalance += amount
	s.m.accounts[id] = account
	return account.CreditBalance, nil
}

func (s memContractors) DebitWithFloor(ctx context.Context, tx store.Getter, id string, amount int64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	account, ok := s.m.accounts[id]
	if !ok || account.CreditBalance < amount {
		return 0, sql.ErrNoRows
	}
	account.CreditBalance -= amount
	s.m.accounts[id] = account
	return account.CreditBalance, nil
}

type memLedger struct{ m *memMarket }

func (s memLedger) Insert(ctx context.Context, tx store.Execer, entry store.LedgerEntryInput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var ref *string
	if entry.ReferenceID != "" {
		value := entry.ReferenceID
		ref = &value
		if entry.Kind == models.LedgerTopUp {
			for _, existing := range s.m.ledger {
				if existing.Kind == models.LedgerTopUp && existing.ReferenceID != nil && *existing.ReferenceID == value {
					return uniqueViolation("ledger_entries_top_up_reference_key")
				}
			}
		}
	}
	s.m.ledger = append(s.m.ledger, models.LedgerEntry{
		ID:           entry.ID,
		ContractorID: entry.ContractorID,
		Amount:       entry.Amount,
		Kind:         entry.Kind,
		ReferenceID:  ref,
		Description:  entry.Description,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (s memLedger) FindByKindAndReference(ctx context.Context, tx store.Getter, kind models.LedgerKind, ref string) (models.LedgerEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, entry := range s.m.ledger {
		if entry.Kind == kind && entry.ReferenceID != nil && *entry.ReferenceID == ref {
			return entry, nil
		}
	}
	return models.LedgerEntry{}, sql.ErrNoRows
}

func (s memLedger) ListByContractor(ctx context.Context, id string, limit, offset int) ([]models.LedgerEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.LedgerEntry{}
	for _, entry := range s.m.ledger {
		if entry.ContractorID == id {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s memLedger) SumByContractor(ctx context.Context, id string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var sum int64
	for _, entry := range s.m.ledger {
		if entry.ContractorID == id {
			sum += entry.Amount
		}
	}
	return sum, nil
}

type memAudit struct{ m *memMarket }

func (s memAudit) Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID string, data map[string]any) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.audits = append(s.m.audits, actor+" "+action+" "+entityType+"/"+entityID)
	return nil
}

type memJobs struct{ m *memMarket }

func (s memJobs) CreateCustomer(ctx context.Context, tx store.Execer, input store.CustomerInput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.customers[input.ID] = input
	return nil
}

func (s memJobs) CreateAddress(ctx context.Context, tx store.Execer, input store.AddressInput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.addresses[input.ID] = input
	return nil
}

func (s memJobs) Create(ctx context.Context, tx store.Execer, input store.JobInput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now()
	s.m.jobs[input.ID] = models.Job{
		ID:             input.ID,
		Status:         models.JobOpen,
		Trade:          input.Trade,
		Category:       input.Category,
		Priority:       input.Priority,
		LeadPrice:      input.LeadPrice,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		DistrictOrCity: input.DistrictOrCity,
		Title:          input.Title,
		Description:    input.Description,
		CustomerID:     input.CustomerID,
		AddressID:      input.AddressID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (s memJobs) GetByID(ctx context.Context, id string) (models.Job, error) {
	return s.GetForUpdate(ctx, nil, id)
}

func (s memJobs) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Job, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	job, ok := s.m.jobs[id]
	if !ok {
		return models.Job{}, sql.ErrNoRows
	}
	return job, nil
}

func (s memJobs) Transition(ctx context.Context, tx store.Execer, id string, from, to models.JobStatus) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	job, ok := s.m.jobs[id]
	if !ok || job.Status != from {
		return 0, nil
	}
	job.Status = to
	s.m.jobs[id] = job
	return 1, nil
}

func (s memJobs) SetLocation(ctx context.Context, tx store.Execer, id string, lat, lng float64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	job, ok := s.m.jobs[id]
	if !ok {
		return 0, nil
	}
	job.Latitude, job.Longitude = &lat, &lng
	s.m.jobs[id] = job
	return 1, nil
}

func (s memJobs) GetContact(ctx context.Context, tx store.Getter, id string) (models.JobContact, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	job, ok := s.m.jobs[id]
	if !ok {
		return models.JobContact{}, sql.ErrNoRows
	}
	customer := s.m.customers[job.CustomerID]
	address := s.m.addresses[job.AddressID]
	return models.JobContact{
		CustomerName:  customer.FullName,
		CustomerPhone: customer.Phone,
		CustomerEmail: customer.Email,
		Street:        address.Street,
		PostalCode:    address.PostalCode,
		City:          address.City,
	}, nil
}

func (s memJobs) ListOpen(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.PublicJob{}
	for _, job := range s.m.jobs {
		if job.Status != models.JobOpen || (filter.Trade != "" && job.Trade != filter.Trade) {
			continue
		}
		out = append(out, models.PublicJob{
			ID:             job.ID,
			Trade:          job.Trade,
			Category:       job.Category,
			Priority:       job.Priority,
			LeadPrice:      job.LeadPrice,
			Latitude:       job.Latitude,
			Longitude:      job.Longitude,
			DistrictOrCity: job.DistrictOrCity,
			CreatedAt:      job.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	filter = filter.Normalized()
	if filter.Offset >= len(out) {
		return []models.PublicJob{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memPurchases struct{ m *memMarket }

func (s memPurchases) Create(ctx context.Context, tx store.Execer, input store.PurchaseInput) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.purchases {
		if existing.JobID == input.JobID && existing.RefundedAt == nil {
			return uniqueViolation("lead_purchases_active_job_key")
		}
	}
	s.m.purchases[input.ID] = models.LeadPurchase{
		ID:           input.ID,
		JobID:        input.JobID,
		ContractorID: input.ContractorID,
		PricePaid:    input.PricePaid,
		PurchasedAt:  time.Now(),
	}
	return nil
}

func (s memPurchases) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.LeadPurchase, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	purchase, ok := s.m.purchases[id]
	if !ok {
		return models.LeadPurchase{}, sql.ErrNoRows
	}
	return purchase, nil
}

func (s memPurchases) ActiveByJob(ctx context.Context, tx store.Getter, jobID string) (models.LeadPurchase, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, purchase := range s.m.purchases {
		if purchase.JobID == jobID && purchase.RefundedAt == nil {
			return purchase, nil
		}
	}
	return models.LeadPurchase{}, sql.ErrNoRows
}

func (s memPurchases) MarkRefunded(ctx context.Context, tx store.Execer, id, reason string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	purchase, ok := s.m.purchases[id]
	if !ok || purchase.RefundedAt != nil {
		return 0, nil
	}
	now := time.Now()
	purchase.RefundedAt = &now
	purchase.RefundReason = &reason
	s.m.purchases[id] = purchase
	return 1, nil
}

func (s memPurchases) ListByContractor(ctx context.Context, id string, limit, offset int) ([]models.LeadPurchase, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.LeadPurchase{}
	for _, purchase := range s.m.purchases {
		if purchase.ContractorID == id {
			out = append(out, purchase)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type countingCache struct {
	mu            sync.Mutex
	invalidations int
	keys          []string
}

func (c *countingCache) Fetch(ctx context.Context, key string, load func(context.Context) ([]models.PublicJob, error)) ([]models.PublicJob, error) {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
	return load(ctx)
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	return nil
}

type memHarness struct {
	m           *memMarket
	credits     *CreditService
	marketplace *MarketplaceService
	intake      *IntakeService
	notifier    *recordingNotifier
	cache       *countingCache
}

func newMemHarness() *memHarness {
	m := newMemMarket()
	runner := memTxRunner{m: m}
	notifier := &recordingNotifier{}
	cache := &countingCache{}
	credits := NewCreditService(runner, memContractors{m}, memLedger{m}, memAudit{m}, notifier, nil)
	return &memHarness{
		m:           m,
		credits:     credits,
		marketplace: NewMarketplaceService(runner, memJobs{m}, memPurchases{m}, credits, memAudit{m}, cache, notifier, nil),
		intake:      NewIntakeService(runner, memJobs{m}, memAudit{m}, cache, nil),
		notifier:    notifier,
		cache:       cache,
	}
}

var adminActor = models.Admin("ops")

// seedContractor opens an account and funds it through a real top-up so the
// ledger and the balance agree from the start.
func (h *memHarness) seedContractor(t *testing.T, id string, balance int64) {
	t.Helper()
	if err := h.credits.OpenAccount(context.Background(), adminActor, id, "Contractor "+id); err != nil {
		t.Fatalf("open account: %v", err)
	}
	if balance == 0 {
		return
	}
	if _, err := h.credits.TopUp(context.Background(), adminActor, CreditRequest{
		ContractorID: id,
		Amount:       balance,
		ReferenceID:  "seed-" + id,
	}); err != nil {
		t.Fatalf("seed top up: %v", err)
	}
}

func (h *memHarness) seedJob(t *testing.T, trade string, price int64) string {
	t.Helper()
	lat, lng := 52.520008, 13.404954
	id, err := h.intake.SubmitJob(context.Background(), models.System("intake"), JobSubmission{
		CustomerName:  "Erika Mustermann",
		CustomerPhone: "+49 30 1234567",
		CustomerEmail: "erika@example.com",
		Street:        "Unter den Linden 1",
		PostalCode:    "10117",
		City:          "Berlin",
		District:      "Mitte",
		Trade:         trade,
		Category:      "repair",
		Title:         "Leaking pipe",
		LeadPrice:     price,
		Latitude:      &lat,
		Longitude:     &lng,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return id
}

func (h *memHarness) balance(id string) int64 {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.m.accounts[id].CreditBalance
}

func (h *memHarness) ledgerSum(id string) int64 {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	var sum int64
	for _, entry := range h.m.ledger {
		if entry.ContractorID == id {
			sum += entry.Amount
		}
	}
	return sum
}

func (h *memHarness) jobStatus(id string) models.JobStatus {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.m.jobs[id].Status
}

func (h *memHarness) activePurchases(jobID string) int {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	count := 0
	for _, purchase := range h.m.purchases {
		if purchase.JobID == jobID && purchase.RefundedAt == nil {
			count++
		}
	}
	return count
}

func (h *memHarness) assertConserved(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if got, want := h.balance(id), h.ledgerSum(id); got != want {
			t.Fatalf("contractor %s: balance %d does not match ledger sum %d", id, got, want)
		}
		if h.balance(id) < 0 {
			t.Fatalf("contractor %s: negative balance %d", id, h.balance(id))
		}
	}
}
