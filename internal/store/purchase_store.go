package store

import (
	"context"

	"leadmarket/internal/models"
)

type PurchaseStore struct {
	db DB
}

func NewPurchaseStore(db DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

type PurchaseInput struct {
	ID           string
	JobID        string
	ContractorID string
	PricePaid    int64
}

const purchaseColumns = `id, job_id, contractor_id, price_paid, purchased_at, refunded_at, refund_reason`

// Create fails with a unique violation on lead_purchases_active_job_key when
// the job already has an active purchase.
func (s *PurchaseStore) Create(ctx context.Context, tx Execer, input PurchaseInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lead_purchases (id, job_id, contractor_id, price_paid)
		VALUES ($1, $2, $3, $4)
	`, input.ID, input.JobID, input.ContractorID, input.PricePaid)
	return err
}

func (s *PurchaseStore) GetForUpdate(ctx context.Context, tx Getter, purchaseID string) (models.LeadPurchase, error) {
	var row models.LeadPurchase
	err := tx.GetContext(ctx, &row, `SELECT `+purchaseColumns+` FROM lead_purchases WHERE id = $1 FOR UPDATE`, purchaseID)
	return row, err
}

func (s *PurchaseStore) ActiveByJob(ctx context.Context, tx Getter, jobID string) (models.LeadPurchase, error) {
	var row models.LeadPurchase
	err := tx.GetContext(ctx, &row, `
		SELECT `+purchaseColumns+`
		FROM lead_purchases
		WHERE job_id = $1 AND refunded_at IS NULL
	`, jobID)
	return row, err
}

func (s *PurchaseStore) MarkRefunded(ctx context.Context, tx Execer, purchaseID, reason string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE lead_purchases
		SET refunded_at = NOW(), refund_reason = $1
		WHERE id = $2 AND refunded_at IS NULL
	`, reason, purchaseID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PurchaseStore) ListByContractor(ctx context.Context, contractorID string, limit, offset int) ([]models.LeadPurchase, error) {
	rows := []models.LeadPurchase{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+purchaseColumns+`
		FROM lead_purchases
		WHERE contractor_id = $1
		ORDER BY purchased_at DESC, id
		LIMIT $2 OFFSET $3
	`, contractorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
