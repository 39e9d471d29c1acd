package store

import (
	"context"

	"leadmarket/internal/models"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type LedgerEntryInput struct {
	ID           string
	ContractorID string
	Amount       int64
	Kind         models.LedgerKind
	ReferenceID  string
	Description  string
}

func (s *LedgerStore) Insert(ctx context.Context, tx Execer, entry LedgerEntryInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, contractor_id, amount, kind, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.ContractorID, entry.Amount, string(entry.Kind), nullIfEmpty(entry.ReferenceID), entry.Description)
	return err
}

func (s *LedgerStore) FindByKindAndReference(ctx context.Context, tx Getter, kind models.LedgerKind, referenceID string) (models.LedgerEntry, error) {
	var row models.LedgerEntry
	err := tx.GetContext(ctx, &row, `
		SELECT id, contractor_id, amount, kind, reference_id, description, created_at
		FROM ledger_entries
		WHERE kind = $1 AND reference_id = $2
		ORDER BY created_at
		LIMIT 1
	`, string(kind), referenceID)
	return row, err
}

func (s *LedgerStore) ListByContractor(ctx context.Context, contractorID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows := []models.LedgerEntry{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, contractor_id, amount, kind, reference_id, description, created_at
		FROM ledger_entries
		WHERE contractor_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, contractorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) SumByContractor(ctx context.Context, contractorID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE contractor_id = $1
	`, contractorID)
	return sum, err
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
