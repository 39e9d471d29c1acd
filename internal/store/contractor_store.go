package store

import (
	"context"

	"leadmarket/internal/models"
)

type ContractorStore struct {
	db DB
}

// BalanceDrift compares the cached balance with the ledger sum.
type BalanceDrift struct {
	ContractorID  string `db:"contractor_id"`
	StoredBalance int64  `db:"stored_balance"`
	LedgerSum     int64  `db:"ledger_sum"`
	Difference    int64  `db:"difference"`
}

func NewContractorStore(db DB) *ContractorStore {
	return &ContractorStore{db: db}
}

func (s *ContractorStore) Create(ctx context.Context, tx Execer, id, displayName string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO contractor_accounts (id, display_name, credit_balance)
		VALUES ($1, $2, 0)
	`, id, displayName)
	return err
}

func (s *ContractorStore) GetByID(ctx context.Context, contractorID string) (models.ContractorAccount, error) {
	var row models.ContractorAccount
	err := s.db.GetContext(ctx, &row, `
		SELECT id, display_name, credit_balance, created_at, updated_at
		FROM contractor_accounts
		WHERE id = $1
	`, contractorID)
	return row, err
}

func (s *ContractorStore) LockBalance(ctx context.Context, tx Getter, contractorID string) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		SELECT credit_balance
		FROM contractor_accounts
		WHERE id = $1
		FOR UPDATE
	`, contractorID)
	return balance, err
}

// Credit adds amount and returns the new balance. sql.ErrNoRows means the
// contractor does not exist.
func (s *ContractorStore) Credit(ctx context.Context, tx Getter, contractorID string, amount int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE contractor_accounts
		SET credit_balance = credit_balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, contractorID)
	return balance, err
}

// DebitWithFloor subtracts amount only if the balance covers it. sql.ErrNoRows
// means either the floor would be crossed or the contractor does not exist.
func (s *ContractorStore) DebitWithFloor(ctx context.Context, tx Getter, contractorID string, amount int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE contractor_accounts
		SET credit_balance = credit_balance - $1, updated_at = NOW()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, amount, contractorID)
	return balance, err
}

// Reconcile lists only the accounts whose stored balance differs from the sum
// of their ledger entries.
func (s *ContractorStore) Reconcile(ctx context.Context) ([]BalanceDrift, error) {
	var rows []BalanceDrift
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id AS contractor_id,
		       c.credit_balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS ledger_sum,
		       (c.credit_balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM contractor_accounts c
		LEFT JOIN ledger_entries l ON l.contractor_id = c.id
		GROUP BY c.id, c.credit_balance
		HAVING c.credit_balance <> COALESCE(SUM(l.amount), 0)
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
