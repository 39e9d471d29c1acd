package store

import (
	"context"

	"leadmarket/internal/models"
)

type JobStore struct {
	db DB
}

func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

type CustomerInput struct {
	ID       string
	FullName string
	Phone    string
	Email    string
}

type AddressInput struct {
	ID         string
	Street     string
	PostalCode string
	City       string
}

type JobInput struct {
	ID             string
	Trade          string
	Category       string
	Priority       string
	LeadPrice      int64
	Latitude       *float64
	Longitude      *float64
	DistrictOrCity string
	Title          string
	Description    string
	CustomerID     string
	AddressID      string
}

type OpenJobsFilter struct {
	Trade  string
	Limit  int
	Offset int
}

const (
	DefaultOpenJobsLimit = 100
	MaxOpenJobsLimit     = 200
)

// Normalized clamps the page to DefaultOpenJobsLimit..MaxOpenJobsLimit rows
// and a non-negative offset.
func (f OpenJobsFilter) Normalized() OpenJobsFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultOpenJobsLimit
	}
	if f.Limit > MaxOpenJobsLimit {
		f.Limit = MaxOpenJobsLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

const jobColumns = `id, status, trade, category, priority, lead_price, latitude, longitude,
		       district_or_city, title, description, customer_id, address_id, created_at, updated_at`

func (s *JobStore) CreateCustomer(ctx context.Context, tx Execer, input CustomerInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
	`, input.ID, input.FullName, input.Phone, input.Email)
	return err
}

func (s *JobStore) CreateAddress(ctx context.Context, tx Execer, input AddressInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO addresses (id, street, postal_code, city)
		VALUES ($1, $2, $3, $4)
	`, input.ID, input.Street, input.PostalCode, input.City)
	return err
}

// Create inserts a job in the open state.
func (s *JobStore) Create(ctx context.Context, tx Execer, input JobInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, status, trade, category, priority, lead_price, latitude, longitude,
		                  district_or_city, title, description, customer_id, address_id)
		VALUES ($1, 'open', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, input.ID, input.Trade, input.Category, input.Priority, input.LeadPrice, input.Latitude, input.Longitude,
		input.DistrictOrCity, input.Title, input.Description, input.CustomerID, input.AddressID)
	return err
}

func (s *JobStore) GetByID(ctx context.Context, jobID string) (models.Job, error) {
	var row models.Job
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return row, err
}

func (s *JobStore) GetForUpdate(ctx context.Context, tx Getter, jobID string) (models.Job, error) {
	var row models.Job
	err := tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	return row, err
}

// Transition moves a job from one status to another and reports the number of
// rows changed. Zero means the job was not in the expected status.
func (s *JobStore) Transition(ctx context.Context, tx Execer, jobID string, from, to models.JobStatus) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), jobID, string(from))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *JobStore) SetLocation(ctx context.Context, tx Execer, jobID string, lat, lng float64) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET latitude = $1, longitude = $2, updated_at = NOW()
		WHERE id = $3
	`, lat, lng, jobID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *JobStore) GetContact(ctx context.Context, tx Getter, jobID string) (models.JobContact, error) {
	var row models.JobContact
	err := tx.GetContext(ctx, &row, `
		SELECT c.full_name, c.phone, c.email, a.street, a.postal_code, a.city
		FROM jobs j
		JOIN customers c ON c.id = j.customer_id
		JOIN addresses a ON a.id = j.address_id
		WHERE j.id = $1
	`, jobID)
	return row, err
}

// ListOpen reads one page of open jobs, newest first. Customer and address
// data never enter this query.
func (s *JobStore) ListOpen(ctx context.Context, filter OpenJobsFilter) ([]models.PublicJob, error) {
	filter = filter.Normalized()
	rows := []models.PublicJob{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, trade, category, priority, lead_price, latitude, longitude, district_or_city, created_at
		FROM jobs
		WHERE status = 'open' AND ($1 = '' OR trade = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, filter.Trade, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
