package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"leadmarket/internal/db"
	"leadmarket/internal/geo"
	"leadmarket/internal/models"
	"leadmarket/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// IntakeService is where jobs enter the market: the intake collaborator
// submits them and the geocoder fills in coordinates later.
type IntakeService struct {
	txRunner db.TxRunner
	jobs     JobStore
	audit    AuditStore
	cache    OpenJobsCache
	logger   *slog.Logger
}

func NewIntakeService(txRunner db.TxRunner, jobs JobStore, audit AuditStore, cache OpenJobsCache, logger *slog.Logger) *IntakeService {
	if cache == nil {
		cache = passthroughCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeService{txRunner: txRunner, jobs: jobs, audit: audit, cache: cache, logger: logger}
}

type JobSubmission struct {
	CustomerName  string   `json:"customer_name"`
	CustomerPhone string   `json:"customer_phone"`
	CustomerEmail string   `json:"customer_email"`
	Street        string   `json:"street"`
	PostalCode    string   `json:"postal_code"`
	City          string   `json:"city"`
	District      string   `json:"district"`
	Trade         string   `json:"trade"`
	Category      string   `json:"category"`
	Priority      string   `json:"priority"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	LeadPrice     int64    `json:"lead_price"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

func (s *IntakeService) SubmitJob(ctx context.Context, actor models.Actor, sub JobSubmission) (string, error) {
	if err := requirePrivileged(actor); err != nil {
		return "", err
	}
	if sub.LeadPrice <= 0 {
		return "", ErrInvalidAmount
	}
	if strings.TrimSpace(sub.Trade) == "" || strings.TrimSpace(sub.City) == "" {
		return "", ErrInvalidJob
	}
	if (sub.Latitude == nil) != (sub.Longitude == nil) {
		return "", ErrInvalidLocation
	}
	if sub.Latitude != nil {
		if err := geo.Validate(*sub.Latitude, *sub.Longitude); err != nil {
			return "", ErrInvalidLocation
		}
	}
	priority := sub.Priority
	if priority == "" {
		priority = "normal"
	}
	districtOrCity := strings.TrimSpace(sub.District)
	if districtOrCity == "" {
		districtOrCity = strings.TrimSpace(sub.City)
	}

	jobID := uuid.NewString()
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		customerID := uuid.NewString()
		addressID := uuid.NewString()
		if err := s.jobs.CreateCustomer(ctx, tx, store.CustomerInput{
			ID:       customerID,
			FullName: sub.CustomerName,
			Phone:    sub.CustomerPhone,
			Email:    sub.CustomerEmail,
		}); err != nil {
			return err
		}
		if err := s.jobs.CreateAddress(ctx, tx, store.AddressInput{
			ID:         addressID,
			Street:     sub.Street,
			PostalCode: sub.PostalCode,
			City:       sub.City,
		}); err != nil {
			return err
		}
		if err := s.jobs.Create(ctx, tx, store.JobInput{
			ID:             jobID,
			Trade:          sub.Trade,
			Category:       sub.Category,
			Priority:       priority,
			LeadPrice:      sub.LeadPrice,
			Latitude:       sub.Latitude,
			Longitude:      sub.Longitude,
			DistrictOrCity: districtOrCity,
			Title:          sub.Title,
			Description:    sub.Description,
			CustomerID:     customerID,
			AddressID:      addressID,
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actor.AuditName(), "job_submit", "job", jobID, map[string]any{
			"trade":      sub.Trade,
			"lead_price": sub.LeadPrice,
		})
	})
	if err != nil {
		return "", classify("submit job", err)
	}
	s.invalidate(ctx)
	return jobID, nil
}

// SetJobLocation records geocoder output for a job.
func (s *IntakeService) SetJobLocation(ctx context.Context, actor models.Actor, jobID string, lat, lng float64) error {
	if err := requirePrivileged(actor); err != nil {
		return err
	}
	if err := geo.Validate(lat, lng); err != nil {
		return ErrInvalidLocation
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.jobs.SetLocation(ctx, tx, jobID, lat, lng)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrJobNotFound
		}
		return s.audit.Log(ctx, tx, actor.AuditName(), "job_locate", "job", jobID, map[string]any{
			"latitude":  lat,
			"longitude": lng,
		})
	})
	if err != nil {
		return classify("set job location", err)
	}
	s.invalidate(ctx)
	return nil
}

// GetJob lets the intake side poll where a job it submitted has got to.
func (s *IntakeService) GetJob(ctx context.Context, actor models.Actor, jobID string) (models.Job, error) {
	if err := requirePrivileged(actor); err != nil {
		return models.Job{}, err
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, ErrJobNotFound
	}
	if err != nil {
		return models.Job{}, classify("get job", err)
	}
	return job, nil
}

func (s *IntakeService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("open jobs cache invalidation failed", "error", err)
	}
}
