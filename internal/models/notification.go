package models

import "time"

const (
	NotificationTopUp      = "credits.topped_up"
	NotificationAdjustment = "credits.adjusted"
	NotificationUnlocked   = "lead.unlocked"
	NotificationRefunded   = "lead.refunded"
)

type Notification struct {
	Type         string    `json:"type"`
	ContractorID string    `json:"contractor_id"`
	JobID        string    `json:"job_id,omitempty"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
	Summary      string    `json:"summary,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
