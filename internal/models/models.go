package models

import "time"

type ContractorAccount struct {
	ID            string    `db:"id" json:"id"`
	DisplayName   string    `db:"display_name" json:"display_name"`
	CreditBalance int64     `db:"credit_balance" json:"credit_balance"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID           string     `db:"id" json:"id"`
	ContractorID string     `db:"contractor_id" json:"contractor_id"`
	Amount       int64      `db:"amount" json:"amount"`
	Kind         LedgerKind `db:"kind" json:"kind"`
	ReferenceID  *string    `db:"reference_id" json:"reference_id,omitempty"`
	Description  string     `db:"description" json:"description"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type Job struct {
	ID             string    `db:"id" json:"id"`
	Status         JobStatus `db:"status" json:"status"`
	Trade          string    `db:"trade" json:"trade"`
	Category       string    `db:"category" json:"category"`
	Priority       string    `db:"priority" json:"priority"`
	LeadPrice      int64     `db:"lead_price" json:"lead_price"`
	Latitude       *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64  `db:"longitude" json:"longitude,omitempty"`
	DistrictOrCity string    `db:"district_or_city" json:"district_or_city"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	CustomerID     string    `db:"customer_id" json:"-"`
	AddressID      string    `db:"address_id" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type LeadPurchase struct {
	ID           string     `db:"id" json:"id"`
	JobID        string     `db:"job_id" json:"job_id"`
	ContractorID string     `db:"contractor_id" json:"contractor_id"`
	PricePaid    int64      `db:"price_paid" json:"price_paid"`
	PurchasedAt  time.Time  `db:"purchased_at" json:"purchased_at"`
	RefundedAt   *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	RefundReason *string    `db:"refund_reason" json:"refund_reason,omitempty"`
}

// PublicJob is the pre-purchase view of an open job. It carries no customer
// identity and no street address.
type PublicJob struct {
	ID             string    `db:"id" json:"id"`
	Trade          string    `db:"trade" json:"trade"`
	Category       string    `db:"category" json:"category"`
	Priority       string    `db:"priority" json:"priority"`
	LeadPrice      int64     `db:"lead_price" json:"lead_price"`
	Latitude       *float64  `db:"latitude" json:"latitude"`
	Longitude      *float64  `db:"longitude" json:"longitude"`
	DistrictOrCity string    `db:"district_or_city" json:"district_or_city"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// JobContact is revealed only to the contractor holding the active purchase.
type JobContact struct {
	CustomerName  string `db:"full_name" json:"customer_name"`
	CustomerPhone string `db:"phone" json:"customer_phone"`
	CustomerEmail string `db:"email" json:"customer_email"`
	Street        string `db:"street" json:"street"`
	PostalCode    string `db:"postal_code" json:"postal_code"`
	City          string `db:"city" json:"city"`
}
