package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Customer is one row of the customer population. The pipeline only reads
// customers; they are created by the intake surface (or the seed command).
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Age       int
	Location  string
	Language  string
	Gender    string // best-effort, non-authoritative

	Industry     string
	BusinessType string

	TotalPurchases    int
	PurchaseFrequency string // "increasing", "stable", "decreasing"
	LastPurchaseDate  time.Time
	PurchaseHistory   string // JSON blob, may be empty

	CartAbandonments  int
	LastAbandonedItem string

	ComplaintDate       time.Time
	ComplaintResolved   bool
	ComplaintFollowedUp bool
	ServiceInteractions string // JSON blob, may be empty

	MarketingOptIn      bool
	EmailOpens          int
	MarketingEngagement string // JSON blob, may be empty

	CreatedAt time.Time
}

// Survey is one provisioned questionnaire. FormID references the external
// Google Form; QuestionsJSON holds the full question set as generated.
type Survey struct {
	ID            string
	CustomerID    string
	FormID        string
	Title         string
	Status        string // "active", "closed"
	QuestionsJSON string
	MetadataJSON  string
	CreatedAt     time.Time
}

// LedgerEntry tracks how many surveys a customer has been sent and when the
// most recent one went out. One row per customer.
type LedgerEntry struct {
	UserID         string
	LastSurveyDate time.Time
	SurveysSent    int
}

// Response is one normalized submitted answer set. ResponseJSON maps question
// identifiers to scalar answers; RawJSON retains the original payload.
type Response struct {
	ID           string
	SurveyID     string
	ResponseJSON string
	RawJSON      string
	CreatedAt    time.Time // the submission's own timestamp
}
