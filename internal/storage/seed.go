package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// seedCustomer mirrors the intake JSON shape. Timestamps are RFC3339.
type seedCustomer struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	FirstName           string          `json:"first_name"`
	LastName            string          `json:"last_name"`
	Age                 int             `json:"age"`
	Location            string          `json:"location"`
	Language            string          `json:"language"`
	Gender              string          `json:"gender"`
	Industry            string          `json:"industry"`
	BusinessType        string          `json:"business_type"`
	TotalPurchases      int             `json:"total_purchases"`
	PurchaseFrequency   string          `json:"purchase_frequency"`
	LastPurchaseDate    string          `json:"last_purchase_date"`
	PurchaseHistory     json.RawMessage `json:"purchase_history"`
	CartAbandonments    int             `json:"cart_abandonments"`
	LastAbandonedItem   string          `json:"last_abandoned_item"`
	ComplaintDate       string          `json:"complaint_date"`
	ComplaintResolved   bool            `json:"complaint_resolved"`
	ComplaintFollowedUp bool            `json:"complaint_followed_up"`
	ServiceInteractions json.RawMessage `json:"service_interactions"`
	MarketingOptIn      bool            `json:"marketing_opt_in"`
	EmailOpens          int             `json:"email_opens"`
	MarketingEngagement json.RawMessage `json:"marketing_engagement"`
}

// ImportCustomers loads a JSON array of customer records from path and
// inserts them. Records without an id get a generated one. Returns the number
// of customers inserted.
func (s *Store) ImportCustomers(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	var seeds []seedCustomer
	if err := json.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	inserted := 0
	for i, sc := range seeds {
		if sc.Email == "" {
			return inserted, fmt.Errorf("seed record %d: email is required", i)
		}
		c := Customer{
			ID:                  sc.ID,
			Email:               sc.Email,
			FirstName:           sc.FirstName,
			LastName:            sc.LastName,
			Age:                 sc.Age,
			Location:            sc.Location,
			Language:            sc.Language,
			Gender:              sc.Gender,
			Industry:            sc.Industry,
			BusinessType:        sc.BusinessType,
			TotalPurchases:      sc.TotalPurchases,
			PurchaseFrequency:   sc.PurchaseFrequency,
			PurchaseHistory:     string(sc.PurchaseHistory),
			CartAbandonments:    sc.CartAbandonments,
			LastAbandonedItem:   sc.LastAbandonedItem,
			ComplaintResolved:   sc.ComplaintResolved,
			ComplaintFollowedUp: sc.ComplaintFollowedUp,
			ServiceInteractions: string(sc.ServiceInteractions),
			MarketingOptIn:      sc.MarketingOptIn,
			EmailOpens:          sc.EmailOpens,
			MarketingEngagement: string(sc.MarketingEngagement),
			CreatedAt:           time.Now(),
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if sc.LastPurchaseDate != "" {
			t, err := time.Parse(time.RFC3339, sc.LastPurchaseDate)
			if err != nil {
				return inserted, fmt.Errorf("seed record %d: parsing last_purchase_date: %w", i, err)
			}
			c.LastPurchaseDate = t
		}
		if sc.ComplaintDate != "" {
			t, err := time.Parse(time.RFC3339, sc.ComplaintDate)
			if err != nil {
				return inserted, fmt.Errorf("seed record %d: parsing complaint_date: %w", i, err)
			}
			c.ComplaintDate = t
		}
		if err := s.InsertCustomer(c); err != nil {
			return inserted, fmt.Errorf("inserting customer %s: %w", c.Email, err)
		}
		inserted++
	}
	return inserted, nil
}
