package question

import "encoding/json"

// Type enumerates the supported question kinds.
type Type string

const (
	MultipleChoice Type = "multiple_choice"
	Rating         Type = "rating"
	OpenEnded      Type = "open_ended"
)

// Scale bounds a rating question.
type Scale struct {
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	LowLabel  string `json:"lowLabel"`
	HighLabel string `json:"highLabel"`
}

// Question is a single typed survey question. Options is required for
// multiple_choice; Scale is required for rating.
type Question struct {
	Type    Type     `json:"type"`
	Text    string   `json:"question"`
	Options []string `json:"options,omitempty"`
	Scale   *Scale   `json:"scale,omitempty"`
}

// Metadata describes how a question set was personalized.
type Metadata struct {
	PersonalizationFactors []string `json:"personalization_factors"`
	Language               string   `json:"language"`
}

// Set is an ordered question set with its metadata.
type Set struct {
	Questions []Question `json:"questions"`
	Metadata  Metadata   `json:"metadata"`
}

// PersonalInfo carries the name parts available for personalization.
type PersonalInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Context is the customer projection handed to the generator. Absent data
// categories (nil raw fields) steer the generator toward gap-filling
// questions; present ones toward satisfaction questions.
type Context struct {
	Industry            string          `json:"industry,omitempty"`
	BusinessType        string          `json:"business_type,omitempty"`
	Language            string          `json:"language,omitempty"`
	Gender              string          `json:"gender,omitempty"`
	TotalPurchases      int             `json:"total_purchases"`
	PurchaseHistory     json.RawMessage `json:"purchase_history,omitempty"`
	ServiceInteractions json.RawMessage `json:"service_interactions,omitempty"`
	MarketingEngagement json.RawMessage `json:"marketing_engagement,omitempty"`
	PersonalInfo        *PersonalInfo   `json:"personal_info,omitempty"`
}

// FirstName returns the customer's first name, or "" when unknown.
func (c Context) FirstName() string {
	if c.PersonalInfo == nil {
		return ""
	}
	return c.PersonalInfo.FirstName
}
