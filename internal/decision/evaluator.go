// Package decision classifies customers into survey eligibility buckets.
// The rules are a fixed precedence table evaluated deterministically; no
// external service is consulted.
package decision

import (
	"fmt"
	"time"

	"github.com/surveus/surveus/internal/storage"
)

// TriggerType is the categorical reason a customer became eligible.
type TriggerType string

const (
	TriggerComplaintFollowup TriggerType = "complaint_followup"
	TriggerFirstTime         TriggerType = "first_time"
	TriggerPurchaseDecrease  TriggerType = "purchase_decrease"
	TriggerInactivity        TriggerType = "inactivity"
)

const (
	complaintFollowupAge = 7 * 24 * time.Hour
	inactivityWindow     = 90 * 24 * time.Hour
)

// Decision is the outcome of evaluating one customer.
type Decision struct {
	Eligible  bool
	Reason    string
	Priority  int // 1 or 2 when eligible, 3 otherwise
	SendEmail bool
	Trigger   TriggerType
}

// Evaluator applies the eligibility rule table.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an Evaluator using wall-clock time.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// NewEvaluatorAt returns an Evaluator with an injected clock, for tests.
func NewEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Evaluate classifies a customer. Priority 1 rules are checked first and
// short-circuit; within a priority, complaint follow-up precedes first-time
// and purchase decrease precedes inactivity.
//
// SendEmail depends only on the consent flag and recorded email opens, never
// on purchase or eligibility data, and is computed even for ineligible
// customers.
func (e *Evaluator) Evaluate(c storage.Customer) (Decision, error) {
	d := Decision{
		SendEmail: c.MarketingOptIn && c.EmailOpens > 0,
		Priority:  3,
	}
	now := e.now()

	switch {
	case e.staleComplaint(c, now):
		d.Eligible = true
		d.Priority = 1
		d.Trigger = TriggerComplaintFollowup
		days := int(now.Sub(c.ComplaintDate).Hours() / 24)
		d.Reason = fmt.Sprintf("unresolved service complaint from %d days ago has not been followed up", days)

	case c.TotalPurchases == 1:
		d.Eligible = true
		d.Priority = 1
		d.Trigger = TriggerFirstTime
		d.Reason = "first-time customer with exactly one purchase"

	case c.PurchaseFrequency == "decreasing":
		d.Eligible = true
		d.Priority = 2
		d.Trigger = TriggerPurchaseDecrease
		d.Reason = "purchase frequency is decreasing"

	case e.inactive(c, now):
		d.Eligible = true
		d.Priority = 2
		d.Trigger = TriggerInactivity
		d.Reason = "no purchase recorded in the last 90 days"

	default:
		d.Reason = "no eligibility rule matched"
	}

	return d, nil
}

// staleComplaint reports whether the customer has an unresolved complaint
// older than seven days that nobody followed up on.
func (e *Evaluator) staleComplaint(c storage.Customer, now time.Time) bool {
	if c.ComplaintDate.IsZero() || c.ComplaintResolved || c.ComplaintFollowedUp {
		return false
	}
	return now.Sub(c.ComplaintDate) > complaintFollowupAge
}

// inactive reports whether no purchase falls inside the trailing 90 days.
// A customer with no recorded purchase date at all counts as inactive.
func (e *Evaluator) inactive(c storage.Customer, now time.Time) bool {
	if c.LastPurchaseDate.IsZero() {
		return true
	}
	return now.Sub(c.LastPurchaseDate) > inactivityWindow
}
