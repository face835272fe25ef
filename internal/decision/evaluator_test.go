package decision

import (
	"testing"
	"time"

	"github.com/surveus/surveus/internal/storage"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestEvaluator() *Evaluator {
	return NewEvaluatorAt(func() time.Time { return testNow })
}

// activeCustomer returns a customer that matches no eligibility rule.
func activeCustomer() storage.Customer {
	return storage.Customer{
		ID:                "c1",
		Email:             "c1@example.com",
		TotalPurchases:    12,
		PurchaseFrequency: "stable",
		LastPurchaseDate:  testNow.Add(-10 * 24 * time.Hour),
	}
}

func TestEvaluate_FirstTimeCustomer(t *testing.T) {
	c := activeCustomer()
	c.TotalPurchases = 1

	d, err := newTestEvaluator().Evaluate(c)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !d.Eligible {
		t.Error("Eligible = false, want true")
	}
	if d.Trigger != TriggerFirstTime {
		t.Errorf("Trigger = %q, want first_time", d.Trigger)
	}
	if d.Priority != 1 {
		t.Errorf("Priority = %d, want 1", d.Priority)
	}
}

func TestEvaluate_ComplaintTakesPrecedenceOverFirstTime(t *testing.T) {
	c := activeCustomer()
	c.TotalPurchases = 1
	c.ComplaintDate = testNow.Add(-10 * 24 * time.Hour)

	d, _ := newTestEvaluator().Evaluate(c)
	if d.Trigger != TriggerComplaintFollowup {
		t.Errorf("Trigger = %q, want complaint_followup to win within priority 1", d.Trigger)
	}
	if d.Priority != 1 {
		t.Errorf("Priority = %d, want 1", d.Priority)
	}
}

func TestEvaluate_ComplaintRules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*storage.Customer)
		eligible bool
	}{
		{"older than 7 days, unresolved", func(c *storage.Customer) {
			c.ComplaintDate = testNow.Add(-8 * 24 * time.Hour)
		}, true},
		{"exactly at 7 days is not yet stale", func(c *storage.Customer) {
			c.ComplaintDate = testNow.Add(-7 * 24 * time.Hour)
		}, false},
		{"resolved complaint does not trigger", func(c *storage.Customer) {
			c.ComplaintDate = testNow.Add(-30 * 24 * time.Hour)
			c.ComplaintResolved = true
		}, false},
		{"already followed up does not trigger", func(c *storage.Customer) {
			c.ComplaintDate = testNow.Add(-30 * 24 * time.Hour)
			c.ComplaintFollowedUp = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCustomer()
			tt.mutate(&c)
			d, _ := newTestEvaluator().Evaluate(c)
			gotComplaint := d.Eligible && d.Trigger == TriggerComplaintFollowup
			if gotComplaint != tt.eligible {
				t.Errorf("complaint trigger = %v (decision %+v), want %v", gotComplaint, d, tt.eligible)
			}
		})
	}
}

func TestEvaluate_PurchaseDecrease(t *testing.T) {
	c := activeCustomer()
	c.PurchaseFrequency = "decreasing"

	d, _ := newTestEvaluator().Evaluate(c)
	if !d.Eligible || d.Trigger != TriggerPurchaseDecrease {
		t.Errorf("decision = %+v, want eligible purchase_decrease", d)
	}
	if d.Priority != 2 {
		t.Errorf("Priority = %d, want 2", d.Priority)
	}
}

func TestEvaluate_Inactivity(t *testing.T) {
	c := activeCustomer()
	c.LastPurchaseDate = testNow.Add(-120 * 24 * time.Hour)

	d, _ := newTestEvaluator().Evaluate(c)
	if !d.Eligible || d.Trigger != TriggerInactivity {
		t.Errorf("decision = %+v, want eligible inactivity", d)
	}
}

func TestEvaluate_NoPurchaseDateCountsAsInactive(t *testing.T) {
	c := activeCustomer()
	c.LastPurchaseDate = time.Time{}
	c.TotalPurchases = 0

	d, _ := newTestEvaluator().Evaluate(c)
	if !d.Eligible || d.Trigger != TriggerInactivity {
		t.Errorf("decision = %+v, want eligible inactivity", d)
	}
}

func TestEvaluate_Priority1BeatsPriority2(t *testing.T) {
	c := activeCustomer()
	c.TotalPurchases = 1
	c.PurchaseFrequency = "decreasing"

	d, _ := newTestEvaluator().Evaluate(c)
	if d.Trigger != TriggerFirstTime {
		t.Errorf("Trigger = %q, want first_time over purchase_decrease", d.Trigger)
	}
}

func TestEvaluate_Ineligible(t *testing.T) {
	d, _ := newTestEvaluator().Evaluate(activeCustomer())
	if d.Eligible {
		t.Errorf("Eligible = true for healthy customer, decision %+v", d)
	}
	if d.Priority != 3 {
		t.Errorf("Priority = %d, want 3", d.Priority)
	}
	if d.Reason == "" {
		t.Error("Reason is empty")
	}
}

func TestEvaluate_SendEmailIndependentOfEligibility(t *testing.T) {
	tests := []struct {
		name      string
		optIn     bool
		opens     int
		purchases int
		want      bool
	}{
		{"opted in with opens, eligible", true, 2, 1, true},
		{"opted in with opens, ineligible", true, 5, 12, true},
		{"opted in without opens", true, 0, 1, false},
		{"opted out with opens", false, 9, 1, false},
		{"opted out without opens", false, 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCustomer()
			c.MarketingOptIn = tt.optIn
			c.EmailOpens = tt.opens
			c.TotalPurchases = tt.purchases

			d, _ := newTestEvaluator().Evaluate(c)
			if d.SendEmail != tt.want {
				t.Errorf("SendEmail = %v, want %v", d.SendEmail, tt.want)
			}
		})
	}
}

func TestEvaluate_OptedOutCustomerStillEligible(t *testing.T) {
	c := activeCustomer()
	c.PurchaseFrequency = "decreasing"
	c.MarketingOptIn = false

	d, _ := newTestEvaluator().Evaluate(c)
	if !d.Eligible {
		t.Error("Eligible = false; consent must not gate survey generation")
	}
	if d.SendEmail {
		t.Error("SendEmail = true for opted-out customer")
	}
}
