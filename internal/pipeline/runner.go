// Package pipeline orchestrates the survey lifecycle: decide who gets a
// survey, generate its questions, provision the form, record it in the
// ledger, notify the customer, and later collect submitted responses.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/surveus/surveus/internal/decision"
	"github.com/surveus/surveus/internal/forms"
	"github.com/surveus/surveus/internal/provision"
	"github.com/surveus/surveus/internal/question"
	"github.com/surveus/surveus/internal/storage"
)

// Mode selects which half of the lifecycle a run executes.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeFetch  Mode = "fetch"
)

// Stage tags where in the lifecycle an item failed.
type Stage string

const (
	StageDecision     Stage = "decision"
	StageGeneration   Stage = "generation"
	StageProvisioning Stage = "provisioning"
	StageLedger       Stage = "ledger"
	StageNotification Stage = "notification"
	StageCollection   Stage = "collection"
)

// CustomerStore lists the customer population.
type CustomerStore interface {
	ListCustomers() ([]storage.Customer, error)
}

// SurveyLister enumerates provisioned surveys, newest first.
type SurveyLister interface {
	ListSurveys() ([]storage.Survey, error)
}

// Evaluator classifies a customer for eligibility.
type Evaluator interface {
	Evaluate(storage.Customer) (decision.Decision, error)
}

// Generator produces a question set for a customer context.
type Generator interface {
	Generate(ctx context.Context, cc question.Context) (question.Set, error)
}

// Provisioner creates the external form and survey record.
type Provisioner interface {
	Provision(ctx context.Context, customerID string, set question.Set) (provision.Result, error)
}

// Ledger records that a survey went out to a customer.
type Ledger interface {
	UpsertLedger(userID string, ts time.Time) (int, error)
}

// Notifier delivers the survey invitation.
type Notifier interface {
	Invite(ctx context.Context, to, firstName, title, url string) (string, error)
}

// Collector fetches and stores responses for one survey.
type Collector interface {
	CollectSurvey(ctx context.Context, survey storage.Survey) (int, error)
}

// ItemResult is the outcome for one customer (create) or one survey (fetch).
type ItemResult struct {
	CustomerID string
	SurveyID   string
	Eligible   bool
	Reason     string
	Notified   bool
	Responses  int
	Stage      Stage // set when Err is set
	Err        error
	Warnings   []error
}

// Report aggregates one run.
type Report struct {
	Mode      Mode
	Items     []ItemResult
	Created   int
	Collected int
	Skipped   int
	Failed    int
}

// Runner drives the lifecycle over the whole population. Each item is
// processed independently; one customer's failure never aborts the run.
type Runner struct {
	customers CustomerStore
	surveys   SurveyLister
	evaluator Evaluator
	generator Generator
	prov      Provisioner
	ledger    Ledger
	notifier  Notifier
	collector Collector
	logger    *slog.Logger
}

// NewRunner wires a Runner. notifier may be nil to disable invitations
// entirely (e.g. when no mail credentials are configured).
func NewRunner(
	customers CustomerStore,
	surveys SurveyLister,
	evaluator Evaluator,
	generator Generator,
	prov Provisioner,
	ledger Ledger,
	notifier Notifier,
	collector Collector,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		customers: customers,
		surveys:   surveys,
		evaluator: evaluator,
		generator: generator,
		prov:      prov,
		ledger:    ledger,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
	}
}

// Run executes one batch in the given mode.
func (r *Runner) Run(ctx context.Context, mode Mode) (Report, error) {
	switch mode {
	case ModeCreate:
		return r.RunCreate(ctx)
	case ModeFetch:
		return r.RunFetch(ctx)
	default:
		return Report{}, fmt.Errorf("unknown run mode %q", mode)
	}
}

// RunCreate evaluates every customer and provisions surveys for the eligible
// ones. Ineligible customers are skipped, not failed.
func (r *Runner) RunCreate(ctx context.Context) (Report, error) {
	report := Report{Mode: ModeCreate}

	customers, err := r.customers.ListCustomers()
	if err != nil {
		return report, fmt.Errorf("listing customers: %w", err)
	}
	r.logger.Info("create run started", "customers", len(customers))

	for _, c := range customers {
		item := r.processCustomer(ctx, c)
		report.Items = append(report.Items, item)
		switch {
		case item.Err != nil:
			report.Failed++
		case !item.Eligible:
			report.Skipped++
		default:
			report.Created++
		}
	}

	r.logger.Info("create run finished",
		"created", report.Created, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (r *Runner) processCustomer(ctx context.Context, c storage.Customer) ItemResult {
	item := ItemResult{CustomerID: c.ID}
	log := r.logger.With("customer", c.ID)

	dec, err := r.evaluator.Evaluate(c)
	if err != nil {
		item.Stage = StageDecision
		item.Err = fmt.Errorf("evaluating customer: %w", err)
		log.Error("evaluation failed", "error", err)
		return item
	}
	item.Eligible = dec.Eligible
	item.Reason = dec.Reason
	if !dec.Eligible {
		log.Debug("customer not eligible", "reason", dec.Reason)
		return item
	}
	log.Info("customer eligible", "trigger", dec.Trigger, "priority", dec.Priority)

	set, err := r.generator.Generate(ctx, customerContext(c))
	if err != nil {
		item.Stage = StageGeneration
		item.Err = err
		log.Error("question generation failed", "error", err)
		return item
	}

	res, err := r.prov.Provision(ctx, c.ID, set)
	if err != nil {
		item.Stage = StageProvisioning
		item.Err = err
		log.Error("provisioning failed", "error", err, "orphaned_form", res.FormID)
		return item
	}
	item.SurveyID = res.SurveyID
	item.Warnings = append(item.Warnings, res.Warnings...)
	for _, w := range res.Warnings {
		log.Warn("provisioning warning", "error", w)
	}

	if _, err := r.ledger.UpsertLedger(c.ID, time.Now()); err != nil {
		// The survey exists; a ledger failure must not hide that.
		item.Stage = StageLedger
		item.Err = fmt.Errorf("recording survey in ledger: %w", err)
		log.Error("ledger update failed", "survey", res.SurveyID, "error", err)
		return item
	}

	// Both gates re-checked here: consent can have been revoked between
	// evaluation and send, and the decision gate covers engagement.
	if r.notifier != nil && dec.SendEmail && c.MarketingOptIn {
		url := forms.ResponderURL(res.FormID)
		if _, err := r.notifier.Invite(ctx, c.Email, c.FirstName, res.Title, url); err != nil {
			item.Warnings = append(item.Warnings, fmt.Errorf("sending invitation: %w", err))
			log.Warn("invitation failed", "survey", res.SurveyID, "error", err)
		} else {
			item.Notified = true
			log.Info("invitation sent", "survey", res.SurveyID)
		}
	} else {
		log.Info("invitation suppressed", "survey", res.SurveyID,
			"opt_in", c.MarketingOptIn, "engaged", dec.SendEmail)
	}

	return item
}

// RunFetch collects responses for every known survey, newest first.
func (r *Runner) RunFetch(ctx context.Context) (Report, error) {
	report := Report{Mode: ModeFetch}

	surveys, err := r.surveys.ListSurveys()
	if err != nil {
		return report, fmt.Errorf("listing surveys: %w", err)
	}
	r.logger.Info("fetch run started", "surveys", len(surveys))

	for _, sv := range surveys {
		item := ItemResult{CustomerID: sv.CustomerID, SurveyID: sv.ID}
		n, err := r.collector.CollectSurvey(ctx, sv)
		item.Responses = n
		if err != nil {
			item.Stage = StageCollection
			item.Err = err
			report.Failed++
			r.logger.Error("collection failed", "survey", sv.ID, "error", err)
		} else {
			report.Collected += n
			r.logger.Info("survey collected", "survey", sv.ID, "responses", n)
		}
		report.Items = append(report.Items, item)
	}

	r.logger.Info("fetch run finished",
		"surveys", len(surveys), "responses", report.Collected, "failed", report.Failed)
	return report, nil
}

// customerContext projects a customer onto the generator's input, leaving
// absent data categories nil so the prompt steers toward gap-filling.
func customerContext(c storage.Customer) question.Context {
	cc := question.Context{
		Industry:       c.Industry,
		BusinessType:   c.BusinessType,
		Language:       c.Language,
		Gender:         c.Gender,
		TotalPurchases: c.TotalPurchases,
	}
	if c.PurchaseHistory != "" {
		cc.PurchaseHistory = json.RawMessage(c.PurchaseHistory)
	}
	if c.ServiceInteractions != "" {
		cc.ServiceInteractions = json.RawMessage(c.ServiceInteractions)
	}
	if c.MarketingEngagement != "" {
		cc.MarketingEngagement = json.RawMessage(c.MarketingEngagement)
	}
	if c.FirstName != "" || c.LastName != "" {
		cc.PersonalInfo = &question.PersonalInfo{
			FirstName: c.FirstName,
			LastName:  c.LastName,
		}
	}
	return cc
}
