// Package provision turns a question set into a durable, shareable form:
// create the external resource, persist the survey record, populate items,
// and share with the operator. Every failure is attributable to its step.
package provision

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/surveus/surveus/internal/question"
	"github.com/surveus/surveus/internal/storage"
)

// Step identifies one of the provisioning effects.
type Step string

const (
	StepCreateForm Step = "create_form"
	StepSaveSurvey Step = "save_survey"
	StepPopulate   Step = "populate_items"
	StepShare      Step = "grant_access"
)

// StepError wraps a failure with the step it happened in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FormsAPI is the external form service surface the provisioner needs.
type FormsAPI interface {
	Create(ctx context.Context, title string) (string, error)
	AddItems(ctx context.Context, formID string, questions []question.Question) error
	GrantAccess(ctx context.Context, formID, email string) error
}

// SurveyStore persists survey records.
type SurveyStore interface {
	InsertSurvey(storage.Survey) error
}

// Result reports a provisioning outcome. On a StepSaveSurvey failure,
// SurveyID is empty but FormID and Title identify the orphaned resource.
// Warnings holds non-fatal step failures (populate/share) on an otherwise
// tracked survey.
type Result struct {
	SurveyID string
	FormID   string
	Title    string
	Warnings []error
}

// Provisioner creates and configures survey forms.
type Provisioner struct {
	forms         FormsAPI
	store         SurveyStore
	operatorEmail string
	titlePrefix   string
	now           func() time.Time
}

// NewProvisioner wires a Provisioner. operatorEmail is granted writer access
// on every created form.
func NewProvisioner(formsAPI FormsAPI, store SurveyStore, operatorEmail string) *Provisioner {
	return &Provisioner{
		forms:         formsAPI,
		store:         store,
		operatorEmail: operatorEmail,
		titlePrefix:   "Surveus v1",
		now:           time.Now,
	}
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomSuffix returns n random base36 characters. Titles must stay distinct
// even for provisionings within the same second, so the suffix comes from
// crypto/rand rather than the clock.
func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			// crypto/rand failing means the platform RNG is broken; there is
			// no sensible fallback for uniqueness.
			panic(fmt.Sprintf("reading random suffix: %v", err))
		}
		b[i] = suffixAlphabet[idx.Int64()]
	}
	return string(b)
}

// Title generates a unique human-legible form title.
func (p *Provisioner) Title() string {
	return fmt.Sprintf("%s %s-%s", p.titlePrefix, p.now().Format("2006-01-02"), randomSuffix(4))
}

// Provision runs the provisioning sequence for one customer's question set.
//
// Failures in form creation or survey persistence return a *StepError; on a
// save failure the Result still carries the form id so the caller knows an
// external resource was orphaned. Populate and share failures after a
// successful save do not fail the call; they are surfaced via
// Result.Warnings because the form exists and is tracked either way.
func (p *Provisioner) Provision(ctx context.Context, customerID string, set question.Set) (Result, error) {
	title := p.Title()
	res := Result{Title: title}

	formID, err := p.forms.Create(ctx, title)
	if err != nil {
		return res, &StepError{Step: StepCreateForm, Err: err}
	}
	res.FormID = formID

	questionsJSON, err := json.Marshal(set)
	if err != nil {
		return res, &StepError{Step: StepSaveSurvey, Err: fmt.Errorf("encoding question set: %w", err)}
	}
	metadataJSON, err := json.Marshal(set.Metadata)
	if err != nil {
		return res, &StepError{Step: StepSaveSurvey, Err: fmt.Errorf("encoding metadata: %w", err)}
	}

	survey := storage.Survey{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		FormID:        formID,
		Title:         title,
		Status:        "active",
		QuestionsJSON: string(questionsJSON),
		MetadataJSON:  string(metadataJSON),
		CreatedAt:     p.now(),
	}
	if err := p.store.InsertSurvey(survey); err != nil {
		return res, &StepError{Step: StepSaveSurvey, Err: err}
	}
	res.SurveyID = survey.ID

	if err := p.forms.AddItems(ctx, formID, set.Questions); err != nil {
		res.Warnings = append(res.Warnings, &StepError{Step: StepPopulate, Err: err})
	}

	if err := p.forms.GrantAccess(ctx, formID, p.operatorEmail); err != nil {
		res.Warnings = append(res.Warnings, &StepError{Step: StepShare, Err: err})
	}

	return res, nil
}
