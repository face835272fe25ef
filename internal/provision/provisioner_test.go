package provision

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/surveus/surveus/internal/question"
	"github.com/surveus/surveus/internal/storage"
)

type fakeForms struct {
	createErr error
	itemsErr  error
	accessErr error

	createdTitle string
	itemsFormID  string
	items        []question.Question
	accessFormID string
	accessEmail  string
}

func (f *fakeForms) Create(ctx context.Context, title string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdTitle = title
	return "form-1", nil
}

func (f *fakeForms) AddItems(ctx context.Context, formID string, questions []question.Question) error {
	if f.itemsErr != nil {
		return f.itemsErr
	}
	f.itemsFormID = formID
	f.items = questions
	return nil
}

func (f *fakeForms) GrantAccess(ctx context.Context, formID, email string) error {
	if f.accessErr != nil {
		return f.accessErr
	}
	f.accessFormID = formID
	f.accessEmail = email
	return nil
}

type fakeStore struct {
	insertErr error
	saved     []storage.Survey
}

func (s *fakeStore) InsertSurvey(sv storage.Survey) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.saved = append(s.saved, sv)
	return nil
}

func testSet() question.Set {
	return question.Set{
		Questions: []question.Question{
			{Type: question.Rating, Text: "How satisfied are you?", Scale: &question.Scale{Min: 1, Max: 5, LowLabel: "Poor", HighLabel: "Excellent"}},
			{Type: question.OpenEnded, Text: "What could we improve?"},
		},
		Metadata: question.Metadata{
			PersonalizationFactors: []string{"industry"},
			Language:               "English",
		},
	}
}

func newTestProvisioner(f *fakeForms, s *fakeStore) *Provisioner {
	p := NewProvisioner(f, s, "operator@example.com")
	p.now = func() time.Time {
		return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	}
	return p
}

func TestProvision(t *testing.T) {
	f := &fakeForms{}
	s := &fakeStore{}
	p := newTestProvisioner(f, s)

	res, err := p.Provision(context.Background(), "cust-1", testSet())
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if res.FormID != "form-1" {
		t.Errorf("form id = %q", res.FormID)
	}
	if res.SurveyID == "" {
		t.Error("survey id is empty")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	if len(s.saved) != 1 {
		t.Fatalf("saved %d surveys, want 1", len(s.saved))
	}
	sv := s.saved[0]
	if sv.CustomerID != "cust-1" {
		t.Errorf("customer id = %q", sv.CustomerID)
	}
	if sv.Status != "active" {
		t.Errorf("status = %q", sv.Status)
	}
	var roundTrip question.Set
	if err := json.Unmarshal([]byte(sv.QuestionsJSON), &roundTrip); err != nil {
		t.Fatalf("questions JSON does not parse: %v", err)
	}
	if len(roundTrip.Questions) != 2 {
		t.Errorf("persisted %d questions, want 2", len(roundTrip.Questions))
	}

	if f.itemsFormID != "form-1" || len(f.items) != 2 {
		t.Errorf("AddItems(%q, %d items)", f.itemsFormID, len(f.items))
	}
	if f.accessEmail != "operator@example.com" {
		t.Errorf("access granted to %q", f.accessEmail)
	}
}

func TestProvision_TitleFormat(t *testing.T) {
	f := &fakeForms{}
	p := newTestProvisioner(f, &fakeStore{})

	if _, err := p.Provision(context.Background(), "cust-1", testSet()); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	pattern := regexp.MustCompile(`^Surveus v1 2026-08-28-[0-9a-z]{4}$`)
	if !pattern.MatchString(f.createdTitle) {
		t.Errorf("title = %q, want match for %s", f.createdTitle, pattern)
	}
}

func TestProvision_TitlesDistinctWithinSecond(t *testing.T) {
	p := newTestProvisioner(&fakeForms{}, &fakeStore{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		title := p.Title()
		if seen[title] {
			t.Fatalf("duplicate title %q on iteration %d", title, i)
		}
		seen[title] = true
	}
}

func TestProvision_CreateFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	f := &fakeForms{createErr: boom}
	s := &fakeStore{}
	p := newTestProvisioner(f, s)

	res, err := p.Provision(context.Background(), "cust-1", testSet())
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepCreateForm {
		t.Fatalf("error = %v, want StepError{create_form}", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not wrapped")
	}
	if len(s.saved) != 0 {
		t.Error("survey saved despite create failure")
	}
	if res.FormID != "" {
		t.Errorf("form id = %q, want empty", res.FormID)
	}
}

func TestProvision_SaveFailureReportsOrphan(t *testing.T) {
	f := &fakeForms{}
	s := &fakeStore{insertErr: errors.New("disk full")}
	p := newTestProvisioner(f, s)

	res, err := p.Provision(context.Background(), "cust-1", testSet())
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepSaveSurvey {
		t.Fatalf("error = %v, want StepError{save_survey}", err)
	}
	// The external form exists but is untracked; the result must identify it.
	if res.FormID != "form-1" {
		t.Errorf("orphaned form id = %q", res.FormID)
	}
	if res.Title == "" {
		t.Error("orphaned form title missing")
	}
	if res.SurveyID != "" {
		t.Errorf("survey id = %q, want empty", res.SurveyID)
	}
	if f.itemsFormID != "" {
		t.Error("items populated despite save failure")
	}
}

func TestProvision_PopulateFailureIsWarning(t *testing.T) {
	f := &fakeForms{itemsErr: errors.New("bad item")}
	s := &fakeStore{}
	p := newTestProvisioner(f, s)

	res, err := p.Provision(context.Background(), "cust-1", testSet())
	if err != nil {
		t.Fatalf("Provision() error = %v, want nil", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", res.Warnings)
	}
	var stepErr *StepError
	if !errors.As(res.Warnings[0], &stepErr) || stepErr.Step != StepPopulate {
		t.Errorf("warning = %v, want StepError{populate_items}", res.Warnings[0])
	}
	if len(s.saved) != 1 {
		t.Error("survey not persisted")
	}
	// Sharing still runs after a populate failure.
	if f.accessEmail != "operator@example.com" {
		t.Error("access grant skipped")
	}
}

func TestProvision_ShareFailureIsWarning(t *testing.T) {
	f := &fakeForms{accessErr: errors.New("permission denied")}
	p := newTestProvisioner(f, &fakeStore{})

	res, err := p.Provision(context.Background(), "cust-1", testSet())
	if err != nil {
		t.Fatalf("Provision() error = %v, want nil", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", res.Warnings)
	}
	var stepErr *StepError
	if !errors.As(res.Warnings[0], &stepErr) || stepErr.Step != StepShare {
		t.Errorf("warning = %v, want StepError{grant_access}", res.Warnings[0])
	}
}
