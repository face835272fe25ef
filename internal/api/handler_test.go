package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/surveus/surveus/internal/pipeline"
	"github.com/surveus/surveus/internal/storage"
)

type mockRunner struct {
	report  pipeline.Report
	err     error
	gotMode pipeline.Mode
}

func (m *mockRunner) Run(_ context.Context, mode pipeline.Mode) (pipeline.Report, error) {
	m.gotMode = mode
	return m.report, m.err
}

func newTestDeps(t *testing.T) (Deps, *storage.Store, *mockRunner) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runner := &mockRunner{}
	return Deps{Store: store, Runner: runner, Token: "test-token"}, store, runner
}

func doRequest(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seedSurvey(t *testing.T, store *storage.Store, id string, createdAt time.Time) {
	t.Helper()
	sv := storage.Survey{
		ID:            id,
		CustomerID:    "c-" + id,
		FormID:        "form-" + id,
		Title:         "Surveus v1 2026-08-28-" + id,
		Status:        "active",
		QuestionsJSON: `{"questions":[],"metadata":{"personalization_factors":[],"language":"English"}}`,
		MetadataJSON:  `{"personalization_factors":[],"language":"English"}`,
		CreatedAt:     createdAt,
	}
	if err := store.InsertSurvey(sv); err != nil {
		t.Fatalf("seeding survey: %v", err)
	}
}

func TestHealthIsOpen(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/surveys", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d", rec.Code)
	}

	rec = doRequest(h, http.MethodGet, "/surveys", "wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}

	rec = doRequest(h, http.MethodGet, "/surveys", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", rec.Code)
	}
}

func TestTriggerSurvey(t *testing.T) {
	deps, _, runner := newTestDeps(t)
	runner.report = pipeline.Report{
		Mode:    pipeline.ModeCreate,
		Created: 2,
		Skipped: 1,
		Items: []pipeline.ItemResult{
			{CustomerID: "c1", SurveyID: "srv-1", Eligible: true, Notified: true},
			{CustomerID: "c2", SurveyID: "srv-2", Eligible: true},
			{CustomerID: "c3", Reason: "no eligibility rule matched"},
		},
	}
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodPost, "/trigger-survey", "test-token", `{"mode":"create"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if runner.gotMode != pipeline.ModeCreate {
		t.Errorf("mode = %q", runner.gotMode)
	}

	var body struct {
		Mode    string `json:"mode"`
		Created int    `json:"created"`
		Skipped int    `json:"skipped"`
		Items   []struct {
			CustomerID string `json:"customer_id"`
			Notified   bool   `json:"notified"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if body.Created != 2 || body.Skipped != 1 {
		t.Errorf("body = %+v", body)
	}
	if len(body.Items) != 3 || !body.Items[0].Notified {
		t.Errorf("items = %+v", body.Items)
	}
}

func TestTriggerSurvey_DefaultsToCreate(t *testing.T) {
	deps, _, runner := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodPost, "/trigger-survey", "test-token", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if runner.gotMode != pipeline.ModeCreate {
		t.Errorf("mode = %q", runner.gotMode)
	}
}

func TestTriggerSurvey_RejectsUnknownMode(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodPost, "/trigger-survey", "test-token", `{"mode":"prune"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTriggerSurvey_RunFailure(t *testing.T) {
	deps, _, runner := newTestDeps(t)
	runner.err = errors.New("storage unavailable")
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodPost, "/trigger-survey", "test-token", `{"mode":"fetch"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListSurveys(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	seedSurvey(t, store, "a1b2", base)
	seedSurvey(t, store, "c3d4", base.Add(time.Hour))
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/surveys", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []surveyBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d surveys", len(got))
	}
	// Newest first.
	if got[0].ID != "c3d4" {
		t.Errorf("first survey = %q", got[0].ID)
	}
	if got[0].Questions != nil {
		t.Error("list payload includes full question sets")
	}
}

func TestGetSurvey(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	seedSurvey(t, store, "a1b2", time.Now().UTC())
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/surveys/a1b2", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got surveyBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if got.ID != "a1b2" || got.Questions == nil {
		t.Errorf("body = %+v", got)
	}

	rec = doRequest(h, http.MethodGet, "/surveys/nope", "test-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing survey: status = %d", rec.Code)
	}
}

func TestGetCustomer(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	c := storage.Customer{
		ID:             "cust-1",
		Email:          "anna@example.com",
		FirstName:      "Anna",
		MarketingOptIn: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.InsertCustomer(c); err != nil {
		t.Fatalf("seeding customer: %v", err)
	}
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/customers/cust-1", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got customerBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if got.Email != "anna@example.com" || got.SurveysSent != 0 || got.LastSurveyDate != "" {
		t.Errorf("body = %+v", got)
	}

	sent := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if _, err := store.UpsertLedger("cust-1", sent); err != nil {
		t.Fatalf("seeding ledger: %v", err)
	}

	rec = doRequest(h, http.MethodGet, "/customers/cust-1", "test-token", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if got.SurveysSent != 1 || got.LastSurveyDate != "2026-08-28T12:00:00Z" {
		t.Errorf("ledger fields = %+v", got)
	}

	rec = doRequest(h, http.MethodGet, "/customers/nope", "test-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing customer: status = %d", rec.Code)
	}
}

func TestCloseSurvey(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	seedSurvey(t, store, "a1b2", time.Now().UTC())
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodPost, "/surveys/a1b2/close", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	sv, err := store.GetSurvey("a1b2")
	if err != nil {
		t.Fatalf("GetSurvey() error = %v", err)
	}
	if sv.Status != "closed" {
		t.Errorf("status = %q", sv.Status)
	}

	rec = doRequest(h, http.MethodPost, "/surveys/nope/close", "test-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing survey: status = %d", rec.Code)
	}
}

func TestListResponses(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	seedSurvey(t, store, "a1b2", time.Now().UTC())
	resp := storage.Response{
		ID:           "resp-1",
		SurveyID:     "a1b2",
		ResponseJSON: `{"q1":"Great service","q2":5}`,
		RawJSON:      `{"responseId":"resp-1"}`,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.InsertResponse(resp); err != nil {
		t.Fatalf("seeding response: %v", err)
	}
	h := NewHandler(deps)

	rec := doRequest(h, http.MethodGet, "/surveys/a1b2/responses", "test-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []responseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "resp-1" {
		t.Errorf("body = %+v", got)
	}

	var answers map[string]any
	if err := json.Unmarshal(got[0].Answers, &answers); err != nil {
		t.Fatalf("answers do not parse: %v", err)
	}
	if answers["q1"] != "Great service" {
		t.Errorf("answers = %v", answers)
	}

	rec = doRequest(h, http.MethodGet, "/surveys/nope/responses", "test-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing survey: status = %d", rec.Code)
	}
}
