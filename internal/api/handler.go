// Package api exposes the survey pipeline over HTTP and MCP: triggering
// runs, inspecting surveys, and reading collected responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surveus/surveus/internal/pipeline"
	"github.com/surveus/surveus/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// PipelineRunner abstracts a batch run for the API layer.
type PipelineRunner interface {
	Run(ctx context.Context, mode pipeline.Mode) (pipeline.Report, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Store  *storage.Store
	Runner PipelineRunner
	Token  string
}

// NewHandler returns the HTTP surface. /health is open; everything else
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/trigger-survey", handleTrigger(deps))
		r.Get("/customers/{id}", handleGetCustomer(deps))
		r.Get("/surveys", handleListSurveys(deps))
		r.Get("/surveys/{id}", handleGetSurvey(deps))
		r.Post("/surveys/{id}/close", handleCloseSurvey(deps))
		r.Get("/surveys/{id}/responses", handleListResponses(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type triggerRequest struct {
	Mode string `json:"mode"`
}

type reportItem struct {
	CustomerID string `json:"customer_id,omitempty"`
	SurveyID   string `json:"survey_id,omitempty"`
	Eligible   bool   `json:"eligible"`
	Reason     string `json:"reason,omitempty"`
	Notified   bool   `json:"notified"`
	Responses  int    `json:"responses,omitempty"`
	Stage      string `json:"failed_stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

type reportBody struct {
	Mode      string       `json:"mode"`
	Created   int          `json:"created"`
	Skipped   int          `json:"skipped"`
	Collected int          `json:"collected"`
	Failed    int          `json:"failed"`
	Items     []reportItem `json:"items"`
}

func reportToBody(rep pipeline.Report) reportBody {
	body := reportBody{
		Mode:      string(rep.Mode),
		Created:   rep.Created,
		Skipped:   rep.Skipped,
		Collected: rep.Collected,
		Failed:    rep.Failed,
		Items:     make([]reportItem, len(rep.Items)),
	}
	for i, item := range rep.Items {
		ri := reportItem{
			CustomerID: item.CustomerID,
			SurveyID:   item.SurveyID,
			Eligible:   item.Eligible,
			Reason:     item.Reason,
			Notified:   item.Notified,
			Responses:  item.Responses,
			Stage:      string(item.Stage),
		}
		if item.Err != nil {
			ri.Error = item.Err.Error()
		}
		body.Items[i] = ri
	}
	return body
}

func handleTrigger(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Mode == "" {
			req.Mode = string(pipeline.ModeCreate)
		}
		mode := pipeline.Mode(req.Mode)
		if mode != pipeline.ModeCreate && mode != pipeline.ModeFetch {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "mode must be %q or %q", pipeline.ModeCreate, pipeline.ModeFetch)
			return
		}

		rep, err := deps.Runner.Run(r.Context(), mode)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "pipeline run failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reportToBody(rep))
	}
}

type customerBody struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	MarketingOptIn bool   `json:"marketing_opt_in"`
	SurveysSent    int    `json:"surveys_sent"`
	LastSurveyDate string `json:"last_survey_date,omitempty"`
}

// handleGetCustomer returns a customer with their survey ledger entry. A
// customer who was never surveyed has surveys_sent 0 and no last date.
func handleGetCustomer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := deps.Store.GetCustomer(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "customer not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get customer: %v", err)
			return
		}

		body := customerBody{
			ID:             c.ID,
			Email:          c.Email,
			FirstName:      c.FirstName,
			LastName:       c.LastName,
			MarketingOptIn: c.MarketingOptIn,
		}
		entry, err := deps.Store.GetLedger(id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Never surveyed.
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ledger entry: %v", err)
			return
		default:
			body.SurveysSent = entry.SurveysSent
			body.LastSurveyDate = entry.LastSurveyDate.Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

type surveyBody struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	FormID     string          `json:"form_id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Questions  json.RawMessage `json:"questions,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func surveyToBody(sv storage.Survey) surveyBody {
	return surveyBody{
		ID:         sv.ID,
		CustomerID: sv.CustomerID,
		FormID:     sv.FormID,
		Title:      sv.Title,
		Status:     sv.Status,
		Questions:  json.RawMessage(sv.QuestionsJSON),
		Metadata:   json.RawMessage(sv.MetadataJSON),
		CreatedAt:  sv.CreatedAt.Format(time.RFC3339),
	}
}

func handleListSurveys(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		surveys, err := deps.Store.ListRecentSurveys(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list surveys: %v", err)
			return
		}

		bodies := make([]surveyBody, len(surveys))
		for i, sv := range surveys {
			bodies[i] = surveyToBody(sv)
			// Keep list payloads small.
			bodies[i].Questions = nil
			bodies[i].Metadata = nil
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bodies)
	}
}

func handleGetSurvey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sv, err := deps.Store.GetSurvey(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "survey not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get survey: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(surveyToBody(sv))
	}
}

func handleCloseSurvey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.UpdateSurveyStatus(id, "closed")
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "survey not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to close survey: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "closed"})
	}
}

type responseBody struct {
	ID        string          `json:"id"`
	SurveyID  string          `json:"survey_id"`
	Answers   json.RawMessage `json:"answers"`
	CreatedAt string          `json:"created_at"`
}

func handleListResponses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if _, err := deps.Store.GetSurvey(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "survey not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get survey: %v", err)
			return
		}

		responses, err := deps.Store.ListResponsesBySurvey(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list responses: %v", err)
			return
		}

		bodies := make([]responseBody, len(responses))
		for i, resp := range responses {
			bodies[i] = responseBody{
				ID:        resp.ID,
				SurveyID:  resp.SurveyID,
				Answers:   json.RawMessage(resp.ResponseJSON),
				CreatedAt: resp.CreatedAt.Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bodies)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
