// Package collect pulls submitted form responses and normalizes them into
// flat answer records keyed by question id.
package collect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/surveus/surveus/internal/forms"
	"github.com/surveus/surveus/internal/storage"
)

// SubmissionSource lists submitted responses for a form.
type SubmissionSource interface {
	ListSubmissions(ctx context.Context, formID string) ([]forms.Submission, error)
}

// ResponseStore persists normalized responses.
type ResponseStore interface {
	InsertResponse(storage.Response) error
}

// Collector fetches and stores responses for provisioned surveys.
type Collector struct {
	source SubmissionSource
	store  ResponseStore
}

func NewCollector(source SubmissionSource, store ResponseStore) *Collector {
	return &Collector{source: source, store: store}
}

// Flatten reduces a submission's answers to scalar values keyed by question
// id. Free-text answers take the first submitted value; scale answers take
// the numeric value. Free text wins when an answer somehow carries both.
// Unanswered questions do not appear in the result.
func Flatten(answers map[string]forms.Answer) map[string]any {
	flat := make(map[string]any, len(answers))
	for qid, a := range answers {
		switch {
		case a.TextAnswers != nil && len(a.TextAnswers.Answers) > 0:
			flat[qid] = a.TextAnswers.Answers[0].Value
		case a.ScaleAnswer != nil:
			flat[qid] = a.ScaleAnswer.Value
		}
	}
	return flat
}

// CollectSurvey fetches all submissions for one survey and persists them as
// normalized responses. It returns the number of responses stored. A survey
// with no submissions is not an error.
func (c *Collector) CollectSurvey(ctx context.Context, survey storage.Survey) (int, error) {
	subs, err := c.source.ListSubmissions(ctx, survey.FormID)
	if err != nil {
		return 0, fmt.Errorf("fetching submissions for survey %s: %w", survey.ID, err)
	}

	stored := 0
	for _, sub := range subs {
		flat := Flatten(sub.Answers)
		flatJSON, err := json.Marshal(flat)
		if err != nil {
			return stored, fmt.Errorf("encoding answers for response %s: %w", sub.ID, err)
		}
		r := storage.Response{
			ID:           uuid.New().String(),
			SurveyID:     survey.ID,
			ResponseJSON: string(flatJSON),
			RawJSON:      string(sub.Raw),
			CreatedAt:    sub.SubmittedAt,
		}
		if err := c.store.InsertResponse(r); err != nil {
			return stored, fmt.Errorf("storing response %s: %w", sub.ID, err)
		}
		stored++
	}
	return stored, nil
}
