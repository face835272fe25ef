package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Submission is one externally submitted answer set.
type Submission struct {
	ID          string
	SubmittedAt time.Time
	Answers     map[string]Answer
	Raw         json.RawMessage // the unmodified response object
}

// Answer carries the per-question answer variants the API returns. Exactly
// which variant is set depends on the item type.
type Answer struct {
	TextAnswers *TextAnswers `json:"textAnswers,omitempty"`
	ScaleAnswer *ScaleAnswer `json:"scaleAnswer,omitempty"`
}

// TextAnswers holds free-text (and choice) answer values.
type TextAnswers struct {
	Answers []TextValue `json:"answers"`
}

type TextValue struct {
	Value string `json:"value"`
}

// ScaleAnswer holds a numeric scale answer value.
type ScaleAnswer struct {
	Value int `json:"value"`
}

type listResponsesBody struct {
	Responses []json.RawMessage `json:"responses"`
}

type responseObject struct {
	ResponseID        string            `json:"responseId"`
	LastSubmittedTime string            `json:"lastSubmittedTime"`
	Answers           map[string]Answer `json:"answers"`
}

// ListSubmissions fetches all submitted responses for a form. A form with no
// submissions yields an empty slice and no error.
func (c *Client) ListSubmissions(ctx context.Context, formID string) ([]Submission, error) {
	url := fmt.Sprintf("%s/forms/%s/responses", c.formsBaseURL, formID)

	var body listResponsesBody
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &body); err != nil {
		return nil, fmt.Errorf("listing responses for form %s: %w", formID, err)
	}

	subs := make([]Submission, 0, len(body.Responses))
	for i, raw := range body.Responses {
		var obj responseObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("parsing response %d for form %s: %w", i, formID, err)
		}
		sub := Submission{
			ID:      obj.ResponseID,
			Answers: obj.Answers,
			Raw:     raw,
		}
		if obj.LastSubmittedTime != "" {
			t, err := time.Parse(time.RFC3339Nano, obj.LastSubmittedTime)
			if err != nil {
				return nil, fmt.Errorf("parsing submission time for response %s: %w", obj.ResponseID, err)
			}
			sub.SubmittedAt = t
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
