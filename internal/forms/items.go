package forms

import (
	"context"
	"fmt"
	"net/http"

	"github.com/surveus/surveus/internal/question"
)

// Wire shapes for forms.batchUpdate createItem requests.

type batchUpdateRequest struct {
	Requests []itemRequest `json:"requests"`
}

type itemRequest struct {
	CreateItem createItem `json:"createItem"`
}

type createItem struct {
	Item     item     `json:"item"`
	Location location `json:"location"`
}

type location struct {
	Index int `json:"index"`
}

type item struct {
	Title        string       `json:"title"`
	QuestionItem questionItem `json:"questionItem"`
}

type questionItem struct {
	Question questionSpec `json:"question"`
}

type questionSpec struct {
	Required       bool            `json:"required"`
	ScaleQuestion  *scaleQuestion  `json:"scaleQuestion,omitempty"`
	TextQuestion   *textQuestion   `json:"textQuestion,omitempty"`
	ChoiceQuestion *choiceQuestion `json:"choiceQuestion,omitempty"`
}

type scaleQuestion struct {
	Low       int    `json:"low"`
	High      int    `json:"high"`
	LowLabel  string `json:"lowLabel"`
	HighLabel string `json:"highLabel"`
}

type textQuestion struct {
	Paragraph bool `json:"paragraph"`
}

type choiceQuestion struct {
	Type    string         `json:"type"`
	Options []choiceOption `json:"options"`
}

type choiceOption struct {
	Value string `json:"value"`
}

// AddItems populates the form with one required item per question, in the
// question set's order. Ratings become a bounded 1-5 scale labeled
// Poor/Excellent, open-ended questions a paragraph text field, and multiple
// choice a single-select radio group.
func (c *Client) AddItems(ctx context.Context, formID string, questions []question.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("no questions to add")
	}

	reqs := make([]itemRequest, 0, len(questions))
	for i, q := range questions {
		spec, err := buildQuestionSpec(q)
		if err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		reqs = append(reqs, itemRequest{
			CreateItem: createItem{
				Item: item{
					Title:        q.Text,
					QuestionItem: questionItem{Question: spec},
				},
				Location: location{Index: i},
			},
		})
	}

	url := fmt.Sprintf("%s/forms/%s:batchUpdate", c.formsBaseURL, formID)
	if err := c.doJSON(ctx, http.MethodPost, url, batchUpdateRequest{Requests: reqs}, nil); err != nil {
		return fmt.Errorf("populating form %s: %w", formID, err)
	}
	return nil
}

func buildQuestionSpec(q question.Question) (questionSpec, error) {
	spec := questionSpec{Required: true}
	switch q.Type {
	case question.Rating:
		spec.ScaleQuestion = &scaleQuestion{
			Low:       1,
			High:      5,
			LowLabel:  "Poor",
			HighLabel: "Excellent",
		}
	case question.OpenEnded:
		spec.TextQuestion = &textQuestion{Paragraph: true}
	case question.MultipleChoice:
		opts := make([]choiceOption, len(q.Options))
		for i, o := range q.Options {
			opts[i] = choiceOption{Value: o}
		}
		spec.ChoiceQuestion = &choiceQuestion{Type: "RADIO", Options: opts}
	default:
		return questionSpec{}, fmt.Errorf("unsupported question type %q", q.Type)
	}
	return spec, nil
}
