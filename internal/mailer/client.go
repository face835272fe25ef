// Package mailer sends survey invitation emails through the Resend API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

// Client communicates with the Resend email API.
type Client struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
}

// NewClient creates a Resend client. from is the sender identity, e.g.
// "Surveus <onboarding@resend.dev>".
func NewClient(apiKey, from string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		from:    from,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for
// testing).
func NewClientWithBaseURL(apiKey, from, baseURL string) *Client {
	c := NewClient(apiKey, from)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers an HTML email and returns the provider's delivery id.
func (c *Client) Send(ctx context.Context, to, subject, html string) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return result.ID, nil
}

// Invite renders the invitation body and sends it to the recipient. It
// satisfies the pipeline's Notifier interface.
func (c *Client) Invite(ctx context.Context, to, firstName, title, url string) (string, error) {
	html, err := Invitation(firstName, title, url)
	if err != nil {
		return "", fmt.Errorf("rendering invitation: %w", err)
	}
	return c.Send(ctx, to, "Survey: "+title, html)
}
