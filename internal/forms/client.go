// Package forms is a REST client for the Google Forms v1 and Drive v3
// endpoints the pipeline needs: create a form, populate its items, share it
// with an operator, and list submitted responses.
package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

const (
	defaultFormsBaseURL = "https://forms.googleapis.com/v1"
	defaultDriveBaseURL = "https://www.googleapis.com/drive/v3"
	responderURLFormat  = "https://docs.google.com/forms/d/%s/viewform"

	scopeFormsBody = "https://www.googleapis.com/auth/forms.body"
	scopeResponses = "https://www.googleapis.com/auth/forms.responses.readonly"
	scopeDrive     = "https://www.googleapis.com/auth/drive"
)

// Client talks to the Forms and Drive APIs with a service-account identity.
type Client struct {
	httpClient   *http.Client
	formsBaseURL string
	driveBaseURL string
}

// NewClient builds a client from a service-account JSON key file. The
// returned client's transport injects OAuth2 tokens for the Forms and Drive
// scopes.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading Google credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(creds, scopeFormsBody, scopeResponses, scopeDrive)
	if err != nil {
		return nil, fmt.Errorf("parsing Google credentials: %w", err)
	}
	hc := conf.Client(ctx)
	hc.Timeout = 30 * time.Second
	return &Client{
		httpClient:   hc,
		formsBaseURL: defaultFormsBaseURL,
		driveBaseURL: defaultDriveBaseURL,
	}, nil
}

// NewClientWithHTTP builds a client on an existing http.Client and base URLs
// (used by tests).
func NewClientWithHTTP(hc *http.Client, formsBaseURL, driveBaseURL string) *Client {
	return &Client{
		httpClient:   hc,
		formsBaseURL: strings.TrimRight(formsBaseURL, "/"),
		driveBaseURL: strings.TrimRight(driveBaseURL, "/"),
	}
}

// ResponderURL returns the public fill-in URL for a form.
func ResponderURL(formID string) string {
	return fmt.Sprintf(responderURLFormat, formID)
}

type formInfo struct {
	Title         string `json:"title"`
	DocumentTitle string `json:"documentTitle,omitempty"`
}

type createFormRequest struct {
	Info formInfo `json:"info"`
}

type createFormResponse struct {
	FormID string `json:"formId"`
}

// Create creates an empty form shell with the given title and returns the
// new form id.
func (c *Client) Create(ctx context.Context, title string) (string, error) {
	var out createFormResponse
	err := c.doJSON(ctx, http.MethodPost, c.formsBaseURL+"/forms",
		createFormRequest{Info: formInfo{Title: title, DocumentTitle: title}}, &out)
	if err != nil {
		return "", fmt.Errorf("creating form: %w", err)
	}
	if out.FormID == "" {
		return "", fmt.Errorf("creating form: response carried no formId")
	}
	return out.FormID, nil
}

type permissionRequest struct {
	Role         string `json:"role"`
	Type         string `json:"type"`
	EmailAddress string `json:"emailAddress"`
}

// GrantAccess gives the principal writer access to the form document.
func (c *Client) GrantAccess(ctx context.Context, formID, email string) error {
	url := fmt.Sprintf("%s/files/%s/permissions", c.driveBaseURL, formID)
	err := c.doJSON(ctx, http.MethodPost, url, permissionRequest{
		Role:         "writer",
		Type:         "user",
		EmailAddress: email,
	}, nil)
	if err != nil {
		return fmt.Errorf("granting access on form %s: %w", formID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
