package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"id":"email-42"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("re_test", "Surveus <onboarding@resend.dev>", srv.URL)
	id, err := c.Send(context.Background(), "anna@example.com", "Survey: T", "<p>hi</p>")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "email-42" {
		t.Errorf("delivery id = %q", id)
	}
	if got.From != "Surveus <onboarding@resend.dev>" {
		t.Errorf("from = %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "anna@example.com" {
		t.Errorf("to = %v", got.To)
	}
}

func TestSend_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad", "s@example.com", srv.URL)
	if _, err := c.Send(context.Background(), "x@example.com", "s", "<p></p>"); err == nil {
		t.Error("Send() = nil, want error")
	}
}

func TestInvite_SubjectIncludesTitle(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("re_test", "s@example.com", srv.URL)
	_, err := c.Invite(context.Background(), "anna@example.com", "Anna", "Surveus v1 2026-08-28-ab3f", "https://docs.google.com/forms/d/f1/viewform")
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if got.Subject != "Survey: Surveus v1 2026-08-28-ab3f" {
		t.Errorf("subject = %q", got.Subject)
	}
	if !strings.Contains(got.HTML, "Hi Anna,") {
		t.Error("body does not greet by first name")
	}
}

// findLinks walks parsed HTML and collects anchor hrefs.
func findLinks(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, a := range n.Attr {
			if a.Key == "href" {
				*out = append(*out, a.Val)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findLinks(c, out)
	}
}

func TestInvitation_CTALinkAndFallback(t *testing.T) {
	url := "https://docs.google.com/forms/d/form-9/viewform"
	body, err := Invitation("Maya", "Surveus v1 2026-08-28-k3m1", url)
	if err != nil {
		t.Fatalf("Invitation() error = %v", err)
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("generated HTML does not parse: %v", err)
	}
	var links []string
	findLinks(doc, &links)
	if len(links) != 1 || links[0] != url {
		t.Errorf("anchor hrefs = %v, want exactly the survey URL", links)
	}

	// Plain-text fallback: the URL must also appear outside the anchor.
	if strings.Count(body, url) < 2 {
		t.Error("survey URL appears only once; fallback link missing")
	}
	if !strings.Contains(body, "Surveus v1 2026-08-28-k3m1") {
		t.Error("title missing from body")
	}
}

func TestInvitation_NeutralGreeting(t *testing.T) {
	body, err := Invitation("", "T", "https://example.com/f")
	if err != nil {
		t.Fatalf("Invitation() error = %v", err)
	}
	if !strings.Contains(body, "<p>Hello,</p>") {
		t.Error("neutral greeting missing when first name is unknown")
	}
	if strings.Contains(body, "Hi ,") {
		t.Error("rendered a personalized greeting with an empty name")
	}
}
