package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNotifierSendsSendGridPayload(t *testing.T) {
	var got sendgridPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifierWithEndpoint("test-key", srv.URL)
	if err := n.Send(context.Background(), "owner@example.com", "subject line", "hello\nworld"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer test-key" {
		t.Fatalf("auth header = %q", auth)
	}
	if len(got.Personalizations) != 1 || len(got.Personalizations[0].To) != 1 {
		t.Fatalf("personalizations = %+v", got.Personalizations)
	}
	if got.Personalizations[0].To[0].Email != "owner@example.com" {
		t.Fatalf("to = %q", got.Personalizations[0].To[0].Email)
	}
	if got.Personalizations[0].Subject != "subject line" {
		t.Fatalf("subject = %q", got.Personalizations[0].Subject)
	}
	if got.From.Email != "noreply@actify.com" {
		t.Fatalf("from = %q", got.From.Email)
	}
	if len(got.Content) != 2 || got.Content[0].Type != "text/plain" || got.Content[1].Type != "text/html" {
		t.Fatalf("content = %+v", got.Content)
	}
	if got.Content[0].Value != "hello\nworld" {
		t.Fatalf("plain body = %q", got.Content[0].Value)
	}
	if !strings.Contains(got.Content[1].Value, "hello\nworld") {
		t.Fatalf("html body missing message: %q", got.Content[1].Value)
	}
}

func TestNotifierReportsEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifierWithEndpoint("test-key", srv.URL)
	err := n.Send(context.Background(), "owner@example.com", "s", "m")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	// NotifyAsync swallows the same failure — it must not panic or block
	n.NotifyAsync("owner@example.com", "s", "m")
}

func TestNotifierDisabledWithoutKey(t *testing.T) {
	n := NewNotifierWithEndpoint("", "http://127.0.0.1:0")
	if err := n.Send(context.Background(), "a@example.com", "s", "m"); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}
