package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"actify-backend/utils"
)

const (
	sendgridMailSendURL = "https://api.sendgrid.com/v3/mail/send"
	notifyFromEmail     = "noreply@actify.com"
	notifyFromName      = "Actify"
)

// AdminNotifyEmail is the fixed administrative address copied on mission
// activity notifications.
var AdminNotifyEmail = "admin@actify.com"

// Notifier sends transactional mail through the SendGrid HTTP API.
// Delivery is strictly best-effort: callers fire it on a goroutine and no
// user-facing operation ever fails because a mail did not go out.
type Notifier struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewNotifier() *Notifier {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		log.Println("⚠️  SENDGRID_API_KEY not set — notifications will be skipped")
	}
	return &Notifier{
		apiKey:     apiKey,
		endpoint:   sendgridMailSendURL,
		httpClient: utils.HTTPClient,
	}
}

// NewNotifierWithEndpoint points the notifier at a custom mail endpoint.
func NewNotifierWithEndpoint(apiKey, endpoint string) *Notifier {
	return &Notifier{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: utils.HTTPClient,
	}
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPersonalization struct {
	To      []sendgridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Content          []sendgridContent         `json:"content"`
}

// Send delivers one mail with plain-text and HTML bodies. Returns an error
// for logging only — callers must not surface it to the triggering action.
func (n *Notifier) Send(ctx context.Context, to, subject, message string) error {
	if n.apiKey == "" {
		return fmt.Errorf("notifier disabled: no API key")
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{
			{To: []sendgridAddress{{Email: to}}, Subject: subject},
		},
		From: sendgridAddress{Email: notifyFromEmail, Name: notifyFromName},
		Content: []sendgridContent{
			{Type: "text/plain", Value: message},
			{Type: "text/html", Value: renderNotificationHTML(message)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail endpoint returned %d: %s", resp.StatusCode, string(errBody))
	}

	return nil
}

// NotifyAsync fires Send on a goroutine; failures are logged and swallowed.
func (n *Notifier) NotifyAsync(to, subject, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := n.Send(ctx, to, subject, message); err != nil {
			log.Printf("[NOTIFY] ⚠️ Failed to send %q to %s: %v", subject, to, err)
			return
		}
		log.Printf("[NOTIFY] ✅ Sent %q to %s", subject, to)
	}()
}

// renderNotificationHTML wraps the plain-text message in the fixed
// notification template.
func renderNotificationHTML(message string) string {
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px;">
    <h2 style="color: #333; margin-bottom: 20px;">Actify 通知</h2>
    <div style="background-color: white; padding: 20px; border-radius: 4px; border-left: 4px solid #007bff;">
      <p style="color: #555; line-height: 1.6; margin: 0; white-space: pre-line;">%s</p>
    </div>
    <div style="margin-top: 20px; padding-top: 20px; border-top: 1px solid #dee2e6;">
      <p style="color: #6c757d; font-size: 12px; margin: 0;">
        このメールはActifyシステムから自動送信されています。<br>
        返信は不要です。
      </p>
    </div>
  </div>
</div>`, message)
}
