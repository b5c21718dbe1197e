// Package notify delivers contact-form and waitlist submissions to Discord
// webhooks. Delivery is fire-and-forget: one POST, no retry, no persistence.
// A failed delivery is logged and dropped; the storefront has already
// accepted the submission.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"expanse/internal/config"
	"expanse/internal/external"
	"expanse/internal/types"
)

// maxResponseBodyRead limits how much of a webhook response body is read for
// error diagnostics.
const maxResponseBodyRead = 4096

// Discord embed colors.
const (
	colorContact  = 0x2196F3 // Blue
	colorWaitlist = 0x4CAF50 // Green
)

// ContactMessage is a storefront contact-form submission.
type ContactMessage struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=4000"`
}

// WaitlistSignup is a storefront waitlist submission.
type WaitlistSignup struct {
	Email string `json:"email" validate:"required,email"`
}

// discordPayload is the Discord webhook JSON schema subset we emit.
type discordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Notifier formats submissions as Discord embeds and POSTs them to the
// configured webhooks.
type Notifier struct {
	cfg    config.NotifyConfig
	http   *external.BaseClient
	logger *slog.Logger
	clock  types.Clock
}

// NewNotifier creates a Notifier with a circuit-breaking HTTP client.
func NewNotifier(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return NewNotifierWithBase(cfg, external.NewBaseClient(httpClient, "discord", cfg.UserAgent), logger)
}

// NewNotifierWithBase creates a Notifier with a caller-supplied BaseClient.
// This constructor exists for testing against httptest servers.
func NewNotifierWithBase(cfg config.NotifyConfig, base *external.BaseClient, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		http:   base,
		logger: logger,
		clock:  types.RealClock{},
	}
}

// SendContact delivers a contact-form submission to the contact webhook.
// An unconfigured webhook is a silent no-op beyond a log line.
func (n *Notifier) SendContact(ctx context.Context, msg ContactMessage) error {
	payload := discordPayload{
		Username: "Expanse Storefront",
		Embeds: []discordEmbed{{
			Title: "New contact message",
			Color: colorContact,
			Fields: []discordField{
				{Name: "Name", Value: msg.Name, Inline: true},
				{Name: "Email", Value: msg.Email, Inline: true},
				{Name: "Message", Value: msg.Message},
			},
			Footer: &discordFooter{
				Text: fmt.Sprintf("Expanse | %s", n.clock.Now().Format(time.RFC3339)),
			},
		}},
	}
	return n.deliver(ctx, "contact", n.cfg.ContactWebhookURL, payload)
}

// SendWaitlist delivers a waitlist signup to the waitlist webhook.
func (n *Notifier) SendWaitlist(ctx context.Context, signup WaitlistSignup) error {
	payload := discordPayload{
		Username: "Expanse Storefront",
		Embeds: []discordEmbed{{
			Title:       "New waitlist signup",
			Description: signup.Email,
			Color:       colorWaitlist,
			Footer: &discordFooter{
				Text: fmt.Sprintf("Expanse | %s", n.clock.Now().Format(time.RFC3339)),
			},
		}},
	}
	return n.deliver(ctx, "waitlist", n.cfg.WaitlistWebhookURL, payload)
}

func (n *Notifier) deliver(ctx context.Context, kind string, destination types.SecretString, payload discordPayload) error {
	dest := destination.Unmask()
	if dest == "" {
		n.logger.Info("webhook not configured; dropping notification", "kind", kind)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "marshalling webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "building webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	deliveryID := uuid.New().String()
	n.logger.Info("delivering notification", "kind", kind, "delivery_id", deliveryID)

	resp, err := n.http.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook delivery failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook returned non-success status",
			"kind", kind,
			"delivery_id", deliveryID,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return types.NewAppError(types.ErrCodeUpstreamWebhook,
			fmt.Sprintf("webhook returned status %d", resp.StatusCode), nil)
	}

	n.logger.Info("notification delivered", "kind", kind, "delivery_id", deliveryID, "status", resp.StatusCode)
	return nil
}
