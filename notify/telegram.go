// Package notify delivers operational alerts. Telegram is the only backend;
// deployments without credentials get the no-op notifier.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier sends a human-readable message to an alert channel. Delivery is
// best effort; failures are logged, never propagated to the caller.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

// Telegram sends messages through the Bot API's sendMessage endpoint.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *zap.Logger
}

// NewTelegram creates a Telegram notifier. Returns Nop when either
// credential is empty so callers never need a nil check.
func NewTelegram(token, chatID string, logger *zap.Logger) Notifier {
	if token == "" || chatID == "" {
		logger.Info("Telegram notifications disabled")
		return Nop{}
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (t *Telegram) Notify(ctx context.Context, message string) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		t.logger.Warn("Failed to encode telegram payload", zap.Error(err))
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.logger.Warn("Failed to build telegram request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("Failed to send telegram message", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("Telegram API returned non-200",
			zap.Int("status", resp.StatusCode))
	}
}
