// Package notifier delivers user-facing messages through the chat bot's
// HTTP transport.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// Config holds the bot transport settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPNotifier implements core.Notifier by posting messages to the bot
// transport's send endpoint.
type HTTPNotifier struct {
	cfg          Config
	httpClient   *http.Client
	timeProvider coreport.TimeProvider
}

// NewHTTPNotifier creates a notifier backed by the bot transport.
func NewHTTPNotifier(cfg Config, timeProvider coreport.TimeProvider) *HTTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPNotifier{
		cfg:          cfg,
		httpClient:   &http.Client{},
		timeProvider: timeProvider,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// Send posts one message to the given chat.
func (n *HTTPNotifier) Send(ctx context.Context, chatID string, text string) error {
	reqCtx, cancel := n.timeProvider.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Message: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.cfg.BaseURL+"/send-message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send message to chat %s: status %d", chatID, resp.StatusCode)
	}
	return nil
}
