// Package notifications pushes experiment milestones to external webhooks so
// research staff hear about completed sessions without watching the dashboard.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"tradelab/experiment"
	"tradelab/helpers"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

// WebhookManager delivers notification payloads to a fixed set of URLs
// configured at startup.
type WebhookManager struct {
	urls   []string
	client *http.Client
}

// WebhookPayload is the JSON body sent on session completion.
type WebhookPayload struct {
	Event          string    `json:"event"`
	SessionID      int64     `json:"session_id"`
	Username       string    `json:"username"`
	CompletedAt    time.Time `json:"completed_at"`
	Expired        bool      `json:"expired"`
	TotalDecisions int       `json:"total_decisions"`
	AverageReturn  float64   `json:"average_return"`
	Message        string    `json:"message"`
}

// NewWebhookManager creates a manager for the given target URLs. An empty
// list disables delivery entirely.
func NewWebhookManager(urls []string) *WebhookManager {
	return &WebhookManager{
		urls: urls,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifySessionCompleted builds the completion payload and delivers it to
// every configured webhook asynchronously.
func (wm *WebhookManager) NotifySessionCompleted(username string, summary *experiment.SessionSummary, expired bool) {
	if len(wm.urls) == 0 {
		return
	}

	event := "session_completed"
	verb := "completed"
	if expired {
		event = "session_expired"
		verb = "timed out after"
	}
	message := fmt.Sprintf("📊 Session %d: %s %s %d decisions, avg return %s (capital base %s)",
		summary.SessionID,
		username,
		verb,
		summary.TotalDecisions,
		helpers.FormatPercent(summary.AverageReturn),
		helpers.FormatUSD(experiment.InitialCapital),
	)

	payload := WebhookPayload{
		Event:          event,
		SessionID:      summary.SessionID,
		Username:       username,
		CompletedAt:    time.Now(),
		Expired:        expired,
		TotalDecisions: summary.TotalDecisions,
		AverageReturn:  summary.AverageReturn,
		Message:        message,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, url := range wm.urls {
		go wm.deliver(url, payloadBytes)
	}
}

func (wm *WebhookManager) deliver(url string, payload []byte) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
		if err != nil {
			log.Printf("⚠️  Invalid webhook request for %s: %v", url, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "TradeLab-Notifier/1.0")

		log.Printf("🔹 Sending webhook to %s (Attempt %d/%d)", url, attempt, maxRetries)

		resp, err := wm.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			return
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Printf("❌ Webhook delivery to %s failed after %d attempts: %v", url, maxRetries, lastErr)
}
