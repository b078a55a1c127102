/*
webhook.go - HTTP dispatcher for external alerts

PURPOSE:
  POSTs finalized rosters as JSON to a configured endpoint (a chat bridge,
  usually). Only fires when the notification selects the external-alert
  channel; other channel selections are someone else's delivery problem.

SEE ALSO:
  - log.go: The always-on sibling
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// WEBHOOK DISPATCHER
// =============================================================================

type Webhook struct {
	URL    string
	Client *http.Client
}

var _ engine.Dispatcher = (*Webhook)(nil)

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the wire shape sent to the endpoint.
type webhookPayload struct {
	Scope       string              `json:"scope"` // "plan" or "counter"
	ID          string              `json:"id"`
	Subject     string              `json:"subject"`
	SentAt      string              `json:"sent_at"`
	Assignments []webhookAssignment `json:"assignments"`
}

type webhookAssignment struct {
	FriendlyNationID int64   `json:"friendly_nation_id"`
	TargetID         string  `json:"target_id,omitempty"`
	MatchScore       float64 `json:"match_score"`
	Status           string  `json:"status"`
	SquadID          string  `json:"squad_id,omitempty"`
}

func (w *Webhook) Dispatch(ctx context.Context, n engine.Notification) error {
	if !n.Channels.ExternalAlert {
		return nil
	}

	payload := webhookPayload{
		Scope:   "plan",
		Subject: n.Subject,
		SentAt:  n.SentAt.UTC().Format(time.RFC3339),
	}
	switch {
	case n.PlanID != nil:
		payload.ID = string(*n.PlanID)
	case n.CounterID != nil:
		payload.Scope = "counter"
		payload.ID = string(*n.CounterID)
	}
	for _, a := range n.Assignments {
		wa := webhookAssignment{
			FriendlyNationID: int64(a.FriendlyNationID),
			TargetID:         string(a.TargetID),
			MatchScore:       a.MatchScore.Float(),
			Status:           string(a.Status),
		}
		if a.SquadID != nil {
			wa.SquadID = string(*a.SquadID)
		}
		payload.Assignments = append(payload.Assignments, wa)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
