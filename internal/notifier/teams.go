package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// TeamsNotifier implements Microsoft Teams notifications
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(cfg *config.Config) *TeamsNotifier {
	return &TeamsNotifier{
		webhookURL: cfg.Notifiers.Teams.WebhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify posts the alert to the Teams channel
func (t *TeamsNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if len(alert.Items) == 0 {
		return nil
	}

	payload, err := t.generateTeamsPayload(alert)
	if err != nil {
		return fmt.Errorf("error generating Teams payload: %w", err)
	}
	return t.sendTeamsNotification(ctx, payload)
}

// generateTeamsPayload creates the Teams message payload
func (t *TeamsNotifier) generateTeamsPayload(alert models.Alert) ([]byte, error) {
	var facts []map[string]interface{}
	for _, item := range alert.Items {
		link := alert.BaseURL + item.ID
		facts = append(facts, map[string]interface{}{
			"name":  item.ID,
			"value": fmt.Sprintf("[%s](%s) %s", link, link, item.Tags),
		})
	}

	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "0076D7",
		"summary":    Subject(alert),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    Subject(alert),
				"activitySubtitle": fmt.Sprintf("Activity since UTC %s", alert.SinceUTC()),
				"text":             fmt.Sprintf("The following %s related to user %s were found:", alert.Objects, alert.User),
				"facts":            facts,
			},
		},
	}
	return json.Marshal(payload)
}

// sendTeamsNotification sends the notification to Microsoft Teams
func (t *TeamsNotifier) sendTeamsNotification(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: creating Teams request: %v", models.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		slog.Error("Failed to send Teams notification", "error", err)
		return fmt.Errorf("%w: failed to send Teams notification: %v", models.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Teams notification failed", "status", resp.StatusCode)
		return fmt.Errorf("%w: Teams notification failed with status: %d", models.ErrDelivery, resp.StatusCode)
	}

	slog.Info("Teams notification sent successfully")
	return nil
}
