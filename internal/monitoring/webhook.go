package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/model"
)

// sendAlerts delivers alerts to the configured webhook URL. Delivery is best
// effort; failures are logged and never fail the run.
func (m *Monitor) sendAlerts(ctx context.Context, alerts []model.Alert) int {
	m.mu.RLock()
	url := m.webhookURL
	m.mu.RUnlock()
	if url == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := m.sendWebhook(ctx, url, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.AlertType)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.AlertType)),
			zap.String("level", string(alert.AlertLevel)),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (m *Monitor) sendWebhook(ctx context.Context, url string, alert model.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
