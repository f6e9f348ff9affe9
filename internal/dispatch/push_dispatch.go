package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/taxi-admin/internal/models"
)

// Notifier tells a driver their request was honored.
type Notifier interface {
	AssignmentConfirmed(driver models.Driver, hireID string) error
}

// PushNotifier posts to the push provider's HTTP endpoint using the
// driver's registered player id.
type PushNotifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewPushNotifier(endpoint, key string) *PushNotifier {
	return &PushNotifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (p *PushNotifier) AssignmentConfirmed(driver models.Driver, hireID string) error {
	if driver.OneSignalPlayerID == "" {
		return fmt.Errorf("driver %s has no registered device", driver.ID)
	}
	body := map[string]any{
		"player_id": driver.OneSignalPlayerID,
		"data": map[string]any{
			"type":    "hire_assigned",
			"hire_id": hireID,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push provider status %d", resp.StatusCode)
	}
	return nil
}
