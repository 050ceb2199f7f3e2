package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ridepool/internal/models"
)

// FCMDispatcher posts offers as data messages to an FCM HTTPv1 endpoint.
type FCMDispatcher struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMDispatcher(endpoint, key string) *FCMDispatcher {
	return &FCMDispatcher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMDispatcher) Offer(driverID string, offer models.MatchOffer) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"topic": "driver." + driverID,
			"data": map[string]interface{}{
				"ride_id":        offer.RideID,
				"passenger_id":   offer.PassengerID,
				"detour_seconds": fmt.Sprintf("%.0f", offer.DetourSeconds),
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fcm status %d", resp.StatusCode)
	}
	return nil
}
