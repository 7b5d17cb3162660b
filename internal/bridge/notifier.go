package bridge

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/qingping-bridge/internal/infrastructure/mqtt"
)

// AlertNotifier publishes device liveness alerts as retained messages
// on qingping/bridge/alert/{MAC}. Retention means a restarted consumer
// immediately sees any standing alert; Dismiss clears the retained
// message with an empty payload.
type AlertNotifier struct {
	publisher Publisher
	now       func() time.Time
}

// Publisher is the minimal publish surface the notifier needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// NewAlertNotifier builds a notifier over the given publish surface.
func NewAlertNotifier(publisher Publisher) *AlertNotifier {
	return &AlertNotifier{publisher: publisher, now: time.Now}
}

type alertPayload struct {
	MAC       string `json:"mac"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Notify raises or replaces the alert for a device.
func (n *AlertNotifier) Notify(mac, severity, message string) error {
	payload, err := json.Marshal(alertPayload{
		MAC:       mac,
		Severity:  severity,
		Message:   message,
		Timestamp: n.now().Unix(),
	})
	if err != nil {
		return err
	}
	return n.publisher.Publish(mqtt.Topics{}.BridgeAlert(mac), payload, 1, true)
}

// Dismiss clears the retained alert for a device.
func (n *AlertNotifier) Dismiss(mac string) error {
	return n.publisher.Publish(mqtt.Topics{}.BridgeAlert(mac), nil, 1, true)
}
