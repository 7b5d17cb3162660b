package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/qingping-bridge/internal/infrastructure/mqtt"
)

// statePayload is the retained per-device state document.
type statePayload struct {
	MAC       string         `json:"mac"`
	Available bool           `json:"available"`
	Values    map[string]any `json:"values"`
	Timestamp int64          `json:"timestamp"`
}

// publishState republishes the retained state document for one device.
// Only adapters with backing data appear in the values map.
func (b *Bridge) publishState(rt *deviceRuntime) {
	values := make(map[string]any)
	for _, a := range rt.adapters {
		if v, ok := a.Value(); ok {
			values[a.Key()] = v
		}
	}

	payload, err := json.Marshal(statePayload{
		MAC:       rt.record.MAC,
		Available: rt.state.Available(),
		Values:    values,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		b.logError("failed to encode state document", err, "mac", rt.record.MAC)
		return
	}

	topic := mqtt.Topics{}.BridgeState(rt.record.MAC)
	if err := b.mqtt.Publish(topic, payload, 0, true); err != nil {
		b.logWarn("failed to publish state document", "mac", rt.record.MAC, "error", err)
	}
}

// statusPayload is the periodic bridge health document.
type statusPayload struct {
	Status    string `json:"status"`
	BridgeID  string `json:"bridge_id"`
	Version   string `json:"version,omitempty"`
	Devices   int    `json:"devices"`
	Connected bool   `json:"mqtt_connected"`
	UptimeS   int64  `json:"uptime_s"`
	Timestamp int64  `json:"timestamp"`
}

// statusLoop periodically publishes a retained health document on the
// bridge status topic. The loop exits on ctx cancellation or Stop.
func (b *Bridge) statusLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.healthInterval)
	defer ticker.Stop()

	b.publishStatus("online")

	for {
		select {
		case <-ctx.Done():
			b.publishStatus("stopping")
			return
		case <-b.done:
			b.publishStatus("stopping")
			return
		case <-ticker.C:
			b.publishStatus("online")
		}
	}
}

func (b *Bridge) publishStatus(status string) {
	payload, err := json.Marshal(statusPayload{
		Status:    status,
		BridgeID:  b.bridgeID,
		Version:   b.version,
		Devices:   b.DeviceCount(),
		Connected: b.mqtt.IsConnected(),
		UptimeS:   int64(time.Since(b.startedAt).Seconds()),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		b.logError("failed to encode status", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.BridgeStatus(), payload, 0, true); err != nil {
		b.logWarn("failed to publish status", "error", err)
	}
}
