package device

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// BrokerSettings records the MQTT connection details pushed to a device
// during provisioning. Kept so a rebind can reproduce the exact cloud
// configuration the device was bound to.
type BrokerSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

// Record is the persisted identity of an adopted device.
type Record struct {
	// ID is a UUID assigned at adoption time.
	ID string `json:"id"`

	// MAC is the device hardware address in normalised form
	// (12 uppercase hex digits, no separators).
	MAC string `json:"mac"`

	// Name is a human-assigned label. Defaults to the MAC.
	Name string `json:"name"`

	// TopicUp and TopicDown are the concrete MQTT topics this device
	// was provisioned with.
	TopicUp   string `json:"topic_up"`
	TopicDown string `json:"topic_down"`

	// ConfigID is the cloud private-config the device is bound to.
	// Zero when the device was adopted manually.
	ConfigID int64 `json:"config_id"`

	// Broker holds the connection details from the bound cloud config.
	Broker BrokerSettings `json:"broker"`

	// ReportInterval is the reporting cadence (seconds) last pushed to
	// the device.
	ReportInterval int `json:"report_interval"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord builds a Record for a freshly adopted device.
//
// The MAC is normalised and validated; topics are derived from it.
// Name defaults to the normalised MAC when empty.
//
// Returns:
//   - *Record: Record ready for persistence
//   - error: ErrInvalidRecord (wrapping the MAC failure) for a bad MAC
func NewRecord(mac, name string) (*Record, error) {
	normalised, err := qingping.NormalizeMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if name == "" {
		name = normalised
	}

	now := time.Now().UTC()
	return &Record{
		ID:             uuid.NewString(),
		MAC:            normalised,
		Name:           name,
		TopicUp:        fmt.Sprintf("qingping/%s/up", normalised),
		TopicDown:      fmt.Sprintf("qingping/%s/down", normalised),
		ReportInterval: 60,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Validate checks the record is fit for persistence.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if !qingping.ValidMAC(r.MAC) {
		return fmt.Errorf("%w: bad mac %q", ErrInvalidRecord, r.MAC)
	}
	if r.TopicUp == "" || r.TopicDown == "" {
		return fmt.Errorf("%w: missing topics", ErrInvalidRecord)
	}
	return nil
}
