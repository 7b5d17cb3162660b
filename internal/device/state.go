package device

import (
	"sync"
	"time"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// State is the in-memory runtime state of a connected device.
//
// It accumulates what the uplink stream reveals: the latest reading,
// the most recent settings snapshot, availability, network details and
// firmware version. It also owns the monotonic counter used for
// downlink envelope IDs.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type State struct {
	mac string

	mu         sync.RWMutex
	settings   map[string]any
	reading    *qingping.Reading
	readingAt  time.Time
	available  bool
	wifiSSID   string
	wifiRSSI   int
	firmware   string
	lastType   string
	lastSeen   time.Time
	nextID     int64
	onSettings []func(map[string]any)
}

// NewState creates runtime state for a device identified by its
// normalised MAC.
func NewState(mac string) *State {
	return &State{
		mac:      mac,
		settings: make(map[string]any),
	}
}

// MAC returns the device hardware address.
func (s *State) MAC() string {
	return s.mac
}

// NextID returns the next downlink envelope ID.
// IDs are monotonic per device, starting at 1.
func (s *State) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// SetReading stores the latest decoded reading.
func (s *State) SetReading(r *qingping.Reading, at time.Time) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.reading = r
	s.readingAt = at
	s.mu.Unlock()
}

// Reading returns the latest reading and when it arrived.
// The reading is nil until the first sensor frame.
func (s *State) Reading() (*qingping.Reading, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading, s.readingAt
}

// ApplySettings merges a settings snapshot into the state and notifies
// observers. Used for type-28 frames and downlink echoes.
func (s *State) ApplySettings(settings map[string]any) {
	if len(settings) == 0 {
		return
	}
	s.mu.Lock()
	for k, v := range settings {
		s.settings[k] = v
	}
	snapshot := s.snapshotLocked()
	observers := make([]func(map[string]any), len(s.onSettings))
	copy(observers, s.onSettings)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// SetSetting records a single optimistic value after a write is sent,
// so entity reads reflect the commanded value before the device echoes
// its snapshot.
func (s *State) SetSetting(key string, value any) {
	s.mu.Lock()
	s.settings[key] = value
	s.mu.Unlock()
}

// Setting returns the current value for a settings key.
func (s *State) Setting(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok
}

// Settings returns a copy of the current settings map.
func (s *State) Settings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() map[string]any {
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// OnSettings registers an observer called with a settings snapshot
// after every ApplySettings. Observers must not block.
func (s *State) OnSettings(fn func(map[string]any)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onSettings = append(s.onSettings, fn)
	s.mu.Unlock()
}

// SetAvailability records the device's availability as reported on the
// external availability topic or inferred from uplink traffic.
func (s *State) SetAvailability(online bool) {
	s.mu.Lock()
	s.available = online
	s.mu.Unlock()
}

// Available reports whether the device is currently considered online.
func (s *State) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// SetNetwork records WiFi details from a status frame.
func (s *State) SetNetwork(ssid string, rssi int) {
	s.mu.Lock()
	s.wifiSSID = ssid
	s.wifiRSSI = rssi
	s.mu.Unlock()
}

// Network returns the last reported SSID and RSSI.
func (s *State) Network() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wifiSSID, s.wifiRSSI
}

// SetFirmware records the reported firmware version.
func (s *State) SetFirmware(version string) {
	if version == "" {
		return
	}
	s.mu.Lock()
	s.firmware = version
	s.mu.Unlock()
}

// Firmware returns the last reported firmware version.
func (s *State) Firmware() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firmware
}

// MarkSeen records the type and arrival time of the latest uplink.
func (s *State) MarkSeen(msgType string, at time.Time) {
	s.mu.Lock()
	s.lastType = msgType
	s.lastSeen = at
	s.mu.Unlock()
}

// LastSeen returns the type and arrival time of the latest uplink.
func (s *State) LastSeen() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastType, s.lastSeen
}

// ReportInterval returns the report_interval setting as an int,
// falling back to def when the device has not announced one.
func (s *State) ReportInterval(def int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[qingping.SettingReportInterval]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
