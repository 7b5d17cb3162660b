package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/qingping-bridge/internal/device"
	"github.com/nerrad567/qingping-bridge/internal/entity"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/qingping-bridge/internal/qingping"
	"github.com/nerrad567/qingping-bridge/internal/watchdog"
)

// Bridge operation constants.
const (
	// defaultReportInterval is used for keepalive publishes until the
	// device has reported its own report_interval.
	defaultReportInterval = 60

	// defaultHealthInterval is the status publish cadence.
	defaultHealthInterval = 30 * time.Second

	// cloudSyncTimeout bounds the recovery call made when a device
	// crosses the critical silence threshold.
	cloudSyncTimeout = 30 * time.Second
)

// Bridge manages all adopted devices against one broker connection.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	store    Store
	recorder Recorder
	cloud    CloudSync
	notifier *AlertNotifier

	bridgeID       string
	version        string
	reportInterval int
	checkInterval  time.Duration
	keepaliveEvery time.Duration
	healthInterval time.Duration

	devices  map[string]*deviceRuntime
	deviceMu sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
	startedAt time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the broker surface the bridge depends on. The
// infrastructure client is adapted to it in cmd.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	IsConnected() bool
}

// Store loads the adopted device records. *device.SQLiteRepository
// satisfies it.
type Store interface {
	List(ctx context.Context) ([]*device.Record, error)
}

// Recorder persists readings to a time-series backend. Optional;
// *influxdb.Client satisfies it.
type Recorder interface {
	WriteReading(mac string, reading *qingping.Reading)
	WriteSignal(mac, ssid string, rssi int)
}

// CloudSync jolts a silent device via the vendor cloud. Optional.
type CloudSync interface {
	TriggerDeviceSync(ctx context.Context, mac string) error
}

// Logger is the bridge's structured logging interface.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// BridgeID identifies this bridge instance in status payloads.
	BridgeID string

	// Version is reported in status payloads.
	Version string

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// Store provides the adopted device records. Required.
	Store Store

	// Recorder is an optional time-series sink for readings.
	Recorder Recorder

	// Cloud is an optional vendor-cloud client used for critical
	// silence recovery.
	Cloud CloudSync

	// ReportInterval is the fallback reporting interval in seconds
	// for keepalive publishes. Zero means 60.
	ReportInterval int

	// WatchdogCheckInterval overrides the watchdog tick cadence.
	// Zero keeps the watchdog default.
	WatchdogCheckInterval time.Duration

	// KeepaliveInterval overrides how often each device gets its
	// interval configuration re-pushed. Zero keeps the watchdog
	// default.
	KeepaliveInterval time.Duration

	// HealthInterval is the status publish cadence. Zero means 30s.
	HealthInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// deviceRuntime bundles everything the bridge holds per device.
type deviceRuntime struct {
	record   *device.Record
	state    *device.State
	adapters []entity.Adapter
	dog      *watchdog.Watchdog
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, ErrNoMQTT
	}
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.BridgeID == "" {
		opts.BridgeID = "qingping-bridge"
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = defaultReportInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:           opts.MQTT,
		store:          opts.Store,
		recorder:       opts.Recorder,
		cloud:          opts.Cloud,
		notifier:       NewAlertNotifier(opts.MQTT),
		bridgeID:       opts.BridgeID,
		version:        opts.Version,
		reportInterval: opts.ReportInterval,
		checkInterval:  opts.WatchdogCheckInterval,
		keepaliveEvery: opts.KeepaliveInterval,
		healthInterval: opts.HealthInterval,
		devices:        make(map[string]*deviceRuntime),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      cancel,
		logger:         opts.Logger,
	}, nil
}

// Start loads devices from the store, subscribes the broker surfaces
// and begins watchdog and status reporting.
func (b *Bridge) Start(ctx context.Context) error {
	records, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	for _, rec := range records {
		if err := b.attachDevice(ctx, rec); err != nil {
			b.logError("failed to attach device", err, "mac", rec.MAC)
		}
	}

	topics := mqtt.Topics{}
	if err := b.mqtt.Subscribe(topics.AllDeviceUp(), 0, b.handleUplink); err != nil {
		return fmt.Errorf("subscribe to uplinks: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.AllAvailability(), 0, b.handleAvailability); err != nil {
		return fmt.Errorf("subscribe to availability: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.AllBridgeSet(), 0, b.handleSet); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	b.startedAt = time.Now()
	b.wg.Add(1)
	go b.statusLoop(ctx)

	b.logInfo("bridge started", "bridge_id", b.bridgeID, "devices", len(records))
	return nil
}

// Stop shuts the bridge down: watchdogs first, then the status loop.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.deviceMu.RLock()
		for _, rt := range b.devices {
			rt.dog.Stop()
		}
		b.deviceMu.RUnlock()

		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// AttachDevice adds one device at runtime, for wizard-driven adoption
// without a restart.
func (b *Bridge) AttachDevice(ctx context.Context, rec *device.Record) error {
	return b.attachDevice(ctx, rec)
}

// DeviceCount returns the number of managed devices.
func (b *Bridge) DeviceCount() int {
	b.deviceMu.RLock()
	defer b.deviceMu.RUnlock()
	return len(b.devices)
}

func (b *Bridge) attachDevice(ctx context.Context, rec *device.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	b.deviceMu.Lock()
	if _, exists := b.devices[rec.MAC]; exists {
		b.deviceMu.Unlock()
		return nil
	}
	b.deviceMu.Unlock()

	state := device.NewState(rec.MAC)
	rt := &deviceRuntime{
		record: rec,
		state:  state,
		adapters: entity.ForDevice(entity.Device{
			State:     state,
			Publisher: b.mqtt,
			TopicDown: rec.TopicDown,
		}),
	}

	dog, err := watchdog.New(watchdog.Config{
		MAC:               rec.MAC,
		CheckInterval:     b.checkInterval,
		KeepaliveInterval: b.keepaliveEvery,
		Keepalive:         func() error { return b.publishKeepalive(rt) },
		OnCritical:        func() { b.handleCritical(rec.MAC) },
		Notifier:          b.notifier,
		Logger:            b.watchdogLogger(),
	})
	if err != nil {
		return err
	}
	rt.dog = dog

	// Settings snapshots refresh the retained state document.
	state.OnSettings(func(map[string]any) { b.publishState(rt) })

	b.deviceMu.Lock()
	b.devices[rec.MAC] = rt
	b.deviceMu.Unlock()

	dog.Start(ctx)
	b.logInfo("device attached", "mac", rec.MAC, "name", rec.Name)
	return nil
}

func (b *Bridge) runtime(mac string) *deviceRuntime {
	b.deviceMu.RLock()
	defer b.deviceMu.RUnlock()
	return b.devices[mac]
}

// handleUplink dispatches one device message by its type tag.
func (b *Bridge) handleUplink(topic string, payload []byte) error {
	mac, ok := macFromTopic(topic, 1)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrUnknownDevice, topic)
	}
	rt := b.runtime(mac)
	if rt == nil {
		b.logDebug("uplink from unmanaged device", "mac", mac)
		return nil
	}

	env, err := qingping.DecodeEnvelope(payload)
	if err != nil {
		b.logWarn("dropping malformed uplink", "mac", mac, "error", err)
		return nil
	}

	now := time.Now()
	rt.state.MarkSeen(env.Type, now)
	rt.state.SetAvailability(true)
	rt.state.SetFirmware(env.Firmware)
	rt.dog.MarkDataReceived()

	switch env.Type {
	case qingping.TypeHeartbeat:
		b.logDebug("heartbeat", "mac", mac)

	case qingping.TypeSensorData, qingping.TypeBuffered:
		if reading := env.LatestReading(); reading != nil {
			rt.state.SetReading(reading, now)
		}
		if b.recorder != nil {
			// Buffered uploads carry a backlog; every element goes to
			// the time-series store at its own timestamp.
			for i := range env.SensorData {
				b.recorder.WriteReading(mac, &env.SensorData[i])
			}
		}

	case qingping.TypeStatus:
		if ssid := env.WiFiSSID(); ssid != "" {
			if rssi, ok := env.WiFiRSSI(); ok {
				rt.state.SetNetwork(ssid, rssi)
				if b.recorder != nil {
					b.recorder.WriteSignal(mac, ssid, rssi)
				}
			}
		}

	case qingping.TypeSettings:
		rt.state.ApplySettings(env.Setting)
		b.logInfo("settings snapshot applied", "mac", mac, "keys", len(env.Setting))

	case qingping.TypeAck:
		b.logDebug("ack received", "mac", mac, "id", env.ID)

	default:
		b.logWarn("unknown message type", "mac", mac, "type", env.Type)
	}

	b.maybeAck(rt, env, now)
	return nil
}

// maybeAck answers uplinks that set need_ack. Only data-bearing types
// are acknowledged; the firmware does not expect acks elsewhere.
func (b *Bridge) maybeAck(rt *deviceRuntime, env *qingping.Envelope, now time.Time) {
	if env.NeedAck != 1 {
		return
	}
	if env.Type != qingping.TypeSensorData && env.Type != qingping.TypeBuffered {
		return
	}
	payload, err := qingping.EncodeAck(env.ID, now.Unix())
	if err != nil {
		b.logError("failed to encode ack", err, "mac", rt.record.MAC)
		return
	}
	if err := b.mqtt.Publish(rt.record.TopicDown, payload, 0, false); err != nil {
		b.logWarn("failed to publish ack", "mac", rt.record.MAC, "error", err)
	}
}

// handleAvailability tracks the device's broker presence.
func (b *Bridge) handleAvailability(topic string, payload []byte) error {
	mac, ok := macFromTopic(topic, 2)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrUnknownDevice, topic)
	}
	rt := b.runtime(mac)
	if rt == nil {
		return nil
	}

	online := isOnlinePayload(payload)
	rt.state.SetAvailability(online)
	if !online {
		b.logInfo("device reported offline", "mac", mac)
	}
	return nil
}

// handleSet routes a command topic write to the matching adapter.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 {
		return fmt.Errorf("%w: topic %q", ErrUnknownKey, topic)
	}
	mac, key := parts[2], parts[4]

	rt := b.runtime(mac)
	if rt == nil {
		b.logWarn("set command for unmanaged device", "mac", mac)
		return fmt.Errorf("%w: %s", ErrUnknownDevice, mac)
	}

	adapter := entity.Lookup(rt.adapters, key)
	if adapter == nil {
		b.logWarn("set command for unknown key", "mac", mac, "key", key)
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	writable, ok := adapter.(entity.Writable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrReadOnlyKey, key)
	}

	if err := writable.SetValue(string(payload)); err != nil {
		b.logWarn("set command rejected", "mac", mac, "key", key, "error", err)
		return err
	}

	b.logInfo("setting written", "mac", mac, "key", key)
	b.publishState(rt)
	return nil
}

// publishKeepalive re-pushes the interval trio at the device's current
// reporting interval. Doubles as the watchdog's keepalive action.
func (b *Bridge) publishKeepalive(rt *deviceRuntime) error {
	interval := rt.state.ReportInterval(b.reportInterval)
	payload, err := qingping.EncodeSettings(rt.state.NextID(), map[string]any{
		qingping.SettingReportInterval:  interval,
		qingping.SettingCollectInterval: interval,
		qingping.SettingPMSampling:      interval,
	})
	if err != nil {
		return err
	}
	return b.mqtt.Publish(rt.record.TopicDown, payload, 0, false)
}

// handleCritical runs when a device crosses the critical silence
// threshold: ask the vendor cloud to push fresh MQTT settings.
func (b *Bridge) handleCritical(mac string) {
	if b.cloud == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, cloudSyncTimeout)
	defer cancel()

	if err := b.cloud.TriggerDeviceSync(ctx, mac); err != nil {
		b.logError("cloud recovery sync failed", err, "mac", mac)
		return
	}
	b.logInfo("cloud recovery sync triggered", "mac", mac)
}

// macFromTopic extracts the MAC segment at the given index.
func macFromTopic(topic string, index int) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) <= index || parts[index] == "" {
		return "", false
	}
	return parts[index], true
}

// isOnlinePayload interprets an availability payload. The upstream
// publishers are inconsistent about spelling, so all common truthy
// forms are accepted, case-insensitively.
func isOnlinePayload(payload []byte) bool {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "online", "true", "1", "on":
		return true
	default:
		return false
	}
}

// watchdogLogger converts the current logger for watchdog use.
func (b *Bridge) watchdogLogger() watchdog.Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger == nil {
		return nil
	}
	return b.logger
}

// SetLogger replaces the logger. Watchdogs created before the call keep
// the previous one.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	defer b.loggerMu.Unlock()
	b.logger = logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Error(msg, append(keysAndValues, "error", err)...)
	}
}
