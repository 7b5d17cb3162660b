package setup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/qingping-bridge/internal/cloud"
	"github.com/nerrad567/qingping-bridge/internal/device"
	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Errors returned by the wizard.
var (
	ErrAlreadyAdopted = errors.New("setup: device already adopted")
	ErrNoPortal       = errors.New("setup: developer portal client not configured")
	ErrNoSubscriber   = errors.New("setup: mqtt subscriber not configured")
	ErrNothingFound   = errors.New("setup: no devices found")
)

// defaultScanWindow is how long a broker scan listens for uplinks.
const defaultScanWindow = 10 * time.Second

// Portal is the developer-portal surface the cloud flow needs.
// *cloud.DeveloperClient satisfies it.
type Portal interface {
	Login(ctx context.Context, account, password string) error
	Configs(ctx context.Context) ([]cloud.PortalConfig, error)
	CreateMQTTConfig(ctx context.Context, name string, broker cloud.BrokerParams) (int64, error)
	UpdateMQTTConfig(ctx context.Context, id int64, name string, broker cloud.BrokerParams) error
	Devices(ctx context.Context, hadPrivate bool) ([]cloud.PortalDevice, error)
	Bind(ctx context.Context, macs []string, configID int64) error
	Rebind(ctx context.Context, mac string, configID int64) error
}

// Store persists adopted devices. *device.SQLiteRepository satisfies
// it.
type Store interface {
	GetByMAC(ctx context.Context, mac string) (*device.Record, error)
	Create(ctx context.Context, rec *device.Record) error
	Update(ctx context.Context, rec *device.Record) error
}

// Subscriber is the broker surface the scan flow needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
}

// Logger is the wizard's optional logging interface.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// CloudDevice is one monitor as seen through the developer portal
// during the cloud flow.
type CloudDevice struct {
	MAC      string
	Name     string
	Bound    bool
	ConfigID int64
}

// Config configures a Wizard. Store is required; Portal and Subscriber
// are only needed for their respective flows.
type Config struct {
	Store      Store
	Portal     Portal
	Subscriber Subscriber

	// ScanWindow is how long Scan listens. Zero means 10s.
	ScanWindow time.Duration

	Logger Logger
}

// Wizard runs the adoption flows.
type Wizard struct {
	store      Store
	portal     Portal
	subscriber Subscriber
	scanWindow time.Duration
	logger     Logger
}

// New creates a wizard.
func New(cfg Config) (*Wizard, error) {
	if cfg.Store == nil {
		return nil, errors.New("setup: store is required")
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = defaultScanWindow
	}
	return &Wizard{
		store:      cfg.Store,
		portal:     cfg.Portal,
		subscriber: cfg.Subscriber,
		scanWindow: cfg.ScanWindow,
		logger:     cfg.Logger,
	}, nil
}

// Adopt creates and persists a record for one device. This is the
// manual entry path and the terminal step of the other two.
func (w *Wizard) Adopt(ctx context.Context, mac, name string) (*device.Record, error) {
	normalized, err := qingping.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	if existing, err := w.store.GetByMAC(ctx, normalized); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAdopted, normalized)
	} else if err != nil && !errors.Is(err, device.ErrNotFound) {
		return nil, err
	}

	rec, err := device.NewRecord(normalized, name)
	if err != nil {
		return nil, err
	}
	if err := w.store.Create(ctx, rec); err != nil {
		if errors.Is(err, device.ErrExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyAdopted, normalized)
		}
		return nil, err
	}

	if w.logger != nil {
		w.logger.Info("device adopted", "mac", normalized, "name", rec.Name)
	}
	return rec, nil
}

// Scan listens on the device topic hierarchy for the scan window and
// returns the MACs of unadopted devices that published during it,
// sorted for stable presentation.
func (w *Wizard) Scan(ctx context.Context) ([]string, error) {
	if w.subscriber == nil {
		return nil, ErrNoSubscriber
	}

	var (
		mu    sync.Mutex
		found = make(map[string]bool)
	)
	handler := func(topic string, payload []byte) error {
		parts := strings.Split(topic, "/")
		if len(parts) < 2 || !strings.EqualFold(parts[0], "qingping") {
			return nil
		}
		mac, err := qingping.NormalizeMAC(parts[1])
		if err != nil {
			return nil
		}
		mu.Lock()
		found[mac] = true
		mu.Unlock()
		return nil
	}

	const scanTopic = "qingping/#"
	if err := w.subscriber.Subscribe(scanTopic, 0, handler); err != nil {
		return nil, fmt.Errorf("setup: scan subscribe: %w", err)
	}
	defer func() {
		if err := w.subscriber.Unsubscribe(scanTopic); err != nil && w.logger != nil {
			w.logger.Warn("scan unsubscribe failed", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(w.scanWindow):
	}

	mu.Lock()
	defer mu.Unlock()
	var macs []string
	for mac := range found {
		if _, err := w.store.GetByMAC(ctx, mac); err == nil {
			continue // already adopted
		}
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	if w.logger != nil {
		w.logger.Info("broker scan complete", "found", len(macs))
	}
	return macs, nil
}

// Login authenticates the cloud flow against the developer portal.
func (w *Wizard) Login(ctx context.Context, account, password string) error {
	if w.portal == nil {
		return ErrNoPortal
	}
	return w.portal.Login(ctx, account, password)
}

// ReconcileBroker makes sure the portal holds a private MQTT config
// matching the local broker and returns its ID. An existing Air Monitor
// config whose broker differs is updated in place; none at all means a
// new one is created.
func (w *Wizard) ReconcileBroker(ctx context.Context, name string, broker cloud.BrokerParams) (int64, error) {
	if w.portal == nil {
		return 0, ErrNoPortal
	}

	configs, err := w.portal.Configs(ctx)
	if err != nil {
		return 0, err
	}

	for _, cfg := range configs {
		if cfg.Product.Code != cloud.ProductAirMonitorLite || cfg.NetworkConfig.Type != 1 {
			continue
		}
		m := cfg.NetworkConfig.MQTTConfig
		if m.Host != broker.Host || m.Port != broker.Port ||
			m.Username != broker.Username || m.Password != broker.Password {
			if w.logger != nil {
				w.logger.Info("updating portal config to match broker", "config_id", cfg.ID)
			}
			if err := w.portal.UpdateMQTTConfig(ctx, cfg.ID, cfg.Name, broker); err != nil {
				return 0, err
			}
		}
		return cfg.ID, nil
	}

	if w.logger != nil {
		w.logger.Info("no portal config for this broker, creating one", "name", name)
	}
	return w.portal.CreateMQTTConfig(ctx, name, broker)
}

// DiscoverCloud lists the account's monitors, bound and unbound alike.
func (w *Wizard) DiscoverCloud(ctx context.Context) ([]CloudDevice, error) {
	if w.portal == nil {
		return nil, ErrNoPortal
	}

	unbound, err := w.portal.Devices(ctx, false)
	if err != nil {
		return nil, err
	}
	bound, err := w.portal.Devices(ctx, true)
	if err != nil {
		return nil, err
	}

	devices := make([]CloudDevice, 0, len(unbound)+len(bound))
	for _, d := range unbound {
		devices = append(devices, CloudDevice{MAC: d.MAC, Name: d.Name})
	}
	for _, d := range bound {
		devices = append(devices, CloudDevice{
			MAC:      d.MAC,
			Name:     d.Name,
			Bound:    true,
			ConfigID: d.PrivateConfig.ID,
		})
	}
	return devices, nil
}

// Provision points the given cloud devices at configID and adopts
// them. Unbound devices are bound; already-bound ones are rebound so
// the firmware re-downloads the config. Devices already in the store
// are provisioned but not re-adopted. Per-device failures are logged
// and skipped.
func (w *Wizard) Provision(ctx context.Context, devices []CloudDevice, configID int64) ([]*device.Record, error) {
	if w.portal == nil {
		return nil, ErrNoPortal
	}

	var adopted []*device.Record
	for _, d := range devices {
		var err error
		if d.Bound {
			err = w.portal.Rebind(ctx, d.MAC, configID)
		} else {
			err = w.portal.Bind(ctx, []string{d.MAC}, configID)
		}
		if err != nil {
			if w.logger != nil {
				w.logger.Warn("provisioning failed", "mac", d.MAC, "error", err)
			}
			continue
		}

		rec, err := w.Adopt(ctx, d.MAC, d.Name)
		if err != nil {
			if errors.Is(err, ErrAlreadyAdopted) {
				continue
			}
			return adopted, err
		}
		rec.ConfigID = configID
		if err := w.store.Update(ctx, rec); err != nil {
			return adopted, err
		}
		adopted = append(adopted, rec)
	}
	return adopted, nil
}

// AutoAdopt runs the whole cloud flow: login, broker reconciliation,
// discovery, provisioning. Returns the records it adopted.
func (w *Wizard) AutoAdopt(ctx context.Context, account, password, configName string, broker cloud.BrokerParams) ([]*device.Record, error) {
	if err := w.Login(ctx, account, password); err != nil {
		return nil, err
	}

	configID, err := w.ReconcileBroker(ctx, configName, broker)
	if err != nil {
		return nil, err
	}

	devices, err := w.DiscoverCloud(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNothingFound
	}

	return w.Provision(ctx, devices, configID)
}
