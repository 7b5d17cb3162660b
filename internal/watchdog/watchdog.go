package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Errors returned by New.
var (
	ErrNoMAC        = errors.New("watchdog: device MAC is required")
	ErrNoKeepalive  = errors.New("watchdog: keepalive func is required")
	ErrBadIntervals = errors.New("watchdog: intervals must satisfy keepalive < warning < critical")
)

// Default intervals. The check cadence is deliberately shorter than the
// warning threshold so a silent device is noticed within one threshold
// window rather than two.
const (
	DefaultCheckInterval     = 5 * time.Minute
	DefaultWarningThreshold  = 10 * time.Minute
	DefaultCriticalThreshold = 30 * time.Minute
	DefaultKeepaliveInterval = 4 * time.Minute
)

// Severity levels passed to the Notifier.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notifier surfaces liveness alerts to the outside world. Notify raises
// or replaces an alert for the device; Dismiss clears it.
type Notifier interface {
	Notify(mac, severity, message string) error
	Dismiss(mac string) error
}

// Logger is the minimal logging interface the watchdog needs.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures a Watchdog. MAC, Keepalive and Notifier are
// required; zero intervals fall back to the defaults.
type Config struct {
	// MAC identifies the monitored device in logs and notifications.
	MAC string

	// CheckInterval is the background tick cadence.
	CheckInterval time.Duration

	// WarningThreshold is the silence duration that raises a warning.
	WarningThreshold time.Duration

	// CriticalThreshold is the silence duration that escalates to
	// critical and fires OnCritical.
	CriticalThreshold time.Duration

	// KeepaliveInterval is how often the interval configuration is
	// re-pushed to the device.
	KeepaliveInterval time.Duration

	// Keepalive re-publishes the reporting interval configuration.
	Keepalive func() error

	// OnCritical runs once when the critical threshold is crossed,
	// typically a cloud-side sync to jolt the device back to MQTT.
	OnCritical func()

	// Notifier receives warning and critical alerts. Required.
	Notifier Notifier

	// Logger receives watchdog events. Optional.
	Logger Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Watchdog monitors a single device for silence. Safe for concurrent
// use; MarkDataReceived may be called from any goroutine.
type Watchdog struct {
	mac       string
	check     time.Duration
	warning   time.Duration
	critical  time.Duration
	keepalive time.Duration

	sendKeepalive func() error
	onCritical    func()
	notifier      Notifier
	logger        Logger
	now           func() time.Time

	mu            sync.Mutex
	lastData      time.Time
	lastKeepalive time.Time
	warningSent   bool
	criticalSent  bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watchdog from cfg. It does not start monitoring; call
// Start for that.
func New(cfg Config) (*Watchdog, error) {
	if cfg.MAC == "" {
		return nil, ErrNoMAC
	}
	if cfg.Keepalive == nil {
		return nil, ErrNoKeepalive
	}
	if cfg.Notifier == nil {
		return nil, errors.New("watchdog: notifier is required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = DefaultCriticalThreshold
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.KeepaliveInterval >= cfg.WarningThreshold || cfg.WarningThreshold >= cfg.CriticalThreshold {
		return nil, ErrBadIntervals
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Watchdog{
		mac:           cfg.MAC,
		check:         cfg.CheckInterval,
		warning:       cfg.WarningThreshold,
		critical:      cfg.CriticalThreshold,
		keepalive:     cfg.KeepaliveInterval,
		sendKeepalive: cfg.Keepalive,
		onCritical:    cfg.OnCritical,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		now:           cfg.Now,
		done:          make(chan struct{}),
	}, nil
}

// Start launches the background check loop. The loop stops when ctx is
// cancelled or Stop is called.
func (w *Watchdog) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop terminates the check loop and waits for it to exit. Safe to call
// multiple times.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

// MarkDataReceived records that the device just produced data. Sticky
// warning and critical states are cleared and any active notification
// is dismissed.
func (w *Watchdog) MarkDataReceived() {
	w.mu.Lock()
	w.lastData = w.now()
	hadAlert := w.warningSent || w.criticalSent
	w.warningSent = false
	w.criticalSent = false
	w.mu.Unlock()

	if hadAlert {
		if err := w.notifier.Dismiss(w.mac); err != nil && w.logger != nil {
			w.logger.Warn("failed to dismiss liveness alert", "mac", w.mac, "error", err)
		}
		if w.logger != nil {
			w.logger.Info("device recovered, liveness alert cleared", "mac", w.mac)
		}
	}
}

func (w *Watchdog) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.checkOnce()
		}
	}
}

// checkOnce runs one liveness evaluation. Keepalive is considered
// before the thresholds so a struggling device keeps receiving its
// interval configuration even while an alert is active.
func (w *Watchdog) checkOnce() {
	now := w.now()

	w.mu.Lock()
	lastData := w.lastData
	keepaliveDue := now.Sub(w.lastKeepalive) >= w.keepalive
	w.mu.Unlock()

	// Nothing received yet: the device may still be joining the
	// broker, so neither keepalives nor alerts apply.
	if lastData.IsZero() {
		return
	}

	if keepaliveDue {
		w.pushKeepalive(now)
	}

	silence := now.Sub(lastData)

	w.mu.Lock()
	raiseCritical := silence >= w.critical && !w.criticalSent
	raiseWarning := !raiseCritical && silence >= w.warning && !w.warningSent && !w.criticalSent
	if raiseCritical {
		w.criticalSent = true
	}
	if raiseWarning {
		w.warningSent = true
	}
	w.mu.Unlock()

	switch {
	case raiseCritical:
		w.notify(SeverityCritical, fmt.Sprintf("no data from device for %s", silence.Round(time.Second)))
		if w.logger != nil {
			w.logger.Error("device silent past critical threshold", "mac", w.mac, "silence", silence)
		}
		if w.onCritical != nil {
			w.onCritical()
		}
	case raiseWarning:
		w.notify(SeverityWarning, fmt.Sprintf("no data from device for %s", silence.Round(time.Second)))
		if w.logger != nil {
			w.logger.Warn("device silent past warning threshold", "mac", w.mac, "silence", silence)
		}
		// Re-push the interval configuration right away; lost
		// settings are the most common cause of silence.
		w.pushKeepalive(now)
	}
}

// pushKeepalive re-sends the interval configuration. The keepalive
// clock only advances on success so failures are retried on the next
// check.
func (w *Watchdog) pushKeepalive(now time.Time) {
	if err := w.sendKeepalive(); err != nil {
		if w.logger != nil {
			w.logger.Warn("keepalive publish failed", "mac", w.mac, "error", err)
		}
		return
	}
	w.mu.Lock()
	w.lastKeepalive = now
	w.mu.Unlock()
}

func (w *Watchdog) notify(severity, message string) {
	if err := w.notifier.Notify(w.mac, severity, message); err != nil && w.logger != nil {
		w.logger.Warn("failed to publish liveness alert", "mac", w.mac, "severity", severity, "error", err)
	}
}
