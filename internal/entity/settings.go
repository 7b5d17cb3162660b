package entity

import (
	"fmt"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Number exposes a numeric setting with range validation.
type Number struct {
	dev  Device
	spec qingping.NumberSpec
}

// NewNumber builds a number adapter for one catalogue entry.
func NewNumber(dev Device, spec qingping.NumberSpec) *Number {
	return &Number{dev: dev, spec: spec}
}

func (n *Number) Key() string  { return n.spec.Key }
func (n *Number) Name() string { return n.spec.Name }

// Unit returns the display unit, empty for unitless settings.
func (n *Number) Unit() string { return n.spec.Unit }

func (n *Number) Available() bool {
	_, ok := n.dev.State.Setting(n.spec.Key)
	return ok
}

func (n *Number) Value() (any, bool) {
	raw, ok := n.dev.State.Setting(n.spec.Key)
	if !ok {
		return nil, false
	}
	f, err := toFloat(raw)
	if err != nil {
		return nil, false
	}
	return f, true
}

// SetValue validates v against the setting's range and publishes it.
// Interval settings carry their companion keys at the same value so the
// firmware's cadences stay in step.
func (n *Number) SetValue(value any) error {
	f, err := toFloat(value)
	if err != nil {
		return err
	}
	if err := n.spec.Validate(f); err != nil {
		return err
	}

	wire := n.spec.Quantize(f)
	settings := map[string]any{n.spec.Key: wire}
	for _, companion := range qingping.CompanionKeys(n.spec.Key) {
		settings[companion] = wire
	}
	return n.dev.writeSettings(settings)
}

// Select exposes an enumerated setting addressed by display label.
type Select struct {
	dev  Device
	spec qingping.SelectSpec
}

// NewSelect builds a select adapter for one catalogue entry.
func NewSelect(dev Device, spec qingping.SelectSpec) *Select {
	return &Select{dev: dev, spec: spec}
}

func (s *Select) Key() string  { return s.spec.Key }
func (s *Select) Name() string { return s.spec.Name }

// Labels returns the selectable display labels in catalogue order.
func (s *Select) Labels() []string { return s.spec.Labels }

func (s *Select) Available() bool {
	_, ok := s.dev.State.Setting(s.spec.Key)
	return ok
}

// Value returns the display label for the current wire value. A wire
// value outside the catalogue reads as unknown.
func (s *Select) Value() (any, bool) {
	raw, ok := s.dev.State.Setting(s.spec.Key)
	if !ok {
		return nil, false
	}
	label, ok := s.spec.Label(raw)
	if !ok {
		return nil, false
	}
	return label, true
}

func (s *Select) SetValue(value any) error {
	label, err := toString(value)
	if err != nil {
		return err
	}
	wire, err := s.spec.DeviceValue(label)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, s.spec.Key, label)
	}
	return s.dev.writeSettings(map[string]any{s.spec.Key: wire})
}

// Switch exposes a boolean setting, written as 0/1.
type Switch struct {
	dev  Device
	spec qingping.SwitchSpec
}

// NewSwitch builds a switch adapter for one catalogue entry.
func NewSwitch(dev Device, spec qingping.SwitchSpec) *Switch {
	return &Switch{dev: dev, spec: spec}
}

func (s *Switch) Key() string  { return s.spec.Key }
func (s *Switch) Name() string { return s.spec.Name }

func (s *Switch) Available() bool {
	_, ok := s.dev.State.Setting(s.spec.Key)
	return ok
}

func (s *Switch) Value() (any, bool) {
	raw, ok := s.dev.State.Setting(s.spec.Key)
	if !ok {
		return nil, false
	}
	b, err := toBool(raw)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *Switch) SetValue(value any) error {
	b, err := toBool(value)
	if err != nil {
		return err
	}
	wire := 0
	if b {
		wire = 1
	}
	return s.dev.writeSettings(map[string]any{s.spec.Key: wire})
}

// Text exposes a free-form string setting.
type Text struct {
	dev  Device
	spec qingping.TextSpec
}

// NewText builds a text adapter for one catalogue entry.
func NewText(dev Device, spec qingping.TextSpec) *Text {
	return &Text{dev: dev, spec: spec}
}

func (t *Text) Key() string  { return t.spec.Key }
func (t *Text) Name() string { return t.spec.Name }

func (t *Text) Available() bool {
	_, ok := t.dev.State.Setting(t.spec.Key)
	return ok
}

func (t *Text) Value() (any, bool) {
	raw, ok := t.dev.State.Setting(t.spec.Key)
	if !ok {
		return nil, false
	}
	s, err := toString(raw)
	if err != nil {
		return nil, false
	}
	return s, true
}

func (t *Text) SetValue(value any) error {
	s, err := toString(value)
	if err != nil {
		return err
	}
	return t.dev.writeSettings(map[string]any{t.spec.Key: s})
}
