package qingping

import (
	"errors"
	"testing"
)

func TestNumberSpec_Validate(t *testing.T) {
	spec := NumberSpec{Key: SettingReportInterval, Min: 30, Max: 3600, Step: 10}

	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"minimum", 30, false},
		{"maximum", 3600, false},
		{"mid range", 600, false},
		{"below minimum", 20, true},
		{"above maximum", 3700, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := spec.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrValueOutOfRange) {
				t.Errorf("error = %v, want ErrValueOutOfRange", err)
			}
		})
	}
}

func TestNumberSpec_Quantize(t *testing.T) {
	intSpec := NumberSpec{Key: SettingCO2Offset, Min: -500, Max: 500, Step: 1}
	if got := intSpec.Quantize(42.7); got != 43 {
		t.Errorf("integer-step Quantize(42.7) = %v (%T), want 43", got, got)
	}

	floatSpec := NumberSpec{Key: SettingTempOffset, Min: -10, Max: 10, Step: 0.1}
	if got := floatSpec.Quantize(1.5); got != 1.5 {
		t.Errorf("fractional-step Quantize(1.5) = %v, want 1.5", got)
	}
}

func TestSelectSpec_DeviceValue(t *testing.T) {
	var tempUnit SelectSpec
	for _, s := range SelectSettings {
		if s.Key == SettingTempUnit {
			tempUnit = s
		}
	}

	v, err := tempUnit.DeviceValue("Fahrenheit")
	if err != nil {
		t.Fatalf("DeviceValue(Fahrenheit) error = %v", err)
	}
	if v != "F" {
		t.Errorf("DeviceValue(Fahrenheit) = %v, want F", v)
	}

	if _, err := tempUnit.DeviceValue("Kelvin"); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("DeviceValue(Kelvin) error = %v, want ErrValueOutOfRange", err)
	}
}

func TestSelectSpec_Label(t *testing.T) {
	var screensaver SelectSpec
	for _, s := range SelectSettings {
		if s.Key == SettingScreensaver {
			screensaver = s
		}
	}

	// Device snapshots arrive through JSON decoding, so integer options
	// come back as float64.
	label, ok := screensaver.Label(float64(2))
	if !ok || label != "All Readings Rotate" {
		t.Errorf("Label(2.0) = %q, %v, want All Readings Rotate", label, ok)
	}

	if _, ok := screensaver.Label(99); ok {
		t.Error("Label(99) matched, want no match")
	}
}

func TestCompanionKeys(t *testing.T) {
	got := CompanionKeys(SettingReportInterval)
	if len(got) != 2 {
		t.Fatalf("CompanionKeys(report_interval) = %v, want 2 keys", got)
	}
	if got[0] != SettingCollectInterval || got[1] != SettingPMSampling {
		t.Errorf("CompanionKeys = %v, want [collect_interval pm_sampling_interval]", got)
	}

	if extra := CompanionKeys(SettingScreensaver); extra != nil {
		t.Errorf("CompanionKeys(screensaver_type) = %v, want nil", extra)
	}
}

func TestCatalogue_NoDuplicateKeys(t *testing.T) {
	seen := make(map[string]bool)
	record := func(key string) {
		if seen[key] {
			t.Errorf("duplicate setting key in catalogue: %s", key)
		}
		seen[key] = true
	}

	for _, s := range NumberSettings {
		record(s.Key)
	}
	for _, s := range SelectSettings {
		record(s.Key)
	}
	for _, s := range SwitchSettings {
		record(s.Key)
	}
	for _, s := range TextSettings {
		record(s.Key)
	}
}
