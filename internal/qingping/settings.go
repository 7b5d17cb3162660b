package qingping

import (
	"fmt"
	"math"
)

// Setting keys carried in type-28 snapshots and type-17 writes.
// This is the single catalogue; every component referring to a device
// setting uses these constants.
const (
	SettingReportInterval  = "report_interval"
	SettingCollectInterval = "collect_interval"
	SettingPMSampling      = "pm_sampling_interval"
	SettingDisplayOff      = "display_off_time"
	SettingPowerOff        = "power_off_time"
	SettingAutoSlide       = "auto_slideing_time"
	SettingNightStart      = "night_mode_start_time"
	SettingNightEnd        = "night_mode_end_time"
	SettingTimezone        = "timezone"
	SettingScreensaver     = "screensaver_type"
	Setting12Hour          = "is_12_hour_mode"
	SettingPM25Standard    = "pm25_standard"
	SettingTempUnit        = "temperature_unit"
	SettingCO2ASC          = "co2_asc"
	SettingCO2Offset       = "co2_offset"
	SettingCO2Zoom         = "co2_zoom"
	SettingPM25Offset      = "pm25_offset"
	SettingPM25Zoom        = "pm25_zoom"
	SettingPM10Offset      = "pm10_offset"
	SettingPM10Zoom        = "pm10_zoom"
	SettingPM25Calib       = "pm25_calib_mode"
	SettingTempOffset      = "temperature_offset"
	SettingTempZoom        = "temperature_zoom"
	SettingHumiOffset      = "humidity_offset"
	SettingHumiZoom        = "humidity_zoom"
	SettingPageSequence    = "page_sequence"
	SettingTempLED         = "temp_led_th"
	SettingHumiLED         = "humi_led_th"
	SettingCO2LED          = "co2_led_th"
	SettingPM25LED         = "pm25_led_th"
	SettingPM10LED         = "pm10_led_th"
)

// NumberSpec describes a numeric setting and its permitted range.
type NumberSpec struct {
	Key  string
	Name string
	Min  float64
	Max  float64
	Step float64
	Unit string
}

// Validate checks v against the permitted range.
func (s NumberSpec) Validate(v float64) error {
	if v < s.Min || v > s.Max {
		return fmt.Errorf("%w: %s=%v (allowed %v..%v)", ErrValueOutOfRange, s.Key, v, s.Min, s.Max)
	}
	return nil
}

// Quantize converts v to the wire representation: integer-stepped
// settings are written as integers, fractional steps keep the float.
func (s NumberSpec) Quantize(v float64) any {
	if s.Step >= 1 {
		return int(math.Round(v))
	}
	return v
}

// SelectSpec describes an enumerated setting. Options maps display
// labels to the wire values the device expects (int or string).
type SelectSpec struct {
	Key     string
	Name    string
	Labels  []string
	Options map[string]any
}

// DeviceValue resolves a display label to its wire value.
func (s SelectSpec) DeviceValue(label string) (any, error) {
	v, ok := s.Options[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q", ErrValueOutOfRange, s.Key, label)
	}
	return v, nil
}

// Label resolves a wire value back to its display label.
// Numeric wire values are compared loosely since JSON decoding yields
// float64 for what the catalogue stores as int.
func (s SelectSpec) Label(deviceValue any) (string, bool) {
	for label, v := range s.Options {
		if looseEqual(v, deviceValue) {
			return label, true
		}
	}
	return "", false
}

// SwitchSpec describes a boolean setting, written as 0/1.
type SwitchSpec struct {
	Key  string
	Name string
}

// TextSpec describes a free-form string setting.
type TextSpec struct {
	Key  string
	Name string
}

// NumberSettings lists every numeric setting the device accepts.
var NumberSettings = []NumberSpec{
	{SettingReportInterval, "Report Interval", 30, 3600, 10, "s"},
	{SettingCollectInterval, "Collect Interval", 30, 3600, 10, "s"},
	{SettingPMSampling, "PM Sampling Interval", 30, 3600, 10, "s"},
	{SettingDisplayOff, "Display Off Time", 0, 3600, 10, "s"},
	{SettingPowerOff, "Power Off Time", 0, 3600, 60, "s"},
	{SettingAutoSlide, "Auto Slide Time", 1, 600, 1, "s"},
	{SettingNightStart, "Night Mode Start", 0, 1440, 1, "min"},
	{SettingNightEnd, "Night Mode End", 0, 1440, 1, "min"},
	{SettingTimezone, "Timezone", -12, 14, 1, ""},
	{SettingCO2Offset, "CO2 Offset", -500, 500, 1, "ppm"},
	{SettingCO2Zoom, "CO2 Zoom", -100, 100, 1, "%"},
	{SettingPM25Offset, "PM2.5 Offset", -100, 100, 1, "µg/m³"},
	{SettingPM25Zoom, "PM2.5 Zoom", -100, 100, 1, "%"},
	{SettingPM10Offset, "PM10 Offset", -100, 100, 1, "µg/m³"},
	{SettingPM10Zoom, "PM10 Zoom", -100, 100, 1, "%"},
	{SettingTempOffset, "Temperature Offset", -10, 10, 0.1, "°C"},
	{SettingTempZoom, "Temperature Zoom", -100, 100, 1, "%"},
	{SettingHumiOffset, "Humidity Offset", -20, 20, 1, "%"},
	{SettingHumiZoom, "Humidity Zoom", -100, 100, 1, "%"},
}

// SelectSettings lists every enumerated setting.
var SelectSettings = []SelectSpec{
	{
		Key:    SettingScreensaver,
		Name:   "Screensaver",
		Labels: []string{"Default", "Current Reading Bounce", "All Readings Rotate", "Clock + Current", "Clock + Rotating"},
		Options: map[string]any{
			"Default":                0,
			"Current Reading Bounce": 1,
			"All Readings Rotate":    2,
			"Clock + Current":        3,
			"Clock + Rotating":       4,
		},
	},
	{
		Key:     SettingPM25Standard,
		Name:    "PM2.5 Standard",
		Labels:  []string{"US EPA", "China"},
		Options: map[string]any{"US EPA": 1, "China": 2},
	},
	{
		Key:     SettingTempUnit,
		Name:    "Temperature Unit",
		Labels:  []string{"Celsius", "Fahrenheit"},
		Options: map[string]any{"Celsius": "C", "Fahrenheit": "F"},
	},
	{
		Key:     SettingPM25Calib,
		Name:    "PM2.5 Calibration",
		Labels:  []string{"Factory", "Custom"},
		Options: map[string]any{"Factory": 0, "Custom": 1},
	},
}

// SwitchSettings lists every boolean setting.
var SwitchSettings = []SwitchSpec{
	{Setting12Hour, "12 Hour Mode"},
	{SettingCO2ASC, "CO2 Auto Calibration"},
}

// TextSettings lists every free-form string setting.
var TextSettings = []TextSpec{
	{SettingPageSequence, "Page Sequence"},
	{SettingTempLED, "Temperature LED Thresholds"},
	{SettingHumiLED, "Humidity LED Thresholds"},
	{SettingCO2LED, "CO2 LED Thresholds"},
	{SettingPM25LED, "PM2.5 LED Thresholds"},
	{SettingPM10LED, "PM10 LED Thresholds"},
}

// CompanionKeys returns the extra settings a write must carry alongside
// the given key. Writing report_interval alone leaves the firmware's
// collect and PM sampling cadence out of step, so all three travel
// together at the same value.
func CompanionKeys(key string) []string {
	if key == SettingReportInterval {
		return []string{SettingCollectInterval, SettingPMSampling}
	}
	return nil
}

// looseEqual compares wire values across JSON's numeric widening.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return aok && bok && af == bf
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
