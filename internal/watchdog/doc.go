// Package watchdog implements liveness monitoring for Qingping monitors.
//
// Each adopted device gets its own Watchdog. The bridge calls
// MarkDataReceived on every uplink; the watchdog ticks in the
// background and escalates when the device falls silent:
//
//   - warning threshold: raise a warning notification and immediately
//     re-push the reporting interval configuration (silent devices
//     sometimes just lose their settings)
//   - critical threshold: raise a critical notification and trigger the
//     cloud sync recovery callback
//
// Both escalations are sticky: once raised they do not repeat until
// fresh data arrives, which also dismisses the notification.
//
// A periodic keepalive re-pushes the interval configuration on its own
// cadence regardless of thresholds. A failed keepalive does not advance
// the keepalive clock, so the next check retries promptly.
//
// # Usage
//
//	wd, err := watchdog.New(watchdog.Config{
//	    MAC:       "AABBCCDDEEFF",
//	    Keepalive: pushIntervals,
//	    Notifier:  alerts,
//	})
//	wd.Start(ctx)
//	defer wd.Stop()
//
//	// on every uplink:
//	wd.MarkDataReceived()
package watchdog
