// Package entity projects device state onto typed control surfaces.
//
// Each adapter exposes one device setting (number, select, switch,
// text) or one read-only sensor channel. Setting adapters share the
// device's settings map as their single source of truth: reads come
// straight from the map, and a write validates the value against the
// setting's domain, records it optimistically, then publishes a
// settings envelope to the device command topic. No acknowledgement is
// awaited; a later type-28 snapshot is free to overwrite the
// optimistic value.
//
// A setting adapter reports unavailable until the key has appeared in
// a snapshot. Nothing is synthesized: if the device never reported
// report_interval, the adapter for it stays unavailable.
//
// ForDevice builds the complete adapter set for one device from the
// settings catalogue and the fixed sensor list.
package entity
