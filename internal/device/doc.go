// Package device holds the bridge's view of Qingping monitors.
//
// Two layers live here:
//
//   - Record: the persisted identity of an adopted device (MAC, topics,
//     the broker credentials pushed during provisioning). Records are
//     stored in SQLite via Repository.
//   - State: the runtime state of a connected device (latest reading,
//     settings snapshot, availability, network info, downlink message
//     counter). State is held in memory and rebuilt from uplink traffic
//     after a restart.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	rec, err := repo.GetByMAC(ctx, "AABBCCDDEEFF")
//
//	state := device.NewState(rec.MAC)
//	state.SetReading(envelope.LatestReading(), time.Now())
//	id := state.NextID() // for the next downlink envelope
//
// # Thread Safety
//
// State methods are safe for concurrent use. Repository implementations
// rely on database/sql connection pooling for concurrency.
package device
