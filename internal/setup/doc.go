// Package setup adopts Qingping monitors into the bridge.
//
// Three entry paths all end in the same persisted device record:
//
//   - Manual: the operator supplies a MAC directly.
//   - Scan: listen on the qingping/# hierarchy for a discovery window
//     and offer the MACs that showed up.
//   - Cloud: log in to the developer portal, reconcile a private MQTT
//     config against the local broker, then bind (or rebind) the
//     account's monitors so they start publishing locally.
//
// The wizard is deliberately headless: callers drive it from a CLI or
// an API and render its results however they like.
package setup
