// Package projector keeps a long-lived session with one PJLink projector and
// projects its state into the slot store.
//
// Architecture:
//
//	pjlink reply ──┐
//	timer fire   ──┼──► events ──► Session loop ──► pjlink.Client (requests)
//	slot change  ──┘                   │
//	                                   └──► state.Store ──► MQTT / SQLite / InfluxDB
//
// Everything that mutates session data (connectivity, last power state, last
// mute pair, timer handles) runs on the loop goroutine, so none of it is
// locked. Transport replies, timer firings and user writes never touch the
// session directly; they post an event.
//
// Connectivity:
//
//   - Disconnected is the initial state. Any transport error re-enters it:
//     poll timers are cancelled, the reconnect timer is armed or refreshed,
//     and info.connection is published false.
//   - The first successful reply while disconnected enters Connected: the
//     reconnect timer is cancelled, both poll timers are armed, and a full
//     information refresh runs.
//   - Later successful replies only refresh the poll timer of their cadence.
//
// Command admission:
//
// Only user-originated writes (ack=false) on the power, input, videoMute and
// audioMute slots reach the projector. A power toggle is refused while the
// projector is warming up or cooling down.
package projector
