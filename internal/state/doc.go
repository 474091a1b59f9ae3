// Package state is the slot store the projector bridge publishes into.
//
// A slot is a named value with a definition (type, role, access). Every
// write carries an ack flag: true for values confirmed by the device, false
// for requests originating from a user. The session only reacts to user
// writes on its control slots.
//
// The store itself is in memory. Sinks mirror it outward:
//   - MQTTMirror publishes retained state and accepts writes on set topics
//   - Repository persists definitions and confirmed values to SQLite
//   - HistorySink records numeric values in InfluxDB
package state
