// Package api serves the bridge's slots over HTTP and WebSocket.
//
// Routes:
//
//	GET  /api/v1/health       bridge and projector session status
//	GET  /api/v1/slots        all slot definitions with current values
//	GET  /api/v1/slots/{id}   one slot
//	PUT  /api/v1/slots/{id}   user write, body {"val": ...}
//	GET  /api/v1/ws           WebSocket event stream
//
// A PUT is applied to the state store with ack=false exactly as an MQTT set
// message would be; the projector session picks it up from there and the
// confirmed value follows later with ack=true.
//
// WebSocket clients subscribe to channels ("slot.changed", "slot.defined").
// The Hub is registered as a state store sink, so every store change is
// broadcast to subscribed clients.
package api
