package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the infrastructure MQTT client the mirror uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTMirror publishes slots as retained messages and turns messages on the
// set topics into user writes.
//
// Topic layout for device "hall":
//
//	graylogic/pjlink/hall/state/<slot>   retained Value JSON
//	graylogic/pjlink/hall/meta/<slot>    retained Definition JSON
//	graylogic/pjlink/hall/set/<slot>     user writes (inbound)
type MQTTMirror struct {
	client   MQTTClient
	store    *Store
	deviceID string
	qos      byte
	topics   mqtt.Topics
}

// NewMQTTMirror creates a mirror for one device's store.
func NewMQTTMirror(client MQTTClient, store *Store, deviceID string, qos byte) *MQTTMirror {
	return &MQTTMirror{client: client, store: store, deviceID: deviceID, qos: qos}
}

// Start subscribes to the set topics and registers the mirror as a sink.
func (m *MQTTMirror) Start() error {
	if err := m.client.Subscribe(m.topics.SlotSet(m.deviceID, "+"), m.qos, m.handleSet); err != nil {
		return fmt.Errorf("subscribing to set topics: %w", err)
	}
	m.store.AddSink(m)
	return nil
}

// Republish publishes every slot's metadata and current value. It covers
// slots restored from SQLite, which the store does not announce, and brokers
// that lost their retained messages while the bridge was disconnected.
func (m *MQTTMirror) Republish() {
	for _, def := range m.store.Definitions() {
		m.DefinitionChanged(def)
		if v, ok := m.store.Get(def.ID); ok {
			m.ValueChanged(def, Change{ID: def.ID, Value: v})
		}
	}
}

// DefinitionChanged publishes slot metadata.
func (m *MQTTMirror) DefinitionChanged(def Definition) {
	payload, err := json.Marshal(def)
	if err != nil {
		m.store.logError("marshalling slot definition", "slot", def.ID, "error", err)
		return
	}
	if err := m.client.Publish(m.topics.SlotMeta(m.deviceID, def.ID), payload, m.qos, true); err != nil {
		m.store.logWarn("publishing slot definition failed", "slot", def.ID, "error", err)
	}
}

// ValueChanged publishes the new slot value.
func (m *MQTTMirror) ValueChanged(_ Definition, change Change) {
	payload, err := json.Marshal(change.Value)
	if err != nil {
		m.store.logError("marshalling slot value", "slot", change.ID, "error", err)
		return
	}
	if err := m.client.Publish(m.topics.SlotState(m.deviceID, change.ID), payload, m.qos, true); err != nil {
		m.store.logWarn("publishing slot value failed", "slot", change.ID, "error", err)
	}
}

// handleSet applies an inbound user write.
func (m *MQTTMirror) handleSet(topic string, payload []byte) error {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return fmt.Errorf("malformed set topic %q", topic)
	}
	id := topic[idx+1:]

	return m.store.Set(id, decodeSetPayload(payload), false)
}

// decodeSetPayload accepts {"val": x}, a bare JSON value, or plain text.
func decodeSetPayload(payload []byte) any {
	var wrapped struct {
		Val *json.RawMessage `json:"val"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Val != nil {
		payload = *wrapped.Val
	}

	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(payload))
}
