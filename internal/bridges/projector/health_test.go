package projector

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// MockPublisher records health publishes.
type MockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
	err       error
}

func (m *MockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (m *MockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockPublisher) last(t *testing.T) HealthMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("nothing published")
	}
	var msg HealthMessage
	if err := json.Unmarshal(m.messages[len(m.messages)-1].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	return msg
}

func (m *MockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type fixedStats pjlink.Stats

func (f fixedStats) Stats() pjlink.Stats { return pjlink.Stats(f) }

type fixedDrops uint64

func (f fixedDrops) Dropped() uint64 { return uint64(f) }

func TestHealthReporter_Status(t *testing.T) {
	tests := []struct {
		name       string
		mqtt       bool
		projector  bool
		wantStatus HealthStatus
		wantReason string
	}{
		{name: "healthy", mqtt: true, projector: true, wantStatus: HealthHealthy},
		{name: "projector down", mqtt: true, wantStatus: HealthDegraded, wantReason: "projector unreachable"},
		{name: "mqtt down", projector: true, wantStatus: HealthDegraded, wantReason: "MQTT disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			if tt.projector {
				h.connect(t)
			}
			pub := &MockPublisher{connected: tt.mqtt}

			r := NewHealthReporter(HealthReporterConfig{
				DeviceID:  "projector-1",
				Version:   "1.2.3",
				Topic:     "graylogic/health/pjlink/projector-1",
				Publisher: pub,
				Session:   h.session,
				Transport: fixedStats{RequestsTotal: 7},
			})

			if err := r.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}

			msg := pub.last(t)
			if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason {
				t.Errorf("status = %q (%q), want %q (%q)", msg.Status, msg.Reason, tt.wantStatus, tt.wantReason)
			}
			if msg.DeviceID != "projector-1" || msg.InstanceID != r.InstanceID() {
				t.Errorf("identity = %q/%q", msg.DeviceID, msg.InstanceID)
			}
			if msg.Session == nil || msg.Session.Connected != tt.projector {
				t.Errorf("session snapshot = %+v", msg.Session)
			}
			if msg.Transport == nil || msg.Transport.RequestsTotal != 7 {
				t.Errorf("transport stats = %+v", msg.Transport)
			}

			pub.mu.Lock()
			m := pub.messages[0]
			pub.mu.Unlock()
			if m.topic != "graylogic/health/pjlink/projector-1" || m.qos != 1 || !m.retained {
				t.Errorf("publish = %s qos=%d retained=%v", m.topic, m.qos, m.retained)
			}
		})
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	pub := &MockPublisher{connected: true}
	r := NewHealthReporter(HealthReporterConfig{
		DeviceID:  "projector-1",
		Topic:     "graylogic/health/pjlink/projector-1",
		Interval:  time.Hour,
		Publisher: pub,
	})

	r.Start(context.Background())
	waitFor(t, "initial health", func() bool { return pub.count() == 1 })

	r.Stop()
	r.Stop()

	if got := pub.count(); got != 2 {
		t.Fatalf("published %d messages, want 2", got)
	}
	if msg := pub.last(t); msg.Status != HealthStopping {
		t.Errorf("final status = %q, want %q", msg.Status, HealthStopping)
	}
}

func TestHealthReporter_PublishError(t *testing.T) {
	wantErr := errors.New("not connected")
	r := NewHealthReporter(HealthReporterConfig{
		Topic:     "graylogic/health/pjlink/projector-1",
		Publisher: &MockPublisher{err: wantErr},
	})

	if err := r.PublishNow(); !errors.Is(err, wantErr) {
		t.Errorf("PublishNow() error = %v, want %v", err, wantErr)
	}
}

func TestHealthReporter_LWTPayload(t *testing.T) {
	r := NewHealthReporter(HealthReporterConfig{DeviceID: "projector-1"})

	payload, err := r.LWTPayload()
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}

	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != HealthOffline || msg.InstanceID != r.InstanceID() {
		t.Errorf("LWT = %+v", msg)
	}
}

func TestHealthReporter_SetPublisher(t *testing.T) {
	r := NewHealthReporter(HealthReporterConfig{Topic: "graylogic/health/pjlink/projector-1"})

	// Without a publisher there is nothing to do.
	if err := r.PublishNow(); err != nil {
		t.Fatalf("PublishNow() without publisher error = %v", err)
	}

	pub := &MockPublisher{connected: true}
	r.SetPublisher(pub)
	if err := r.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}
	if pub.count() != 1 {
		t.Errorf("publishes = %d, want 1", pub.count())
	}
	if msg := pub.last(t); msg.Status != HealthHealthy {
		t.Errorf("status = %q, want %q", msg.Status, HealthHealthy)
	}
}

func TestHealthReporter_DroppedNotifications(t *testing.T) {
	pub := &MockPublisher{connected: true}
	r := NewHealthReporter(HealthReporterConfig{
		Topic:     "graylogic/health/pjlink/projector-1",
		Publisher: pub,
		Store:     fixedDrops(4),
	})

	if err := r.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}
	if got := pub.last(t).DroppedNotifications; got != 4 {
		t.Errorf("dropped_notifications = %d, want 4", got)
	}
}
