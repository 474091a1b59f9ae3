package projector

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
)

// HealthStatus is the bridge status published on the health topic.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
	HealthOffline  HealthStatus = "offline"
)

const defaultHealthInterval = 30 * time.Second

// HealthMessage is the retained payload on the bridge health topic.
type HealthMessage struct {
	DeviceID   string        `json:"device_id"`
	InstanceID string        `json:"instance_id"`
	Version    string        `json:"version,omitempty"`
	Status     HealthStatus  `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	UptimeSec  int64         `json:"uptime_seconds,omitempty"`
	Session    *Snapshot     `json:"session,omitempty"`
	Transport  *pjlink.Stats `json:"transport,omitempty"`

	// DroppedNotifications counts store changes the mirrors never saw.
	DroppedNotifications uint64 `json:"dropped_notifications,omitempty"`
}

// HealthPublisher is typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource reports transport counters. *pjlink.Client implements it.
type StatsSource interface {
	Stats() pjlink.Stats
}

// DropCounter reports discarded store notifications. *state.Store
// implements it.
type DropCounter interface {
	Dropped() uint64
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	DeviceID string
	Version  string
	Topic    string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Session   *Session
	Transport StatsSource
	Store     DropCounter
}

// HealthReporter periodically publishes the bridge health.
type HealthReporter struct {
	cfg        HealthReporterConfig
	instanceID string
	startTime  time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	publisher HealthPublisher
	logger    Logger
	mu        sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval == 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
		done:       make(chan struct{}),
		publisher:  cfg.Publisher,
	}
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// SetPublisher replaces the publisher. The MQTT client needs the reporter's
// LWT payload before it can connect, so it is attached after construction.
func (h *HealthReporter) SetPublisher(p HealthPublisher) {
	h.mu.Lock()
	h.publisher = p
	h.mu.Unlock()
}

func (h *HealthReporter) getPublisher() HealthPublisher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.publisher
}

// InstanceID identifies this process run in health messages.
func (h *HealthReporter) InstanceID() string {
	return h.instanceID
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best effort during shutdown
		h.publish(h.build(HealthStopping, "bridge stopping"))
	})
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(h.build(status, reason))
}

// LWTPayload returns the message the broker publishes if the bridge dies.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(HealthMessage{
		DeviceID:   h.cfg.DeviceID,
		InstanceID: h.instanceID,
		Status:     HealthOffline,
		Reason:     "connection lost",
		Timestamp:  time.Now().UTC(),
	})
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if p := h.getPublisher(); p == nil || !p.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Session != nil && !h.cfg.Session.Snapshot().Connected {
		return HealthDegraded, "projector unreachable"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) build(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		DeviceID:   h.cfg.DeviceID,
		InstanceID: h.instanceID,
		Version:    h.cfg.Version,
		Status:     status,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
		UptimeSec:  int64(time.Since(h.startTime).Seconds()),
	}
	if h.cfg.Session != nil {
		snap := h.cfg.Session.Snapshot()
		msg.Session = &snap
	}
	if h.cfg.Transport != nil {
		stats := h.cfg.Transport.Stats()
		msg.Transport = &stats
	}
	if h.cfg.Store != nil {
		msg.DroppedNotifications = h.cfg.Store.Dropped()
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	p := h.getPublisher()
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Publish(h.cfg.Topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.mu.RLock()
	logger := h.logger
	h.mu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
