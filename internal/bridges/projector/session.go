package projector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// eventQueueSize is the buffer size of the session event channel.
const eventQueueSize = 128

// Default session timing.
const (
	DefaultReconnectDelay     = 10 * time.Second
	DefaultStatusPollInterval = 30 * time.Second
	DefaultInfoPollInterval   = 5 * time.Minute
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the projector client surface the session drives.
// *pjlink.Client implements it.
type Transport interface {
	GetPowerState(reply pjlink.ReplyFunc)
	GetInput(reply pjlink.ReplyFunc)
	GetMute(reply pjlink.ReplyFunc)
	GetErrors(reply pjlink.ReplyFunc)
	GetLamps(reply pjlink.ReplyFunc)
	GetInputs(reply pjlink.ReplyFunc)
	GetName(reply pjlink.ReplyFunc)
	GetManufacturer(reply pjlink.ReplyFunc)
	GetModel(reply pjlink.ReplyFunc)
	GetInfo(reply pjlink.ReplyFunc)
	GetClass(reply pjlink.ReplyFunc)
	PowerOn(reply pjlink.ReplyFunc)
	PowerOff(reply pjlink.ReplyFunc)
	SetInput(code string, reply pjlink.ReplyFunc)
	SetMute(m pjlink.Mute, reply pjlink.ReplyFunc)
	Close() error
}

// Store is the slot store surface the session uses.
// *state.Store implements it.
type Store interface {
	Ensure(def state.Definition) (bool, error)
	Define(def state.Definition) error
	Get(id string) (state.Value, bool)
	Set(id string, val any, ack bool) error
	Subscribe(id string, h state.Handler) func()
}

// Ensure the real implementations satisfy the interfaces.
var (
	_ Transport = (*pjlink.Client)(nil)
	_ Store     = (*state.Store)(nil)
)

// Config holds the session timing.
type Config struct {
	// ReconnectDelay is the fixed backoff after a transport error.
	ReconnectDelay time.Duration

	// StatusPollInterval is the cadence of power/input/mute queries.
	StatusPollInterval time.Duration

	// InfoPollInterval is the cadence of the full information refresh.
	InfoPollInterval time.Duration
}

// Options bundles the session dependencies.
type Options struct {
	Config    Config
	Transport Transport
	Store     Store
	Logger    Logger

	// Scheduler defaults to the wall clock.
	Scheduler Scheduler
}

type eventKind int

const (
	eventStart eventKind = iota
	eventReply
	eventTimer
	eventControl
	eventStop
)

type event struct {
	kind eventKind

	// eventReply
	cmd   pjlink.Command
	value any
	err   error

	// eventTimer
	timer TimerName
	gen   uint64

	// eventControl
	change state.Change
}

// sessionContext is the mutable session data. Only the loop touches it.
type sessionContext struct {
	connected bool

	power      pjlink.PowerState
	powerKnown bool

	mute pjlink.Mute

	// lampSlots is the highest lamp index whose slots exist.
	lampSlots int

	// inputs is the last published input list, used to skip redundant
	// redefinitions of the input slot.
	inputs string
}

// Snapshot is a read-only view of the session for health and API callers.
type Snapshot struct {
	Connected    bool      `json:"connected"`
	PowerState   *int      `json:"power_state,omitempty"`
	LastReply    time.Time `json:"last_reply,omitzero"`
	RepliesTotal uint64    `json:"replies_total"`
	ErrorsTotal  uint64    `json:"errors_total"`
}

// Session maintains the connection to one projector.
//
// Thread Safety:
//   - Start, Stop and Snapshot are safe for concurrent use.
//   - All other state is owned by the event loop goroutine.
type Session struct {
	cfg       Config
	transport Transport
	store     Store
	logger    Logger

	timers *timerRegistry
	ctx    sessionContext

	events        chan event
	closing       atomic.Bool
	exited        chan struct{}
	started       atomic.Bool
	stopOnce      sync.Once
	unsubscribers []func()

	// Mirrors for Snapshot, written by the loop.
	connectedFlag atomic.Bool
	powerCode     atomic.Int32
	lastReply     atomic.Int64
	repliesTotal  atomic.Uint64
	errorsTotal   atomic.Uint64
}

// NewSession validates the options and creates an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, ErrTransportRequired
	}
	if opts.Store == nil {
		return nil, ErrStoreRequired
	}

	cfg := opts.Config
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.StatusPollInterval == 0 {
		cfg.StatusPollInterval = DefaultStatusPollInterval
	}
	if cfg.InfoPollInterval == 0 {
		cfg.InfoPollInterval = DefaultInfoPollInterval
	}
	if cfg.ReconnectDelay < 0 || cfg.StatusPollInterval < 0 || cfg.InfoPollInterval < 0 {
		return nil, ErrInvalidInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = realScheduler{}
	}

	s := &Session{
		cfg:       cfg,
		transport: opts.Transport,
		store:     opts.Store,
		logger:    logger,
		events:    make(chan event, eventQueueSize),
		exited:    make(chan struct{}),
	}
	s.powerCode.Store(-1)
	s.timers = newTimerRegistry(sched, func(name TimerName, gen uint64) {
		s.post(event{kind: eventTimer, timer: name, gen: gen})
	}, logger)

	return s, nil
}

// Start creates the static slots, subscribes to the control slots and
// launches the event loop. The loop stops when ctx is cancelled or Stop is
// called.
func (s *Session) Start(ctx context.Context) error {
	if s.closing.Load() {
		return ErrStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := s.prepare(); err != nil {
		return err
	}

	s.post(event{kind: eventStart})
	go s.loop(ctx)
	return nil
}

// prepare creates the static slots and subscribes to the control slots.
func (s *Session) prepare() error {
	for _, def := range staticDefinitions() {
		if _, err := s.store.Ensure(def); err != nil {
			return fmt.Errorf("creating slot %s: %w", def.ID, err)
		}
	}
	s.ctx.lampSlots = 1

	for _, id := range controlSlots {
		unsubscribe := s.store.Subscribe(id, func(change state.Change) {
			s.post(event{kind: eventControl, change: change})
		})
		s.unsubscribers = append(s.unsubscribers, unsubscribe)
	}
	return nil
}

// Stop tears the session down: timers are cancelled, the transport is
// closed and info.connection is published false. It never fails and is
// safe to call more than once, before Start, or after ctx cancellation.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if !s.started.Load() {
			s.handleStop()
			return
		}

		select {
		case s.events <- event{kind: eventStop}:
		case <-s.exited:
		}
		<-s.exited
	})
}

// Snapshot returns the current connectivity and power view.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Connected:    s.connectedFlag.Load(),
		RepliesTotal: s.repliesTotal.Load(),
		ErrorsTotal:  s.errorsTotal.Load(),
	}
	if code := s.powerCode.Load(); code >= 0 {
		c := int(code)
		snap.PowerState = &c
	}
	if ts := s.lastReply.Load(); ts > 0 {
		snap.LastReply = time.UnixMilli(ts)
	}
	return snap
}

// post hands an event to the loop. It blocks while the queue is full, and
// drops the event once teardown has begun.
func (s *Session) post(ev event) {
	if s.closing.Load() {
		return
	}
	select {
	case s.events <- ev:
	case <-s.exited:
	}
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.exited)

	for {
		select {
		case <-ctx.Done():
			s.handleStop()
			return
		case ev := <-s.events:
			if ev.kind == eventStop {
				s.handleStop()
				return
			}
			s.dispatch(ev)
		}
	}
}

// dispatch runs one event to completion.
func (s *Session) dispatch(ev event) {
	switch ev.kind {
	case eventStart:
		s.handleStart()
	case eventReply:
		s.handleReply(ev.cmd, ev.value, ev.err)
	case eventTimer:
		s.handleTimer(ev.timer, ev.gen)
	case eventControl:
		s.handleControl(ev.change)
	case eventStop:
		s.handleStop()
	}
}

// handleStart publishes the initial disconnected state and probes the
// projector once.
func (s *Session) handleStart() {
	s.logger.Info("projector session starting")
	s.publishConnection(false)
	s.transport.GetPowerState(s.replyTo(pjlink.CmdGetPowerState))
}

// handleTimer validates a firing and runs the timer's action.
func (s *Session) handleTimer(name TimerName, gen uint64) {
	if !s.timers.Fired(name, gen) {
		s.logger.Debug("discarding stale timer firing", "timer", name.String())
		return
	}

	switch name {
	case TimerReconnect:
		s.logger.Debug("reconnect timer fired, probing projector")
		s.transport.GetPowerState(s.replyTo(pjlink.CmdGetPowerState))
	case TimerStatusPoll:
		s.statusRefresh()
	case TimerInfoPoll:
		s.infoRefresh()
	}
}

// handleStop is best effort: it never propagates a failure.
func (s *Session) handleStop() {
	s.closing.Store(true)
	s.timers.CancelAll()

	for _, unsubscribe := range s.unsubscribers {
		unsubscribe()
	}
	s.unsubscribers = nil

	s.closeTransport()
	s.publishConnection(false)
	s.logger.Info("projector session stopped")
}

func (s *Session) closeTransport() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("closing transport panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("closing transport failed", "error", err)
	}
}

// enterDisconnected handles a transport error from any request.
func (s *Session) enterDisconnected(cmd pjlink.Command, err error) {
	s.errorsTotal.Add(1)
	s.logger.Warn("projector request failed", "command", string(cmd), "error", err)

	s.timers.Cancel(TimerStatusPoll)
	s.timers.Cancel(TimerInfoPoll)
	s.timers.Arm(TimerReconnect, s.cfg.ReconnectDelay)
	s.publishConnection(false)
}

// enterConnected handles the first successful reply while disconnected.
func (s *Session) enterConnected() {
	s.logger.Info("projector connected")

	s.timers.Cancel(TimerReconnect)
	if !s.timers.Armed(TimerStatusPoll) {
		s.timers.Arm(TimerStatusPoll, s.cfg.StatusPollInterval)
	}
	if !s.timers.Armed(TimerInfoPoll) {
		s.timers.Arm(TimerInfoPoll, s.cfg.InfoPollInterval)
	}
	s.publishConnection(true)
	s.infoRefresh()
}

// statusRefresh queries the fast-changing values.
func (s *Session) statusRefresh() {
	s.transport.GetPowerState(s.replyTo(pjlink.CmdGetPowerState))
	s.transport.GetInput(s.replyTo(pjlink.CmdGetInput))
	s.transport.GetMute(s.replyTo(pjlink.CmdGetMute))
}

// infoRefresh queries the descriptive values, then the status values.
func (s *Session) infoRefresh() {
	s.transport.GetErrors(s.replyTo(pjlink.CmdGetErrors))
	s.transport.GetLamps(s.replyTo(pjlink.CmdGetLamps))
	s.transport.GetInputs(s.replyTo(pjlink.CmdGetInputs))
	s.transport.GetName(s.replyTo(pjlink.CmdGetName))
	s.transport.GetManufacturer(s.replyTo(pjlink.CmdGetManufacturer))
	s.transport.GetModel(s.replyTo(pjlink.CmdGetModel))
	s.transport.GetInfo(s.replyTo(pjlink.CmdGetInfo))
	s.transport.GetClass(s.replyTo(pjlink.CmdGetClass))
	s.statusRefresh()
}

// replyTo builds the transport callback that routes a reply to the loop.
func (s *Session) replyTo(cmd pjlink.Command) pjlink.ReplyFunc {
	return func(value any, err error) {
		s.post(event{kind: eventReply, cmd: cmd, value: value, err: err})
	}
}

func (s *Session) publishConnection(connected bool) {
	s.ctx.connected = connected
	s.connectedFlag.Store(connected)
	s.write(SlotConnection, connected)
}

// write stores a device-confirmed value.
func (s *Session) write(id string, val any) {
	if err := s.store.Set(id, val, true); err != nil {
		s.logger.Error("writing slot failed", "slot", id, "error", err)
	}
}
