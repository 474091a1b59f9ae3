package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Slot types.
const (
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeString  = "string"
)

// Default store settings.
const (
	// notifyQueueSize is the buffer size for change notifications.
	notifyQueueSize = 256
)

var (
	// ErrUnknownSlot is returned when writing a slot that has not been defined.
	ErrUnknownSlot = errors.New("state: unknown slot")

	// ErrReadOnly is returned for user writes to a slot without Write access.
	ErrReadOnly = errors.New("state: slot is read-only")

	// ErrInvalidDefinition is returned when a definition has no ID.
	ErrInvalidDefinition = errors.New("state: invalid slot definition")
)

// Definition describes one named slot.
type Definition struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Role   string            `json:"role"`
	Unit   string            `json:"unit,omitempty"`
	Read   bool              `json:"read"`
	Write  bool              `json:"write"`
	States map[string]string `json:"states,omitempty"`
}

// Value is the current content of a slot.
//
// Ack distinguishes device-confirmed values (true) from user-originated
// requests (false).
type Value struct {
	Val any       `json:"val"`
	Ack bool      `json:"ack"`
	TS  time.Time `json:"ts"`
}

// Change is delivered to subscribers and sinks after every Set.
type Change struct {
	ID    string `json:"id"`
	Value Value  `json:"value"`
}

// Handler receives change notifications for one slot.
type Handler func(Change)

// Sink mirrors the store to an external system.
//
// Sinks are called from the store's notification goroutine, one call at a
// time and in write order.
type Sink interface {
	DefinitionChanged(def Definition)
	ValueChanged(def Definition, change Change)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type notification struct {
	def      Definition
	change   *Change
	handlers []Handler
}

// Store holds slot definitions and values.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscribers and sinks run on a single notification goroutine, never on
//     the writer's goroutine, so a writer can never block on its own handler.
type Store struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	values map[string]Value
	subs   map[string][]Handler
	sinks  []Sink

	queue    chan notification
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dropped atomic.Uint64
	now     func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// NewStore creates an empty store and starts its notification worker.
func NewStore() *Store {
	s := &Store{
		defs:   make(map[string]Definition),
		values: make(map[string]Value),
		subs:   make(map[string][]Handler),
		queue:  make(chan notification, notifyQueueSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	s.wg.Add(1)
	go s.notifyLoop()
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	defer s.loggerMu.Unlock()
	s.logger = logger
}

// AddSink registers a mirror. Sinks added later do not see earlier writes.
func (s *Store) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Restore loads previously persisted definitions and values without
// notifying subscribers or sinks.
func (s *Store) Restore(defs []Definition, values map[string]Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, def := range defs {
		s.defs[def.ID] = def
	}
	for id, v := range values {
		if _, ok := s.defs[id]; ok {
			s.values[id] = v
		}
	}
}

// Ensure creates the slot if it does not exist yet. An existing definition
// is left untouched. It reports whether the slot was created.
func (s *Store) Ensure(def Definition) (bool, error) {
	if def.ID == "" {
		return false, ErrInvalidDefinition
	}

	s.mu.Lock()
	if _, ok := s.defs[def.ID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.defs[def.ID] = def
	s.enqueueLocked(notification{def: def})
	s.mu.Unlock()
	return true, nil
}

// Define creates or replaces a slot definition. The current value is kept.
func (s *Store) Define(def Definition) error {
	if def.ID == "" {
		return ErrInvalidDefinition
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = def
	s.enqueueLocked(notification{def: def})
	return nil
}

// Definition returns the definition of a slot.
func (s *Store) Definition(id string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[id]
	return def, ok
}

// Get returns the current value of a slot. ok is false when the slot is
// undefined or has never been written.
func (s *Store) Get(id string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	return v, ok
}

// Set writes a slot. User writes (ack=false) require Write access.
func (s *Store) Set(id string, val any, ack bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	if !ack && !def.Write {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}

	v := Value{Val: val, Ack: ack, TS: s.now()}
	s.values[id] = v

	change := Change{ID: id, Value: v}
	handlers := append([]Handler(nil), s.subs[id]...)
	s.enqueueLocked(notification{def: def, change: &change, handlers: handlers})
	return nil
}

// Subscribe registers h for changes of one slot. The returned function
// removes the subscription.
func (s *Store) Subscribe(id string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[id] = append(s.subs[id], h)
	idx := len(s.subs[id]) - 1

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			handlers := s.subs[id]
			if idx < len(handlers) {
				handlers[idx] = nil
			}
		})
	}
}

// Definitions returns all definitions sorted by ID.
func (s *Store) Definitions() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]Definition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Dropped returns the number of notifications discarded because the queue
// was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the notification worker after delivering what is queued.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// enqueueLocked hands a notification to the worker without blocking.
// Caller must hold s.mu.
func (s *Store) enqueueLocked(n notification) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- n:
	default:
		s.dropped.Add(1)
		s.logWarn("notification queue full, dropping", "slot", n.def.ID)
	}
}

func (s *Store) notifyLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			for {
				select {
				case n := <-s.queue:
					s.deliver(n)
				default:
					return
				}
			}
		case n := <-s.queue:
			s.deliver(n)
		}
	}
}

func (s *Store) deliver(n notification) {
	s.mu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.RUnlock()

	if n.change == nil {
		for _, sink := range sinks {
			s.safeCall(n.def.ID, func() { sink.DefinitionChanged(n.def) })
		}
		return
	}

	for _, h := range n.handlers {
		if h == nil {
			continue
		}
		s.safeCall(n.def.ID, func() { h(*n.change) })
	}
	for _, sink := range sinks {
		s.safeCall(n.def.ID, func() { sink.ValueChanged(n.def, *n.change) })
	}
}

// safeCall contains panics from subscribers and sinks.
func (s *Store) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logError("state handler panicked", "slot", id, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *Store) logWarn(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (s *Store) logError(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
