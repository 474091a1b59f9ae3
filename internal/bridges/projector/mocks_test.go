package projector

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// Test timing; distinct values let MockScheduler tell timers apart.
const (
	testReconnectDelay = 5 * time.Second
	testStatusInterval = 10 * time.Second
	testInfoInterval   = 60 * time.Second
)

// =============================================================================
// MockScheduler
// =============================================================================

type mockTimer struct {
	deadline time.Duration
	delay    time.Duration
	f        func()
	stopped  bool
	fired    bool
}

func (t *mockTimer) Stop() bool {
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// MockScheduler is a manual clock. Advance fires due timers synchronously.
type MockScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*mockTimer
}

func (m *MockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{deadline: m.now + d, delay: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that came due.
func (m *MockScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*mockTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && t.deadline <= m.now {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers with the given delay that are scheduled and not
// yet fired or stopped.
func (m *MockScheduler) Pending(delay time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.delay == delay && !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// =============================================================================
// MockTransport
// =============================================================================

type pendingReply struct {
	cmd   pjlink.Command
	reply pjlink.ReplyFunc
}

// MockTransport records requests and holds their reply functions until the
// test answers them.
type MockTransport struct {
	mu       sync.Mutex
	calls    []pjlink.Command
	pending  []pendingReply
	inputs   []string
	mutes    []pjlink.Mute
	closed   int
	closeErr error
	closeFn  func()
}

func (m *MockTransport) record(cmd pjlink.Command, reply pjlink.ReplyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd)
	m.pending = append(m.pending, pendingReply{cmd: cmd, reply: reply})
}

func (m *MockTransport) GetPowerState(r pjlink.ReplyFunc) { m.record(pjlink.CmdGetPowerState, r) }
func (m *MockTransport) GetInput(r pjlink.ReplyFunc)      { m.record(pjlink.CmdGetInput, r) }
func (m *MockTransport) GetMute(r pjlink.ReplyFunc)       { m.record(pjlink.CmdGetMute, r) }
func (m *MockTransport) GetErrors(r pjlink.ReplyFunc)     { m.record(pjlink.CmdGetErrors, r) }
func (m *MockTransport) GetLamps(r pjlink.ReplyFunc)      { m.record(pjlink.CmdGetLamps, r) }
func (m *MockTransport) GetInputs(r pjlink.ReplyFunc)     { m.record(pjlink.CmdGetInputs, r) }
func (m *MockTransport) GetName(r pjlink.ReplyFunc)       { m.record(pjlink.CmdGetName, r) }
func (m *MockTransport) GetManufacturer(r pjlink.ReplyFunc) {
	m.record(pjlink.CmdGetManufacturer, r)
}
func (m *MockTransport) GetModel(r pjlink.ReplyFunc) { m.record(pjlink.CmdGetModel, r) }
func (m *MockTransport) GetInfo(r pjlink.ReplyFunc)  { m.record(pjlink.CmdGetInfo, r) }
func (m *MockTransport) GetClass(r pjlink.ReplyFunc) { m.record(pjlink.CmdGetClass, r) }
func (m *MockTransport) PowerOn(r pjlink.ReplyFunc)  { m.record(pjlink.CmdPowerOn, r) }
func (m *MockTransport) PowerOff(r pjlink.ReplyFunc) { m.record(pjlink.CmdPowerOff, r) }

func (m *MockTransport) SetInput(code string, r pjlink.ReplyFunc) {
	m.mu.Lock()
	m.inputs = append(m.inputs, code)
	m.mu.Unlock()
	m.record(pjlink.CmdSetInput, r)
}

func (m *MockTransport) SetMute(mute pjlink.Mute, r pjlink.ReplyFunc) {
	m.mu.Lock()
	m.mutes = append(m.mutes, mute)
	m.mu.Unlock()
	m.record(pjlink.CmdSetMute, r)
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed++
	fn := m.closeFn
	err := m.closeErr
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return err
}

// Count returns how many times cmd was requested.
func (m *MockTransport) Count(cmd pjlink.Command) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls and pending replies.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.pending = nil
	m.inputs = nil
	m.mutes = nil
}

// Answer completes the oldest pending request for cmd.
func (m *MockTransport) Answer(t *testing.T, cmd pjlink.Command, value any, err error) {
	t.Helper()

	m.mu.Lock()
	idx := -1
	for i, p := range m.pending {
		if p.cmd == cmd {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		t.Fatalf("no pending %s request", cmd)
		return
	}
	p := m.pending[idx]
	m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	m.mu.Unlock()

	p.reply(value, err)
}

// =============================================================================
// MockStore
// =============================================================================

type storeWrite struct {
	id  string
	val any
	ack bool
}

// MockStore is a synchronous in-memory slot store.
type MockStore struct {
	mu       sync.Mutex
	defs     map[string]state.Definition
	values   map[string]state.Value
	writes   []storeWrite
	ensured  []string
	handlers map[string][]state.Handler
}

func NewMockStore() *MockStore {
	return &MockStore{
		defs:     make(map[string]state.Definition),
		values:   make(map[string]state.Value),
		handlers: make(map[string][]state.Handler),
	}
}

func (m *MockStore) Ensure(def state.Definition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[def.ID]; ok {
		return false, nil
	}
	m.defs[def.ID] = def
	m.ensured = append(m.ensured, def.ID)
	return true, nil
}

func (m *MockStore) Define(def state.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
	return nil
}

func (m *MockStore) Get(id string) (state.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[id]
	return v, ok
}

var errMockUnknownSlot = errors.New("mock: unknown slot")

func (m *MockStore) Set(id string, val any, ack bool) error {
	m.mu.Lock()
	if _, ok := m.defs[id]; !ok {
		m.mu.Unlock()
		return errMockUnknownSlot
	}
	v := state.Value{Val: val, Ack: ack}
	m.values[id] = v
	m.writes = append(m.writes, storeWrite{id: id, val: val, ack: ack})
	handlers := append([]state.Handler(nil), m.handlers[id]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(state.Change{ID: id, Value: v})
	}
	return nil
}

func (m *MockStore) Subscribe(id string, h state.Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[id] = append(m.handlers[id], h)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

// Val returns the current value of a slot, or nil.
func (m *MockStore) Val(id string) any {
	v, _ := m.Get(id)
	return v.Val
}

// Has reports whether a slot is defined.
func (m *MockStore) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.defs[id]
	return ok
}

// WritesTo returns all writes to one slot in order.
func (m *MockStore) WritesTo(id string) []storeWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storeWrite
	for _, w := range m.writes {
		if w.id == id {
			out = append(out, w)
		}
	}
	return out
}

// =============================================================================
// Helpers
// =============================================================================

type testHarness struct {
	session   *Session
	transport *MockTransport
	store     *MockStore
	sched     *MockScheduler
}

// newTestHarness builds a prepared but not running session. Tests drive it
// by answering requests and calling pump, which runs queued events on the
// test goroutine exactly as the loop would.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		transport: &MockTransport{},
		store:     NewMockStore(),
		sched:     &MockScheduler{},
	}

	s, err := NewSession(Options{
		Config: Config{
			ReconnectDelay:     testReconnectDelay,
			StatusPollInterval: testStatusInterval,
			InfoPollInterval:   testInfoInterval,
		},
		Transport: h.transport,
		Store:     h.store,
		Scheduler: h.sched,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := s.prepare(); err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	h.session = s
	return h
}

// pump dispatches every queued event.
func (h *testHarness) pump() {
	for {
		select {
		case ev := <-h.session.events:
			h.session.dispatch(ev)
		default:
			return
		}
	}
}

// answer replies to the oldest pending cmd and processes the outcome.
func (h *testHarness) answer(t *testing.T, cmd pjlink.Command, value any, err error) {
	t.Helper()
	h.transport.Answer(t, cmd, value, err)
	h.pump()
}

// advance moves the clock and processes any resulting events.
func (h *testHarness) advance(d time.Duration) {
	h.sched.Advance(d)
	h.pump()
}

// connect starts the session and completes the initial probe with Off.
func (h *testHarness) connect(t *testing.T) {
	t.Helper()
	h.session.handleStart()
	h.answer(t, pjlink.CmdGetPowerState, pjlink.PowerOff, nil)
}
