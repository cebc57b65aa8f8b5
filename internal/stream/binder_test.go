package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
)

// mockEmitter records sent events and can be made to fail.
type mockEmitter struct {
	mu     sync.Mutex
	events []Event
	closed bool
	fail   bool
}

func (m *mockEmitter) Send(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("transport gone")
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEmitter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEmitter) sent() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockEmitter) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockEmitter) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func testBinder() *Binder {
	return NewBinder(30*time.Second, logging.Default())
}

func TestBindAndEmit(t *testing.T) {
	bd := testBinder()
	em := &mockEmitter{}

	if err := bd.Bind("s1", "1.2.3.4", "sse", em); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	if err := bd.Emit("s1", EventTypeObject, []byte(`{"on":true}`)); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if err := bd.Emit("s1", EventTypeObject, []byte(`{"on":false}`)); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	events := em.sent()
	if len(events) != 2 {
		t.Fatalf("events sent = %d, want 2", len(events))
	}
	if events[0].ID != 1 || events[1].ID != 2 {
		t.Errorf("event ids = %d, %d, want 1, 2", events[0].ID, events[1].ID)
	}
	if events[0].Type != EventTypeObject {
		t.Errorf("event type = %q, want %q", events[0].Type, EventTypeObject)
	}
}

func TestBind_SecondRejected(t *testing.T) {
	bd := testBinder()

	if err := bd.Bind("s1", "1.2.3.4", "sse", &mockEmitter{}); err != nil {
		t.Fatalf("first Bind() error = %v", err)
	}

	err := bd.Bind("s1", "5.6.7.8", "sse", &mockEmitter{})
	if !errors.Is(err, ErrEmitterAlreadyBound) {
		t.Fatalf("second Bind() error = %v, want ErrEmitterAlreadyBound", err)
	}

	var bound *AlreadyBoundError
	if !errors.As(err, &bound) {
		t.Fatalf("error %v should be an AlreadyBoundError", err)
	}
	if bound.SessionID != "s1" || bound.ExistingAddress != "1.2.3.4" {
		t.Errorf("conflict details = %s/%s, want s1/1.2.3.4", bound.SessionID, bound.ExistingAddress)
	}
}

func TestUnbindThenRebind(t *testing.T) {
	bd := testBinder()
	first := &mockEmitter{}

	if err := bd.Bind("s1", "1.2.3.4", "sse", first); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	bd.Unbind("s1")
	if !first.isClosed() {
		t.Error("unbind should close the emitter")
	}

	// Rebind with a new client address succeeds.
	if err := bd.Bind("s1", "5.6.7.8", "websocket", &mockEmitter{}); err != nil {
		t.Errorf("rebind after unbind error = %v", err)
	}

	// Event counter restarts for the new binding.
	if err := bd.Emit("s1", EventTypeObject, nil); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	snap, ok := bd.Get("s1")
	if !ok {
		t.Fatal("binding should exist")
	}
	if snap.EventsSent != 1 {
		t.Errorf("events sent on new binding = %d, want 1", snap.EventsSent)
	}
}

func TestUnbind_Idempotent(t *testing.T) {
	bd := testBinder()

	bd.Unbind("never-bound")

	if err := bd.Bind("s1", "1.2.3.4", "sse", &mockEmitter{}); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	bd.Unbind("s1")
	bd.Unbind("s1")

	if bd.Count() != 0 {
		t.Errorf("bindings = %d, want 0", bd.Count())
	}
}

func TestUnbindIf(t *testing.T) {
	bd := testBinder()
	stale := &mockEmitter{}

	if err := bd.Bind("s1", "1.2.3.4", "sse", stale); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	// Client explicitly unbinds and reconnects before the old
	// handler's teardown runs.
	bd.Unbind("s1")
	replacement := &mockEmitter{}
	if err := bd.Bind("s1", "5.6.7.8", "sse", replacement); err != nil {
		t.Fatalf("Bind() replacement error = %v", err)
	}

	bd.UnbindIf("s1", stale)
	if _, ok := bd.Get("s1"); !ok {
		t.Error("UnbindIf() with stale emitter tore down the replacement binding")
	}
	if replacement.isClosed() {
		t.Error("replacement emitter closed")
	}

	bd.UnbindIf("s1", replacement)
	if _, ok := bd.Get("s1"); ok {
		t.Error("UnbindIf() with current emitter left the binding in place")
	}
	if !replacement.isClosed() {
		t.Error("current emitter not closed by UnbindIf()")
	}
}

func TestEmit_NotBound(t *testing.T) {
	bd := testBinder()

	if err := bd.Emit("s1", EventTypeObject, nil); !errors.Is(err, ErrNotBound) {
		t.Errorf("Emit() error = %v, want ErrNotBound", err)
	}
}

func TestEmit_SendFailureUnbinds(t *testing.T) {
	bd := testBinder()
	em := &mockEmitter{}

	if err := bd.Bind("s1", "1.2.3.4", "sse", em); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	em.setFail(true)
	if err := bd.Emit("s1", EventTypeObject, nil); err == nil {
		t.Fatal("Emit() over a dead transport should fail")
	}

	if bd.Count() != 0 {
		t.Error("failed send should unbind the emitter")
	}
	if !em.isClosed() {
		t.Error("failed emitter should be closed")
	}

	// Session is free to bind again.
	if err := bd.Bind("s1", "5.6.7.8", "sse", &mockEmitter{}); err != nil {
		t.Errorf("rebind after failure error = %v", err)
	}
}

func TestHeartbeats(t *testing.T) {
	bd := testBinder()
	healthy := &mockEmitter{}
	dead := &mockEmitter{fail: true}

	if err := bd.Bind("s1", "1.2.3.4", "sse", healthy); err != nil {
		t.Fatalf("Bind(s1) error = %v", err)
	}
	if err := bd.Bind("s2", "5.6.7.8", "sse", dead); err != nil {
		t.Fatalf("Bind(s2) error = %v", err)
	}

	bd.sendHeartbeats()

	events := healthy.sent()
	if len(events) != 1 || events[0].Type != EventTypeHeartbeat {
		t.Errorf("healthy emitter events = %+v, want one HB", events)
	}

	// The dead binding is gone, the healthy one remains.
	if _, ok := bd.Get("s2"); ok {
		t.Error("dead binding should be unbound by heartbeat")
	}
	if _, ok := bd.Get("s1"); !ok {
		t.Error("healthy binding should survive heartbeat")
	}
}

func TestBindingsIndependent(t *testing.T) {
	bd := testBinder()

	var wg sync.WaitGroup
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		if err := bd.Bind(id, "1.2.3.4", "sse", &mockEmitter{}); err != nil {
			t.Fatalf("Bind(%s) error = %v", id, err)
		}
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = bd.Emit(sessionID, EventTypeObject, nil)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		snap, ok := bd.Get(id)
		if !ok {
			t.Fatalf("binding %s missing", id)
		}
		if snap.EventsSent != 50 {
			t.Errorf("session %s events = %d, want 50", id, snap.EventsSent)
		}
	}
}
