package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/protocol"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// slowClient is a protocol client whose Start can be delayed or failed.
type slowClient struct {
	startDelay time.Duration
	startErr   error
	events     chan stream.Event
	closed     atomic.Bool
}

func newSlowClient(delay time.Duration, startErr error) *slowClient {
	return &slowClient{
		startDelay: delay,
		startErr:   startErr,
		events:     make(chan stream.Event),
	}
}

func (c *slowClient) Start(ctx context.Context) error {
	if c.startDelay > 0 {
		select {
		case <-time.After(c.startDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.startErr
}

func (c *slowClient) Events() <-chan stream.Event { return c.events }

func (c *slowClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.events)
	}
	return nil
}

// countingFactory counts how many clients it built.
type countingFactory struct {
	built    atomic.Int64
	delay    time.Duration
	startErr error
}

func (f *countingFactory) factory(_ protocol.Params) protocol.Client {
	f.built.Add(1)
	return newSlowClient(f.delay, f.startErr)
}

func testStore(factory protocol.Factory) *Store {
	cfg := config.SessionConfig{
		IdleTimeout:   15 * time.Minute,
		SweepInterval: time.Minute,
	}
	return NewStore(cfg, factory, logging.Default())
}

func TestOpen_GeneratesID(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)

	sess, created, err := st.Open(context.Background(), "", protocol.Params{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if sess.ID == "" {
		t.Error("session id should be generated")
	}
	if sess.State() != StateActive {
		t.Errorf("state = %q, want %q", sess.State(), StateActive)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)
	ctx := context.Background()

	first, created, err := st.Open(ctx, "s1", protocol.Params{})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if !created {
		t.Error("first open should create")
	}

	second, created, err := st.Open(ctx, "s1", protocol.Params{})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if created {
		t.Error("second open should not create")
	}
	if first != second {
		t.Error("both opens should return the same session")
	}
	if f.built.Load() != 1 {
		t.Errorf("clients built = %d, want 1", f.built.Load())
	}
}

func TestOpen_ConcurrentSameID(t *testing.T) {
	f := &countingFactory{delay: 10 * time.Millisecond}
	st := testStore(f.factory)
	ctx := context.Background()

	const callers = 10
	results := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess, _, err := st.Open(ctx, "shared", protocol.Params{})
			if err != nil {
				t.Errorf("Open() error = %v", err)
				return
			}
			results[n] = sess
		}(i)
	}
	wg.Wait()

	// All callers observe the same session, and only one client exists.
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different session", i)
		}
	}
	if f.built.Load() != 1 {
		t.Errorf("clients built = %d, want 1", f.built.Load())
	}
}

func TestOpen_FailedStartRetries(t *testing.T) {
	f := &countingFactory{startErr: errors.New("broker unreachable")}
	st := testStore(f.factory)
	ctx := context.Background()

	if _, _, err := st.Open(ctx, "s1", protocol.Params{}); err == nil {
		t.Fatal("Open() should fail when the client cannot start")
	}

	// No half-created session is left behind.
	if _, err := st.Get("s1"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Get() after failed open error = %v, want ErrUnknownSession", err)
	}

	// A later open retries with a fresh client.
	f.startErr = nil
	if _, created, err := st.Open(ctx, "s1", protocol.Params{}); err != nil || !created {
		t.Errorf("retry Open() = created %v, err %v; want created true, nil", created, err)
	}
}

func TestGet_Unknown(t *testing.T) {
	st := testStore((&countingFactory{}).factory)

	if _, err := st.Get("never-opened"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Get() error = %v, want ErrUnknownSession", err)
	}
}

func TestClose(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)
	ctx := context.Background()

	var unbound []string
	var mu sync.Mutex
	st.SetOnClose(func(id string) {
		mu.Lock()
		unbound = append(unbound, id)
		mu.Unlock()
	})

	sess, _, err := st.Open(ctx, "s1", protocol.Params{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := st.Close(ctx, "s1"); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("state = %q, want %q", sess.State(), StateClosed)
	}
	if _, err := st.Get("s1"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Get() after close error = %v, want ErrUnknownSession", err)
	}

	// Idempotent, and the hook fired once.
	if err := st.Close(ctx, "s1"); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	mu.Lock()
	hooks := len(unbound)
	mu.Unlock()
	if hooks != 1 {
		t.Errorf("onClose invocations = %d, want 1", hooks)
	}

	// A closed id re-opens as a new session.
	reopened, created, err := st.Open(ctx, "s1", protocol.Params{})
	if err != nil || !created {
		t.Fatalf("reopen = created %v, err %v; want created true, nil", created, err)
	}
	if reopened == sess {
		t.Error("reopened session should be a fresh instance")
	}
}

func TestSweep_ClosesIdleSessions(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)
	ctx := context.Background()

	if _, _, err := st.Open(ctx, "idle", protocol.Params{}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	st.sweepOnce(ctx, time.Now().Add(20*time.Minute))

	if _, err := st.Get("idle"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("idle session should be swept, Get() error = %v", err)
	}
}

func TestSweep_SparesRecentAndBound(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)
	ctx := context.Background()

	st.SetEmitterGate(func(id string) bool { return id == "bound" })

	for _, id := range []string{"bound", "fresh"} {
		if _, _, err := st.Open(ctx, id, protocol.Params{}); err != nil {
			t.Fatalf("Open(%s) error = %v", id, err)
		}
	}

	// "bound" is idle but has a live emitter; "fresh" just had activity.
	st.Touch("fresh")
	st.sweepOnce(ctx, time.Now().Add(time.Minute))

	if _, err := st.Get("bound"); err != nil {
		t.Errorf("bound session should survive the sweep: %v", err)
	}
	if _, err := st.Get("fresh"); err != nil {
		t.Errorf("fresh session should survive the sweep: %v", err)
	}
}

func TestOpen_SessionLimit(t *testing.T) {
	f := &countingFactory{}
	st := NewStore(config.SessionConfig{
		IdleTimeout: 15 * time.Minute,
		MaxSessions: 1,
	}, f.factory, logging.Default())
	ctx := context.Background()

	if _, _, err := st.Open(ctx, "s1", protocol.Params{}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, _, err := st.Open(ctx, "s2", protocol.Params{}); !errors.Is(err, ErrSessionLimit) {
		t.Errorf("over-limit Open() error = %v, want ErrSessionLimit", err)
	}

	// Re-entry of an existing session is not limited.
	if _, _, err := st.Open(ctx, "s1", protocol.Params{}); err != nil {
		t.Errorf("re-entry Open() error = %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	f := &countingFactory{}
	st := testStore(f.factory)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, _, err := st.Open(ctx, id, protocol.Params{}); err != nil {
			t.Fatalf("Open(%s) error = %v", id, err)
		}
	}

	st.CloseAll(ctx)
	if st.Count() != 0 {
		t.Errorf("sessions after CloseAll = %d, want 0", st.Count())
	}
}
