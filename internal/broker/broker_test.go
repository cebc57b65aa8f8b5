package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/junctionlabs/junction-core/internal/gateway"
	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
)

// mockSelector returns a canned instance or error, optionally blocking
// until released to exercise in-flight behaviour.
type mockSelector struct {
	mu      sync.Mutex
	inst    *gateway.Instance
	err     error
	block   chan struct{}
	selects int
}

func (m *mockSelector) SelectAvailable(t gateway.Type) (*gateway.Instance, error) {
	m.mu.Lock()
	m.selects++
	inst, err, block := m.inst, m.err, m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	snapshot := *inst
	snapshot.Type = t
	return &snapshot, nil
}

func (m *mockSelector) selectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selects
}

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{GrantLogRetention: 4}
}

func testInstance() *gateway.Instance {
	return &gateway.Instance{
		ID:          "gw1",
		Type:        gateway.TypeO2S,
		Address:     "10.0.0.1",
		Port:        8443,
		Certificate: "cert-pem",
		State:       gateway.StateOnline,
	}
}

func accessRequest() AccessRequest {
	return AccessRequest{
		CallerKind:  KindObject,
		CallerID:    "obj-1",
		Certificate: "caller-cert",
		GatewayType: gateway.TypeO2S,
	}
}

func TestRequestAccess(t *testing.T) {
	b := New(testBrokerConfig(), &mockSelector{inst: testInstance()}, logging.Default())

	grant, err := b.RequestAccess(context.Background(), accessRequest())
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	if grant.GrantID == "" {
		t.Error("grant id should be generated")
	}
	if grant.Address != "10.0.0.1" || grant.Port != 8443 || grant.Certificate != "cert-pem" {
		t.Errorf("grant connection details = %+v, want registered values", grant)
	}
	if grant.CallerID != "obj-1" || grant.CallerKind != KindObject {
		t.Errorf("grant caller identity = %s/%s, want object/obj-1", grant.CallerKind, grant.CallerID)
	}
	if grant.IssuedAt.IsZero() {
		t.Error("issued_at should be set")
	}
}

func TestRequestAccess_Invalid(t *testing.T) {
	b := New(testBrokerConfig(), &mockSelector{inst: testInstance()}, logging.Default())
	ctx := context.Background()

	req := accessRequest()
	req.CallerID = ""
	if _, err := b.RequestAccess(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty caller id error = %v, want ErrInvalidRequest", err)
	}

	req = accessRequest()
	req.CallerKind = CallerKind("robot")
	if _, err := b.RequestAccess(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad caller kind error = %v, want ErrInvalidRequest", err)
	}
}

func TestRequestAccess_UnavailablePropagates(t *testing.T) {
	sel := &mockSelector{err: &gateway.UnavailableError{Type: gateway.TypeS2O}}
	b := New(testBrokerConfig(), sel, logging.Default())

	_, err := b.RequestAccess(context.Background(), accessRequest())
	if !errors.Is(err, gateway.ErrGatewayUnavailable) {
		t.Fatalf("error = %v, want ErrGatewayUnavailable", err)
	}

	// The type travels with the error, unchanged.
	var unavailable *gateway.UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Type != gateway.TypeS2O {
		t.Errorf("error %v should carry the requested type", err)
	}
}

func TestRequestAccess_DuplicateIdentityRejected(t *testing.T) {
	block := make(chan struct{})
	sel := &mockSelector{inst: testInstance(), block: block}
	b := New(testBrokerConfig(), sel, logging.Default())
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := b.RequestAccess(ctx, accessRequest())
		firstDone <- err
	}()

	// Wait for the first request to enter selection.
	deadline := time.After(2 * time.Second)
	for sel.selectCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never reached the registry")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Same identity while the first is in flight: rejected.
	if _, err := b.RequestAccess(ctx, accessRequest()); !errors.Is(err, ErrAccessInProgress) {
		t.Errorf("duplicate error = %v, want ErrAccessInProgress", err)
	}

	// A different identity proceeds in parallel.
	other := accessRequest()
	other.CallerID = "obj-2"
	otherDone := make(chan error, 1)
	go func() {
		_, err := b.RequestAccess(ctx, other)
		otherDone <- err
	}()

	close(block)
	if err := <-firstDone; err != nil {
		t.Errorf("first request error = %v", err)
	}
	if err := <-otherDone; err != nil {
		t.Errorf("parallel request error = %v", err)
	}

	// The identity is usable again after completion.
	if _, err := b.RequestAccess(ctx, accessRequest()); err != nil {
		t.Errorf("retry after completion error = %v", err)
	}
}

func TestInflightSet_Reclaimed(t *testing.T) {
	b := New(testBrokerConfig(), &mockSelector{inst: testInstance()}, logging.Default())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := b.RequestAccess(ctx, accessRequest()); err != nil {
			t.Fatalf("request %d error = %v", i, err)
		}
	}

	if got := b.inflight.size(); got != 0 {
		t.Errorf("in-flight keys after completion = %d, want 0", got)
	}
}

func TestRecentGrants_Bounded(t *testing.T) {
	b := New(testBrokerConfig(), &mockSelector{inst: testInstance()}, logging.Default())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := b.RequestAccess(ctx, accessRequest()); err != nil {
			t.Fatalf("request %d error = %v", i, err)
		}
	}

	grants := b.RecentGrants()
	if len(grants) != 4 {
		t.Fatalf("recent grants = %d, want retention bound 4", len(grants))
	}
	for _, g := range grants {
		if g.GatewayID != "gw1" {
			t.Errorf("grant gateway = %q, want gw1", g.GatewayID)
		}
	}
}

func TestRequestAccess_CancelledContext(t *testing.T) {
	b := New(testBrokerConfig(), &mockSelector{inst: testInstance()}, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.RequestAccess(ctx, accessRequest()); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context error = %v, want context.Canceled", err)
	}

	// Cancellation left no in-flight key behind.
	if got := b.inflight.size(); got != 0 {
		t.Errorf("in-flight keys = %d, want 0", got)
	}
}
