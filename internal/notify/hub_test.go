package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	events []domain.JobEvent
	closed bool
	fail   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	if ev, ok := v.(domain.JobEvent); ok {
		c.events = append(c.events, ev)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []domain.JobEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.JobEvent, len(c.events))
	copy(out, c.events)
	return out
}

func event(userID string, typ domain.EventType) domain.JobEvent {
	return domain.JobEvent{Type: typ, PhotoID: "photo-1", UserID: userID}
}

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := &fakeConn{}
	hub.Attach("user-1", conn)

	hub.Publish(event("user-1", domain.EventQueued))
	hub.Publish(event("user-1", domain.EventProcessing))
	hub.Publish(event("user-1", domain.EventCompleted))

	got := conn.received()
	want := []domain.EventType{domain.EventQueued, domain.EventProcessing, domain.EventCompleted}
	if len(got) != len(want) {
		t.Fatalf("received %d events, want %d", len(got), len(want))
	}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Fatalf("event[%d] = %s, want %s", i, got[i].Type, typ)
		}
	}
}

func TestPublishDropsWithoutConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	// Must not block or panic; the event simply disappears.
	hub.Publish(event("user-1", domain.EventQueued))
	if hub.Connected("user-1") {
		t.Fatalf("user should not be connected")
	}
}

func TestAttachReplacesExistingConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Attach("user-1", first)
	hub.Attach("user-1", second)

	if !first.closed {
		t.Fatalf("replaced connection should be closed")
	}
	hub.Publish(event("user-1", domain.EventQueued))
	if len(first.received()) != 0 {
		t.Fatalf("old connection must not receive events")
	}
	if len(second.received()) != 1 {
		t.Fatalf("new connection should receive the event")
	}
}

func TestDetachIgnoresStaleConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Attach("user-1", first)
	hub.Attach("user-1", second)

	// The reader goroutine of the replaced connection detaches late.
	hub.Detach("user-1", first)
	if !hub.Connected("user-1") {
		t.Fatalf("current connection should survive a stale detach")
	}
	hub.Detach("user-1", second)
	if hub.Connected("user-1") {
		t.Fatalf("current connection should be detached")
	}
}

func TestPublishDropsFailingConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := &fakeConn{fail: true}
	hub.Attach("user-1", conn)

	hub.Publish(event("user-1", domain.EventQueued))
	if hub.Connected("user-1") {
		t.Fatalf("failing connection should be dropped")
	}
	if !conn.closed {
		t.Fatalf("failing connection should be closed")
	}
}

// stuckConn blocks every write until released, simulating a peer whose TCP
// buffer is full.
type stuckConn struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStuckConn() *stuckConn {
	return &stuckConn{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *stuckConn) WriteJSON(v any) error {
	c.once.Do(func() { close(c.entered) })
	<-c.release
	return nil
}

func (c *stuckConn) Close() error { return nil }

func TestPublishSlowConnectionDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	stuck := newStuckConn()
	healthy := &fakeConn{}
	hub.Attach("user-slow", stuck)
	hub.Attach("user-ok", healthy)

	go hub.Publish(event("user-slow", domain.EventProcessing))
	<-stuck.entered
	defer close(stuck.release)

	delivered := make(chan struct{})
	go func() {
		hub.Publish(event("user-ok", domain.EventCompleted))
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("publish to a healthy connection blocked behind a stuck one")
	}
	if got := healthy.received(); len(got) != 1 || got[0].Type != domain.EventCompleted {
		t.Fatalf("healthy connection events = %v", got)
	}
}
