package signaling

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Gwilymm/mds-api-class/internal/metrics"
	"github.com/Gwilymm/mds-api-class/internal/registry"
)

func newTestBroadcaster() (*Broadcaster, *registry.Users, *metrics.Metrics) {
	users := registry.NewUsers()
	m := metrics.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBroadcaster(users, m, log), users, m
}

func TestBroadcasterSendsIdenticalBytesToEveryAttachedConn(t *testing.T) {
	b, users, _ := newTestBroadcaster()

	identified := newFakeConn("a")
	anonymous := newFakeConn("b")
	b.Attach(identified)
	b.Attach(anonymous)
	users.Upsert("u1", "Alice", registry.Position{Lat: 1, Lng: 2}, identified)

	b.Publish()

	fa, fb := identified.frames(), anonymous.frames()
	if len(fa) != 1 || len(fb) != 1 {
		t.Fatalf("expected one frame per conn, got %d/%d", len(fa), len(fb))
	}
	// An attached connection that never identified itself still receives the
	// snapshot, with the exact same bytes.
	if !bytes.Equal(fa[0], fb[0]) {
		t.Fatalf("snapshot frames differ:\n%s\n%s", fa[0], fb[0])
	}

	var msg presenceSnapshotMessage
	if err := json.Unmarshal(fa[0], &msg); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if msg.Type != kindPresenceSnapshot || len(msg.Users) != 1 || msg.Users[0].ID != "u1" {
		t.Fatalf("unexpected snapshot %+v", msg)
	}
}

func TestBroadcasterEmptySnapshotIsEmptyArray(t *testing.T) {
	b, _, _ := newTestBroadcaster()
	conn := newFakeConn("a")
	b.Attach(conn)

	b.Publish()

	frame := conn.lastFrame()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if string(raw["users"]) != "[]" {
		t.Fatalf("users field = %s, want []", raw["users"])
	}
}

func TestBroadcasterFailedSendDoesNotRemove(t *testing.T) {
	b, users, m := newTestBroadcaster()

	alive := newFakeConn("a")
	dead := newFakeConn("b")
	_ = dead.Close()
	b.Attach(alive)
	b.Attach(dead)
	users.Upsert("u2", "Bob", registry.Position{Lat: 3, Lng: 4}, dead)

	b.Publish()

	if len(alive.frames()) != 1 {
		t.Fatalf("healthy conn must still receive the broadcast")
	}
	if got := m.Get(eventBroadcastSendFailed); got != 1 {
		t.Fatalf("failed send counter = %d, want 1", got)
	}
	// Removal belongs to the close handler, not the broadcaster.
	if _, ok := users.ConnByID("u2"); !ok {
		t.Fatalf("broadcaster must not remove users on send failure")
	}

	b.Publish()
	if len(alive.frames()) != 2 {
		t.Fatalf("detached-by-failure would be wrong: conn set must be unchanged")
	}
}

// gatedConn stalls its first Send until released, holding one publish open in
// the middle of its fan-out.
type gatedConn struct {
	*fakeConn
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *gatedConn) Send(data []byte) error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.fakeConn.Send(data)
}

func TestBroadcasterLaterPublishNeverOvertakesEarlierOne(t *testing.T) {
	b, users, _ := newTestBroadcaster()

	gated := &gatedConn{
		fakeConn: newFakeConn("a"),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	observer := newFakeConn("b")
	b.Attach(gated)
	b.Attach(observer)
	users.Upsert("u1", "Alice", registry.Position{Lat: 1, Lng: 2}, gated)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Publish()
	}()
	<-gated.entered

	// u1 drops while the first publish is mid fan-out; the resulting empty
	// snapshot must queue behind it everywhere, never ahead of it.
	users.RemoveByID("u1")
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Publish()
	}()

	time.Sleep(20 * time.Millisecond)
	for _, frame := range observer.frames() {
		var msg presenceSnapshotMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if len(msg.Users) == 0 {
			t.Fatalf("empty snapshot delivered while the earlier publish was still in flight")
		}
	}

	close(gated.release)
	wg.Wait()

	frames := observer.frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	var first, second presenceSnapshotMessage
	if err := json.Unmarshal(frames[0], &first); err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if err := json.Unmarshal(frames[1], &second); err != nil {
		t.Fatalf("decode second frame: %v", err)
	}
	if len(first.Users) != 1 || len(second.Users) != 0 {
		t.Fatalf("snapshots delivered out of order: %s then %s", frames[0], frames[1])
	}
}

func TestBroadcasterDetachIsIdempotent(t *testing.T) {
	b, _, _ := newTestBroadcaster()
	conn := newFakeConn("a")
	b.Attach(conn)
	b.Detach(conn)
	b.Detach(conn)

	b.Publish()
	if len(conn.frames()) != 0 {
		t.Fatalf("detached conn must not receive broadcasts")
	}
}
