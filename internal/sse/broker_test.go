package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/travelogue/internal/librarysync"
)

// drain collects the frames currently queued on ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishSyncEvent_Frame(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventRefreshing, State: "ready", Run: "ab12cd34"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: library.refreshing\n") {
			t.Errorf("unexpected frame header in %q", s)
		}
		if !strings.Contains(s, `"run":"ab12cd34"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSyncEvent_ThrottlesStateOnly(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First state event passes, the next two inside the window are dropped.
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventState, State: "loading_from_source"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventState, State: "building"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventBrowsable, State: "building", Posts: 6})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventState, State: "hydrating"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventHydrated, State: "ready", Posts: 6})

	time.Sleep(50 * time.Millisecond)
	stateCount := 0
	var other []string
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: library.state") {
			stateCount++
		} else {
			other = append(other, s)
		}
	}

	if stateCount != 1 {
		t.Errorf("state events = %d, want 1 (throttled)", stateCount)
	}
	if len(other) != 2 {
		t.Fatalf("other events = %d, want 2: %q", len(other), other)
	}
	if !strings.Contains(other[0], "event: library.browsable") || !strings.Contains(other[0], `"posts":6`) {
		t.Errorf("unexpected browsable event %q", other[0])
	}
	if !strings.Contains(other[1], "event: library.hydrated") {
		t.Errorf("unexpected hydrated event %q", other[1])
	}
}

func TestSubscribe_ReplaysLatestSnapshot(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventState, State: "loading_from_source"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventBrowsable, State: "building", Posts: 6})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventRefreshing, State: "ready"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventPhotoTags, State: "hydrating"})
	// Throttled for live clients but still the newest state.
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventState, State: "hydrating"})
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventHydrated, State: "ready", Posts: 5})

	time.Sleep(50 * time.Millisecond)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	// The loop answers ClientCount only after the subscribe replay is queued.
	_ = b.ClientCount()

	got := drain(ch)
	if len(got) != 3 {
		t.Fatalf("replayed %d frames, want 3: %q", len(got), got)
	}
	if !strings.Contains(got[0], "event: library.state") || !strings.Contains(got[0], `"state":"hydrating"`) {
		t.Errorf("state slot = %q", got[0])
	}
	if !strings.Contains(got[1], "event: library.hydrated") || !strings.Contains(got[1], `"posts":5`) {
		t.Errorf("library slot = %q", got[1])
	}
	if !strings.Contains(got[2], "event: library.photo_tags") {
		t.Errorf("photo tags slot = %q", got[2])
	}
}

// flushRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *flushRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *flushRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *flushRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	b.keepAlive = 20 * time.Millisecond
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventHydrated, State: "ready"})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: library.hydrated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("handler output missing keep-alive: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Nanosecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the client buffer (capacity 64); further events must not block.
	for i := 0; i < 400; i++ {
		b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventRefreshing, Posts: i})
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(drain(ch)); n > 64 {
		t.Errorf("delivered %d frames to a client buffering 64", n)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishSyncEvent(librarysync.Event{Kind: librarysync.EventHydrated})
}
