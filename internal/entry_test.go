package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/travelogue/internal/cache"
	"github.com/starford/travelogue/internal/librarysync"
	"github.com/starford/travelogue/internal/testutil"
)

func TestReadyHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	helper := cache.NewHelper(cache.NewMemory(0, 0), logger)
	t.Cleanup(func() { _ = helper.Close() })

	cfg := NewDefaultConfig().Library.SyncConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	s := librarysync.New(cfg, helper, testutil.NewFakeSource(), logger)
	handler := readyHandler(s)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("before load = %d, want 503", w.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(5 * time.Second)
	for s.Library() == nil {
		if time.Now().After(deadline) {
			t.Fatal("library never published")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("after load = %d, want 200", w.Code)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("expected error without config")
	}
}
