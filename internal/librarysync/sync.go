// Package librarysync keeps the published Library in step with the cache
// and the photo host. One Sync owns the load pipeline; readers only ever
// see fully built snapshots.
package librarysync

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/metrics"
	"github.com/starford/travelogue/internal/source"
)

// Cache is the subset of the cache helper used by Sync.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetAll(ctx context.Context, key string) (map[string]string, error)
	Add(ctx context.Context, key, value string) error
	AddAll(ctx context.Context, key string, values map[string]string) error
	Remove(ctx context.Context, keys ...string) (bool, error)
}

// Config holds the cache layout and pipeline settings.
type Config struct {
	LibraryKey   string
	TreeField    string
	PhotoTagsKey string
	RetryDelay   time.Duration
	Build        library.Options
}

func (c *Config) defaults() {
	if c.LibraryKey == "" {
		c.LibraryKey = "library"
	}
	if c.TreeField == "" {
		c.TreeField = "tree"
	}
	if c.PhotoTagsKey == "" {
		c.PhotoTagsKey = "photoTags"
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
}

// Load origins recorded in Status.
const (
	originCache  = "cache"
	originSource = "source"
)

// Sync loads the library from the cache or the photo host and publishes it.
type Sync struct {
	cfg    Config
	cache  Cache
	src    source.Source
	logger *slog.Logger

	lib       atomic.Pointer[library.Library]
	photoTags atomic.Pointer[map[string]string]
	state     atomic.Int32
	loading   atomic.Bool
	refresh   chan struct{}

	mu        sync.Mutex
	listeners []func(Event)
	run       string
	origin    string
	loadedAt  time.Time
}

// New creates a Sync. Nothing is loaded until Run is called.
func New(cfg Config, c Cache, src source.Source, logger *slog.Logger) *Sync {
	cfg.defaults()
	return &Sync{
		cfg:     cfg,
		cache:   c,
		src:     src,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

// Run loads the library and photo tags, then serves refresh requests until
// ctx is cancelled. The two pipelines run independently: a photo tag
// outage never holds back a library load.
func (s *Sync) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// Only the library goroutine below starts photo tag pipelines after
	// this point; each start cancels the previous one.
	var cancelPhotos context.CancelFunc
	startPhotoTags := func(skipCache bool) {
		if cancelPhotos != nil {
			cancelPhotos()
		}
		pctx, cancel := context.WithCancel(ctx)
		cancelPhotos = cancel
		g.Go(func() error {
			defer cancel()
			s.loadPhotoTags(pctx, skipCache)
			return nil
		})
	}

	startPhotoTags(false)

	g.Go(func() error {
		s.load(ctx, false)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.refresh:
				s.reload(ctx, startPhotoTags)
			}
		}
	})

	return g.Wait()
}

// Refresh asks for the cache to be discarded and everything reloaded from
// the photo host. It is accepted only once the current library is fully
// hydrated and no load is in flight; otherwise it reports false and does
// nothing.
func (s *Sync) Refresh() bool {
	if s.loading.Load() {
		return false
	}
	lib := s.lib.Load()
	if lib == nil || !lib.PostInfoLoaded {
		return false
	}
	select {
	case s.refresh <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Sync) reload(ctx context.Context, startPhotoTags func(skipCache bool)) {
	s.loading.Store(true)
	s.emit(Event{Kind: EventRefreshing, State: s.State().String()})
	s.logger.Info("sync: refresh requested, discarding cached library")
	if _, err := s.cache.Remove(ctx, s.cfg.LibraryKey, s.cfg.PhotoTagsKey); err != nil {
		s.logger.Error("sync: remove cached library", slog.String("error", err.Error()))
	}
	startPhotoTags(true)
	s.load(ctx, true)
}

// Library returns the published library, or nil before the first build.
func (s *Sync) Library() *library.Library {
	return s.lib.Load()
}

// PhotoTags returns the clean-name to display-name lookup, or nil before
// it is loaded. The map must not be modified.
func (s *Sync) PhotoTags() map[string]string {
	if m := s.photoTags.Load(); m != nil {
		return *m
	}
	return nil
}

// State returns the current pipeline state.
func (s *Sync) State() State {
	return State(s.state.Load())
}

// Status summarizes the pipeline for status endpoints.
func (s *Sync) Status() Status {
	st := Status{
		State:   s.State().String(),
		Loading: s.loading.Load(),
	}
	if lib := s.lib.Load(); lib != nil {
		st.Browsable = true
		st.PostInfoLoaded = lib.PostInfoLoaded
		st.Posts = len(lib.Posts)
	}
	st.PhotoTags = len(s.PhotoTags())

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Run = s.run
	st.Origin = s.origin
	if !s.loadedAt.IsZero() {
		t := s.loadedAt
		st.LoadedAt = &t
	}
	return st
}

// Subscribe registers fn for lifecycle events. fn runs on the sync
// goroutine and must not block.
func (s *Sync) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Sync) emit(ev Event) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	if ev.Run == "" {
		ev.Run = s.run
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (s *Sync) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	metrics.SyncState.Set(float64(st))
	s.emit(Event{Kind: EventState, State: st.String()})
}

// publish swaps in lib for readers.
func (s *Sync) publish(lib *library.Library, origin string) {
	s.lib.Store(lib)
	metrics.LibraryPosts.Set(float64(len(lib.Posts)))

	s.mu.Lock()
	s.origin = origin
	s.loadedAt = time.Now()
	s.mu.Unlock()

	kind := EventBrowsable
	if lib.PostInfoLoaded {
		kind = EventHydrated
	}
	s.emit(Event{Kind: kind, State: s.State().String(), Posts: len(lib.Posts)})
}

// wait sleeps for the retry delay. It reports false if ctx ended first.
func (s *Sync) wait(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
