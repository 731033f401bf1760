package librarysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/travelogue/internal/library"
	"github.com/starford/travelogue/internal/metrics"
	"github.com/starford/travelogue/internal/models"
	"github.com/starford/travelogue/internal/source"
)

// errCorrupt marks a cached library that cannot be rebuilt.
var errCorrupt = errors.New("cached library is corrupt")

// load runs one pipeline: cache first unless skipCache, then the source.
func (s *Sync) load(ctx context.Context, skipCache bool) {
	s.loading.Store(true)
	defer s.loading.Store(false)

	run := uuid.NewString()[:8]
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
	logger := s.logger.With(slog.String("run", run))

	if !skipCache {
		lib, err := s.fromCache(ctx, logger)
		switch {
		case err == nil && lib != nil:
			logger.Info("sync: library loaded from cache", slog.Int("posts", len(lib.Posts)))
			metrics.SyncRuns.WithLabelValues("cache_hit").Inc()
			s.setState(Ready)
			s.publish(lib, originCache)
			return
		case errors.Is(err, errCorrupt):
			logger.Error("sync: cached library unusable, reloading from source", slog.String("error", err.Error()))
			metrics.SyncRuns.WithLabelValues("cache_corrupt").Inc()
			if _, rerr := s.cache.Remove(ctx, s.cfg.LibraryKey); rerr != nil {
				logger.Error("sync: remove corrupt library", slog.String("error", rerr.Error()))
			}
		case err != nil:
			logger.Error("sync: cache read failed, loading from source", slog.String("error", err.Error()))
		default:
			logger.Info("sync: no cached library")
		}
	}

	s.fromSource(ctx, logger)
}

// fromCache rebuilds the library from the cached hash. It returns nil, nil
// on a miss and an errCorrupt-wrapped error when any stored part is
// missing or unparseable.
func (s *Sync) fromCache(ctx context.Context, logger *slog.Logger) (*library.Library, error) {
	s.setState(LoadingFromCache)
	hash, err := s.cache.GetAll(ctx, s.cfg.LibraryKey)
	if err != nil {
		return nil, fmt.Errorf("sync: read cache: %w", err)
	}
	if hash == nil {
		return nil, nil
	}

	s.setState(Parsing)
	tree, err := library.DecodeTree(hash[s.cfg.TreeField])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	// A synthetic post without a stored detail was dropped by the load
	// that wrote this hash.
	lib := library.Build(tree, s.buildOptions(func(id string) bool {
		_, ok := hash[id]
		return !ok
	}))

	details := make(map[string]*models.PostDetail, len(lib.Posts))
	for _, p := range lib.Posts {
		raw, ok := hash[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no detail for post %s", errCorrupt, p.ID)
		}
		d, err := library.DecodeDetail(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: post %s: %v", errCorrupt, p.ID, err)
		}
		details[p.ID] = d
	}
	lib.Attach(details)
	lib.PostInfoLoaded = true
	logger.Debug("sync: parsed cached library", slog.Int("fields", len(hash)))
	return lib, nil
}

// fromSource fetches the tree, publishes a browsable library, hydrates
// every post and finally publishes and persists the hydrated library.
func (s *Sync) fromSource(ctx context.Context, logger *slog.Logger) {
	tree, ok := s.fetchTree(ctx, logger)
	if !ok {
		return
	}

	s.setState(Building)
	lib := library.Build(tree, s.cfg.Build)
	s.publish(lib, originSource)
	logger.Info("sync: library browsable", slog.Int("posts", len(lib.Posts)))

	// Writes are queued here and flushed once hydration completes.
	s.setState(Persisting)
	pending := make(map[string]string, len(lib.Posts)+1)
	s.queueTree(logger, pending, tree)

	s.setState(Hydrating)
	start := time.Now()
	details, removed, ok := s.hydrate(ctx, logger, lib)
	if !ok {
		return
	}
	metrics.HydrationDuration.Observe(time.Since(start).Seconds())

	if len(removed) > 0 {
		tree = tree.Without(removed)
		s.queueTree(logger, pending, tree)
	}

	final := library.Build(tree, s.buildOptions(func(id string) bool {
		_, gone := removed[id]
		return gone
	}))
	final.Attach(details)
	final.PostInfoLoaded = true

	for id, d := range details {
		raw, err := library.EncodeDetail(d)
		if err != nil {
			logger.Error("sync: encode detail", slog.String("post", id), slog.String("error", err.Error()))
			continue
		}
		pending[id] = raw
	}
	if _, ok := pending[s.cfg.TreeField]; ok {
		if err := s.cache.AddAll(ctx, s.cfg.LibraryKey, pending); err != nil {
			logger.Error("sync: persist library", slog.String("error", err.Error()))
		}
	}

	metrics.SyncRuns.WithLabelValues("source").Inc()
	s.setState(Ready)
	s.publish(final, originSource)
	logger.Info("sync: library hydrated",
		slog.Int("posts", len(final.Posts)),
		slog.Int("removed", len(removed)),
		slog.Duration("took", time.Since(start)))
}

// buildOptions returns the configured build options minus the synthetic
// posts for which drop reports true.
func (s *Sync) buildOptions(drop func(id string) bool) library.Options {
	opts := s.cfg.Build
	opts.Synthetic = nil
	for _, syn := range s.cfg.Build.Synthetic {
		if !drop(syn.ID) {
			opts.Synthetic = append(opts.Synthetic, syn)
		}
	}
	return opts
}

func (s *Sync) queueTree(logger *slog.Logger, pending map[string]string, tree *models.Tree) {
	raw, err := library.EncodeTree(tree)
	if err != nil {
		logger.Error("sync: encode tree", slog.String("error", err.Error()))
		delete(pending, s.cfg.TreeField)
		return
	}
	pending[s.cfg.TreeField] = raw
}

// fetchTree requests the collection tree until it succeeds or ctx ends.
// Every failure, permanent or not, is retried after the fixed delay.
func (s *Sync) fetchTree(ctx context.Context, logger *slog.Logger) (*models.Tree, bool) {
	for attempt := 1; ; attempt++ {
		s.setState(LoadingFromSource)
		tree, err := s.src.CollectionTree(ctx)
		if err == nil {
			return tree, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		logger.Warn("sync: collection tree unavailable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", s.cfg.RetryDelay),
			slog.String("error", err.Error()))
		s.setState(RetryWait)
		if !s.wait(ctx) {
			return nil, false
		}
	}
}

// hydrate loads detail for every post, synthetic ones included, one
// request at a time in library order. Posts the source reports
// permanently missing are collected in removed; transient failures are
// retried.
func (s *Sync) hydrate(ctx context.Context, logger *slog.Logger, lib *library.Library) (map[string]*models.PostDetail, map[string]struct{}, bool) {
	details := make(map[string]*models.PostDetail, len(lib.Posts))
	removed := make(map[string]struct{})

	for _, p := range lib.Posts {
		for {
			d, err := s.src.PostDetail(ctx, p.ID)
			if err == nil {
				details[p.ID] = d
				break
			}
			if ctx.Err() != nil {
				return nil, nil, false
			}
			if source.IsPermanent(err) {
				logger.Warn("sync: post no longer exists, removing",
					slog.String("post", p.ID),
					slog.String("title", p.OriginalTitle),
					slog.String("error", err.Error()))
				metrics.PostsDropped.Inc()
				removed[p.ID] = struct{}{}
				break
			}
			logger.Warn("sync: post detail unavailable, retrying",
				slog.String("post", p.ID),
				slog.Duration("delay", s.cfg.RetryDelay),
				slog.String("error", err.Error()))
			if !s.wait(ctx) {
				return nil, nil, false
			}
		}
	}
	return details, removed, true
}
