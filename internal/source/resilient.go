package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/starford/travelogue/internal/metrics"
	"github.com/starford/travelogue/internal/models"
)

// ResilientConfig tunes the breaker and limiter around a Source.
type ResilientConfig struct {
	Name string
	// Interval is the minimum spacing between requests. Zero disables
	// rate limiting.
	Interval time.Duration
	// FailureThreshold is the number of consecutive transient failures
	// that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration
}

// Resilient wraps a Source with a circuit breaker and a rate limiter.
// Permanent failures do not count against the breaker, and a rejected
// request is reported as a transient failure.
type Resilient struct {
	next    Source
	name    string
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewResilient wraps next.
func NewResilient(next Source, cfg ResilientConfig, logger *slog.Logger) *Resilient {
	if cfg.Name == "" {
		cfg.Name = "source"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	r := &Resilient{
		next:    next,
		name:    cfg.Name,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	r.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("source: circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return r
}

// State returns the breaker state.
func (r *Resilient) State() gobreaker.State {
	return r.cb.State()
}

func (r *Resilient) execute(ctx context.Context, op, id string, fn func() (any, error)) (any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, transient(op, id, err)
	}
	result, err := r.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.SourceRequests.WithLabelValues(op, "success").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SourceRequests.WithLabelValues(op, "rejected").Inc()
		return nil, transient(op, id, err)
	case IsPermanent(err):
		metrics.SourceRequests.WithLabelValues(op, "permanent").Inc()
	default:
		metrics.SourceRequests.WithLabelValues(op, "transient").Inc()
	}
	return nil, err
}

func (r *Resilient) CollectionTree(ctx context.Context) (*models.Tree, error) {
	res, err := r.execute(ctx, OpCollectionTree, "", func() (any, error) {
		return r.next.CollectionTree(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Tree), nil
}

func (r *Resilient) PostDetail(ctx context.Context, id string) (*models.PostDetail, error) {
	res, err := r.execute(ctx, OpPostDetail, id, func() (any, error) {
		return r.next.PostDetail(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.PostDetail), nil
}

func (r *Resilient) PhotoTags(ctx context.Context) ([]models.PhotoTag, error) {
	res, err := r.execute(ctx, OpPhotoTags, "", func() (any, error) {
		return r.next.PhotoTags(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]models.PhotoTag), nil
}
