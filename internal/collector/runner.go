// Package collector sequences one collection invocation: request the
// aggregator, validate its output, merge indexed DEX prices, build the
// signed payload and deliver it to the validator.
package collector

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"collector-node/internal/domain"
	"collector-node/internal/gofer"
	"collector-node/internal/identity"
	"collector-node/internal/observability"
	"collector-node/internal/payload"
	"collector-node/internal/storage"
)

// FeedRequester runs one aggregator invocation for the given pairs.
type FeedRequester interface {
	Request(ctx context.Context, pairs []string) (*domain.RawFeedOutput, error)
}

// Deliverer sends a signed envelope to the validator.
type Deliverer interface {
	Deliver(ctx context.Context, env *payload.Envelope) *domain.DeliveryOutcome
}

// Runner coordinates one invocation end to end. The external scheduler may
// fire regardless of prior-invocation completion; a try-acquire guard turns
// overlapping triggers into Skipped outcomes instead of concurrent runs.
type Runner struct {
	identity   *identity.NodeIdentity
	requester  FeedRequester
	priceIndex storage.PriceIndexStore // nil disables DEX collection
	transport  Deliverer
	spec       domain.CollectionSpec
	metrics    *observability.Metrics
	logger     *log.Logger
	now        func() time.Time

	// inFlight is the single-flight guard. Never held across invocations;
	// released on every exit path.
	inFlight sync.Mutex
}

// Options contains configuration for creating a Runner.
type Options struct {
	Identity   *identity.NodeIdentity
	Requester  FeedRequester
	PriceIndex storage.PriceIndexStore // optional
	Transport  Deliverer
	Spec       domain.CollectionSpec
	Metrics    *observability.Metrics // optional
	Logger     *log.Logger
	Now        func() time.Time // defaults to time.Now
}

// New creates a new Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		identity:   opts.Identity,
		requester:  opts.Requester,
		priceIndex: opts.PriceIndex,
		transport:  opts.Transport,
		spec:       opts.Spec,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        now,
	}
}

// RunOnce executes one invocation and reports its outcome. It never
// returns nil and never panics the hosting process: a failed invocation
// must not prevent the next scheduled one from running cleanly.
func (r *Runner) RunOnce(ctx context.Context) *domain.DeliveryOutcome {
	if !r.inFlight.TryLock() {
		r.logger.Printf("invocation already in flight, skipping")
		outcome := &domain.DeliveryOutcome{Status: domain.StatusSkipped}
		r.observe(outcome, 0)
		return outcome
	}
	defer r.inFlight.Unlock()

	// Retries must not run past the next scheduled trigger.
	if r.spec.Cadence > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.spec.Cadence)
		defer cancel()
	}

	start := r.now()
	outcome := r.collectAndDeliver(ctx)
	elapsed := r.now().Sub(start)

	r.observe(outcome, elapsed)
	r.logger.Printf("invocation finished: status=%s attempts=%d attestations=%d elapsed=%v err=%v",
		outcome.Status, outcome.Attempts, outcome.Attestations, elapsed.Truncate(time.Millisecond), outcome.LastError)
	return outcome
}

func (r *Runner) collectAndDeliver(ctx context.Context) *domain.DeliveryOutcome {
	now := r.now().UTC()

	var attestations []domain.PriceAttestation

	if len(r.spec.CEXPairs) > 0 {
		reqStart := r.now()
		raw, err := r.requester.Request(ctx, r.spec.CEXPairs)
		if r.metrics != nil {
			r.metrics.SubprocessDuration.Observe(r.now().Sub(reqStart).Seconds())
		}
		if err != nil {
			r.countError(err)
			return &domain.DeliveryOutcome{Status: domain.StatusFailed, LastError: err}
		}

		cex, err := gofer.ParseAndValidate(raw, r.spec, now)
		if err != nil {
			r.countError(err)
			return &domain.DeliveryOutcome{Status: domain.StatusFailed, LastError: err}
		}
		if r.metrics != nil {
			r.metrics.AttestationsCollected.WithLabelValues(string(domain.SourceCEX)).Add(float64(len(cex)))
		}
		attestations = append(attestations, cex...)
	}

	attestations = append(attestations, r.collectDEX(ctx, now)...)

	if len(attestations) == 0 {
		r.countError(gofer.ErrEmptyFeed)
		return &domain.DeliveryOutcome{Status: domain.StatusFailed, LastError: gofer.ErrEmptyFeed}
	}

	msg := payload.Build(r.identity, attestations, now, r.spec.Cadence)
	env, err := payload.Seal(r.identity, msg)
	if err != nil {
		return &domain.DeliveryOutcome{Status: domain.StatusFailed, LastError: err}
	}

	r.logger.Printf("delivering %d attestations, dedup_key %s", len(attestations), msg.DedupKey)
	outcome := r.transport.Deliver(ctx, env)
	outcome.Attestations = len(attestations)
	return outcome
}

// collectDEX reads fresh DEX pair prices from the index. Index problems are
// logged and degrade to a CEX-only delivery rather than failing the
// invocation: the index is a supplemental source owned by another process.
func (r *Runner) collectDEX(ctx context.Context, now time.Time) []domain.PriceAttestation {
	if r.priceIndex == nil || len(r.spec.DEXPairs) == 0 {
		return nil
	}

	sinceMs := now.Add(-r.spec.FreshnessWindow).UnixMilli()
	rows, err := r.priceIndex.LatestPrices(ctx, r.spec.DEXPairs, sinceMs)
	if err != nil {
		r.logger.Printf("price index read failed, continuing without dex feeds: %v", err)
		return nil
	}

	accepted := make([]domain.PriceAttestation, 0, len(rows))
	for _, row := range rows {
		if row.Price <= 0 {
			r.logger.Printf("dex pair %s: non-positive indexed price %v, dropped", row.Pair, row.Price)
			continue
		}
		if row.SourceCount < r.spec.MinSources {
			r.logger.Printf("dex pair %s: %d sources below minimum %d, dropped", row.Pair, row.SourceCount, r.spec.MinSources)
			continue
		}
		accepted = append(accepted, row)
	}

	if r.metrics != nil {
		r.metrics.AttestationsCollected.WithLabelValues(string(domain.SourceDEX)).Add(float64(len(accepted)))
	}
	return accepted
}

func (r *Runner) observe(outcome *domain.DeliveryOutcome, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RunsTotal.WithLabelValues(string(outcome.Status)).Inc()
	if outcome.Status != domain.StatusSkipped {
		r.metrics.RunDuration.Observe(elapsed.Seconds())
	}
	if outcome.Attempts > 0 {
		r.metrics.DeliveryAttempts.Observe(float64(outcome.Attempts))
	}
	if outcome.Status == domain.StatusDelivered {
		r.metrics.LastDelivered.Set(float64(r.now().Unix()))
	}
}

// countError classifies a collection error for the rejection counters.
func (r *Runner) countError(err error) {
	if r.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, gofer.ErrProcessTimeout):
		r.metrics.SubprocessErrors.WithLabelValues("timeout").Inc()
	case errors.Is(err, gofer.ErrProcessExecution):
		r.metrics.SubprocessErrors.WithLabelValues("execution").Inc()
	default:
		r.metrics.ValidationRejections.WithLabelValues(validationReason(err)).Inc()
	}
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, gofer.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, gofer.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, gofer.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, gofer.ErrInsufficientSources):
		return "insufficient_sources"
	case errors.Is(err, gofer.ErrEmptyFeed):
		return "empty_feed"
	default:
		return "other"
	}
}
