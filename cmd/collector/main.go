package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"collector-node/internal/collector"
	"collector-node/internal/domain"
	"collector-node/internal/feed"
	"collector-node/internal/gofer"
	"collector-node/internal/identity"
	"collector-node/internal/observability"
	"collector-node/internal/runlock"
	"collector-node/internal/storage"
	chstore "collector-node/internal/storage/clickhouse"
	"collector-node/internal/storage/memory"
	"collector-node/internal/storage/migrations"
	pgstore "collector-node/internal/storage/postgres"
	"collector-node/internal/transport"
)

// envOr returns the environment value for key, or fallback when unset.
// Deployments traditionally configure the collector through environment
// variables; flags override them.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	feedsPath := flag.String("feeds", "", "feeds file describing monitored pairs (JSON)")
	goferPath := flag.String("gofer", envOr("GOFER", ""), "price aggregator binary location")
	validatorURI := flag.String("validator", envOr("ORCFAX_VALIDATOR", ""), "validator websocket endpoint, e.g. wss://host:port/ws")
	identityPath := flag.String("identity", envOr("NODE_IDENTITY_LOC", ""), "node identity file location")
	signingKeyPath := flag.String("signing-key", envOr("NODE_SIGNING_KEY", ""), "node signing key location")
	indexDSN := flag.String("index-dsn", envOr("PRICE_INDEX_DSN", ""), "price index DSN (postgres:// or clickhouse://), empty disables dex feeds")
	requestTimeout := flag.Duration("request-timeout", 45*time.Second, "aggregator subprocess timeout")
	freshness := flag.Duration("freshness", 120*time.Second, "maximum accepted price record age")
	minSources := flag.Int("min-sources", 3, "minimum distinct sources per record")
	maxAttempts := flag.Int("max-attempts", transport.DefaultMaxAttempts, "delivery attempt cap")
	retryBase := flag.Duration("retry-base", transport.DefaultBaseDelay, "initial delivery retry delay")
	retryCap := flag.Duration("retry-cap", transport.DefaultMaxDelay, "maximum delivery retry delay")
	ackTimeout := flag.Duration("ack-timeout", transport.DefaultAckTimeout, "validator ack wait per attempt")
	cadence := flag.Duration("cadence", time.Minute, "external invocation cadence (collection time granularity and run deadline)")
	interval := flag.Duration("interval", 0, "run on an internal ticker instead of one-shot (0 = one-shot)")
	staggerMax := flag.Duration("stagger-max", 15*time.Second, "maximum random startup delay in one-shot mode (0 disables)")
	lockFile := flag.String("lock-file", "/tmp/collector-node.lock", "cross-process lock file for one-shot mode")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[collector] ", log.LstdFlags|log.Lshortfile)

	for name, v := range map[string]string{
		"feeds":       *feedsPath,
		"gofer":       *goferPath,
		"validator":   *validatorURI,
		"identity":    *identityPath,
		"signing-key": *signingKeyPath,
	} {
		if v == "" {
			logger.Fatalf("--%s is required (or its environment equivalent)", name)
		}
	}

	var metrics *observability.Metrics
	if *metricsAddr != "" {
		metrics = observability.NewMetrics("")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
		sig = <-sigCh
		logger.Fatalf("received second signal %v, exiting immediately", sig)
	}()

	logger.Printf("collector-node version %s", collector.Version)

	id, err := identity.Load(*identityPath, *signingKeyPath)
	if err != nil {
		logger.Fatalf("load identity: %v", err)
	}
	logger.Printf("node identity: %s", id.NodeID)

	feeds, err := feed.Load(*feedsPath, logger)
	if err != nil {
		logger.Fatalf("load feeds: %v", err)
	}
	cexPairs, dexPairs := feed.SplitPairs(feeds)
	logger.Printf("cex pairs: %d, dex pairs: %d", len(cexPairs), len(dexPairs))

	spec := domain.CollectionSpec{
		AggregatorPath:  *goferPath,
		CEXPairs:        cexPairs,
		DEXPairs:        dexPairs,
		RequestTimeout:  *requestTimeout,
		FreshnessWindow: *freshness,
		MinSources:      *minSources,
		Cadence:         *cadence,
	}

	priceIndex, closeIndex, err := openPriceIndex(ctx, *indexDSN, len(dexPairs) > 0, logger)
	if err != nil {
		logger.Fatalf("open price index: %v", err)
	}
	defer closeIndex()

	client := transport.NewClient(*validatorURI,
		transport.WithRetryPolicy(transport.RetryPolicy{
			MaxAttempts: *maxAttempts,
			BaseDelay:   *retryBase,
			MaxDelay:    *retryCap,
			Jitter:      transport.ProportionalJitter(0.25),
		}),
		transport.WithAckTimeout(*ackTimeout),
		transport.WithUserAgent(fmt.Sprintf("collector-node/%s", collector.Version)),
		transport.WithLogger(logger),
	)
	defer client.Close()

	runner := collector.New(collector.Options{
		Identity:   id,
		Requester:  gofer.NewRequesterFromSpec(spec, logger),
		PriceIndex: priceIndex,
		Transport:  client,
		Spec:       spec,
		Metrics:    metrics,
		Logger:     logger,
	})

	if *interval > 0 {
		runLoop(ctx, runner, *interval, logger)
		return
	}

	os.Exit(runOneShot(ctx, runner, *lockFile, *staggerMax, logger))
}

// runOneShot performs a single cron-driven invocation guarded by the
// cross-process lock file.
func runOneShot(ctx context.Context, runner *collector.Runner, lockFile string, staggerMax time.Duration, logger *log.Logger) int {
	lock, err := runlock.Acquire(lockFile)
	if err != nil {
		// Overlap with a still-running invocation is expected under cron
		// and is not a failure.
		if errors.Is(err, runlock.ErrHeld) {
			logger.Printf("collector already in use, skipping: %v", err)
			return 0
		}
		logger.Printf("acquire lock: %v", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Printf("release lock: %v", err)
		}
	}()

	// Stagger the start so validator nodes are not flooded each round.
	if staggerMax > 0 {
		wait := time.Duration(rand.Int63n(int64(staggerMax)))
		logger.Printf("startup stagger: %v", wait.Truncate(time.Millisecond))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return 0
		}
	}

	outcome := runner.RunOnce(ctx)
	switch outcome.Status {
	case domain.StatusDelivered, domain.StatusSkipped:
		return 0
	default:
		return 1
	}
}

// runLoop fires invocations on a fixed ticker regardless of whether the
// prior invocation finished; the runner's single-flight guard turns
// overlaps into Skipped outcomes.
func runLoop(ctx context.Context, runner *collector.Runner, interval time.Duration, logger *log.Logger) {
	logger.Printf("running every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		go runner.RunOnce(ctx)
	}
	run()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("loop stopping")
			return
		case <-ticker.C:
			run()
		}
	}
}

// openPriceIndex connects the configured price-index backend. An empty DSN
// disables DEX collection; dexWanted only affects logging.
func openPriceIndex(ctx context.Context, dsn string, dexWanted bool, logger *log.Logger) (storage.PriceIndexStore, func(), error) {
	noop := func() {}

	if dsn == "" {
		if dexWanted {
			logger.Printf("no price index configured, dex feeds will be skipped")
		}
		return nil, noop, nil
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"):
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Printf("price index: postgres")
		return pgstore.NewPriceIndexStore(pool), pool.Close, nil

	case strings.HasPrefix(dsn, "clickhouse://"):
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, noop, err
		}
		logger.Printf("price index: clickhouse")
		return chstore.NewPriceIndexStore(conn), func() { conn.Close() }, nil

	case dsn == "memory":
		logger.Printf("price index: in-memory (stub)")
		return memory.NewPriceIndexStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported price index dsn: %s", dsn)
	}
}
