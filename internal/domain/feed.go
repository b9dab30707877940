package domain

import "time"

// FeedSource identifies where a feed's price data is collected from.
type FeedSource string

const (
	// SourceCEX feeds are collected through the external aggregator binary.
	SourceCEX FeedSource = "cex"
	// SourceDEX feeds are read from the local price-index database.
	SourceDEX FeedSource = "dex"
)

// FeedSpec describes a single monitored feed, as declared in the feeds file.
type FeedSpec struct {
	Pair        string     // asset pair, e.g. "ADA/USD"
	Label       string     // feed label, e.g. "ADA-USD"
	Interval    int        // publication interval in seconds
	Deviation   int        // deviation threshold in percent
	Source      FeedSource // cex | dex
	Calculation string     // aggregation method, e.g. "median"
	Status      string     // feed lifecycle status
	Type        string     // feed type, defaults to "CER"
}

// CollectionSpec is the process-wide, read-only configuration for one
// collector deployment. Loaded once at startup and never mutated.
type CollectionSpec struct {
	// AggregatorPath is the filesystem location of the aggregator binary.
	AggregatorPath string
	// CEXPairs are the pairs requested from the aggregator subprocess.
	CEXPairs []string
	// DEXPairs are the pairs read from the price-index database.
	DEXPairs []string
	// RequestTimeout bounds the aggregator subprocess wall-clock time.
	RequestTimeout time.Duration
	// FreshnessWindow is the maximum age of a price record relative to
	// the invocation time before it is rejected as stale.
	FreshnessWindow time.Duration
	// MinSources is the minimum number of distinct contributing sources
	// a record needs to be accepted.
	MinSources int
	// Cadence is the external invocation interval. Collection timestamps
	// are rounded down to this granularity so retried deliveries of the
	// same cycle carry an identical dedup key.
	Cadence time.Duration
}
