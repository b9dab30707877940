package domain

// RawFeedOutput is the unvalidated result of one aggregator subprocess run.
// It is consumed by the parser and discarded within the same invocation.
type RawFeedOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// PriceAttestation is one validated price observation for a single pair.
type PriceAttestation struct {
	Pair          string             `json:"pair"`
	Price         float64            `json:"price"`
	SourceCount   int                `json:"source_count"`
	Sources       map[string]float64 `json:"sources,omitempty"`
	CollectedAtMs int64              `json:"collected_at_ms"` // Unix timestamp in milliseconds
	Deviation     float64            `json:"deviation"`       // max relative spread across sources
}
