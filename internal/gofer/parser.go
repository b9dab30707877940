package gofer

import (
	"encoding/json"
	"fmt"
	"time"

	"collector-node/internal/domain"
)

// SchemaVersion is the aggregator output contract this parser accepts.
// Anything else is schema drift and is rejected as malformed.
const SchemaVersion = "1"

// aggregatorOutput mirrors the aggregator's structured stdout.
type aggregatorOutput struct {
	Version string             `json:"version"`
	Data    []aggregatorRecord `json:"data"`
}

type aggregatorRecord struct {
	Pair      string             `json:"pair"`
	Price     float64            `json:"price"`
	Sources   map[string]float64 `json:"sources"`
	Timestamp string             `json:"timestamp"` // RFC3339
}

// ParseAndValidate decodes one aggregator run into attestations. Validation
// is all-or-nothing: any rejected record fails the whole batch so a partial
// feed snapshot is never forwarded to the validator.
func ParseAndValidate(raw *domain.RawFeedOutput, spec domain.CollectionSpec, now time.Time) ([]domain.PriceAttestation, error) {
	var out aggregatorOutput
	if err := json.Unmarshal(raw.Stdout, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %q", ErrMalformedResponse, out.Version)
	}
	if len(out.Data) == 0 {
		return nil, ErrEmptyFeed
	}

	attestations := make([]domain.PriceAttestation, 0, len(out.Data))
	for i, rec := range out.Data {
		att, err := validateRecord(rec, spec, now)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.Pair, err)
		}
		attestations = append(attestations, att)
	}
	return attestations, nil
}

// validateRecord checks one record against the collection spec.
func validateRecord(rec aggregatorRecord, spec domain.CollectionSpec, now time.Time) (domain.PriceAttestation, error) {
	var zero domain.PriceAttestation

	if rec.Pair == "" {
		return zero, fmt.Errorf("%w: missing pair", ErrMalformedResponse)
	}
	if rec.Timestamp == "" {
		return zero, fmt.Errorf("%w: missing timestamp", ErrMalformedResponse)
	}
	if rec.Price <= 0 {
		return zero, fmt.Errorf("%w: %v", ErrInvalidPrice, rec.Price)
	}

	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return zero, fmt.Errorf("%w: bad timestamp: %v", ErrMalformedResponse, err)
	}

	age := now.Sub(ts)
	if age > spec.FreshnessWindow {
		return zero, fmt.Errorf("%w: record is %v old (window %v)", ErrStalePrice, age.Truncate(time.Second), spec.FreshnessWindow)
	}

	if len(rec.Sources) < spec.MinSources {
		return zero, fmt.Errorf("%w: %d of %d required", ErrInsufficientSources, len(rec.Sources), spec.MinSources)
	}
	for name, price := range rec.Sources {
		if price <= 0 {
			return zero, fmt.Errorf("%w: source %s reported %v", ErrInvalidPrice, name, price)
		}
	}

	return domain.PriceAttestation{
		Pair:          rec.Pair,
		Price:         rec.Price,
		SourceCount:   len(rec.Sources),
		Sources:       rec.Sources,
		CollectedAtMs: ts.UnixMilli(),
		Deviation:     sourceDeviation(rec.Price, rec.Sources),
	}, nil
}

// sourceDeviation returns the maximum relative spread of the per-source
// prices around the aggregated price.
func sourceDeviation(price float64, sources map[string]float64) float64 {
	var max float64
	for _, p := range sources {
		d := (p - price) / price
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}
