// Package feed loads the feeds file describing which pairs this node
// collects and from where.
package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"collector-node/internal/domain"
)

// feedsFile mirrors the on-disk feeds document.
type feedsFile struct {
	Meta  feedsMeta   `json:"meta"`
	Feeds []feedEntry `json:"feeds"`
}

type feedsMeta struct {
	Version string `json:"version"`
}

type feedEntry struct {
	Pair        string `json:"pair"`
	Label       string `json:"label"`
	Interval    int    `json:"interval"`
	Deviation   int    `json:"deviation"`
	Source      string `json:"source"`
	Calculation string `json:"calculation"`
	Status      string `json:"status"`
	Type        string `json:"type"`
}

// Load reads the feeds file and returns the declared feed specs.
func Load(path string, logger *log.Logger) ([]domain.FeedSpec, error) {
	if logger == nil {
		logger = log.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var doc feedsFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}
	if len(doc.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s declares no feeds", path)
	}

	logger.Printf("feeds file version: %s, feeds: %d", doc.Meta.Version, len(doc.Feeds))

	specs := make([]domain.FeedSpec, 0, len(doc.Feeds))
	for _, e := range doc.Feeds {
		spec, err := toFeedSpec(e)
		if err != nil {
			return nil, fmt.Errorf("feeds file %s: %w", path, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func toFeedSpec(e feedEntry) (domain.FeedSpec, error) {
	if e.Pair == "" {
		return domain.FeedSpec{}, fmt.Errorf("feed entry missing pair")
	}

	var source domain.FeedSource
	switch e.Source {
	case string(domain.SourceCEX):
		source = domain.SourceCEX
	case string(domain.SourceDEX):
		source = domain.SourceDEX
	default:
		return domain.FeedSpec{}, fmt.Errorf("feed %s: unknown source %q", e.Pair, e.Source)
	}

	feedType := e.Type
	if feedType == "" {
		feedType = "CER"
	}

	return domain.FeedSpec{
		Pair:        e.Pair,
		Label:       e.Label,
		Interval:    e.Interval,
		Deviation:   e.Deviation,
		Source:      source,
		Calculation: e.Calculation,
		Status:      e.Status,
		Type:        feedType,
	}, nil
}

// SplitPairs partitions feed specs into the CEX pair list (requested from
// the aggregator) and the DEX pair list (read from the price index).
func SplitPairs(specs []domain.FeedSpec) (cex, dex []string) {
	for _, s := range specs {
		switch s.Source {
		case domain.SourceCEX:
			cex = append(cex, s.Pair)
		case domain.SourceDEX:
			dex = append(dex, s.Pair)
		}
	}
	return cex, dex
}
