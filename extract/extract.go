// Package extract pulls candidate assignment blocks out of a rendered
// course page.
//
// Retrieval strategies are ordered tiers: structural containers first,
// generic date-adjacent patterns second, a plain text scan last. The first
// tier producing enough candidates wins and tiers are never merged, so the
// most structure-aware (least noisy) strategy is always preferred.
package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Tier identifies which retrieval strategy produced a block.
type Tier int

const (
	TierNone Tier = iota
	TierContainer
	TierPattern
	TierTextScan
)

func (t Tier) String() string {
	switch t {
	case TierContainer:
		return "container"
	case TierPattern:
		return "pattern"
	case TierTextScan:
		return "textscan"
	default:
		return "none"
	}
}

// Block is one candidate assignment entry: the visible text, the raw
// fragment markup, its position on the page, the tier that produced it,
// and the first attached hyperlink if any. Blocks are immutable once
// produced and discarded after scoring.
type Block struct {
	Text     string
	HTML     string
	Position int
	Tier     Tier
	Link     string
}

// Options configures the tier ladder.
type Options struct {
	// MinCandidates is the per-tier viability threshold: a tier that
	// yields fewer candidates hands over to the next one. Default: 1.
	MinCandidates int
	// MinTextLen is the text-scan floor in bytes. Default: 40.
	MinTextLen int
	// MaxTextLen skips oversized blocks (full syllabus dumps). Default: 2000.
	MaxTextLen int
	// Selectors are extra structural container selectors tried before the
	// built-in ones, so new LMS templates slot in without code changes.
	Selectors []string
}

func (o *Options) defaults() {
	if o.MinCandidates <= 0 {
		o.MinCandidates = 1
	}
	if o.MinTextLen <= 0 {
		o.MinTextLen = 40
	}
	if o.MaxTextLen <= 0 {
		o.MaxTextLen = 2000
	}
}

// Extract runs the tier ladder over rendered page HTML and returns the
// winning tier's candidate blocks in page order. Zero candidates from all
// tiers is a valid outcome and returns an empty slice, not an error;
// retrieval failures are the fetcher's to report.
func Extract(pageHTML []byte, opts Options) ([]Block, error) {
	opts.defaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse page: %w", err)
	}

	for _, tier := range []func(*goquery.Document, Options) []Block{
		extractContainers,
		extractPatterns,
		extractTextScan,
	} {
		blocks := tier(doc, opts)
		if len(blocks) >= opts.MinCandidates {
			return blocks, nil
		}
	}

	return []Block{}, nil
}
