// Package pipeline coordinates the extract → classify → duedate stages
// into one run over a rendered course page, producing assignment records
// and run statistics. All intermediates are immutable per run and the
// runner holds no mutable state, so concurrent runs are safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/duescan/duescan/classify"
	"github.com/duescan/duescan/duedate"
	"github.com/duescan/duescan/extract"
)

// ErrNoContent reports that page retrieval handed the pipeline nothing to
// work on. Distinct from a page that parses but contains no assignments,
// which is a successful run with zero records.
var ErrNoContent = errors.New("pipeline: no page content")

// DateFailurePenalty scales a record's confidence when its due string
// resists normalization. The record survives: a deadline we can show the
// user raw beats one we silently drop.
const DateFailurePenalty = 0.75

// Assignment is one verified record from a run.
type Assignment struct {
	Title       string     `json:"title"`
	Due         *time.Time `json:"due,omitempty"`
	RawDue      string     `json:"raw_due,omitempty"`
	Confidence  float64    `json:"confidence"`
	MatchedText string     `json:"matched_text"`
	Markdown    string     `json:"markdown,omitempty"`
	Link        string     `json:"link,omitempty"`
	Tier        string     `json:"tier"`
}

// Stats summarizes one run.
type Stats struct {
	Candidates    int           `json:"candidates"`
	Verified      int           `json:"verified"`
	Rejected      int           `json:"rejected"`
	Duplicates    int           `json:"duplicates"`
	DateFailures  int           `json:"date_failures"`
	AvgConfidence float64       `json:"avg_confidence"`
	Tier          string        `json:"tier"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Config is the per-run tuning surface. Everything that influences output
// lives here rather than in package state, so two runs with equal configs
// over equal pages emit equal records.
type Config struct {
	Weights   classify.Weights
	Threshold float64
	Extract   extract.Options
	// ScanTime anchors year defaulting and relative dates. Zero means now.
	ScanTime time.Time
	// Location resolves wall-clock deadlines. Nil means time.Local.
	Location *time.Location
}

// Runner executes the pipeline. Build one per configuration with New.
type Runner struct {
	cfg      Config
	norm     *duedate.Normalizer
	features *classify.Extractor
	scorer   *classify.Scorer
	sanitize *bluemonday.Policy
}

func New(cfg Config) *Runner {
	if cfg.Weights == (classify.Weights{}) {
		cfg.Weights = classify.DefaultWeights()
	}
	norm := duedate.New(cfg.ScanTime, cfg.Location)
	return &Runner{
		cfg:      cfg,
		norm:     norm,
		features: classify.NewExtractor(norm),
		scorer:   classify.NewScorer(cfg.Weights, cfg.Threshold),
		sanitize: bluemonday.UGCPolicy(),
	}
}

// Run executes one full pass over rendered page HTML. A date that fails to
// normalize keeps its record with a nil Due and a scaled confidence; only
// missing content or cancellation abort the run.
func (r *Runner) Run(ctx context.Context, pageHTML []byte) ([]Assignment, Stats, error) {
	start := time.Now()
	if len(pageHTML) == 0 {
		return nil, Stats{}, ErrNoContent
	}

	blocks, err := extract.Extract(pageHTML, r.cfg.Extract)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("pipeline: %w", err)
	}

	accepted, rejected := classify.Classify(r.features, r.scorer, blocks)

	stats := Stats{
		Candidates: len(blocks),
		Rejected:   rejected,
	}
	if len(blocks) > 0 {
		stats.Tier = blocks[0].Tier.String()
	}

	records := make([]Assignment, 0, len(accepted))
	for _, c := range accepted {
		if err := ctx.Err(); err != nil {
			return nil, Stats{}, fmt.Errorf("pipeline: run cancelled: %w", err)
		}
		rec, dateFailed := r.assemble(c)
		if dateFailed {
			stats.DateFailures++
		}
		records = append(records, rec)
	}

	records, stats.Duplicates = dedupe(records)

	stats.Verified = len(records)
	var sum float64
	for _, rec := range records {
		sum += rec.Confidence
	}
	if len(records) > 0 {
		stats.AvgConfidence = sum / float64(len(records))
	}
	stats.Elapsed = time.Since(start)
	return records, stats, nil
}

// assemble turns one accepted candidate into a record, resolving its due
// date and rendering sanitized markdown for the matched fragment.
func (r *Runner) assemble(c classify.Candidate) (Assignment, bool) {
	rec := Assignment{
		Title:       deriveTitle(c.Block.Text),
		Confidence:  c.Confidence,
		MatchedText: c.Block.Text,
		Link:        c.Block.Link,
		Tier:        c.Block.Tier.String(),
	}

	if md, err := htmltomarkdown.ConvertString(r.sanitize.Sanitize(c.Block.HTML)); err == nil {
		rec.Markdown = strings.TrimSpace(md)
	}

	sub, outcome := r.norm.FindDate(c.Block.Text)
	if sub == "" {
		return rec, false
	}
	rec.RawDue = sub
	if !outcome.OK {
		rec.Confidence = c.Confidence * DateFailurePenalty
		return rec, true
	}
	due := outcome.Time
	rec.Due = &due
	return rec, false
}

// dueLabelRe spots lines that schedule rather than name the work.
var dueLabelRe = regexp.MustCompile(`(?i)^\s*(?:due|deadline|opened?|closed?|closes|submission|submit by)\b`)

// deriveTitle picks the assignment name out of block text: the first line
// that is not a scheduling label. Falls back to a trimmed first line.
func deriveTitle(text string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || dueLabelRe.MatchString(line) {
			continue
		}
		return truncate(line, 200)
	}
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, 200)
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune start so the cut never splits a multibyte
	// character.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut
}

// dedupe suppresses duplicate titles. Normalized equality and containment
// both count: "Essay 1" inside "Essay 1: Research Proposal" is the same
// assignment listed twice. The earlier record wins, keeping page order.
func dedupe(records []Assignment) ([]Assignment, int) {
	kept := records[:0]
	var dropped int
	var keys []string
	for _, rec := range records {
		key := normalizeTitle(rec.Title)
		if key == "" {
			kept = append(kept, rec)
			continue
		}
		dup := false
		for _, seen := range keys {
			if seen == key || strings.Contains(seen, key) || strings.Contains(key, seen) {
				dup = true
				break
			}
		}
		if dup {
			dropped++
			continue
		}
		keys = append(keys, key)
		kept = append(kept, rec)
	}
	return kept, dropped
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTitle(title string) string {
	return strings.Trim(nonAlnumRe.ReplaceAllString(strings.ToLower(title), " "), " ")
}
