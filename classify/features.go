// Package classify turns candidate blocks into signal vectors and scores
// them against a weighted model. Feature extraction is pure: the same block
// always yields the same vector, so scoring is reproducible across runs.
package classify

import (
	"math"
	"strings"

	"github.com/duescan/duescan/duedate"
	"github.com/duescan/duescan/extract"
)

// Vector holds the five classification signals, each in [0,1].
type Vector struct {
	Keyword  float64 // assignment vocabulary density
	Date     float64 // a parseable date is present
	Position float64 // structural placement on the page
	Length   float64 // text length plausibility
	Link     float64 // attached hyperlink looks like an activity URL
}

// indicatorWeights maps assignment vocabulary to its evidential weight.
// Strong submission verbs count double; scheduling words count less on
// their own because lecture rows carry them too.
var indicatorWeights = map[string]float64{
	"assignment": 2.0, "submission": 2.0, "submit": 2.0, "due": 2.0,
	"deadline": 2.0, "upload": 2.0, "turnitin": 2.0,
	"essay": 1.5, "coursework": 1.5, "quiz": 1.5, "exam": 1.5,
	"project": 1.0, "report": 1.0, "homework": 1.5, "task": 1.0,
	"portfolio": 1.0, "assessment": 1.5, "lab": 1.0, "worksheet": 1.0,
	"test": 1.0, "presentation": 1.0, "dissertation": 1.5,
	"closes": 1.0, "opens": 0.5, "attempt": 1.0, "graded": 1.0,
	"marks": 0.5, "grade": 0.5, "weighting": 0.5,
}

// counterWeights penalize vocabulary of non-assignment rows: resources,
// announcements, and navigational chrome.
var counterWeights = map[string]float64{
	"lecture": 1.0, "slides": 1.5, "recording": 1.5, "reading": 1.0,
	"announcement": 1.5, "forum": 1.5, "syllabus": 1.0, "handout": 1.0,
	"video": 1.0, "resource": 1.0, "page": 0.5, "book": 0.5,
	"folder": 1.0, "url": 0.5, "glossary": 1.0, "welcome": 1.0,
}

// linkMarkers are URL fragments of LMS assignment activity pages.
var linkMarkers = []string{
	"mod/assign", "mod/quiz", "mod/workshop", "assignments/", "quizzes/",
	"submission", "turnitin",
}

// Extractor derives signal vectors from blocks. The date signal reuses the
// normalizer so "has a date" means "has a date we can actually resolve".
type Extractor struct {
	norm *duedate.Normalizer
}

func NewExtractor(norm *duedate.Normalizer) *Extractor {
	return &Extractor{norm: norm}
}

// Features computes the signal vector for one block. Pure: no I/O, no
// clock reads beyond the normalizer's fixed reference time.
func (e *Extractor) Features(b extract.Block) Vector {
	return Vector{
		Keyword:  keywordScore(b.Text),
		Date:     dateScore(e.norm, b.Text),
		Position: positionScore(b),
		Length:   lengthScore(len(b.Text)),
		Link:     linkScore(b.Link),
	}
}

func keywordScore(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, tok := range tokens {
		if w, ok := indicatorWeights[tok]; ok {
			sum += w
		}
		if w, ok := counterWeights[tok]; ok {
			sum -= w
		}
	}
	if sum <= 0 {
		return 0
	}
	// Scale by density so a 1000-word syllabus with one "due" scores low
	// while a short row with two indicators saturates.
	return clamp01(sum * 8 / float64(len(tokens)))
}

func dateScore(norm *duedate.Normalizer, text string) float64 {
	sub, outcome := norm.FindDate(text)
	if sub == "" {
		return 0
	}
	if outcome.OK {
		return 1.0
	}
	// A labelled but unresolvable date line ("Due: next Friday") is weak
	// evidence: something deadline-shaped is there.
	return 0.4
}

// positionScore combines the producing tier with page order: structural
// containers outrank pattern and text-scan hits, and earlier blocks outrank
// footer-region stragglers. The decay floors at 0.4 of the tier base so a
// late row on a long course page is dampened, not erased.
func positionScore(b extract.Block) float64 {
	var base float64
	switch b.Tier {
	case extract.TierContainer:
		base = 1.0
	case extract.TierPattern:
		base = 0.6
	default:
		base = 0.3
	}
	decay := 0.4 + 0.6*math.Exp(-float64(b.Position)/25)
	return base * decay
}

// lengthScore peaks around typical assignment-row length and decays toward
// one-word stubs and syllabus dumps.
func lengthScore(n int) float64 {
	if n == 0 {
		return 0
	}
	const ideal, spread = 120.0, 180.0
	d := (float64(n) - ideal) / spread
	return math.Exp(-d * d)
}

func linkScore(link string) float64 {
	if link == "" {
		return 0
	}
	lower := strings.ToLower(link)
	for _, m := range linkMarkers {
		if strings.Contains(lower, m) {
			return 1.0
		}
	}
	return 0.4
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
