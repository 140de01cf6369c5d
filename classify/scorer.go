package classify

import "github.com/duescan/duescan/extract"

// Weights assigns relative importance to each signal. Values are data, not
// code: callers can load alternatives from config and retune without a
// rebuild. The scorer normalizes them so only ratios matter.
type Weights struct {
	Keyword  float64 `yaml:"keyword"`
	Date     float64 `yaml:"date"`
	Position float64 `yaml:"position"`
	Length   float64 `yaml:"length"`
	Link     float64 `yaml:"link"`
}

// DefaultWeights reflect calibration against Moodle and Canvas course
// pages: vocabulary and date presence dominate, structure and link shape
// break ties.
func DefaultWeights() Weights {
	return Weights{
		Keyword:  0.35,
		Date:     0.30,
		Position: 0.10,
		Length:   0.10,
		Link:     0.15,
	}
}

// DefaultThreshold is the confidence floor for accepting a candidate.
const DefaultThreshold = 0.5

// Scorer computes confidence as a normalized weighted sum of clamped
// signals. Score is monotonic: raising any one signal never lowers the
// result.
type Scorer struct {
	weights   Weights
	threshold float64
	sum       float64
}

func NewScorer(w Weights, threshold float64) *Scorer {
	sum := w.Keyword + w.Date + w.Position + w.Length + w.Link
	if sum <= 0 {
		w = DefaultWeights()
		sum = w.Keyword + w.Date + w.Position + w.Length + w.Link
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scorer{weights: w, threshold: threshold, sum: sum}
}

// Score returns the confidence for one signal vector, always in [0,1].
// Out-of-range signals are clamped rather than rejected so one bad feature
// cannot poison a run.
func (s *Scorer) Score(v Vector) float64 {
	total := s.weights.Keyword*clamp01(v.Keyword) +
		s.weights.Date*clamp01(v.Date) +
		s.weights.Position*clamp01(v.Position) +
		s.weights.Length*clamp01(v.Length) +
		s.weights.Link*clamp01(v.Link)
	return total / s.sum
}

// Threshold returns the acceptance floor.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Accept reports whether a confidence clears the threshold. The comparison
// is inclusive so a score exactly at the floor passes.
func (s *Scorer) Accept(confidence float64) bool {
	return confidence >= s.threshold
}

// Candidate pairs a block with its score for classification output.
type Candidate struct {
	Block      extract.Block
	Vector     Vector
	Confidence float64
}

// Classify scores every block and returns the accepted candidates in page
// order along with the number rejected.
func Classify(ex *Extractor, sc *Scorer, blocks []extract.Block) (accepted []Candidate, rejected int) {
	for _, b := range blocks {
		v := ex.Features(b)
		conf := sc.Score(v)
		if !sc.Accept(conf) {
			rejected++
			continue
		}
		accepted = append(accepted, Candidate{Block: b, Vector: v, Confidence: conf})
	}
	return accepted, rejected
}
