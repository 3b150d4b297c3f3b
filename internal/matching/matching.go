package matching

import (
	"math"

	"github.com/smartdeal/dealextract/internal/domain"
)

// Mode selects the alignment strategy.
type Mode string

const (
	// ModeLegacy matches on names alone with a strict threshold.
	ModeLegacy Mode = "legacy"
	// ModeGeometry relaxes the name threshold and requires bounding
	// box overlap when both sides carry one.
	ModeGeometry Mode = "geometry"
)

const (
	nameThresholdLegacy   = 0.8
	nameThresholdGeometry = 0.5
	unitSimThreshold      = 0.5
	numericTolerance      = 0.01
	iouThreshold          = 0.5
)

// Pair is one aligned ground-truth/prediction couple with its field
// level agreement.
type Pair struct {
	TruthIndex      int     `json:"truth_index"`
	PredictionIndex int     `json:"prediction_index"`
	NameScore       float64 `json:"name_score"`
	PriceMatch      bool    `json:"price_match"`
	UnitMatch       bool    `json:"unit_match"`
	IoU             float64 `json:"iou"`
	HasIoU          bool    `json:"has_iou"`
	// IsSafe marks a deal that could be published without review:
	// price and unit agree in legacy mode, price agrees and the boxes
	// overlap past the IoU threshold in geometry mode.
	IsSafe bool `json:"is_safe"`
}

// Result holds the alignment for one document.
type Result struct {
	Pairs              []Pair `json:"pairs"`
	UnmatchedTruth     []int  `json:"unmatched_truth"`
	UnmatchedPredicted []int  `json:"unmatched_predicted"`
}

// Engine aligns prediction lists against ground truth.
type Engine struct {
	mode Mode
}

// NewEngine returns an engine for the given mode. Unknown modes fall
// back to geometry.
func NewEngine(mode Mode) *Engine {
	if mode != ModeLegacy && mode != ModeGeometry {
		mode = ModeGeometry
	}
	return &Engine{mode: mode}
}

// Mode reports the configured alignment mode.
func (e *Engine) Mode() Mode { return e.mode }

// Match greedily assigns predictions to ground-truth deals. Candidate
// pairs are scored over the full matrix, then consumed best-first; ties
// resolve to the earliest (truth, prediction) index pair. Each deal on
// either side is used at most once, so the number of pairs never
// exceeds the smaller list.
func (e *Engine) Match(truth, predicted []domain.Deal) Result {
	threshold := nameThresholdGeometry
	if e.mode == ModeLegacy {
		threshold = nameThresholdLegacy
	}

	type candidate struct {
		i, j   int
		score  float64
		iou    float64
		hasIoU bool
	}
	var candidates []candidate
	for i := range truth {
		tn := NormalizeName(truth[i].ProductName)
		for j := range predicted {
			score := NameSimilarity(tn, NormalizeName(predicted[j].ProductName))
			if score < threshold {
				continue
			}
			iou, hasIoU := 0.0, false
			if truth[i].BBox != nil && predicted[j].BBox != nil {
				iou = IoU(*truth[i].BBox, *predicted[j].BBox)
				hasIoU = true
				// The gate mirrors the safety rule: overlap must
				// exceed the threshold, not merely reach it.
				if e.mode == ModeGeometry && iou <= iouThreshold {
					continue
				}
			}
			candidates = append(candidates, candidate{i: i, j: j, score: score, iou: iou, hasIoU: hasIoU})
		}
	}

	usedTruth := make(map[int]bool)
	usedPred := make(map[int]bool)
	var pairs []Pair
	for len(pairs) < min(len(truth), len(predicted)) {
		best := -1
		for k, c := range candidates {
			if usedTruth[c.i] || usedPred[c.j] {
				continue
			}
			// Strict > keeps the earliest (i, j) on equal scores
			// because candidates were built in ascending order.
			if best < 0 || c.score > candidates[best].score {
				best = k
			}
		}
		if best < 0 {
			break
		}
		c := candidates[best]
		usedTruth[c.i] = true
		usedPred[c.j] = true
		p := Pair{
			TruthIndex:      c.i,
			PredictionIndex: c.j,
			NameScore:       c.score,
			PriceMatch:      priceMatch(truth[c.i].Price, predicted[c.j].Price),
			UnitMatch:       unitMatch(truth[c.i].Unit, predicted[c.j].Unit),
			IoU:             c.iou,
			HasIoU:          c.hasIoU,
		}
		if e.mode == ModeGeometry {
			p.IsSafe = p.PriceMatch && p.IoU > iouThreshold
		} else {
			p.IsSafe = p.PriceMatch && p.UnitMatch
		}
		pairs = append(pairs, p)
	}

	res := Result{Pairs: pairs}
	for i := range truth {
		if !usedTruth[i] {
			res.UnmatchedTruth = append(res.UnmatchedTruth, i)
		}
	}
	for j := range predicted {
		if !usedPred[j] {
			res.UnmatchedPredicted = append(res.UnmatchedPredicted, j)
		}
	}
	return res
}

// priceMatch compares two prices numerically within a cent tolerance.
// A price missing on either side does not match.
func priceMatch(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	va, okA := ParsePrice(*a)
	vb, okB := ParsePrice(*b)
	if !okA || !okB {
		return false
	}
	// The epsilon absorbs float rounding so a delta of exactly one
	// cent still counts as within tolerance.
	return math.Abs(va-vb) <= numericTolerance+1e-9
}

// unitMatch compares canonicalized units by token overlap. A unit
// absent on either side counts as agreement, since many deals simply
// have no package unit.
func unitMatch(a, b *string) bool {
	ua, ub := "", ""
	if a != nil {
		ua = NormalizeUnit(*a)
	}
	if b != nil {
		ub = NormalizeUnit(*b)
	}
	if ua == "" || ub == "" {
		return true
	}
	return TokenSetSimilarity(ua, ub) >= unitSimThreshold
}

// IoU computes intersection over union for two [x1,y1,x2,y2] boxes in
// normalized coordinates. Degenerate boxes score 0.
func IoU(a, b [4]float64) float64 {
	ix1 := math.Max(a[0], b[0])
	iy1 := math.Max(a[1], b[1])
	ix2 := math.Min(a[2], b[2])
	iy2 := math.Min(a[3], b[3])
	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0.0
	}
	inter := iw * ih
	areaA := math.Max(0, a[2]-a[0]) * math.Max(0, a[3]-a[1])
	areaB := math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0.0
	}
	return inter / union
}
