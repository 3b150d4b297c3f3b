package matching

// DocumentStats is the per-document input to the aggregator.
type DocumentStats struct {
	Result    Result
	TruthLen  int
	PredLen   int
	ParseOK   bool
	LatencyMs int64
	Cached    bool
}

// RunMetrics summarizes one model's performance across a document set.
type RunMetrics struct {
	Documents       int     `json:"documents"`
	TruthDeals      int     `json:"truth_deals"`
	PredictedDeals  int     `json:"predicted_deals"`
	MatchedDeals    int     `json:"matched_deals"`
	NameAccuracy    float64 `json:"name_accuracy"`
	PriceAccuracy   float64 `json:"price_accuracy"`
	UnitAccuracy    float64 `json:"unit_accuracy"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1              float64 `json:"f1"`
	E2ERecall       float64 `json:"e2e_recall"`
	BBoxAccuracy    float64 `json:"bbox_accuracy"`
	MeanIoU         float64 `json:"mean_iou"`
	JSONSuccessRate float64 `json:"json_success_rate"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	CacheHits       int     `json:"cache_hits"`
}

// Aggregator accumulates per-document stats into run-level metrics.
// Not safe for concurrent use.
type Aggregator struct {
	docs       int
	truth      int
	predicted  int
	matched    int
	priceHits  int
	unitHits   int
	safeHits   int
	iouHits    int
	iouSum     float64
	iouCount   int
	parseOK    int
	latencySum int64
	cacheHits  int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds one document's alignment into the running totals.
func (a *Aggregator) Add(s DocumentStats) {
	a.docs++
	a.truth += s.TruthLen
	a.predicted += s.PredLen
	a.matched += len(s.Result.Pairs)
	a.latencySum += s.LatencyMs
	if s.ParseOK {
		a.parseOK++
	}
	if s.Cached {
		a.cacheHits++
	}
	for _, p := range s.Result.Pairs {
		if p.PriceMatch {
			a.priceHits++
		}
		if p.UnitMatch {
			a.unitHits++
		}
		if p.IsSafe {
			a.safeHits++
		}
		if p.HasIoU {
			a.iouSum += p.IoU
			a.iouCount++
			if p.IoU >= iouThreshold {
				a.iouHits++
			}
		}
	}
}

// Finalize computes the run metrics. Every ratio with a zero
// denominator reports 0.0 rather than NaN.
func (a *Aggregator) Finalize() RunMetrics {
	m := RunMetrics{
		Documents:      a.docs,
		TruthDeals:     a.truth,
		PredictedDeals: a.predicted,
		MatchedDeals:   a.matched,
		CacheHits:      a.cacheHits,
	}
	m.NameAccuracy = ratio(a.matched, a.truth)
	m.PriceAccuracy = ratio(a.priceHits, a.matched)
	m.UnitAccuracy = ratio(a.unitHits, a.matched)
	m.Precision = ratio(a.matched, a.predicted)
	m.Recall = ratio(a.matched, a.truth)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.E2ERecall = ratio(a.safeHits, a.truth)
	m.BBoxAccuracy = ratio(a.iouHits, a.iouCount)
	if a.iouCount > 0 {
		m.MeanIoU = a.iouSum / float64(a.iouCount)
	}
	m.JSONSuccessRate = ratio(a.parseOK, a.docs)
	if a.docs > 0 {
		m.AvgLatencyMs = float64(a.latencySum) / float64(a.docs)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}
