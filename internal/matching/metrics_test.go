package matching

import (
	"math"
	"testing"
)

func TestFinalizeEmptyRun(t *testing.T) {
	m := NewAggregator().Finalize()

	// Every ratio must be a number, never NaN.
	for name, v := range map[string]float64{
		"recall":       m.Recall,
		"precision":    m.Precision,
		"f1":           m.F1,
		"e2e_recall":   m.E2ERecall,
		"price_acc":    m.PriceAccuracy,
		"unit_acc":     m.UnitAccuracy,
		"bbox_acc":     m.BBoxAccuracy,
		"json_success": m.JSONSuccessRate,
		"avg_latency":  m.AvgLatencyMs,
	} {
		if math.IsNaN(v) {
			t.Errorf("%s is NaN", name)
		}
		if v != 0.0 {
			t.Errorf("%s = %v, want 0.0", name, v)
		}
	}
}

func TestFinalizeAggregates(t *testing.T) {
	agg := NewAggregator()

	// Doc 1: 2 truth, 2 predicted, both matched, one safe.
	agg.Add(DocumentStats{
		Result: Result{Pairs: []Pair{
			{PriceMatch: true, UnitMatch: true, IsSafe: true, HasIoU: true, IoU: 0.9},
			{PriceMatch: false, UnitMatch: true, HasIoU: true, IoU: 0.3},
		}},
		TruthLen:  2,
		PredLen:   2,
		ParseOK:   true,
		LatencyMs: 100,
	})

	// Doc 2: parse failure, 2 truth, nothing predicted.
	agg.Add(DocumentStats{TruthLen: 2})

	m := agg.Finalize()
	if m.Documents != 2 {
		t.Errorf("documents = %d, want 2", m.Documents)
	}
	if m.Recall != 0.5 {
		t.Errorf("recall = %v, want 0.5", m.Recall)
	}
	if m.Precision != 1.0 {
		t.Errorf("precision = %v, want 1.0", m.Precision)
	}
	if m.E2ERecall != 0.25 {
		t.Errorf("e2e recall = %v, want 0.25", m.E2ERecall)
	}
	if m.PriceAccuracy != 0.5 {
		t.Errorf("price accuracy = %v, want 0.5", m.PriceAccuracy)
	}
	if m.UnitAccuracy != 1.0 {
		t.Errorf("unit accuracy = %v, want 1.0", m.UnitAccuracy)
	}
	if m.BBoxAccuracy != 0.5 {
		t.Errorf("bbox accuracy = %v, want 0.5", m.BBoxAccuracy)
	}
	if math.Abs(m.MeanIoU-0.6) > 1e-9 {
		t.Errorf("mean IoU = %v, want 0.6", m.MeanIoU)
	}
	if m.JSONSuccessRate != 0.5 {
		t.Errorf("json success = %v, want 0.5", m.JSONSuccessRate)
	}
	if m.AvgLatencyMs != 50.0 {
		t.Errorf("avg latency = %v, want 50.0", m.AvgLatencyMs)
	}

	wantF1 := 2 * 1.0 * 0.5 / 1.5
	if math.Abs(m.F1-wantF1) > 1e-9 {
		t.Errorf("f1 = %v, want %v", m.F1, wantF1)
	}
}
