package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
	"github.com/smartdeal/dealextract/internal/matching"
)

// Extractor is the slice of the dispatcher the runner needs.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error)
}

// DocumentRecord is one JSONL line of benchmark output.
type DocumentRecord struct {
	Type       string          `json:"type"`
	DocumentID string          `json:"document_id"`
	Model      string          `json:"model"`
	LatencyMs  int64           `json:"latency_ms"`
	Cached     bool            `json:"cached"`
	ParseOK    bool            `json:"parse_ok"`
	Skipped    bool            `json:"skipped,omitempty"`
	Error      string          `json:"error,omitempty"`
	Match      matching.Result `json:"match"`
}

// SummaryRecord is the final JSONL line for one model's run.
type SummaryRecord struct {
	Type    string              `json:"type"`
	Model   string              `json:"model"`
	Metrics matching.RunMetrics `json:"metrics"`
}

// Runner drives each model over the document set. Models run
// concurrently with each other; within one model the documents are
// processed strictly in order, so a local inference backend is never
// hit by two requests at once.
type Runner struct {
	dispatcher Extractor
	engine     *matching.Engine
	feature    string
	useCache   bool
	out        io.Writer
}

// NewRunner builds a benchmark runner writing JSONL records to out.
func NewRunner(d Extractor, engine *matching.Engine, feature string, useCache bool, out io.Writer) *Runner {
	return &Runner{dispatcher: d, engine: engine, feature: feature, useCache: useCache, out: out}
}

// Run evaluates each model over the whole document set and returns the
// aggregated metrics per model ID. Backend failures and invalid
// documents are recorded and skipped; only context cancellation aborts
// the run.
func (r *Runner) Run(ctx context.Context, docs []Document, modelIDs []string) (map[string]matching.RunMetrics, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	enc := json.NewEncoder(r.out)
	results := make(map[string]matching.RunMetrics, len(modelIDs))

	var (
		wg sync.WaitGroup
		// mu guards enc, results, and runErr. JSONL lines from
		// different models may interleave but each line stays whole.
		mu     sync.Mutex
		runErr error
	)

	for _, modelID := range modelIDs {
		wg.Add(1)
		go func(modelID string) {
			defer wg.Done()
			metrics, err := r.runModel(ctx, enc, &mu, docs, modelID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if runErr == nil {
					runErr = err
				}
				cancel()
				return
			}
			results[modelID] = metrics
		}(modelID)
	}
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return results, nil
}

// runModel processes the whole document set against one model, in
// order, emitting one JSONL line per document and a final summary.
func (r *Runner) runModel(ctx context.Context, enc *json.Encoder, mu *sync.Mutex, docs []Document, modelID string) (matching.RunMetrics, error) {
	logger.Info("benchmark run starting", "model", modelID, "documents", len(docs))
	agg := matching.NewAggregator()
	start := time.Now()

	for _, doc := range docs {
		rec, stats, err := r.evaluate(ctx, doc, modelID)
		if err != nil {
			return matching.RunMetrics{}, err
		}
		mu.Lock()
		encErr := enc.Encode(rec)
		mu.Unlock()
		if encErr != nil {
			return matching.RunMetrics{}, fmt.Errorf("writing benchmark record: %w", encErr)
		}
		if stats != nil {
			agg.Add(*stats)
		}
	}

	metrics := agg.Finalize()
	mu.Lock()
	encErr := enc.Encode(SummaryRecord{Type: "summary", Model: modelID, Metrics: metrics})
	mu.Unlock()
	if encErr != nil {
		return matching.RunMetrics{}, fmt.Errorf("writing benchmark summary: %w", encErr)
	}

	logger.Info("benchmark run finished",
		"model", modelID,
		"recall", metrics.Recall,
		"precision", metrics.Precision,
		"e2e_recall", metrics.E2ERecall,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return metrics, nil
}

// evaluate runs a single document against a single model. The second
// return is nil when the document is skipped.
func (r *Runner) evaluate(ctx context.Context, doc Document, modelID string) (DocumentRecord, *matching.DocumentStats, error) {
	rec := DocumentRecord{Type: "document", DocumentID: doc.ID, Model: modelID}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		logger.Warn("document unreadable, skipping", "document", doc.ID, "error", err)
		rec.Skipped = true
		rec.Error = err.Error()
		return rec, nil, nil
	}

	resp, err := r.dispatcher.Extract(ctx, domain.ExtractionRequest{
		Feature:         r.feature,
		Document:        data,
		MediaType:       doc.MediaType,
		OverrideModelID: modelID,
		Store:           r.useCache,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil {
			return rec, nil, err
		}
		logger.Warn("extraction failed", "document", doc.ID, "model", modelID, "error", err)
		rec.Error = err.Error()
		res := r.engine.Match(doc.GroundTruth, nil)
		rec.Match = res
		stats := matching.DocumentStats{Result: res, TruthLen: len(doc.GroundTruth)}
		return rec, &stats, nil
	}

	res := r.engine.Match(doc.GroundTruth, resp.Deals)
	rec.LatencyMs = resp.LatencyMs
	rec.Cached = resp.Cached
	rec.ParseOK = resp.ParseOK
	rec.Match = res

	stats := matching.DocumentStats{
		Result:    res,
		TruthLen:  len(doc.GroundTruth),
		PredLen:   len(resp.Deals),
		ParseOK:   resp.ParseOK,
		LatencyMs: resp.LatencyMs,
		Cached:    resp.Cached,
	}
	return rec, &stats, nil
}
