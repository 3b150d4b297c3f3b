package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/smartdeal/dealextract/internal/matching"
)

// ModelSummary pairs a model ID with its benchmark metrics for
// human-readable rendering.
type ModelSummary struct {
	Model   string
	Metrics matching.RunMetrics
}

// TableWriter renders benchmark summaries as an aligned text table.
// Items that are not ModelSummary values are rejected.
type TableWriter struct {
	out  io.Writer
	rows []ModelSummary
}

// NewTableWriter creates a table writer.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{out: w}
}

// Write buffers one model summary row.
func (w *TableWriter) Write(data any) error {
	row, ok := data.(ModelSummary)
	if !ok {
		return fmt.Errorf("table output supports model summaries only, got %T", data)
	}
	w.rows = append(w.rows, row)
	return nil
}

// Flush renders the table, best recall first.
func (w *TableWriter) Flush() error {
	rows := make([]ModelSummary, len(w.rows))
	copy(rows, w.rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Metrics.Recall > rows[j].Metrics.Recall
	})

	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tDOCS\tRECALL\tPRECISION\tF1\tE2E\tPRICE\tUNIT\tBBOX\tJSON OK\tAVG LATENCY\tCACHE HITS")
	for _, r := range rows {
		m := r.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%sms\t%d\n",
			r.Model,
			humanize.Comma(int64(m.Documents)),
			pct(m.Recall),
			pct(m.Precision),
			pct(m.F1),
			pct(m.E2ERecall),
			pct(m.PriceAccuracy),
			pct(m.UnitAccuracy),
			pct(m.BBoxAccuracy),
			pct(m.JSONSuccessRate),
			humanize.CommafWithDigits(m.AvgLatencyMs, 0),
			m.CacheHits,
		)
	}
	return tw.Flush()
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
