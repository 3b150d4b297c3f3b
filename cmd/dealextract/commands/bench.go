package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smartdeal/dealextract/internal/bench"
	"github.com/smartdeal/dealextract/internal/output"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark models against an annotated dataset",
	Long: `Run every selected model over an annotated document set and score the
predictions against ground truth.

The dataset directory holds image files, each with a same-named .json
sidecar listing the annotated deals. Per-document results stream to the
output file as JSONL; a comparison table prints to stderr at the end.

Examples:
  # Benchmark the feature's whole allow-list
  dealextract bench -d ./dataset -o results.jsonl

  # Benchmark two specific models without caching
  dealextract bench -d ./dataset -m gpt-4o -m llava:7b --no-cache`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	flags := benchCmd.Flags()
	flags.StringP("dataset", "d", "", "dataset directory (required)")
	flags.StringP("feature", "f", "brochure_extraction", "feature to route through")
	flags.StringSliceP("model", "m", nil, "model(s) to benchmark (default: the feature's allow-list)")
	flags.StringP("output", "o", "", "JSONL results file (default: stdout)")
	flags.Bool("no-cache", false, "bypass the response cache")

	_ = benchCmd.MarkFlagRequired("dataset")
}

func runBench(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer c.cache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir, _ := cmd.Flags().GetString("dataset")
	docs, err := bench.LoadDataset(dir)
	if err != nil {
		logError("%v", err)
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no annotated documents found in %s", dir)
	}

	feature, _ := cmd.Flags().GetString("feature")
	models, _ := cmd.Flags().GetStringSlice("model")
	if len(models) == 0 {
		f, err := c.registry.Feature(feature)
		if err != nil {
			logError("%v", err)
			return err
		}
		models = f.AllowedModelIDs
	}

	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logError("creating output file: %v", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	logInfo("benchmarking %d models over %d documents", len(models), len(docs))

	runner := bench.NewRunner(c.dispatcher, c.engine, feature, !noCache, outFile)
	results, err := runner.Run(ctx, docs, models)
	if err != nil {
		logError("%v", err)
		return err
	}

	// Comparison table goes to stderr so JSONL on stdout stays clean.
	table := output.NewTableWriter(os.Stderr)
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := table.Write(output.ModelSummary{Model: id, Metrics: results[id]}); err != nil {
			return err
		}
	}
	return table.Flush()
}
