// Package commands implements the CLI commands for dealextract.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "dealextract",
	Short: "Vision-LLM deal extraction from supermarket brochures",
	Long: `Dealextract sends brochure pages to vision model backends and turns
the responses into structured deal lists.

Point it at an image to extract deals, at an annotated dataset to
benchmark backends against each other, or run it as an HTTP service.

Examples:
  # Extract deals from a single page
  dealextract extract -f brochure_extraction page.jpg

  # Extract with a specific model
  dealextract extract -f brochure_extraction -m gpt-4o page.jpg

  # Benchmark all configured models against an annotated dataset
  dealextract bench -d ./dataset -o results.jsonl

  # Run the HTTP API
  dealextract serve --port 8080`,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	viper.SetEnvPrefix("DEALEXTRACT")
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
