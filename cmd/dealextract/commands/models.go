package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the configured model catalog and feature map",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer c.cache.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tKIND\tCOST/MTOK\tRPM\tTIMEOUT")
	for _, m := range c.registry.List() {
		cost := "-"
		if m.CostPerMTok > 0 {
			cost = fmt.Sprintf("$%.3f", m.CostPerMTok)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Kind, cost, m.MaxRequestsPerMinute, m.DefaultTimeout)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Println()
	tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tDEFAULT\tALLOWED")
	for _, f := range c.registry.Features() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.DefaultModelID, strings.Join(f.AllowedModelIDs, ", "))
	}
	return tw.Flush()
}
