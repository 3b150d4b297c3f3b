package commands

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
	"github.com/smartdeal/dealextract/internal/output"
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] IMAGE...",
	Short: "Extract deals from brochure page images",
	Long: `Send one or more brochure page images to a vision backend and print
the extracted deals.

The feature decides which model handles the request; --model overrides
the feature's default with any model on its allow-list.

Examples:
  # Extract with the feature's default model
  dealextract extract -f brochure_extraction page.jpg

  # Force a specific model and skip the cache
  dealextract extract -f brochure_extraction -m qwen2.5vl:7b --no-cache page.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.StringP("feature", "f", "brochure_extraction", "feature to route through")
	flags.StringP("model", "m", "", "override model (must be on the feature's allow-list)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.Bool("no-cache", false, "bypass the response cache")
}

var mediaTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func runExtract(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer c.cache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	feature, _ := cmd.Flags().GetString("feature")
	model, _ := cmd.Flags().GetString("model")
	noCache, _ := cmd.Flags().GetBool("no-cache")

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

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logError("%v", err)
		return err
	}
	writer, err := output.NewWriter(outFile, format)
	if err != nil {
		logError("%v", err)
		return err
	}

	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified images
		if err != nil {
			logError("reading %s: %v", path, err)
			failed++
			continue
		}

		mediaType := mediaTypesByExt[strings.ToLower(filepath.Ext(path))]
		if mediaType == "" {
			logError("%s: unsupported image type", path)
			failed++
			continue
		}

		width, height := imageDims(data)

		resp, err := c.dispatcher.Extract(ctx, domain.ExtractionRequest{
			Feature:         feature,
			Document:        data,
			MediaType:       mediaType,
			Width:           width,
			Height:          height,
			OverrideModelID: model,
			Store:           !noCache,
		})
		if err != nil {
			logError("%s: %v", path, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}

		logInfo("%s: %d deals (model=%s cached=%v latency=%dms)",
			path, len(resp.Deals), resp.ModelUsed, resp.Cached, resp.LatencyMs)

		if err := writer.Write(resp); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// imageDims decodes just the image header; 0,0 when the format is not
// recognized.
func imageDims(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
