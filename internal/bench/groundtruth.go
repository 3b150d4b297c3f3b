// Package bench evaluates extraction backends against an annotated
// document set and reports run-level metrics.
package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is one benchmark input: an image plus its annotated deals.
type Document struct {
	ID          string
	Path        string
	MediaType   string
	GroundTruth []domain.Deal
}

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// LoadDataset scans dir for image files paired with a same-named .json
// ground-truth sidecar. Images without a sidecar are skipped. An
// annotation of JSON null means "no deals" and loads as an empty list.
func LoadDataset(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset dir: %w", err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		mediaType, ok := imageMediaTypes[ext]
		if !ok {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		sidecar := filepath.Join(dir, base+".json")
		truth, err := LoadGroundTruth(sidecar)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			// A bad annotation invalidates that document only; the
			// rest of the run proceeds without it.
			if errors.Is(err, domain.ErrInvalidGroundTruth) {
				logger.Warn("invalid ground truth, skipping document", "document", base, "error", err)
				continue
			}
			return nil, fmt.Errorf("document %s: %w", base, err)
		}
		docs = append(docs, Document{
			ID:          base,
			Path:        filepath.Join(dir, e.Name()),
			MediaType:   mediaType,
			GroundTruth: truth,
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// LoadGroundTruth reads and validates one annotation file.
func LoadGroundTruth(path string) ([]domain.Deal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGroundTruth(data)
}

// ParseGroundTruth decodes an annotation payload. Each record must
// carry a product name; a record that does not makes the whole
// document invalid.
func ParseGroundTruth(data []byte) ([]domain.Deal, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return []domain.Deal{}, nil
	}

	var deals []domain.Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGroundTruth, err)
	}
	for i := range deals {
		if err := validate.Struct(&deals[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrInvalidGroundTruth, i, err)
		}
		for _, c := range bboxOf(deals[i]) {
			if c < 0 || c > 1 {
				return nil, fmt.Errorf("%w: record %d: bbox coordinate %v outside [0,1]", domain.ErrInvalidGroundTruth, i, c)
			}
		}
	}
	if deals == nil {
		deals = []domain.Deal{}
	}
	return deals, nil
}

func bboxOf(d domain.Deal) []float64 {
	if d.BBox == nil {
		return nil
	}
	return d.BBox[:]
}
