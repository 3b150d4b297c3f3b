// Package parser converts raw backend responses into validated deal
// lists. Model output is frequently near-JSON: code fences, leading
// commentary, trailing explanations. The parser extracts the first
// well-formed JSON array or object substring before decoding, and treats
// failure as a value so one malformed response cannot abort a batch.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/matching"
)

var codeFencePattern = regexp.MustCompile("```(?:json)?")

// Options carries the document context needed for bbox normalization.
type Options struct {
	// Declared page dimensions in pixels. Needed only when a backend
	// emits pixel-scale coordinates; 0 means unknown.
	Width  int
	Height int
}

// Parse decodes raw model output into deals. A response that yields no
// decodable JSON returns domain.ErrParseFailed; objects without a product
// name are dropped silently.
func Parse(raw string, opts Options) ([]domain.Deal, error) {
	cleaned := codeFencePattern.ReplaceAllString(raw, "")

	jsonStr, ok := firstJSONValue(cleaned)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON found in response", domain.ErrParseFailed)
	}

	var objects []map[string]any
	if strings.HasPrefix(jsonStr, "{") {
		var single map[string]any
		if err := json.Unmarshal([]byte(jsonStr), &single); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
		}
		objects = []map[string]any{single}
	} else {
		var list []any
		if err := json.Unmarshal([]byte(jsonStr), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
		}
		for _, el := range list {
			if obj, ok := el.(map[string]any); ok {
				objects = append(objects, obj)
			}
		}
	}

	deals := make([]domain.Deal, 0, len(objects))
	for _, obj := range objects {
		if deal, ok := decodeDeal(obj, opts); ok {
			deals = append(deals, deal)
		}
	}
	return deals, nil
}

// decodeDeal converts one decoded object. Tolerates the field aliases
// seen in the wild (name/box for product_name/bbox) and string-or-number
// prices.
func decodeDeal(obj map[string]any, opts Options) (domain.Deal, bool) {
	name := stringField(obj, "product_name")
	if name == "" {
		name = stringField(obj, "name")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Deal{}, false
	}

	deal := domain.Deal{
		ProductName:   name,
		Price:         priceField(obj, "price"),
		OriginalPrice: priceField(obj, "original_price"),
		Discount:      textField(obj, "discount"),
		Unit:          textField(obj, "unit"),
	}

	box := obj["bbox"]
	if box == nil {
		box = obj["box"]
	}
	deal.BBox = decodeBBox(box, opts)

	return deal, true
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func textField(obj map[string]any, key string) *string {
	s := strings.TrimSpace(stringField(obj, key))
	if s == "" {
		return nil
	}
	return &s
}

func priceField(obj map[string]any, key string) *string {
	raw := stringField(obj, key)
	if raw == "" {
		return nil
	}
	return matching.NormalizePrice(raw)
}

// decodeBBox validates and normalizes a bounding box. Coordinates above
// 1.5 indicate pixel scale and are divided by the declared page
// dimensions; everything is clamped into [0,1].
func decodeBBox(v any, opts Options) *[4]float64 {
	list, ok := v.([]any)
	if !ok || len(list) != 4 {
		return nil
	}

	var box [4]float64
	for i, el := range list {
		f, ok := el.(float64)
		if !ok {
			s, isStr := el.(string)
			if !isStr {
				return nil
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil
			}
			f = parsed
		}
		box[i] = f
	}

	pixelScale := false
	for _, c := range box {
		if c > 1.5 {
			pixelScale = true
			break
		}
	}
	if pixelScale {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil
		}
		box[0] /= float64(opts.Width)
		box[1] /= float64(opts.Height)
		box[2] /= float64(opts.Width)
		box[3] /= float64(opts.Height)
	}

	for i, c := range box {
		if c < 0 {
			box[i] = 0
		} else if c > 1 {
			box[i] = 1
		}
	}
	return &box
}

// firstJSONValue returns the first balanced JSON array or object
// substring. String literals are respected so braces inside values do
// not confuse the scan.
func firstJSONValue(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '[' || s[i] == '{' {
			start = i
			open = s[i]
			if open == '[' {
				close = ']'
			} else {
				close = '}'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
