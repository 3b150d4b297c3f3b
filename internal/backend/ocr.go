package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/smartdeal/dealextract/internal/domain"
)

// ocrPricePattern captures "product name  1,99 €" style lines. Newlines
// are excluded so a name never bleeds across lines.
var ocrPricePattern = regexp.MustCompile(`([A-Za-zäöüÄÖÜß][A-Za-zäöüÄÖÜß \-\.]+?)[ \t]+(\d+[,\.]\d{2})[ \t]*€?`)

// OCRClient runs the deterministic Tesseract pipeline. It recognizes the
// page text and parses price lines with a regex, then emits the same JSON
// array shape the model backends produce so the parser stays uniform.
type OCRClient struct {
	base
	languages []string

	// recognize is injectable for tests; nil means gosseract.
	recognize func(ctx context.Context, image []byte) (string, error)
}

// NewOCRClient creates a Tesseract-backed OCR client.
func NewOCRClient(cfg domain.ModelConfig, policy Policy) *OCRClient {
	return &OCRClient{
		base:      newBase(cfg, policy),
		languages: []string{"deu", "eng"},
	}
}

// Call recognizes the document and returns parsed deals as a JSON array.
func (c *OCRClient) Call(ctx context.Context, req Request) (Result, error) {
	return c.call(ctx, func(ctx context.Context) (Result, *Error) {
		return c.callOnce(ctx, req)
	})
}

func (c *OCRClient) callOnce(ctx context.Context, req Request) (Result, *Error) {
	rec := c.recognize
	if rec == nil {
		rec = c.recognizeTesseract
	}

	text, err := rec(ctx, req.Document)
	if err != nil {
		// A local OCR failure will not change outcome on retry.
		return Result{}, &Error{Kind: FailureFatal, Message: err.Error()}
	}

	deals := ParseOCRText(text)
	out, err := json.Marshal(deals)
	if err != nil {
		return Result{}, &Error{Kind: FailureFatal, Message: fmt.Sprintf("marshal deals: %v", err)}
	}

	return Result{Text: string(out)}, nil
}

func (c *OCRClient) recognizeTesseract(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := client.SetLanguage(c.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// ParseOCRText extracts product/price pairs from recognized page text.
// The OCR pipeline yields neither units nor bounding boxes.
func ParseOCRText(text string) []domain.Deal {
	deals := make([]domain.Deal, 0)
	for _, m := range ocrPricePattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		price := strings.ReplaceAll(m[2], ",", ".")

		// Short fragments and implausible prices are OCR noise.
		if len(name) <= 3 {
			continue
		}
		if v, err := strconv.ParseFloat(price, 64); err != nil || v <= 0 || v >= 100 {
			continue
		}

		deals = append(deals, domain.Deal{
			ProductName: name,
			Price:       domain.StrPtr(price),
		})
	}
	return deals
}
