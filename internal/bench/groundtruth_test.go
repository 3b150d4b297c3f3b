package bench

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartdeal/dealextract/internal/domain"
)

func TestParseGroundTruth(t *testing.T) {
	data := []byte(`[{"product_name": "Nutella", "price": "1.99", "unit": "450 g", "bbox": [0.1, 0.1, 0.4, 0.3]}]`)

	deals, err := ParseGroundTruth(data)
	if err != nil {
		t.Fatalf("ParseGroundTruth: %v", err)
	}
	if len(deals) != 1 || deals[0].ProductName != "Nutella" {
		t.Fatalf("got %+v", deals)
	}
}

func TestParseGroundTruthNull(t *testing.T) {
	for _, payload := range []string{"null", "", "  \n "} {
		deals, err := ParseGroundTruth([]byte(payload))
		if err != nil {
			t.Fatalf("ParseGroundTruth(%q): %v", payload, err)
		}
		if deals == nil {
			t.Fatalf("ParseGroundTruth(%q) = nil, want empty list", payload)
		}
		if len(deals) != 0 {
			t.Fatalf("ParseGroundTruth(%q) = %+v", payload, deals)
		}
	}
}

func TestParseGroundTruthMissingName(t *testing.T) {
	data := []byte(`[{"price": "1.99"}]`)

	_, err := ParseGroundTruth(data)
	if !errors.Is(err, domain.ErrInvalidGroundTruth) {
		t.Fatalf("err = %v, want ErrInvalidGroundTruth", err)
	}
}

func TestParseGroundTruthBBoxOutOfRange(t *testing.T) {
	data := []byte(`[{"product_name": "X", "bbox": [0.1, 0.1, 1.4, 0.3]}]`)

	_, err := ParseGroundTruth(data)
	if !errors.Is(err, domain.ErrInvalidGroundTruth) {
		t.Fatalf("err = %v, want ErrInvalidGroundTruth", err)
	}
}

func TestParseGroundTruthMalformed(t *testing.T) {
	_, err := ParseGroundTruth([]byte(`{"not": "a list"`))
	if !errors.Is(err, domain.ErrInvalidGroundTruth) {
		t.Fatalf("err = %v, want ErrInvalidGroundTruth", err)
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("page-002.jpg", "fake jpeg")
	write("page-002.json", `[{"product_name": "Milka"}]`)
	write("page-001.png", "fake png")
	write("page-001.json", `null`)
	write("orphan.jpg", "no sidecar")
	write("notes.txt", "ignored")

	docs, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}

	// Sorted by ID.
	if docs[0].ID != "page-001" || docs[1].ID != "page-002" {
		t.Fatalf("order = %s, %s", docs[0].ID, docs[1].ID)
	}
	if docs[0].MediaType != "image/png" {
		t.Errorf("media type = %s", docs[0].MediaType)
	}
	if len(docs[0].GroundTruth) != 0 {
		t.Errorf("null annotation should load as empty list")
	}
	if len(docs[1].GroundTruth) != 1 {
		t.Errorf("got %+v", docs[1].GroundTruth)
	}
}

func TestLoadDatasetInvalidSidecarSkipsDocument(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// A nameless record invalidates bad.jpg alone; good.jpg must
	// still load.
	write("bad.jpg", "x")
	write("bad.json", `[{"price": "1.00"}]`)
	write("good.jpg", "y")
	write("good.json", `[{"product_name": "Milka"}]`)

	docs, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].ID != "good" {
		t.Errorf("loaded %s, want good", docs[0].ID)
	}
}
