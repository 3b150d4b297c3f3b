package matching

import (
	"testing"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		nilOK bool
	}{
		{"euro prefix", "€1.99", "1.99", false},
		{"german comma", "1,99", "1.99", false},
		{"plain dot", "1.99", "1.99", false},
		{"euro suffix with space", "2.49 €", "2.49", false},
		{"dollar", "$3.00", "3.00", false},
		{"thousands german", "1.234,56", "1234.56", false},
		{"thousands english", "1,234.56", "1234.56", false},
		{"integer", "2", "2.00", false},
		{"single decimal", "0,5", "0.50", false},
		{"not a price", "n/a", "", true},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"text only", "gratis", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePrice(tt.input)
			if tt.nilOK {
				if got != nil {
					t.Errorf("NormalizePrice(%q) = %q, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("NormalizePrice(%q) = nil, want %q", tt.input, tt.want)
			}
			if *got != tt.want {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, *got, tt.want)
			}
		})
	}
}

func TestNormalizePriceRoundTrip(t *testing.T) {
	// All spellings of the same price normalize identically.
	variants := []string{"€1.99", "1,99", "1.99", "1,99 €"}
	for _, v := range variants {
		got := NormalizePrice(v)
		if got == nil || *got != "1.99" {
			t.Errorf("NormalizePrice(%q) = %v, want 1.99", v, got)
		}
	}
}

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"attached quantity", "450g", "450 g"},
		{"spaced quantity", "450 g", "450 g"},
		{"stueck variants", "Stück", "stk"},
		{"ascii stueck", "stueck", "stk"},
		{"packung", "Packung", "pack"},
		{"liter", "1 Liter", "1 l"},
		{"kilogram price stripped", "500 g kg-preis 3.98", "500 g"},
		{"pure number", "6", ""},
		{"price is not a unit", "1,99 €", ""},
		{"empty", "", ""},
		{"multipack", "6x1l", "6 x 1 l"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeUnit(tt.input); got != tt.want {
				t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Nutella® 450g!", "nutella 450g"},
		{"  Coca-Cola   Zero ", "coca cola zero"},
		{"MILKA Schokolade", "milka schokolade"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	if got := NameSimilarity("nutella", "nutella"); got != 1.0 {
		t.Errorf("identical names = %v, want 1.0", got)
	}
	if got := NameSimilarity("nutella", "nutella 450g jar"); got < 0.5 {
		t.Errorf("substring name = %v, want >= 0.5", got)
	}
	if got := NameSimilarity("nutella", "xqzw"); got > 0.3 {
		t.Errorf("unrelated names = %v, want low", got)
	}
	if got := NameSimilarity("", ""); got != 1.0 {
		t.Errorf("both empty = %v, want 1.0", got)
	}
	if got := NameSimilarity("a", ""); got != 0.0 {
		t.Errorf("one empty = %v, want 0.0", got)
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	if got := TokenSetSimilarity("450 g", "450 g"); got != 1.0 {
		t.Errorf("identical = %v, want 1.0", got)
	}
	if got := TokenSetSimilarity("450 g", "450 ml"); got != 1.0/3.0 {
		t.Errorf("partial = %v, want 1/3", got)
	}
	if got := TokenSetSimilarity("", ""); got != 1.0 {
		t.Errorf("both empty = %v, want 1.0", got)
	}
	if got := TokenSetSimilarity("g", ""); got != 0.0 {
		t.Errorf("one empty = %v, want 0.0", got)
	}
}
