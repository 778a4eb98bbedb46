package intent

import "testing"

func TestParse(t *testing.T) {
	for _, in := range All {
		got, err := Parse(string(in))
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", in, err)
		}
		if got != in {
			t.Errorf("Parse(%q) = %q", in, got)
		}
	}

	if _, err := Parse("product"); err == nil {
		t.Error("expected error for lowercase intent")
	}
}

func TestHints_HasProduct(t *testing.T) {
	tests := []struct {
		name  string
		hints Hints
		want  bool
	}{
		{"empty", Hints{}, false},
		{"id", Hints{ProductID: "SKU-1234"}, true},
		{"name", Hints{ProductName: "Trail Runner 2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hints.HasProduct(); got != tt.want {
				t.Errorf("HasProduct() = %v, want %v", got, tt.want)
			}
		})
	}
}
