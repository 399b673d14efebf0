package dedup

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "acme", "acme", 1, 1},
		{"both empty", "", "", 0, 0},
		{"one empty", "acme", "", 0, 0},
		{"token order neutral", "bakkerij jansen", "jansen bakkerij", 1, 1},
		{"close variants", "acme industries", "acme industry", 0.9, 1},
		{"typo", "martha", "marhta", 0.9, 1},
		{"unrelated", "acme", "zebra logistics", 0, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %f, want within [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
			}
			if sym := Similarity(tt.b, tt.a); sym != got {
				t.Errorf("similarity not symmetric: %f vs %f", got, sym)
			}
		})
	}
}

func TestSimilarityBounded(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"}, {"aa", "ab"}, {"acme bv", "acme"},
		{"supercalifragilistic", "super"}, {"x", "xxxxxxxxxx"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %f out of [0,1]", p[0], p[1], got)
		}
	}
}
