package search

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, -1},
		{"empty", []float32{}, []float32{}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, 0.7, 0.1}
	b := []float32{0.9, 0.2, 0.4}
	if got, want := CosineSimilarity(a, b), CosineSimilarity(b, a); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected symmetry, got %f and %f", got, want)
	}
}
