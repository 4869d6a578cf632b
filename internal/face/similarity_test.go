package face

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	testCases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{0.2, 0.4, 0.8}, []float32{0.2, 0.4, 0.8}, 1.0},
		{"identical after scaling", []float32{1, 2, 3}, []float32{2, 4, 6}, 1.0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, 0.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"empty vectors", nil, nil, 0.0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"zero norm", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityRange(t *testing.T) {
	vectors := [][]float32{
		{0.1, -0.7, 0.3, 0.9},
		{-0.5, 0.5, -0.5, 0.5},
		{1, 1, 1, 1},
		{-2, 3, -4, 5},
	}

	for i, a := range vectors {
		for j, b := range vectors {
			got := CosineSimilarity(a, b)
			if got < 0 || got > 1 {
				t.Errorf("vectors %d,%d: similarity %f outside [0,1]", i, j, got)
			}
		}
	}
}
