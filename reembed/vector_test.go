package reembed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := unitVector(tt.input)
			require.True(t, ok)
			require.Len(t, result, len(tt.expected))

			var magnitude float64
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
				magnitude += float64(result[i]) * float64(result[i])
			}
			assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
		})
	}

	t.Run("input is not modified", func(t *testing.T) {
		input := []float32{3, 4}
		_, _ = unitVector(input)
		assert.Equal(t, []float32{3, 4}, input)
	})

	t.Run("zero and empty vectors have no direction", func(t *testing.T) {
		_, ok := unitVector([]float32{0, 0, 0})
		assert.False(t, ok)
		_, ok = unitVector(nil)
		assert.False(t, ok)
	})
}
