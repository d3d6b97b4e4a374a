package kinematics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgmaxArgminFirstOccurrence(t *testing.T) {
	t.Parallel()

	data := []float64{0, 3, 1, 3, -2, 5, -2}

	i, err := argmaxIn(data, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	i, err = argmaxIn(data, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, i, "window end is clipped")

	i, err = argminIn(data, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, i)

	_, err = argmaxIn(data, 7, 20)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	_, err = argminIn(data, 3, 3)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestRelativeExtrema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []float64
		order  int
		maxima []int
		minima []int
	}{
		{"alternating", []float64{0, 1, 0, 2, 0}, 1, []int{1, 3}, []int{2}},
		{"plateau is not an extremum", []float64{0, 2, 2, 0}, 1, nil, nil},
		{"order hides close peaks", []float64{0, 1, 0, 2, 0, 0, 0}, 2, []int{3}, nil},
		{"monotonic", []float64{1, 2, 3, 4}, 1, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.maxima, relativeExtrema(tt.data, tt.order, true))
			assert.Equal(t, tt.minima, relativeExtrema(tt.data, tt.order, false))
			assert.Equal(t, len(tt.maxima)+len(tt.minima), countExtrema(tt.data, tt.order))
		})
	}
}

func TestPathLength(t *testing.T) {
	t.Parallel()

	s := []Sample{{}, {X: 3, Y: 4}, {X: 3, Y: 4, Z: 12}}
	assert.InDelta(t, 17.0, pathLength(s), 1e-12)
	assert.Equal(t, 0.0, pathLength(s[:1]))
	assert.Equal(t, 0.0, pathLength(nil))
}
