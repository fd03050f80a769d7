package epoch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate_GridSpan(t *testing.T) {
	grid, err := Interpolate([]float64{0, 2, 5}, []float64{60, 64, 70})
	require.NoError(t, err)

	// [min, max) 不含 max
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, grid.Timestamps)
	assert.Equal(t, []float64{60, 62, 64, 66, 68}, grid.Values)
}

func TestInterpolate_ExactAtSamplePoints(t *testing.T) {
	ts := []float64{0, 1.5, 3, 7, 8, 13}
	values := []float64{61.3, 58.2, 77.7, 64.1, 90.9, 55.5}

	grid, err := Interpolate(ts, values)
	require.NoError(t, err)

	// 落在网格上的样本点（整数时间戳）取原值
	for i, x := range ts {
		if x == math.Trunc(x) && x < ts[len(ts)-1] {
			assert.Equal(t, values[i], grid.Values[int(x)], "ts=%v", x)
		}
	}
	// 任意样本点处的插值等于原值
	for i, x := range ts {
		assert.Equal(t, values[i], Interp(ts, values, x), "ts=%v", x)
	}
}

func TestInterpolate_FractionalStart(t *testing.T) {
	grid, err := Interpolate([]float64{0.5, 2.5}, []float64{10, 30})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, grid.Timestamps)
	assert.Equal(t, []float64{10, 20}, grid.Values)
}

func TestInterpolate_Degenerate(t *testing.T) {
	grid, err := Interpolate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, grid.Len())

	// 单个样本：max == min，网格为空
	grid, err = Interpolate([]float64{3}, []float64{70})
	require.NoError(t, err)
	assert.Equal(t, 0, grid.Len())

	_, err = Interpolate([]float64{0, 1}, []float64{1})
	assert.Error(t, err)

	_, err = Interpolate([]float64{0, 0}, []float64{1, 2})
	assert.Error(t, err)
}

func TestInterp_Clamps(t *testing.T) {
	xp := []float64{1, 2}
	fp := []float64{10, 20}
	assert.Equal(t, 10.0, Interp(xp, fp, -5))
	assert.Equal(t, 20.0, Interp(xp, fp, 9))
	assert.Equal(t, 15.0, Interp(xp, fp, 1.5))
}

func TestIndexRange_OpenInterval(t *testing.T) {
	g := &Grid{}
	for i := 0; i < 400; i++ {
		g.Timestamps = append(g.Timestamps, float64(i))
		g.Values = append(g.Values, 0)
	}

	// epoch 300: (15, 330) → 16..329
	from, to := g.IndexRange(WindowFor(300))
	assert.Equal(t, 16, from)
	assert.Equal(t, 330, to)

	// 窗口在网格之外
	from, to = g.IndexRange(Window{Start: 500, End: 530})
	assert.Equal(t, from, to)
}

func TestWindowSize(t *testing.T) {
	assert.Equal(t, 285, WindowSize)
	w := WindowFor(600)
	assert.Equal(t, 315.0, w.Start)
	assert.Equal(t, 630.0, w.End)
}
