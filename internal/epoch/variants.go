package epoch

// SmoothedNormalized 插值 → DoG 平滑 → 除以 90 百分位，供 hr_std 使用
func SmoothedNormalized(ts, values []float64) (*Grid, error) {
	grid, err := Interpolate(ts, values)
	if err != nil || grid.Len() == 0 {
		return grid, err
	}

	smoothed := ConvolveDoG(grid.Values, WindowSize)
	scalar := NormalizerScalar(smoothed)
	for i := range smoothed {
		smoothed[i] /= scalar
	}
	return &Grid{Timestamps: grid.Timestamps, Values: smoothed}, nil
}

// RawNormalized 仅插值，返回网格与独立计算的 90 百分位归一化系数，供 hr_mean 使用
func RawNormalized(ts, values []float64) (*Grid, float64, error) {
	grid, err := Interpolate(ts, values)
	if err != nil {
		return nil, 0, err
	}
	if grid.Len() == 0 {
		return grid, 1, nil
	}
	return grid, NormalizerScalar(grid.Values), nil
}
