package feature

import (
	"wisefido-sleepstage/internal/epoch"

	"gonum.org/v1/gonum/stat"
)

// WindowStd 窗口内的总体标准差
func WindowStd(values []float64) float64 {
	return stat.PopStdDev(values, nil)
}

// WindowMean 窗口均值
func WindowMean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// heartRateGrids 心率的两种网格：平滑归一化（std）与原始（mean）
type heartRateGrids struct {
	smoothed *epoch.Grid
	raw      *epoch.Grid
	scalar   float64
}

func buildHeartRateGrids(ts, bpm []float64) (*heartRateGrids, error) {
	smoothed, err := epoch.SmoothedNormalized(ts, bpm)
	if err != nil {
		return nil, err
	}
	raw, scalar, err := epoch.RawNormalized(ts, bpm)
	if err != nil {
		return nil, err
	}
	return &heartRateGrids{smoothed: smoothed, raw: raw, scalar: scalar}, nil
}

// epochStats 单个 epoch 的心率统计；窗口为空或 epoch 距网格起点不足一个窗口时 ok=false
func (g *heartRateGrids) epochStats(epochTs float64) (std, mean, rawMean float64, ok bool) {
	if g.smoothed.Len() == 0 || epochTs-g.smoothed.Min() < epoch.WindowSize {
		return 0, 0, 0, false
	}
	w := epoch.WindowFor(epochTs)

	from, to := g.smoothed.IndexRange(w)
	if to <= from {
		return 0, 0, 0, false
	}
	std = WindowStd(g.smoothed.Values[from:to])

	from, to = g.raw.IndexRange(w)
	if to <= from {
		return 0, 0, 0, false
	}
	rawMean = WindowMean(g.raw.Values[from:to])
	return std, rawMean / g.scalar, rawMean, true
}
