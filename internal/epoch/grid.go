// Package epoch 把不规则采样的流重采样到 1 秒网格，并提供 epoch 窗口与平滑工具。
package epoch

import (
	"fmt"
	"sort"

	"wisefido-sleepstage/internal/models"
)

// WindowSize 特征窗口长度（秒）：epoch 前 9.5 个 epoch
const WindowSize = 10*models.EpochDuration - 15

// Grid 均匀 1 秒网格上的序列
type Grid struct {
	Timestamps []float64
	Values     []float64
}

// Len 网格点数
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Timestamps)
}

// Min 网格起点
func (g *Grid) Min() float64 {
	return g.Timestamps[0]
}

// Interpolate 在 [min, max) 上以 1 为步长线性插值，样本点处取原值
func Interpolate(ts, values []float64) (*Grid, error) {
	if len(ts) != len(values) {
		return nil, fmt.Errorf("timestamps and values differ in length: %d vs %d", len(ts), len(values))
	}
	if len(ts) == 0 {
		return &Grid{}, nil
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			return nil, fmt.Errorf("timestamps not strictly increasing at %d", i)
		}
	}

	lo, hi := ts[0], ts[len(ts)-1]
	grid := &Grid{}
	j := 0
	for k := 0; lo+float64(k) < hi; k++ {
		x := lo + float64(k)
		for j < len(ts)-2 && ts[j+1] <= x {
			j++
		}
		grid.Timestamps = append(grid.Timestamps, x)
		grid.Values = append(grid.Values, lerp(ts, values, j, x))
	}
	return grid, nil
}

// Interp 单点线性插值，区间外取端点值
func Interp(xp, fp []float64, x float64) float64 {
	n := len(xp)
	if n == 0 {
		return 0
	}
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	// 最后一个 xp[j] <= x
	j := sort.SearchFloat64s(xp, x)
	if j < n && xp[j] == x {
		return fp[j]
	}
	return lerp(xp, fp, j-1, x)
}

// lerp 在 [xp[j], xp[j+1]] 段内插值
func lerp(xp, fp []float64, j int, x float64) float64 {
	if x == xp[j] || j+1 >= len(xp) {
		return fp[j]
	}
	slope := (fp[j+1] - fp[j]) / (xp[j+1] - xp[j])
	return slope*(x-xp[j]) + fp[j]
}

// Window epoch 的特征窗口，开区间 (Start, End)
type Window struct {
	Start float64
	End   float64
}

// WindowFor epoch 时间戳对应的窗口：(ts-WindowSize, ts+EpochDuration)
func WindowFor(epochTs float64) Window {
	return Window{Start: epochTs - WindowSize, End: epochTs + models.EpochDuration}
}

// IndexRange 严格落在窗口内的网格下标范围 [from, to)
func (g *Grid) IndexRange(w Window) (from, to int) {
	n := g.Len()
	from = sort.Search(n, func(i int) bool { return g.Timestamps[i] > w.Start })
	to = sort.Search(n, func(i int) bool { return g.Timestamps[i] >= w.End })
	if to < from {
		to = from
	}
	return from, to
}
