package feature

import (
	"math"

	"wisefido-sleepstage/internal/epoch"
	"wisefido-sleepstage/internal/models"

	"gonum.org/v1/gonum/floats"
)

const (
	// countBinSeconds 活动计数的统计粒度
	countBinSeconds = 15.0
	// countSigma 计数窗口高斯加权的标准差（秒）
	countSigma = 50.0
)

// ActivityCounts 由三轴加速度计算活动计数：每 15 秒累加 | ‖a‖ − 1g |
// 返回 (ts, count) 两列，ts 为分箱起点；无样本的分箱不输出
func ActivityCounts(motion *models.Series) *models.Series {
	out := &models.Series{Cols: 2}
	if motion.Len() == 0 || motion.Cols < 4 {
		return out
	}

	origin := motion.Timestamp(0)
	bin := -1
	var sum float64
	flush := func() {
		if bin >= 0 {
			out.Data = append(out.Data, origin+float64(bin)*countBinSeconds, sum)
		}
	}
	for i := 0; i < motion.Len(); i++ {
		row := motion.Row(i)
		b := int(math.Floor((row[0] - origin) / countBinSeconds))
		if b != bin {
			flush()
			bin, sum = b, 0
		}
		sum += math.Abs(math.Sqrt(row[1]*row[1]+row[2]*row[2]+row[3]*row[3]) - 1)
	}
	flush()
	return out
}

// CountFeature 插值后的计数在 epoch 窗口内做高斯加权求和，窗口为空时为 0
func CountFeature(grid *epoch.Grid, epochs []models.Epoch) []float64 {
	out := make([]float64, len(epochs))
	for i, e := range epochs {
		from, to := grid.IndexRange(epoch.WindowFor(e.Timestamp))
		if to <= from {
			continue
		}
		weights := epoch.GaussianWeights(to-from, countSigma)
		out[i] = floats.Dot(weights, grid.Values[from:to])
	}
	return out
}
