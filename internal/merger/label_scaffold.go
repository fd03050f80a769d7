package merger

import (
	"math"

	"wisefido-sleepstage/internal/models"
)

// BuildLabelScaffold 由运动流最后时间戳生成全零标签：
// round(lastTs/30)+1 个 epoch，时间戳 0, 30, 60, ...
// 四舍五入采用银行家舍入（.5 取偶）
func BuildLabelScaffold(lastTs float64) *models.LabelSeries {
	n := int(math.RoundToEven(lastTs/models.EpochDuration)) + 1
	if n < 0 {
		n = 0
	}
	labels := &models.LabelSeries{
		Timestamps: make([]int64, n),
		Labels:     make([]int64, n),
	}
	for i := 0; i < n; i++ {
		labels.Timestamps[i] = int64(i * models.EpochDuration)
	}
	return labels
}
