package feature

import (
	"math"

	"wisefido-sleepstage/internal/models"
)

const (
	secondsPerHour = 3600.0
	secondsPerDay  = 86400.0
	// 睡眠驱动余弦的相位偏移（小时）
	sleepDriveCosineShift = 5.0
)

// CosineFeature 以一天为周期的睡眠驱动余弦，startOfDay 为录制开始距零点的秒数
func CosineFeature(epochs []models.Epoch, startOfDay float64) []float64 {
	out := make([]float64, len(epochs))
	for i, e := range epochs {
		t := startOfDay + e.Timestamp
		out[i] = -math.Cos((t - sleepDriveCosineShift*secondsPerHour) * 2 * math.Pi / secondsPerDay)
	}
	return out
}

// TimeFeature 距第一个有效 epoch 的小时数
func TimeFeature(epochs []models.Epoch) []float64 {
	out := make([]float64, len(epochs))
	if len(epochs) == 0 {
		return out
	}
	first := epochs[0].Timestamp
	for i, e := range epochs {
		out[i] = (e.Timestamp - first) / secondsPerHour
	}
	return out
}
