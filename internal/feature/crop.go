package feature

import (
	"math"

	"wisefido-sleepstage/internal/models"
)

// Interval 半开区间 [Start, End)
type Interval struct {
	Start float64
	End   float64
}

// Empty 区间是否为空
func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// IntersectingInterval 标签、心率、运动三者时间范围的交集
func IntersectingInterval(labels *models.LabelSeries, hr, motion *models.Series) Interval {
	if labels.Len() == 0 || hr.Len() == 0 || motion.Len() == 0 {
		return Interval{}
	}
	hrLast, _ := hr.LastTimestamp()
	motionLast, _ := motion.LastTimestamp()
	return Interval{
		Start: math.Max(float64(labels.Timestamps[0]), math.Max(hr.Timestamp(0), motion.Timestamp(0))),
		End:   math.Min(float64(labels.Timestamps[labels.Len()-1]), math.Min(hrLast, motionLast)),
	}
}

// CropSeries 保留时间戳落在区间内的行
func CropSeries(s *models.Series, in Interval) *models.Series {
	out := &models.Series{Cols: s.Cols}
	for i := 0; i < s.Len(); i++ {
		ts := s.Timestamp(i)
		if ts >= in.Start && ts < in.End {
			out.Data = append(out.Data, s.Row(i)...)
		}
	}
	return out
}

// CropLabels 保留时间戳落在区间内的标签
func CropLabels(l *models.LabelSeries, in Interval) *models.LabelSeries {
	out := &models.LabelSeries{}
	for i, ts := range l.Timestamps {
		if float64(ts) >= in.Start && float64(ts) < in.End {
			out.Timestamps = append(out.Timestamps, ts)
			out.Labels = append(out.Labels, l.Labels[i])
		}
	}
	return out
}

// ValidEpochs 已打分且至少有一个心率样本和一个运动样本落入的标签 epoch
func ValidEpochs(labels *models.LabelSeries, hr, motion *models.Series) []models.Epoch {
	if labels.Len() == 0 {
		return nil
	}
	start := float64(labels.Timestamps[0])
	hrEpochs := epochIndexSet(hr, start)
	motionEpochs := epochIndexSet(motion, start)

	var valid []models.Epoch
	for i, ts := range labels.Timestamps {
		if labels.Labels[i] == models.Unscored {
			continue
		}
		k := int(math.Round((float64(ts) - start) / models.EpochDuration))
		if hrEpochs[k] && motionEpochs[k] {
			valid = append(valid, models.Epoch{Index: i, Timestamp: float64(ts)})
		}
	}
	return valid
}

// epochIndexSet 样本向下取整到的 epoch 序号集合
func epochIndexSet(s *models.Series, start float64) map[int]bool {
	set := make(map[int]bool)
	for i := 0; i < s.Len(); i++ {
		k := int(math.Floor((s.Timestamp(i) - start) / models.EpochDuration))
		set[k] = true
	}
	return set
}
