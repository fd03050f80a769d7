package models

// EpochDuration 单个 epoch 的时长（秒）
const EpochDuration = 30

// Unscored 标签占位值：该 epoch 不参与特征计算
const Unscored = -1

// Epoch 规范网格上的固定时长时间片
type Epoch struct {
	Index     int
	Timestamp float64
}

// LabelSeries epoch 对齐的整数标签序列
type LabelSeries struct {
	Timestamps []int64
	Labels     []int64
}

// Len 标签数量
func (l *LabelSeries) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Timestamps)
}

// Epochs 转换为 epoch 列表
func (l *LabelSeries) Epochs() []Epoch {
	epochs := make([]Epoch, l.Len())
	for i, ts := range l.Timestamps {
		epochs[i] = Epoch{Index: i, Timestamp: float64(ts)}
	}
	return epochs
}
