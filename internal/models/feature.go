package models

// 特征名（同时决定产物文件名 <prefix>_<file>_feature.npy）
const (
	FeatureCosine    = "cosine_feature"
	FeatureCount     = "count_feature"
	FeatureHRStd     = "hr_std"
	FeatureHRMean    = "hr_mean"
	FeatureTime      = "time_feature"
	FeatureHRMeanRaw = "hr_mean_raw"

	FeatureCountLag1  = "count_feature_lag_1"
	FeatureCountLag2  = "count_feature_lag_2"
	FeatureHRStdLag1  = "hr_std_lag_1"
	FeatureHRStdLag2  = "hr_std_lag_2"
	FeatureHRMeanLag1 = "hr_mean_lag_1"
	FeatureHRMeanLag2 = "hr_mean_lag_2"
	FeatureHRMeanDiff = "hr_mean_delta"
)

// BaseFeatures 基础特征列（特征表的前 5 列）
var BaseFeatures = []string{FeatureCosine, FeatureCount, FeatureHRStd, FeatureHRMean, FeatureTime}

// TableColumns 特征表的完整列顺序
var TableColumns = []string{
	FeatureCosine, FeatureCount, FeatureHRStd, FeatureHRMean, FeatureTime,
	FeatureCountLag1, FeatureCountLag2,
	FeatureHRStdLag1, FeatureHRStdLag2,
	FeatureHRMeanLag1, FeatureHRMeanLag2,
	FeatureHRMeanDiff,
}

// FeatureSet 每个有效 epoch 的基础特征，各列等长
type FeatureSet struct {
	Epochs  []Epoch
	Columns map[string][]float64
}

// Len epoch 数
func (f *FeatureSet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Epochs)
}

// FeatureTable 送入分类器的特征矩阵（行主序）
type FeatureTable struct {
	Columns []string
	Rows    [][]float64
}

// Len 行数
func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty 是否为空表
func (t *FeatureTable) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex 列下标，不存在返回 -1
func (t *FeatureTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column 复制指定列
func (t *FeatureTable) Column(name string) []float64 {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}
