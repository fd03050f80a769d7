package feature

import (
	"fmt"
	"math"

	"wisefido-sleepstage/internal/models"

	"gonum.org/v1/gonum/stat"
)

// lagRows 滞后阶数，同时也是表头需丢弃的行数
const lagRows = 2

// BuildTable 由 5 个基础特征列组装分类器输入表：
// 追加 1/2 阶滞后列与 hr_mean 二阶差分，丢弃前两行，差分列做 z-score
func BuildTable(columns map[string][]float64) (*models.FeatureTable, error) {
	n := -1
	for _, name := range models.BaseFeatures {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("missing feature column %q", name)
		}
		if n >= 0 && len(col) != n {
			return nil, fmt.Errorf("feature column %q has %d rows, want %d", name, len(col), n)
		}
		n = len(col)
	}

	table := &models.FeatureTable{Columns: append([]string{}, models.TableColumns...)}
	if n <= lagRows {
		return table, nil
	}

	count := columns[models.FeatureCount]
	hrStd := columns[models.FeatureHRStd]
	hrMean := columns[models.FeatureHRMean]

	delta := make([]float64, 0, n-lagRows)
	for i := lagRows; i < n; i++ {
		row := make([]float64, 0, len(table.Columns))
		for _, name := range models.BaseFeatures {
			row = append(row, columns[name][i])
		}
		d := hrMean[i] - hrMean[i-2]
		row = append(row,
			count[i-1], count[i-2],
			hrStd[i-1], hrStd[i-2],
			hrMean[i-1], hrMean[i-2],
			d,
		)
		table.Rows = append(table.Rows, row)
		delta = append(delta, d)
	}

	// 差分列标准化：总体标准差，过小时不缩放
	mean, std := stat.PopMeanStdDev(delta, nil)
	if std < 10*epsilon {
		std = 1
	}
	idx := table.ColumnIndex(models.FeatureHRMeanDiff)
	for _, row := range table.Rows {
		row[idx] = (row[idx] - mean) / std
	}
	return table, nil
}

// epsilon float64 机器精度
var epsilon = math.Nextafter(1, 2) - 1
