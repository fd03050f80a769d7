package feature

import (
	"context"
	"fmt"
	"math"

	"wisefido-sleepstage/internal/epoch"
	"wisefido-sleepstage/internal/models"

	"go.uber.org/zap"
)

// Input 特征提取输入：规范合并序列、标签脚手架与录制开始时刻
type Input struct {
	HeartRate  *models.Series
	Motion     *models.Series
	Labels     *models.LabelSeries
	StartOfDay float64
}

// Output 特征提取结果与裁剪后的中间序列
type Output struct {
	Features      *models.FeatureSet
	CroppedHR     *models.Series
	CroppedMotion *models.Series
	Interval      Interval
}

// Extractor 特征提取器
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor 创建特征提取器
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Build 裁剪到公共区间，筛选有效 epoch，并为每个 epoch 计算基础特征
func (x *Extractor) Build(ctx context.Context, in Input) (*Output, error) {
	if in.HeartRate == nil || in.Motion == nil || in.Labels == nil {
		return nil, fmt.Errorf("incomplete feature input")
	}
	if in.HeartRate.Cols < 2 {
		return nil, fmt.Errorf("heart rate series has %d columns, want 2", in.HeartRate.Cols)
	}

	interval := IntersectingInterval(in.Labels, in.HeartRate, in.Motion)
	out := &Output{
		Features:      emptyFeatureSet(),
		CroppedHR:     CropSeries(in.HeartRate, interval),
		CroppedMotion: CropSeries(in.Motion, interval),
		Interval:      interval,
	}
	if interval.Empty() {
		return out, nil
	}
	labels := CropLabels(in.Labels, interval)
	hr, motion := out.CroppedHR, out.CroppedMotion

	valid := ValidEpochs(labels, hr, motion)
	counts := ActivityCounts(motion)
	if len(valid) == 0 || hr.Len() < 2 || counts.Len() == 0 {
		return out, nil
	}

	// 全局起点：标签、计数、心率三者首个时间戳的最大值
	startTime := math.Max(float64(labels.Timestamps[0]), math.Max(counts.Timestamp(0), hr.Timestamp(0)))

	hrGrids, err := buildHeartRateGrids(hr.Timestamps(), hr.Column(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build heart rate grid: %w", err)
	}
	countGrid, err := epoch.Interpolate(counts.Timestamps(), counts.Column(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build count grid: %w", err)
	}

	set := out.Features
	for i, e := range valid {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if e.Timestamp-startTime < epoch.WindowSize {
			continue
		}
		std, mean, rawMean, ok := hrGrids.epochStats(e.Timestamp)
		if !ok {
			continue
		}
		set.Epochs = append(set.Epochs, e)
		set.Columns[models.FeatureHRStd] = append(set.Columns[models.FeatureHRStd], std)
		set.Columns[models.FeatureHRMean] = append(set.Columns[models.FeatureHRMean], mean)
		set.Columns[models.FeatureHRMeanRaw] = append(set.Columns[models.FeatureHRMeanRaw], rawMean)
	}

	set.Columns[models.FeatureCount] = CountFeature(countGrid, set.Epochs)
	set.Columns[models.FeatureCosine] = CosineFeature(set.Epochs, in.StartOfDay)
	set.Columns[models.FeatureTime] = TimeFeature(set.Epochs)

	x.logger.Debug("Built epoch features",
		zap.Float64("interval_start", interval.Start),
		zap.Float64("interval_end", interval.End),
		zap.Int("valid_epochs", len(valid)),
		zap.Int("feature_epochs", set.Len()),
	)
	return out, nil
}

func emptyFeatureSet() *models.FeatureSet {
	set := &models.FeatureSet{Columns: make(map[string][]float64)}
	for _, name := range append(append([]string{}, models.BaseFeatures...), models.FeatureHRMeanRaw) {
		set.Columns[name] = []float64{}
	}
	return set
}
