package store

import (
	"path/filepath"

	"wisefido-sleepstage/internal/models"
)

// Layout 单个会话的产物布局，按值传入每次调用
type Layout struct {
	Session    models.SessionRef
	SessionDir string
	Prefix     string
}

// NewLayout 根据数据根目录与会话构造布局
func NewLayout(dataRoot string, session models.SessionRef, prefix string) Layout {
	return Layout{
		Session:    session,
		SessionDir: filepath.Join(dataRoot, filepath.FromSlash(session.LocalRelDir())),
		Prefix:     prefix,
	}
}

// StreamDir 流目录
func (l Layout) StreamDir(stream models.StreamType) string {
	return filepath.Join(l.SessionDir, string(stream))
}

// MergedName 规范合并文件名
func (l Layout) MergedName(stream models.StreamType) string {
	return l.Prefix + "_" + string(stream) + ".npy"
}

// MergedPath 规范合并文件路径
func (l Layout) MergedPath(stream models.StreamType) string {
	return filepath.Join(l.StreamDir(stream), l.MergedName(stream))
}

// LabelsPath 标签脚手架路径
func (l Layout) LabelsPath() string {
	return filepath.Join(l.SessionDir, "labels", l.Prefix+"_labeled_sleep.npy")
}

// CroppedPath 裁剪后的流
func (l Layout) CroppedPath(stream models.StreamType) string {
	name := "motion"
	if stream == models.StreamHeartRate {
		name = "hr"
	}
	return filepath.Join(l.SessionDir, "outputs", "cropped", l.Prefix+"_cleaned_"+name+".npy")
}

// featureFiles 特征名到文件名片段
var featureFiles = map[string]string{
	models.FeatureCosine:    "cosine",
	models.FeatureCount:     "count",
	models.FeatureHRStd:     "hr",
	models.FeatureHRMean:    "hr_mean",
	models.FeatureTime:      "time",
	models.FeatureHRMeanRaw: "hr_mean_raw",
}

// FeaturePath 特征产物路径
func (l Layout) FeaturePath(name string) string {
	file, ok := featureFiles[name]
	if !ok {
		file = name
	}
	return filepath.Join(l.SessionDir, "outputs", "features", l.Prefix+"_"+file+"_feature.npy")
}

// PredictionsPath 预测结果路径
func (l Layout) PredictionsPath() string {
	return filepath.Join(l.SessionDir, "outputs", "predictions", l.Prefix+"_predictions.npy")
}
