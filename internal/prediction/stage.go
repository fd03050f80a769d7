package prediction

import (
	"context"
	"fmt"

	"wisefido-sleepstage/internal/classifier"
	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/store"

	"go.uber.org/zap"
)

// Stage 对整张特征表调用一次分类器，并在上传前持久化预测结果
type Stage struct {
	classifier classifier.Classifier
	features   store.FeatureStore
	logger     *zap.Logger
}

// NewStage 创建预测阶段
func NewStage(c classifier.Classifier, features store.FeatureStore, logger *zap.Logger) *Stage {
	return &Stage{classifier: c, features: features, logger: logger}
}

// Run 空表返回空预测，既不调用分类器也不写产物
func (s *Stage) Run(ctx context.Context, layout store.Layout, table *models.FeatureTable) ([]int, error) {
	if table.Empty() {
		s.logger.Info("Feature table is empty, skipping prediction",
			zap.String("session", layout.Session.Key()),
		)
		return []int{}, nil
	}

	labels, err := s.classifier.Predict(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to predict sleep stages: %w", err)
	}
	if len(labels) != table.Len() {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(labels), table.Len())
	}

	if err := s.features.WritePredictions(ctx, layout, labels); err != nil {
		return nil, fmt.Errorf("failed to persist predictions: %w", err)
	}

	s.logger.Info("Sleep stage prediction finished",
		zap.String("session", layout.Session.Key()),
		zap.Int("epochs", len(labels)),
	)
	return labels, nil
}
