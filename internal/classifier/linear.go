package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"wisefido-sleepstage/internal/models"

	"go.uber.org/zap"
)

// ClassWeights 单个类别的线性打分参数
type ClassWeights struct {
	Label        int                `json:"label"`
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
}

// LinearModel 多类线性模型：逐类打分，取得分最高的类别
type LinearModel struct {
	Classes []ClassWeights `json:"classes"`
}

// LinearClassifier 基于 LinearModel 的本地分类器
type LinearClassifier struct {
	model  *LinearModel
	logger *zap.Logger
}

// LoadLinearModel 从 JSON 文件加载模型
func LoadLinearModel(modelPath string, logger *zap.Logger) (*LinearClassifier, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model LinearModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	c, err := NewLinearClassifier(&model, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded sleep stage model",
		zap.String("model_path", modelPath),
		zap.Int("classes", len(model.Classes)),
	)
	return c, nil
}

// NewLinearClassifier 使用内存中的模型创建分类器
func NewLinearClassifier(model *LinearModel, logger *zap.Logger) (*LinearClassifier, error) {
	if model == nil || len(model.Classes) == 0 {
		return nil, fmt.Errorf("model has no classes")
	}
	return &LinearClassifier{model: model, logger: logger}, nil
}

// Predict 按列名取系数，表中缺失的列视为 0
func (c *LinearClassifier) Predict(ctx context.Context, table *models.FeatureTable) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if table.Empty() {
		return []int{}, nil
	}

	type term struct {
		col  int
		coef float64
	}
	terms := make([][]term, len(c.model.Classes))
	for k, class := range c.model.Classes {
		for name, coef := range class.Coefficients {
			idx := table.ColumnIndex(name)
			if idx < 0 {
				continue
			}
			terms[k] = append(terms[k], term{col: idx, coef: coef})
		}
	}

	labels := make([]int, len(table.Rows))
	for i, row := range table.Rows {
		best := 0
		var bestScore float64
		for k, class := range c.model.Classes {
			score := class.Intercept
			for _, t := range terms[k] {
				score += t.coef * row[t.col]
			}
			if k == 0 || score > bestScore {
				best, bestScore = k, score
			}
		}
		labels[i] = c.model.Classes[best].Label
	}

	c.logger.Debug("Linear model prediction finished", zap.Int("rows", len(labels)))
	return labels, nil
}
