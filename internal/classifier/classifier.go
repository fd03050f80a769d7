package classifier

import (
	"context"
	"fmt"
	"time"

	"wisefido-sleepstage/internal/models"

	"go.uber.org/zap"
)

// Classifier 睡眠分期分类器：对特征表的每一行给出一个标签，无状态
type Classifier interface {
	Predict(ctx context.Context, table *models.FeatureTable) ([]int, error)
}

const (
	ModeLinear = "linear" // 本地 JSON 线性模型
	ModeRemote = "remote" // 远程推理服务
)

// Options 分类器创建参数
type Options struct {
	Mode      string
	ModelPath string
	URL       string
	Timeout   time.Duration
}

// New 按模式创建分类器
func New(opts Options, logger *zap.Logger) (Classifier, error) {
	switch opts.Mode {
	case "", ModeLinear:
		return LoadLinearModel(opts.ModelPath, logger)
	case ModeRemote:
		return NewRemoteClassifier(opts.URL, opts.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown classifier mode: %s", opts.Mode)
	}
}
