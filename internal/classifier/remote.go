package classifier

import (
	"context"
	"fmt"
	"time"

	"wisefido-sleepstage/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PredictRequest 远程推理请求
type PredictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// PredictResponse 远程推理响应
type PredictResponse struct {
	Labels []int  `json:"labels"`
	Error  string `json:"error,omitempty"`
}

// RemoteClassifier 通过 HTTP 调用外部推理服务
type RemoteClassifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewRemoteClassifier 创建远程分类器；推理失败由下一次事件重新触发，不在此重试
func NewRemoteClassifier(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteClassifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteClassifier{
		httpClient: client,
		logger:     logger,
	}
}

// Predict 整表一次调用
func (c *RemoteClassifier) Predict(ctx context.Context, table *models.FeatureTable) ([]int, error) {
	if table.Empty() {
		return []int{}, nil
	}

	var response PredictResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(PredictRequest{Columns: table.Columns, Rows: table.Rows}).
		SetResult(&response).
		SetError(&response).
		Post("/predict")
	if err != nil {
		c.logger.Error("Classifier API call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to call classifier API: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("Classifier API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", response.Error),
		)
		return nil, fmt.Errorf("classifier API error: %s (status: %d)", response.Error, resp.StatusCode())
	}

	c.logger.Debug("Classifier API prediction finished", zap.Int("rows", len(response.Labels)))
	return response.Labels, nil
}
