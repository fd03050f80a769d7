package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-sleepstage/internal/store"

	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// Sink 把预测结果以 JSON 整数数组上传到对象存储
type Sink struct {
	artifacts store.ArtifactSink
	segment   string
	logger    *zap.Logger
}

// NewSink 创建上传器，segment 为会话前缀下的结果目录名
func NewSink(artifacts store.ArtifactSink, segment string, logger *zap.Logger) *Sink {
	if segment == "" {
		segment = "predictions"
	}
	return &Sink{artifacts: artifacts, segment: segment, logger: logger}
}

// PredictionKey 取存储路径前三段作为会话前缀；不足三段返回 false
func (s *Sink) PredictionKey(storagePath, prefix string) (string, bool) {
	parts := strings.Split(strings.Trim(strings.ReplaceAll(storagePath, "\\", "/"), "/"), "/")
	if len(parts) < 3 {
		return "", false
	}
	for _, p := range parts[:3] {
		if p == "" {
			return "", false
		}
	}
	return strings.Join(parts[:3], "/") + "/" + s.segment + "/" + prefix + "_predictions.json", true
}

// Deliver 空预测不上传；上传失败只记录日志，不重试，本地产物保持不变
// 返回实际写入的 key，未上传时为空
func (s *Sink) Deliver(ctx context.Context, bucket, storagePath, prefix string, labels []int) (string, error) {
	if len(labels) == 0 {
		return "", nil
	}

	key, ok := s.PredictionKey(storagePath, prefix)
	if !ok {
		s.logger.Warn("Storage path too short for prediction key, skipping upload",
			zap.String("path", storagePath),
		)
		return "", nil
	}

	body, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to marshal predictions: %w", err)
	}

	if err := s.artifacts.Put(ctx, bucket, key, body, contentTypeJSON); err != nil {
		s.logger.Error("Failed to upload predictions",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload predictions: %w", err)
	}

	s.logger.Info("Uploaded predictions",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("epochs", len(labels)),
	)
	return key, nil
}
