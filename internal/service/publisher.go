package service

import (
	"context"

	"wisefido-sleepstage/internal/models"
	rediscommon "wisefido-sleepstage/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PredictionPublisher 预测完成事件的下游通知
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, event *models.PredictionEvent) error
}

// StreamPublisher 把预测事件写入 Redis Stream
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamPublisher 创建 Stream 发布器
func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, logger: logger}
}

// PublishPrediction 发布预测事件
func (p *StreamPublisher) PublishPrediction(ctx context.Context, event *models.PredictionEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, event)
	if err != nil {
		return err
	}
	p.logger.Debug("Published prediction event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_id", event.EventID),
	)
	return nil
}
