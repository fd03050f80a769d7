package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wisefido-sleepstage/internal/models"
	mqttcommon "wisefido-sleepstage/owl-common/mqtt"

	"go.uber.org/zap"
)

// queueSize 待处理通知缓冲，满时回调阻塞（背压到 broker）
const queueSize = 64

// Subscriber MQTT 订阅能力
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// EventHandlerFunc 处理一批对象事件
type EventHandlerFunc func(ctx context.Context, events []models.ObjectEvent) error

// NotificationConsumer 订阅对象存储的桶通知（MinIO / S3 兼容事件 JSON）
type NotificationConsumer struct {
	subscriber Subscriber
	topic      string
	qos        byte
	handle     EventHandlerFunc
	queue      chan []models.ObjectEvent
	logger     *zap.Logger
}

// NewNotificationConsumer 创建桶通知消费者
func NewNotificationConsumer(subscriber Subscriber, topic string, qos byte, handle EventHandlerFunc, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		handle:     handle,
		queue:      make(chan []models.ObjectEvent, queueSize),
		logger:     logger,
	}
}

// Start 订阅主题并按到达顺序处理通知，直到上下文取消
func (c *NotificationConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to notification topic: %w", err)
	}

	c.logger.Info("Notification consumer started",
		zap.String("topic", c.topic),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case events := <-c.queue:
			c.process(ctx, events)
		}
	}
}

// Stop 取消订阅
func (c *NotificationConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Notification consumer stopped")
	return nil
}

// handleMessage 解析通知并入队，格式错误的消息直接丢弃
func (c *NotificationConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received bucket notification",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var message models.S3EventMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	events := message.Events()
	if len(events) == 0 {
		return nil
	}

	c.queue <- events
	return nil
}

func (c *NotificationConsumer) process(ctx context.Context, events []models.ObjectEvent) {
	if err := c.handle(ctx, events); err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			c.logger.Warn("Dropped malformed notification", zap.Error(err))
			return
		}
		c.logger.Error("Failed to handle notification", zap.Error(err))
	}
}
