package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"wisefido-sleepstage/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SNS 消息类型（x-amz-sns-message-type 头）
const (
	snsTypeHeader             = "x-amz-sns-message-type"
	snsSubscriptionConfirm    = "SubscriptionConfirmation"
	snsNotification           = "Notification"
	subscriptionConfirmTimeout = 10 * time.Second
)

// EventHandlerFunc 处理一批对象事件；返回 models.ErrInvalidEvent 表示客户端错误
type EventHandlerFunc func(ctx context.Context, events []models.ObjectEvent) error

// WebhookHandler S3 → SNS → HTTP 事件入口
type WebhookHandler struct {
	handle     EventHandlerFunc
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWebhookHandler 创建 webhook 处理器
func NewWebhookHandler(handle EventHandlerFunc, logger *zap.Logger) *WebhookHandler {
	client := resty.New().
		SetTimeout(subscriptionConfirmTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookHandler{
		handle:     handle,
		httpClient: client,
		logger:     logger,
	}
}

// HandleWebhook 处理 SNS 订阅确认与 S3 事件通知
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, maxWebhookBody)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var envelope models.SNSEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.logger.Warn("Failed to parse webhook body", zap.Error(err))
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch r.Header.Get(snsTypeHeader) {
	case snsSubscriptionConfirm:
		if envelope.SubscribeURL == "" {
			break
		}
		if err := h.confirmSubscription(r.Context(), envelope.SubscribeURL); err != nil {
			writeText(w, http.StatusBadGateway, "Subscription confirmation failed")
			return
		}
		writeText(w, http.StatusOK, "Subscription confirmed")
		return

	case snsNotification:
		var message models.S3EventMessage
		if err := json.Unmarshal([]byte(envelope.Message), &message); err != nil {
			h.logger.Warn("Failed to parse SNS message", zap.Error(err))
			writeText(w, http.StatusBadRequest, "Invalid Message format")
			return
		}

		events := message.Events()
		h.logger.Info("Received S3 notification",
			zap.String("message_id", envelope.MessageID),
			zap.Int("records", len(events)),
		)

		// 处理与请求生命周期解耦，客户端断开不会中断合并
		if err := h.handle(context.WithoutCancel(r.Context()), events); err != nil {
			if errors.Is(err, models.ErrInvalidEvent) {
				h.logger.Warn("Rejected S3 notification", zap.Error(err))
				writeText(w, http.StatusBadRequest, "Invalid Message format")
				return
			}
			h.logger.Error("Failed to handle S3 notification", zap.Error(err))
			writeText(w, http.StatusInternalServerError, "Processing failed")
			return
		}
		writeText(w, http.StatusOK, "Notification received")
		return
	}

	writeText(w, http.StatusOK, "OK")
}

func (h *WebhookHandler) confirmSubscription(ctx context.Context, subscribeURL string) error {
	resp, err := h.httpClient.R().SetContext(ctx).Get(subscribeURL)
	if err != nil {
		h.logger.Error("Failed to confirm SNS subscription", zap.String("url", subscribeURL), zap.Error(err))
		return err
	}
	if resp.IsError() {
		h.logger.Error("SNS subscription confirmation rejected",
			zap.String("url", subscribeURL),
			zap.Int("status_code", resp.StatusCode()),
		)
		return errors.New(resp.Status())
	}
	h.logger.Info("Confirmed SNS subscription", zap.String("url", subscribeURL))
	return nil
}
