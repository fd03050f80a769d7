package models

import (
	"errors"
	"net/url"
	"time"
)

// ErrInvalidEvent 入站事件格式错误（客户端错误，不做任何状态修改）
var ErrInvalidEvent = errors.New("invalid object event")

// ObjectEvent 入站对象事件（单条 S3 记录）
type ObjectEvent struct {
	EventName string
	Bucket    string
	ObjectKey string
}

// S3EventMessage S3 事件通知（SNS Message 字段内或 MQTT 负载）
type S3EventMessage struct {
	Records []S3EventRecord `json:"Records"`
}

// S3EventRecord 单条 S3 事件记录
type S3EventRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// SNSEnvelope SNS HTTP 推送的外层信封
type SNSEnvelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

// Events 转换为 ObjectEvent 列表
func (m S3EventMessage) Events() []ObjectEvent {
	events := make([]ObjectEvent, 0, len(m.Records))
	for _, r := range m.Records {
		events = append(events, ObjectEvent{
			EventName: r.EventName,
			Bucket:    r.S3.Bucket.Name,
			ObjectKey: decodeKey(r.S3.Object.Key),
		})
	}
	return events
}

// decodeKey S3 事件中的 key 为 URL 编码（空格编码为 +）
func decodeKey(key string) string {
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}

// PredictionEvent 一次预测运行完成后发布到 Redis Stream 的事件
type PredictionEvent struct {
	EventID      string    `json:"event_id"`
	SessionKey   string    `json:"session_key"`
	ObjectPrefix string    `json:"object_prefix"`
	Bucket       string    `json:"bucket"`
	ObjectKey    string    `json:"object_key,omitempty"` // 上传的预测结果 key，未上传时为空
	Epochs       int       `json:"epochs"`
	Labels       []int     `json:"labels"`
	CreatedAt    time.Time `json:"created_at"`
}
