package store

import (
	"context"
	"errors"

	"wisefido-sleepstage/internal/models"
)

var (
	// ErrNotFound 产物不存在
	ErrNotFound = errors.New("artifact not found")
	// ErrEmpty 产物存在但没有数据行
	ErrEmpty = errors.New("artifact is empty")
	// ErrStateMiss 会话状态不存在
	ErrStateMiss = errors.New("session state miss")
)

// StreamStore 会话原始分片与规范合并序列
type StreamStore interface {
	SaveChunk(ctx context.Context, layout Layout, stream models.StreamType, name string, body []byte) error
	ListChunks(ctx context.Context, layout Layout, stream models.StreamType) ([]string, error)
	ReadChunk(ctx context.Context, layout Layout, stream models.StreamType, name string) (*models.Series, error)
	ReadMerged(ctx context.Context, layout Layout, stream models.StreamType) (*models.Series, error)
	WriteMerged(ctx context.Context, layout Layout, stream models.StreamType, series *models.Series) error
	LastTimestamp(ctx context.Context, layout Layout, stream models.StreamType) (float64, error)
}

// FeatureStore 标签、裁剪序列、特征与预测产物
type FeatureStore interface {
	WriteLabels(ctx context.Context, layout Layout, labels *models.LabelSeries) error
	ReadLabels(ctx context.Context, layout Layout) (*models.LabelSeries, error)
	WriteCropped(ctx context.Context, layout Layout, stream models.StreamType, series *models.Series) error
	WriteFeature(ctx context.Context, layout Layout, name string, values []float64) error
	ReadFeature(ctx context.Context, layout Layout, name string) ([]float64, error)
	WritePredictions(ctx context.Context, layout Layout, labels []int) error
}

// ObjectSource 对象存储读取
type ObjectSource interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// ArtifactSink 对象存储写入
type ArtifactSink interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// SessionStateStore 会话就绪标志与处理水位
type SessionStateStore interface {
	Get(ctx context.Context, sessionKey string) (*models.SessionState, error)
	Save(ctx context.Context, sessionKey string, state *models.SessionState) error
}
