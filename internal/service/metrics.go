package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 事件处理统计
	EventsReceived  int64 // 收到的对象事件数
	EventsSkipped   int64 // 跳过的事件数（predictions 回环、未知流）
	EventsFailed    int64 // 处理失败的事件数（下载、写入、合并）
	ChunksMerged    int64 // 合并的分片数
	ChunksSkipped   int64 // 无法读取而跳过的分片数
	SessionsReady   int64 // 判定为就绪的次数
	SessionsPending int64 // 判定为未就绪的次数（含超时）

	// 预测统计
	PredictionRuns   int64 // 完成的预测运行数
	EpochsPredicted  int64 // 预测的 epoch 总数
	UploadFailures   int64 // 上传失败次数
	PipelineFailures int64 // 特征/分类阶段失败次数

	// 性能指标
	TotalProcessingTime time.Duration
	LastProcessTime     time.Time

	StartTime time.Time
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		EventsReceived:      m.EventsReceived,
		EventsSkipped:       m.EventsSkipped,
		EventsFailed:        m.EventsFailed,
		ChunksMerged:        m.ChunksMerged,
		ChunksSkipped:       m.ChunksSkipped,
		SessionsReady:       m.SessionsReady,
		SessionsPending:     m.SessionsPending,
		PredictionRuns:      m.PredictionRuns,
		EpochsPredicted:     m.EpochsPredicted,
		UploadFailures:      m.UploadFailures,
		PipelineFailures:    m.PipelineFailures,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

func (m *Metrics) add(field *int64, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += n
}

// IncrementReceived 增加事件计数
func (m *Metrics) IncrementReceived() { m.add(&m.EventsReceived, 1) }

// IncrementSkipped 增加跳过计数
func (m *Metrics) IncrementSkipped() { m.add(&m.EventsSkipped, 1) }

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed() { m.add(&m.EventsFailed, 1) }

// AddChunks 记录一次合并的分片数
func (m *Metrics) AddChunks(merged, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChunksMerged += int64(merged)
	m.ChunksSkipped += int64(skipped)
}

// RecordReadiness 记录就绪判定结果
func (m *Metrics) RecordReadiness(ready bool) {
	if ready {
		m.add(&m.SessionsReady, 1)
		return
	}
	m.add(&m.SessionsPending, 1)
}

// RecordPrediction 记录一次完成的预测运行
func (m *Metrics) RecordPrediction(epochs int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PredictionRuns++
	m.EpochsPredicted += int64(epochs)
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementUploadFailures 增加上传失败计数
func (m *Metrics) IncrementUploadFailures() { m.add(&m.UploadFailures, 1) }

// IncrementPipelineFailures 增加流水线失败计数
func (m *Metrics) IncrementPipelineFailures() { m.add(&m.PipelineFailures, 1) }

// reportMetrics 定期报告指标
func reportMetrics(ctx context.Context, m *Metrics, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := m.GetSnapshot()

			var avgProcessingTime time.Duration
			if snapshot.PredictionRuns > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.PredictionRuns)
			}

			logger.Info("Metrics report",
				zap.Int64("events_received", snapshot.EventsReceived),
				zap.Int64("events_skipped", snapshot.EventsSkipped),
				zap.Int64("events_failed", snapshot.EventsFailed),
				zap.Int64("chunks_merged", snapshot.ChunksMerged),
				zap.Int64("chunks_skipped", snapshot.ChunksSkipped),
				zap.Int64("sessions_ready", snapshot.SessionsReady),
				zap.Int64("sessions_pending", snapshot.SessionsPending),
				zap.Int64("prediction_runs", snapshot.PredictionRuns),
				zap.Int64("epochs_predicted", snapshot.EpochsPredicted),
				zap.Int64("upload_failures", snapshot.UploadFailures),
				zap.Int64("pipeline_failures", snapshot.PipelineFailures),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", time.Since(snapshot.StartTime)),
			)
		}
	}
}
