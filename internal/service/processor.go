package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-sleepstage/internal/feature"
	"wisefido-sleepstage/internal/lock"
	"wisefido-sleepstage/internal/merger"
	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/prediction"
	"wisefido-sleepstage/internal/readiness"
	"wisefido-sleepstage/internal/repository"
	"wisefido-sleepstage/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionAuditor 会话与预测审计（数据库未启用时为 nil）
type SessionAuditor interface {
	UpsertSession(ctx context.Context, rec *repository.SessionRecord) error
	SavePredictions(ctx context.Context, sessionKey, runID, objectKey string, labels []int) error
}

// ProcessorOptions 处理器参数
type ProcessorOptions struct {
	DataRoot           string
	ArtifactPrefix     string
	PredictionsSegment string
	ProcessTimeout     time.Duration
}

// ProcessorDeps 处理器依赖
type ProcessorDeps struct {
	Source    store.ObjectSource
	Streams   store.StreamStore
	Features  store.FeatureStore
	States    store.SessionStateStore
	Locker    lock.Locker
	Merger    *merger.ChunkMerger
	Evaluator *readiness.Evaluator
	Extractor *feature.Extractor
	Stage     *prediction.Stage
	Sink      *prediction.Sink
	Publisher PredictionPublisher // 可选
	Auditor   SessionAuditor      // 可选
	Metrics   *Metrics
}

// 事件处理结果
const (
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeNotReady  = "not_ready"
	OutcomeUnchanged = "unchanged"
	OutcomePredicted = "predicted"
)

// EventResult 单条事件的处理结果
type EventResult struct {
	Event       models.ObjectEvent
	SessionKey  string
	Outcome     string
	Reason      string
	Predictions []int
	UploadedKey string
}

// SessionProcessor 事件编排：下载 → 合并 → 就绪判定 → 特征 → 预测 → 上传
type SessionProcessor struct {
	opts   ProcessorOptions
	deps   ProcessorDeps
	logger *zap.Logger
}

// NewSessionProcessor 创建会话处理器
func NewSessionProcessor(opts ProcessorOptions, deps ProcessorDeps, logger *zap.Logger) *SessionProcessor {
	if opts.PredictionsSegment == "" {
		opts.PredictionsSegment = "predictions"
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &SessionProcessor{opts: opts, deps: deps, logger: logger}
}

// Metrics 处理器指标
func (p *SessionProcessor) Metrics() *Metrics {
	return p.deps.Metrics
}

// HandleEvents 先校验全部记录，任一记录格式错误则整体拒绝；之后按顺序逐条处理
// 单条事件的失败只记录日志，不影响其它事件
func (p *SessionProcessor) HandleEvents(ctx context.Context, events []models.ObjectEvent) ([]EventResult, error) {
	refs := make([]models.ObjectRef, len(events))
	for i, ev := range events {
		if ev.Bucket == "" {
			return nil, fmt.Errorf("%w: record %d has no bucket", models.ErrInvalidEvent, i)
		}
		ref, err := models.ParseObjectKey(ev.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
		}
		refs[i] = ref
	}

	results := make([]EventResult, 0, len(events))
	for i, ev := range events {
		p.deps.Metrics.IncrementReceived()
		results = append(results, p.processEvent(ctx, ev, refs[i]))
	}
	return results, nil
}

func (p *SessionProcessor) processEvent(ctx context.Context, ev models.ObjectEvent, ref models.ObjectRef) EventResult {
	session := ref.Session()
	result := EventResult{Event: ev, SessionKey: session.Key()}
	logger := p.logger.With(
		zap.String("bucket", ev.Bucket),
		zap.String("key", ev.ObjectKey),
		zap.String("session_key", session.Key()),
	)

	// 预测结果上传会再次触发通知，过滤回环
	if ref.HasSegment(p.opts.PredictionsSegment) {
		logger.Debug("Ignoring prediction artifact event")
		p.deps.Metrics.IncrementSkipped()
		return p.outcome(result, OutcomeSkipped, "predictions_segment")
	}
	stream, ok := models.ParseStreamType(ref.StreamDir)
	if !ok {
		logger.Debug("Ignoring unknown stream", zap.String("stream_dir", ref.StreamDir))
		p.deps.Metrics.IncrementSkipped()
		return p.outcome(result, OutcomeSkipped, "unknown_stream")
	}

	layout := store.NewLayout(p.opts.DataRoot, session, p.opts.ArtifactPrefix)

	release, err := p.deps.Locker.Acquire(ctx, session.Key())
	if err != nil {
		logger.Error("Failed to acquire session lock", zap.Error(err))
		p.deps.Metrics.IncrementFailed()
		return p.outcome(result, OutcomeFailed, "lock")
	}
	defer release()

	body, err := p.deps.Source.Get(ctx, ev.Bucket, ev.ObjectKey)
	if err != nil {
		logger.Error("Failed to download chunk", zap.Error(err))
		p.deps.Metrics.IncrementFailed()
		return p.outcome(result, OutcomeFailed, "download")
	}
	if err := p.deps.Streams.SaveChunk(ctx, layout, stream, ref.ChunkFile, body); err != nil {
		logger.Error("Failed to save chunk", zap.Error(err))
		p.deps.Metrics.IncrementFailed()
		return p.outcome(result, OutcomeFailed, "save_chunk")
	}

	merged, err := p.deps.Merger.Merge(ctx, layout, stream)
	if err != nil {
		logger.Error("Failed to merge stream", zap.String("stream", string(stream)), zap.Error(err))
		p.deps.Metrics.IncrementFailed()
		return p.outcome(result, OutcomeFailed, "merge")
	}
	p.deps.Metrics.AddChunks(merged.ChunksMerged, len(merged.ChunksSkipped))

	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	verdict := p.deps.Evaluator.Evaluate(runCtx, layout)
	p.deps.Metrics.RecordReadiness(verdict.Ready)
	p.audit(ctx, logger, ev.Bucket, session, verdict)
	if !verdict.Ready {
		logger.Info("Session not ready", zap.String("reason", verdict.Reason))
		return p.outcome(result, OutcomeNotReady, verdict.Reason)
	}

	watermark := models.Watermark(verdict.HeartRateLastTs, verdict.MotionLastTs)
	state, err := p.deps.States.Get(ctx, session.Key())
	if err != nil {
		if !errors.Is(err, store.ErrStateMiss) {
			logger.Warn("Failed to load processed watermark", zap.Error(err))
		}
		state = &models.SessionState{
			Ready:           true,
			HeartRateLastTs: verdict.HeartRateLastTs,
			MotionLastTs:    verdict.MotionLastTs,
		}
	}
	if state.ProcessedWatermark == watermark {
		logger.Debug("Session already processed at this watermark", zap.String("watermark", watermark))
		return p.outcome(result, OutcomeUnchanged, watermark)
	}

	startedAt := time.Now()
	labels, err := p.runPipeline(runCtx, layout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// 超时按未就绪处理，等待下一次事件重新触发
			logger.Warn("Session processing timed out", zap.Duration("timeout", p.opts.ProcessTimeout))
			return p.outcome(result, OutcomeNotReady, "timeout")
		}
		logger.Error("Sleep stage pipeline failed", zap.Error(err))
		p.deps.Metrics.IncrementPipelineFailures()
		return p.outcome(result, OutcomeFailed, "pipeline")
	}
	result.Predictions = labels

	uploadedKey, err := p.deps.Sink.Deliver(ctx, ev.Bucket, ev.ObjectKey, p.opts.ArtifactPrefix, labels)
	if err != nil {
		p.deps.Metrics.IncrementUploadFailures()
	}
	result.UploadedKey = uploadedKey

	if len(labels) > 0 {
		p.notify(ctx, logger, ev.Bucket, session, uploadedKey, labels)
	}

	state.Ready = true
	state.ProcessedWatermark = watermark
	state.UpdatedAt = time.Now().UTC()
	if err := p.deps.States.Save(ctx, session.Key(), state); err != nil {
		logger.Warn("Failed to save processed watermark", zap.Error(err))
	}

	duration := time.Since(startedAt)
	p.deps.Metrics.RecordPrediction(len(labels), duration)
	logger.Info("Session processed",
		zap.Int("epochs", len(labels)),
		zap.String("watermark", watermark),
		zap.Duration("processing_time", duration),
	)
	return p.outcome(result, OutcomePredicted, watermark)
}

// runPipeline 读取规范产物，提取特征并预测
func (p *SessionProcessor) runPipeline(ctx context.Context, layout store.Layout) ([]int, error) {
	hr, err := p.deps.Streams.ReadMerged(ctx, layout, models.StreamHeartRate)
	if err != nil {
		return nil, fmt.Errorf("failed to read heart rate: %w", err)
	}
	motion, err := p.deps.Streams.ReadMerged(ctx, layout, models.StreamMotion)
	if err != nil {
		return nil, fmt.Errorf("failed to read motion: %w", err)
	}
	labels, err := p.deps.Features.ReadLabels(ctx, layout)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	startOfDay, err := layout.Session.StartOfDay()
	if err != nil {
		p.logger.Warn("Session id carries no start time, using midnight",
			zap.String("session_key", layout.Session.Key()),
			zap.Error(err),
		)
		startOfDay = 0
	}

	out, err := p.deps.Extractor.Build(ctx, feature.Input{
		HeartRate:  hr,
		Motion:     motion,
		Labels:     labels,
		StartOfDay: startOfDay,
	})
	if err != nil {
		return nil, err
	}

	if err := p.persistFeatures(ctx, layout, out); err != nil {
		return nil, err
	}

	columns := out.Features.Columns
	if out.Features.Len() > 0 {
		// 表从落盘的特征产物组装
		columns = make(map[string][]float64, len(models.BaseFeatures))
		for _, name := range models.BaseFeatures {
			values, err := p.deps.Features.ReadFeature(ctx, layout, name)
			if err != nil {
				return nil, fmt.Errorf("failed to read feature %s: %w", name, err)
			}
			columns[name] = values
		}
	}

	table, err := feature.BuildTable(columns)
	if err != nil {
		return nil, fmt.Errorf("failed to build feature table: %w", err)
	}
	return p.deps.Stage.Run(ctx, layout, table)
}

func (p *SessionProcessor) persistFeatures(ctx context.Context, layout store.Layout, out *feature.Output) error {
	if out.CroppedHR.Len() > 0 {
		if err := p.deps.Features.WriteCropped(ctx, layout, models.StreamHeartRate, out.CroppedHR); err != nil {
			return fmt.Errorf("failed to write cropped heart rate: %w", err)
		}
	}
	if out.CroppedMotion.Len() > 0 {
		if err := p.deps.Features.WriteCropped(ctx, layout, models.StreamMotion, out.CroppedMotion); err != nil {
			return fmt.Errorf("failed to write cropped motion: %w", err)
		}
	}
	if out.Features.Len() == 0 {
		return nil
	}
	for name, values := range out.Features.Columns {
		if err := p.deps.Features.WriteFeature(ctx, layout, name, values); err != nil {
			return fmt.Errorf("failed to write feature %s: %w", name, err)
		}
	}
	return nil
}

func (p *SessionProcessor) audit(ctx context.Context, logger *zap.Logger, bucket string, session models.SessionRef, verdict readiness.Result) {
	if p.deps.Auditor == nil {
		return
	}
	err := p.deps.Auditor.UpsertSession(ctx, &repository.SessionRecord{
		SessionKey:      session.Key(),
		ObjectPrefix:    session.ObjectPrefix(),
		Bucket:          bucket,
		Ready:           verdict.Ready,
		HeartRateLastTs: verdict.HeartRateLastTs,
		MotionLastTs:    verdict.MotionLastTs,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("Failed to audit session", zap.Error(err))
	}
}

func (p *SessionProcessor) notify(ctx context.Context, logger *zap.Logger, bucket string, session models.SessionRef, uploadedKey string, labels []int) {
	runID := uuid.New().String()

	if p.deps.Auditor != nil {
		if err := p.deps.Auditor.SavePredictions(ctx, session.Key(), runID, uploadedKey, labels); err != nil {
			logger.Warn("Failed to audit predictions", zap.Error(err))
		}
	}

	if p.deps.Publisher != nil {
		event := &models.PredictionEvent{
			EventID:      runID,
			SessionKey:   session.Key(),
			ObjectPrefix: session.ObjectPrefix(),
			Bucket:       bucket,
			ObjectKey:    uploadedKey,
			Epochs:       len(labels),
			Labels:       labels,
			CreatedAt:    time.Now().UTC(),
		}
		if err := p.deps.Publisher.PublishPrediction(ctx, event); err != nil {
			logger.Warn("Failed to publish prediction event", zap.Error(err))
		}
	}
}

func (p *SessionProcessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.ProcessTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.opts.ProcessTimeout)
}

func (p *SessionProcessor) outcome(r EventResult, outcome, reason string) EventResult {
	r.Outcome = outcome
	r.Reason = reason
	return r
}
