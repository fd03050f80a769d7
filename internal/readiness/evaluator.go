package readiness

import (
	"context"
	"errors"
	"math"
	"time"

	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/store"

	"go.uber.org/zap"
)

// 判定原因
const (
	ReasonReady         = "ready"
	ReasonLatched       = "latched"
	ReasonMissing       = "missing_artifact"
	ReasonEmpty         = "empty_artifact"
	ReasonReadError     = "read_error"
	ReasonTooShort      = "below_min_duration"
	ReasonDriftExceeded = "drift_exceeded"
)

// Thresholds 就绪阈值（秒）
type Thresholds struct {
	MinSessionDuration float64
	DriftTolerance     float64
}

// Result 就绪判定结果
type Result struct {
	Ready           bool
	Reason          string
	HeartRateLastTs float64
	MotionLastTs    float64
}

// Decide 两路流都达到最小时长且结束时间差小于漂移容忍度时就绪
func Decide(hrLast, motionLast float64, th Thresholds) (bool, string) {
	if hrLast < th.MinSessionDuration || motionLast < th.MinSessionDuration {
		return false, ReasonTooShort
	}
	if math.Abs(hrLast-motionLast) >= th.DriftTolerance {
		return false, ReasonDriftExceeded
	}
	return true, ReasonReady
}

// Evaluator 会话就绪判定器
// 就绪后写入会话状态锁存，之后的超集数据不会回退为未就绪
type Evaluator struct {
	streams    store.StreamStore
	states     store.SessionStateStore
	thresholds Thresholds
	logger     *zap.Logger
}

// NewEvaluator 创建就绪判定器
func NewEvaluator(streams store.StreamStore, states store.SessionStateStore, thresholds Thresholds, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		streams:    streams,
		states:     states,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Evaluate 读取两路规范序列的最后时间戳并判定，任何读取错误都按未就绪处理
func (e *Evaluator) Evaluate(ctx context.Context, layout store.Layout) Result {
	sessionKey := layout.Session.Key()

	state, err := e.states.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, store.ErrStateMiss) {
			e.logger.Warn("Failed to load session state", zap.String("session_key", sessionKey), zap.Error(err))
		}
		state = &models.SessionState{}
	}

	result := e.evaluateArtifacts(ctx, layout)
	// 锁存只覆盖阈值判定，产物缺失或读取失败仍按未就绪返回
	if !result.Ready && state.Ready && isThresholdReason(result.Reason) {
		result.Ready = true
		result.Reason = ReasonLatched
	}

	latched := state.Ready || result.Ready
	if latched != state.Ready || result.HeartRateLastTs > state.HeartRateLastTs || result.MotionLastTs > state.MotionLastTs {
		state.Ready = latched
		if result.HeartRateLastTs > state.HeartRateLastTs {
			state.HeartRateLastTs = result.HeartRateLastTs
		}
		if result.MotionLastTs > state.MotionLastTs {
			state.MotionLastTs = result.MotionLastTs
		}
		state.UpdatedAt = time.Now().UTC()
		if err := e.states.Save(ctx, sessionKey, state); err != nil {
			e.logger.Warn("Failed to save session state", zap.String("session_key", sessionKey), zap.Error(err))
		}
	}

	e.logger.Debug("Evaluated session readiness",
		zap.String("session_key", sessionKey),
		zap.Bool("ready", result.Ready),
		zap.String("reason", result.Reason),
		zap.Float64("hr_last_ts", result.HeartRateLastTs),
		zap.Float64("motion_last_ts", result.MotionLastTs),
	)
	return result
}

func isThresholdReason(reason string) bool {
	return reason == ReasonTooShort || reason == ReasonDriftExceeded
}

func (e *Evaluator) evaluateArtifacts(ctx context.Context, layout store.Layout) Result {
	hrLast, reason := e.lastTimestamp(ctx, layout, models.StreamHeartRate)
	if reason != "" {
		return Result{Reason: reason}
	}
	motionLast, reason := e.lastTimestamp(ctx, layout, models.StreamMotion)
	if reason != "" {
		return Result{Reason: reason, HeartRateLastTs: hrLast}
	}

	ready, reason := Decide(hrLast, motionLast, e.thresholds)
	return Result{
		Ready:           ready,
		Reason:          reason,
		HeartRateLastTs: hrLast,
		MotionLastTs:    motionLast,
	}
}

func (e *Evaluator) lastTimestamp(ctx context.Context, layout store.Layout, stream models.StreamType) (float64, string) {
	ts, err := e.streams.LastTimestamp(ctx, layout, stream)
	switch {
	case err == nil:
		if math.IsNaN(ts) {
			return 0, ReasonReadError
		}
		return ts, ""
	case errors.Is(err, store.ErrNotFound):
		return 0, ReasonMissing
	case errors.Is(err, store.ErrEmpty):
		return 0, ReasonEmpty
	default:
		e.logger.Warn("Failed to read stream tail",
			zap.String("session_key", layout.Session.Key()),
			zap.String("stream", string(stream)),
			zap.Error(err),
		)
		return 0, ReasonReadError
	}
}
