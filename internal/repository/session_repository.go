package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SessionRecord 会话处理审计记录
type SessionRecord struct {
	SessionKey      string
	ObjectPrefix    string
	Bucket          string
	Ready           bool
	HeartRateLastTs float64
	MotionLastTs    float64
	UpdatedAt       time.Time
}

// SessionRepository 睡眠会话与预测结果的审计存储（PostgreSQL）
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertSession 按 session_key 插入或更新会话状态
func (r *SessionRepository) UpsertSession(ctx context.Context, rec *SessionRecord) error {
	if rec.SessionKey == "" {
		return fmt.Errorf("session_key is required")
	}

	query := `
		INSERT INTO sleep_sessions (
			session_key, object_prefix, bucket, ready,
			hr_last_ts, motion_last_ts, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_key) DO UPDATE SET
			object_prefix = EXCLUDED.object_prefix,
			bucket = EXCLUDED.bucket,
			ready = sleep_sessions.ready OR EXCLUDED.ready,
			hr_last_ts = EXCLUDED.hr_last_ts,
			motion_last_ts = EXCLUDED.motion_last_ts,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionKey, rec.ObjectPrefix, rec.Bucket, rec.Ready,
		rec.HeartRateLastTs, rec.MotionLastTs, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sleep session: %w", err)
	}
	return nil
}

// SavePredictions 记录一次预测运行的结果
func (r *SessionRepository) SavePredictions(ctx context.Context, sessionKey, runID, objectKey string, labels []int) error {
	if sessionKey == "" || runID == "" {
		return fmt.Errorf("session_key and run_id are required")
	}

	values := make([]int64, len(labels))
	for i, l := range labels {
		values[i] = int64(l)
	}

	query := `
		INSERT INTO sleep_predictions (
			run_id, session_key, object_key, epochs, labels, created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		runID, sessionKey, objectKey, len(labels), pq.Array(values),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sleep predictions: %w", err)
	}

	r.logger.Debug("Saved prediction run",
		zap.String("session_key", sessionKey),
		zap.String("run_id", runID),
		zap.Int("epochs", len(labels)),
	)
	return nil
}

// LatestPredictions 会话最近一次预测标签，无记录时返回 nil
func (r *SessionRepository) LatestPredictions(ctx context.Context, sessionKey string) ([]int, error) {
	query := `
		SELECT labels FROM sleep_predictions
		WHERE session_key = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var values pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(&values)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sleep predictions: %w", err)
	}

	labels := make([]int, len(values))
	for i, v := range values {
		labels[i] = int(v)
	}
	return labels, nil
}
