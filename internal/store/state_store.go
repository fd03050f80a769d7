package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"wisefido-sleepstage/internal/models"

	"github.com/go-redis/redis/v8"
)

const stateKeyPrefix = "sleepstage:session:"

// RedisStateStore 基于 Redis Hash 的会话状态
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore 创建 Redis 会话状态存储，ttl<=0 表示不过期
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (r *RedisStateStore) Get(ctx context.Context, sessionKey string) (*models.SessionState, error) {
	fields, err := r.client.HGetAll(ctx, stateKeyPrefix+sessionKey).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrStateMiss
	}

	state := &models.SessionState{
		Ready:              fields["ready"] == "1",
		ProcessedWatermark: fields["processed_watermark"],
	}
	state.HeartRateLastTs, _ = strconv.ParseFloat(fields["hr_last_ts"], 64)
	state.MotionLastTs, _ = strconv.ParseFloat(fields["motion_last_ts"], 64)
	if unix, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		state.UpdatedAt = time.Unix(unix, 0).UTC()
	}
	return state, nil
}

func (r *RedisStateStore) Save(ctx context.Context, sessionKey string, state *models.SessionState) error {
	ready := "0"
	if state.Ready {
		ready = "1"
	}
	key := stateKeyPrefix + sessionKey

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"ready", ready,
		"hr_last_ts", strconv.FormatFloat(state.HeartRateLastTs, 'f', -1, 64),
		"motion_last_ts", strconv.FormatFloat(state.MotionLastTs, 'f', -1, 64),
		"processed_watermark", state.ProcessedWatermark,
		"updated_at", strconv.FormatInt(state.UpdatedAt.Unix(), 10),
	)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// MemoryStateStore 进程内会话状态（单实例部署与测试）
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.SessionState
}

// NewMemoryStateStore 创建内存状态存储
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.SessionState)}
}

func (m *MemoryStateStore) Get(ctx context.Context, sessionKey string) (*models.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[sessionKey]
	if !ok {
		return nil, ErrStateMiss
	}
	return &state, nil
}

func (m *MemoryStateStore) Save(ctx context.Context, sessionKey string, state *models.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionKey] = *state
	return nil
}
