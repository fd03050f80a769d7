package models

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrInvalidObjectKey 对象 key 不符合 <root>/<subject>/<sessionId>/<streamType>/<chunkFile>
var ErrInvalidObjectKey = errors.New("invalid object key")

// ObjectRef 解析后的对象 key
type ObjectRef struct {
	Key       string
	Root      string
	SubjectID string
	SessionID string
	StreamDir string
	ChunkFile string
	Segments  []string
}

// ParseObjectKey 解析对象 key，至少需要 5 段
func ParseObjectKey(key string) (ObjectRef, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	parts := strings.Split(key, "/")
	if len(parts) < 5 {
		return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidObjectKey, key)
	}
	for _, p := range parts[:3] {
		if p == "" {
			return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidObjectKey, key)
		}
	}
	return ObjectRef{
		Key:       key,
		Root:      parts[0],
		SubjectID: parts[1],
		SessionID: parts[2],
		StreamDir: parts[3],
		ChunkFile: parts[len(parts)-1],
		Segments:  parts,
	}, nil
}

// HasSegment key 是否包含指定路径段（用于过滤 predictions 回环）
func (r ObjectRef) HasSegment(segment string) bool {
	for _, p := range r.Segments {
		if p == segment {
			return true
		}
	}
	return false
}

// Session 会话引用
func (r ObjectRef) Session() SessionRef {
	return SessionRef{Root: r.Root, SubjectID: r.SubjectID, SessionID: r.SessionID}
}

// SessionRef 会话标识：subject + 录制开始时间（sessionId）
type SessionRef struct {
	Root      string
	SubjectID string
	SessionID string
}

// Key 会话键，用于锁与状态存储
func (s SessionRef) Key() string {
	return s.SubjectID + "/" + s.SessionID
}

// ObjectPrefix 对象存储中的会话前缀（key 的前三段）
func (s SessionRef) ObjectPrefix() string {
	return path.Join(s.Root, s.SubjectID, s.SessionID)
}

// LocalRelDir 本地相对目录，首个 users/ 映射为 user_data/
func (s SessionRef) LocalRelDir() string {
	return strings.Replace(s.ObjectPrefix()+"/", "users/", "user_data/", 1)
}

// StartOfDay 从 sessionId（YYYYMMDD_HHMMSS）解析录制开始时刻距当日零点的秒数
func (s SessionRef) StartOfDay() (float64, error) {
	t, err := time.Parse("20060102_150405", s.SessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to parse session start %q: %w", s.SessionID, err)
	}
	return float64(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

// SessionState 会话持久状态：就绪标志与已处理水位
type SessionState struct {
	Ready              bool      `json:"ready"`
	HeartRateLastTs    float64   `json:"hr_last_ts"`
	MotionLastTs       float64   `json:"motion_last_ts"`
	ProcessedWatermark string    `json:"processed_watermark"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Watermark 由两路流的最后时间戳组成的处理水位
func Watermark(hrLast, motionLast float64) string {
	return fmt.Sprintf("%g|%g", hrLast, motionLast)
}
