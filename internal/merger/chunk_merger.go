package merger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/store"

	"go.uber.org/zap"
)

// MergeResult 一次合并的结果
type MergeResult struct {
	ChunksMerged  int
	ChunksSkipped []string
	Rows          int
	LastTimestamp float64
	Changed       bool
}

// ChunkMerger 把流目录下的原始分片合并为规范序列
type ChunkMerger struct {
	streams  store.StreamStore
	features store.FeatureStore
	logger   *zap.Logger
}

// NewChunkMerger 创建分片合并器
func NewChunkMerger(streams store.StreamStore, features store.FeatureStore, logger *zap.Logger) *ChunkMerger {
	return &ChunkMerger{
		streams:  streams,
		features: features,
		logger:   logger,
	}
}

// Merge 按文件名顺序把分片拼接到已有规范序列上，按时间戳排序去重后同名覆盖写回
// 运动流合并后同时生成默认标签脚手架
func (m *ChunkMerger) Merge(ctx context.Context, layout store.Layout, stream models.StreamType) (*MergeResult, error) {
	result := &MergeResult{}

	names, err := m.streams.ListChunks(ctx, layout, stream)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	var parts []*models.Series
	existing, err := m.streams.ReadMerged(ctx, layout, stream)
	if err == nil {
		existing, err = conform(existing, stream)
	}
	switch {
	case err == nil && existing.Len() > 0:
		parts = append(parts, existing)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		// 规范文件损坏时从分片重建
		m.logger.Warn("Failed to read merged artifact, rebuilding from chunks",
			zap.String("session_key", layout.Session.Key()),
			zap.String("stream", string(stream)),
			zap.Error(err),
		)
		existing = nil
	}

	for _, name := range names {
		chunk, err := m.streams.ReadChunk(ctx, layout, stream, name)
		if err == nil && chunk.Len() == 0 {
			err = store.ErrEmpty
		}
		if err == nil {
			chunk, err = conform(chunk, stream)
		}
		if err != nil {
			m.logger.Warn("Skipping unreadable chunk",
				zap.String("session_key", layout.Session.Key()),
				zap.String("stream", string(stream)),
				zap.String("chunk", name),
				zap.Error(err),
			)
			result.ChunksSkipped = append(result.ChunksSkipped, name)
			continue
		}
		parts = append(parts, chunk)
		result.ChunksMerged++
	}

	if len(parts) == 0 {
		return result, nil
	}

	merged := sortUnique(parts)
	result.Rows = merged.Len()
	if merged.Len() == 0 {
		return result, nil
	}
	result.LastTimestamp, _ = merged.LastTimestamp()

	if existing == nil || !equalSeries(existing, merged) {
		if err := m.streams.WriteMerged(ctx, layout, stream, merged); err != nil {
			return nil, fmt.Errorf("failed to write merged %s: %w", stream, err)
		}
		result.Changed = true
	}

	if stream == models.StreamMotion {
		labels := BuildLabelScaffold(result.LastTimestamp)
		if err := m.features.WriteLabels(ctx, layout, labels); err != nil {
			return nil, fmt.Errorf("failed to write label scaffold: %w", err)
		}
		m.logger.Debug("Created label scaffold",
			zap.String("session_key", layout.Session.Key()),
			zap.Int("labels", labels.Len()),
		)
	}

	return result, nil
}

// conform 按流类型校验列数：心率必须恰好 2 列，运动至少 4 列，多余的列截掉
func conform(s *models.Series, stream models.StreamType) (*models.Series, error) {
	want := stream.Columns()
	if s.Len() == 0 || s.Cols == want {
		return s, nil
	}
	if stream != models.StreamMotion || s.Cols < want {
		return nil, fmt.Errorf("%s series has %d columns, want %d", stream, s.Cols, want)
	}
	out := &models.Series{Cols: want, Data: make([]float64, 0, s.Len()*want)}
	for i := 0; i < s.Len(); i++ {
		out.Data = append(out.Data, s.Row(i)[:want]...)
	}
	return out, nil
}

// sortUnique 拼接后按时间戳稳定排序，重复时间戳保留先出现的行
func sortUnique(parts []*models.Series) *models.Series {
	cols := parts[0].Cols
	var rows [][]float64
	for _, p := range parts {
		for i := 0; i < p.Len(); i++ {
			row := p.Row(i)
			if math.IsNaN(row[0]) {
				continue
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	out := &models.Series{Cols: cols, Data: make([]float64, 0, len(rows)*cols)}
	for i, row := range rows {
		if i > 0 && row[0] <= rows[i-1][0] {
			continue
		}
		out.Data = append(out.Data, row...)
	}
	return out
}

func equalSeries(a, b *models.Series) bool {
	if a.Cols != b.Cols || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
