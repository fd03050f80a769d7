package merger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLayout(t *testing.T) store.Layout {
	session := models.SessionRef{Root: "users", SubjectID: "0001", SessionID: "20260102_184054"}
	return store.NewLayout(t.TempDir(), session, "0721")
}

func chunkBytes(t *testing.T, rows [][]float64) []byte {
	s, err := models.NewSeries(rows)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, store.EncodeSeries(&buf, s))
	return buf.Bytes()
}

func saveChunks(t *testing.T, fs *store.FileStore, l store.Layout, stream models.StreamType, chunks map[string][][]float64) {
	for name, rows := range chunks {
		require.NoError(t, fs.SaveChunk(context.Background(), l, stream, name, chunkBytes(t, rows)))
	}
}

var hrChunks = map[string][][]float64{
	"chunk_002.npy": {{20, 70}, {25, 71}},
	"chunk_001.npy": {{0, 60}, {5, 62}, {10, 64}},
	"chunk_003.npy": {{15, 66}},
}

func TestMerge_MissingDirIsNoop(t *testing.T) {
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)

	res, err := m.Merge(context.Background(), l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	_, err = os.Stat(l.MergedPath(models.StreamHeartRate))
	assert.True(t, os.IsNotExist(err))
}

func TestMerge_SortedStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamHeartRate, hrChunks)

	res, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksMerged)
	assert.Equal(t, 6, res.Rows)
	assert.Equal(t, 25.0, res.LastTimestamp)
	assert.True(t, res.Changed)

	merged, err := fs.ReadMerged(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10, 15, 20, 25}, merged.Timestamps())
	assert.Equal(t, []float64{60, 62, 64, 66, 70, 71}, merged.Column(1))

	// 心率流不生成标签
	_, err = os.Stat(l.LabelsPath())
	assert.True(t, os.IsNotExist(err))
}

func TestMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())

	once := newLayout(t)
	saveChunks(t, fs, once, models.StreamHeartRate, hrChunks)
	_, err := m.Merge(ctx, once, models.StreamHeartRate)
	require.NoError(t, err)

	twice := newLayout(t)
	saveChunks(t, fs, twice, models.StreamHeartRate, hrChunks)
	_, err = m.Merge(ctx, twice, models.StreamHeartRate)
	require.NoError(t, err)
	res, err := m.Merge(ctx, twice, models.StreamHeartRate)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	a, err := os.ReadFile(once.MergedPath(models.StreamHeartRate))
	require.NoError(t, err)
	b, err := os.ReadFile(twice.MergedPath(models.StreamHeartRate))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMerge_DuplicateChunkNoVisibleChange(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamHeartRate, hrChunks)

	_, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	before, err := fs.ReadMerged(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)

	// 同一分片以另一个名字重复投递
	saveChunks(t, fs, l, models.StreamHeartRate, map[string][][]float64{"chunk_001_dup.npy": hrChunks["chunk_001.npy"]})
	res, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	after, err := fs.ReadMerged(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMerge_SkipsUnreadableChunks(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamHeartRate, hrChunks)

	dir := l.StreamDir(models.StreamHeartRate)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk_000.npy"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk_004.npy"), nil, 0o644))
	saveChunks(t, fs, l, models.StreamHeartRate, map[string][][]float64{"chunk_005.npy": {{30, 1, 2}}})

	res, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksMerged)
	assert.ElementsMatch(t, []string{"chunk_000.npy", "chunk_004.npy", "chunk_005.npy"}, res.ChunksSkipped)
	assert.Equal(t, 6, res.Rows)
}

func TestMerge_MotionWritesLabelScaffold(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamMotion, map[string][][]float64{
		"a.npy": {{0, 0, 0, 1}, {150, 0, 0, 1}},
		"b.npy": {{305, 0.1, 0, 1}},
	})

	res, err := m.Merge(ctx, l, models.StreamMotion)
	require.NoError(t, err)
	assert.Equal(t, 305.0, res.LastTimestamp)

	labels, err := fs.ReadLabels(ctx, l)
	require.NoError(t, err)
	// round(305/30)=10 → 11 个标签
	assert.Equal(t, 11, labels.Len())
	assert.Equal(t, int64(300), labels.Timestamps[10])
	for _, v := range labels.Labels {
		assert.Equal(t, int64(0), v)
	}
}

func TestBuildLabelScaffold_Rounding(t *testing.T) {
	cases := []struct {
		lastTs float64
		want   int
	}{
		{0, 1},
		{14, 1},
		{15, 1}, // 0.5 → 0
		{45, 3}, // 1.5 → 2
		{75, 3}, // 2.5 → 2
		{310, 11},
		{-100, 0},
	}
	for _, c := range cases {
		labels := BuildLabelScaffold(c.lastTs)
		assert.Equal(t, c.want, labels.Len(), "lastTs=%v", c.lastTs)
		for i, ts := range labels.Timestamps {
			assert.Equal(t, int64(i*30), ts)
		}
	}
}

func vectorBytes(t *testing.T, values []float64) []byte {
	var buf bytes.Buffer
	require.NoError(t, store.EncodeVector(&buf, values))
	return buf.Bytes()
}

func TestMerge_WrongShapeChunkSortedFirst(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamHeartRate, hrChunks)
	require.NoError(t, fs.SaveChunk(ctx, l, models.StreamHeartRate, "chunk_000.npy", vectorBytes(t, []float64{1, 2, 3})))

	res, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksMerged)
	assert.Equal(t, []string{"chunk_000.npy"}, res.ChunksSkipped)
	assert.Equal(t, 6, res.Rows)

	merged, err := fs.ReadMerged(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Cols)
	assert.Equal(t, []float64{0, 5, 10, 15, 20, 25}, merged.Timestamps())
}

func TestMerge_RebuildsWrongShapeMergedArtifact(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamHeartRate, hrChunks)

	bad, err := models.NewSeries([][]float64{{1}, {2}, {3}})
	require.NoError(t, err)
	require.NoError(t, fs.WriteMerged(ctx, l, models.StreamHeartRate, bad))

	res, err := m.Merge(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 6, res.Rows)

	merged, err := fs.ReadMerged(ctx, l, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Cols)
	assert.Equal(t, 25.0, merged.Timestamp(merged.Len()-1))
}

func TestMerge_MotionColumns(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFileStore(zap.NewNop())
	m := NewChunkMerger(fs, fs, zap.NewNop())
	l := newLayout(t)
	saveChunks(t, fs, l, models.StreamMotion, map[string][][]float64{
		"a.npy": {{0, 0, 0, 1, 9}, {10, 0, 0, 1, 9}},
		"b.npy": {{20, 0, 0, 1}},
		"c.npy": {{30, 0, 1}},
	})

	res, err := m.Merge(ctx, l, models.StreamMotion)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunksMerged)
	assert.Equal(t, []string{"c.npy"}, res.ChunksSkipped)
	assert.Equal(t, 3, res.Rows)

	merged, err := fs.ReadMerged(ctx, l, models.StreamMotion)
	require.NoError(t, err)
	assert.Equal(t, 4, merged.Cols)
	assert.Equal(t, []float64{0, 10, 20}, merged.Timestamps())
}
