package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wisefido-sleepstage/internal/models"

	"go.uber.org/zap"
)

const tempPrefix = ".tmp-"

// FileStore 本地文件系统上的会话产物存储，同时实现 StreamStore 与 FeatureStore
type FileStore struct {
	logger *zap.Logger
}

// NewFileStore 创建文件存储
func NewFileStore(logger *zap.Logger) *FileStore {
	return &FileStore{logger: logger}
}

// SaveChunk 原子写入一个原始分片
func (s *FileStore) SaveChunk(ctx context.Context, layout Layout, stream models.StreamType, name string, body []byte) error {
	if name == layout.MergedName(stream) {
		return fmt.Errorf("chunk name %q collides with canonical artifact", name)
	}
	path := filepath.Join(layout.StreamDir(stream), filepath.Base(name))
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}

// ListChunks 按文件名升序列出分片（不含规范合并文件）
func (s *FileStore) ListChunks(ctx context.Context, layout Layout, stream models.StreamType) ([]string, error) {
	entries, err := os.ReadDir(layout.StreamDir(stream))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to list stream dir: %w", err)
	}

	canonical := layout.MergedName(stream)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == canonical || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, ".npy") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadChunk 读取单个分片
func (s *FileStore) ReadChunk(ctx context.Context, layout Layout, stream models.StreamType, name string) (*models.Series, error) {
	return readSeries(filepath.Join(layout.StreamDir(stream), name))
}

// ReadMerged 读取规范合并序列
func (s *FileStore) ReadMerged(ctx context.Context, layout Layout, stream models.StreamType) (*models.Series, error) {
	return readSeries(layout.MergedPath(stream))
}

// WriteMerged 以同名覆盖的方式原子替换规范合并序列
func (s *FileStore) WriteMerged(ctx context.Context, layout Layout, stream models.StreamType, series *models.Series) error {
	if err := writeAtomic(layout.MergedPath(stream), func(w io.Writer) error {
		return EncodeSeries(w, series)
	}); err != nil {
		return err
	}
	s.logger.Debug("Replaced canonical artifact",
		zap.String("session_key", layout.Session.Key()),
		zap.String("stream", string(stream)),
		zap.Int("rows", series.Len()),
	)
	return nil
}

// LastTimestamp 只读取文件尾部获取最后时间戳
func (s *FileStore) LastTimestamp(ctx context.Context, layout Layout, stream models.StreamType) (float64, error) {
	f, err := os.Open(layout.MergedPath(stream))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	defer f.Close()
	return TailTimestamp(f)
}

// WriteLabels 写出标签脚手架（ts, label 两列）
func (s *FileStore) WriteLabels(ctx context.Context, layout Layout, labels *models.LabelSeries) error {
	rows := make([][]float64, labels.Len())
	for i := range labels.Timestamps {
		rows[i] = []float64{float64(labels.Timestamps[i]), float64(labels.Labels[i])}
	}
	series, err := models.NewSeries(rows)
	if err != nil {
		return err
	}
	return writeAtomic(layout.LabelsPath(), func(w io.Writer) error {
		return EncodeSeries(w, series)
	})
}

// ReadLabels 读取标签脚手架
func (s *FileStore) ReadLabels(ctx context.Context, layout Layout) (*models.LabelSeries, error) {
	series, err := readSeries(layout.LabelsPath())
	if err != nil {
		return nil, err
	}
	if series.Cols != 2 {
		return nil, fmt.Errorf("label artifact has %d columns, want 2", series.Cols)
	}
	labels := &models.LabelSeries{
		Timestamps: make([]int64, series.Len()),
		Labels:     make([]int64, series.Len()),
	}
	for i := 0; i < series.Len(); i++ {
		row := series.Row(i)
		labels.Timestamps[i] = int64(row[0])
		labels.Labels[i] = int64(row[1])
	}
	return labels, nil
}

// WriteCropped 写出裁剪后的流
func (s *FileStore) WriteCropped(ctx context.Context, layout Layout, stream models.StreamType, series *models.Series) error {
	return writeAtomic(layout.CroppedPath(stream), func(w io.Writer) error {
		return EncodeSeries(w, series)
	})
}

// WriteFeature 写出单个特征向量
func (s *FileStore) WriteFeature(ctx context.Context, layout Layout, name string, values []float64) error {
	return writeAtomic(layout.FeaturePath(name), func(w io.Writer) error {
		return EncodeVector(w, values)
	})
}

// ReadFeature 读取单个特征向量
func (s *FileStore) ReadFeature(ctx context.Context, layout Layout, name string) ([]float64, error) {
	body, err := os.ReadFile(layout.FeaturePath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return DecodeVector(bytes.NewReader(body))
}

// WritePredictions 写出预测标签
func (s *FileStore) WritePredictions(ctx context.Context, layout Layout, labels []int) error {
	values := make([]int64, len(labels))
	for i, l := range labels {
		values[i] = int64(l)
	}
	return writeAtomic(layout.PredictionsPath(), func(w io.Writer) error {
		return EncodeInts(w, values)
	})
}

func readSeries(path string) (*models.Series, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmpty
	}
	return DecodeSeries(bytes.NewReader(body))
}

// writeAtomic 先写同目录临时文件再 rename，读者只会看到完整文件
func writeAtomic(path string, encode func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
