package models

import "fmt"

// StreamType 传感器流类型（对象 key 中的 streamType 段）
type StreamType string

const (
	StreamHeartRate StreamType = "heartrate"
	StreamMotion    StreamType = "acceleration"
)

// Columns 规范序列的列数：心率 (ts, bpm)，运动 (ts, x, y, z)
func (t StreamType) Columns() int {
	if t == StreamMotion {
		return 4
	}
	return 2
}

// ParseStreamType 解析流类型，未知类型返回 false
func ParseStreamType(s string) (StreamType, bool) {
	switch StreamType(s) {
	case StreamHeartRate, StreamMotion:
		return StreamType(s), true
	}
	return "", false
}

// Series 行主序的数值矩阵，第 0 列为时间戳（相对录制开始的秒数）
// 心率: (ts, bpm)；运动: (ts, x, y, z)
type Series struct {
	Cols int
	Data []float64
}

// NewSeries 从行构造 Series，所有行必须等宽
func NewSeries(rows [][]float64) (*Series, error) {
	if len(rows) == 0 {
		return &Series{}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return &Series{Cols: cols, Data: data}, nil
}

// Len 行数
func (s *Series) Len() int {
	if s == nil || s.Cols == 0 {
		return 0
	}
	return len(s.Data) / s.Cols
}

// Row 第 i 行（共享底层数组）
func (s *Series) Row(i int) []float64 {
	return s.Data[i*s.Cols : (i+1)*s.Cols]
}

// Timestamp 第 i 行的时间戳
func (s *Series) Timestamp(i int) float64 {
	return s.Data[i*s.Cols]
}

// Column 复制第 j 列
func (s *Series) Column(j int) []float64 {
	n := s.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = s.Data[i*s.Cols+j]
	}
	return out
}

// Timestamps 复制时间戳列
func (s *Series) Timestamps() []float64 {
	return s.Column(0)
}

// LastTimestamp 最后一行的时间戳，空序列返回 false
func (s *Series) LastTimestamp() (float64, bool) {
	n := s.Len()
	if n == 0 {
		return 0, false
	}
	return s.Timestamp(n - 1), true
}

// Slice 返回 [from, to) 行的拷贝
func (s *Series) Slice(from, to int) *Series {
	data := make([]float64, (to-from)*s.Cols)
	copy(data, s.Data[from*s.Cols:to*s.Cols])
	return &Series{Cols: s.Cols, Data: data}
}
