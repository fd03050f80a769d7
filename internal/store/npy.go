package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"wisefido-sleepstage/internal/models"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// npyMagic NumPy 文件魔数
var npyMagic = []byte("\x93NUMPY")

// EncodeSeries 以 2 维 float64 NPY 写出序列
func EncodeSeries(w io.Writer, s *models.Series) error {
	if s.Len() == 0 {
		return ErrEmpty
	}
	return npyio.Write(w, mat.NewDense(s.Len(), s.Cols, s.Data))
}

// DecodeSeries 读取 1 维或 2 维数值 NPY，统一为 float64 行主序
func DecodeSeries(r io.Reader) (*models.Series, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	shape := nr.Header.Descr.Shape
	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("unsupported npy shape %v", shape)
	}
	if rows == 0 || cols == 0 {
		return &models.Series{Cols: cols}, nil
	}

	data, err := readFloat64(nr, rows*cols)
	if err != nil {
		return nil, err
	}

	if nr.Header.Descr.Fortran && cols > 1 {
		data = toRowMajor(data, rows, cols)
	}
	return &models.Series{Cols: cols, Data: data}, nil
}

// readFloat64 按 dtype 读取并转换为 float64
func readFloat64(nr *npyio.Reader, n int) ([]float64, error) {
	switch nr.Header.Descr.Type {
	case "<f8", "f8", "float64":
		data := make([]float64, n)
		if err := nr.Read(&data); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		return data, nil
	case "<f4", "f4", "float32":
		raw := make([]float32, n)
		if err := nr.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	case "<i8", "i8", "int64":
		raw := make([]int64, n)
		if err := nr.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	case "<i4", "i4", "int32":
		raw := make([]int32, n)
		if err := nr.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		data := make([]float64, n)
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", nr.Header.Descr.Type)
	}
}

func toRowMajor(colMajor []float64, rows, cols int) []float64 {
	out := make([]float64, len(colMajor))
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[i*cols+j] = colMajor[j*rows+i]
		}
	}
	return out
}

// EncodeVector 写出 1 维 float64
func EncodeVector(w io.Writer, values []float64) error {
	return npyio.Write(w, values)
}

// DecodeVector 读取 1 维 float64
func DecodeVector(r io.Reader) ([]float64, error) {
	s, err := DecodeSeries(r)
	if err != nil {
		return nil, err
	}
	if s.Cols > 1 {
		return nil, fmt.Errorf("expected 1-d array, got %d columns", s.Cols)
	}
	return s.Data, nil
}

// EncodeInts 写出 1 维 int64
func EncodeInts(w io.Writer, values []int64) error {
	return npyio.Write(w, values)
}

// TailTimestamp 只读取 NPY 头和最后一行的第 0 列，不加载整个数组
func TailTimestamp(r io.ReaderAt) (float64, error) {
	preamble := make([]byte, 12)
	n, err := r.ReadAt(preamble, 0)
	if n < 10 {
		return 0, fmt.Errorf("failed to read npy preamble: %w", err)
	}
	if !bytes.Equal(preamble[:6], npyMagic) {
		return 0, fmt.Errorf("not an npy file")
	}

	var offset int64
	switch preamble[6] {
	case 1:
		offset = 10 + int64(binary.LittleEndian.Uint16(preamble[8:10]))
	case 2, 3:
		if n < 12 {
			return 0, fmt.Errorf("truncated npy preamble")
		}
		offset = 12 + int64(binary.LittleEndian.Uint32(preamble[8:12]))
	default:
		return 0, fmt.Errorf("unsupported npy version %d", preamble[6])
	}

	nr, err := npyio.NewReader(io.NewSectionReader(r, 0, offset))
	if err != nil {
		return 0, fmt.Errorf("failed to read npy header: %w", err)
	}
	descr := nr.Header.Descr
	if len(descr.Shape) == 0 || descr.Shape[0] == 0 {
		return 0, ErrEmpty
	}

	rows := int64(descr.Shape[0])
	cols := int64(1)
	if len(descr.Shape) > 1 {
		cols = int64(descr.Shape[1])
	}
	if cols == 0 {
		return 0, ErrEmpty
	}

	if descr.Type != "<f8" {
		// 非 float64 时回退为完整解码
		s, err := DecodeSeries(io.NewSectionReader(r, 0, math.MaxInt64))
		if err != nil {
			return 0, err
		}
		ts, ok := s.LastTimestamp()
		if !ok {
			return 0, ErrEmpty
		}
		return ts, nil
	}

	pos := offset + (rows-1)*cols*8
	if descr.Fortran {
		pos = offset + (rows-1)*8
	}
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, pos); err != nil {
		return 0, fmt.Errorf("failed to read last row: %w", err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}
