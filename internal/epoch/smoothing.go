package epoch

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 带通核参数：窄高斯减去加权的宽高斯
const (
	dogSigmaNarrow = 120.0
	dogSigmaWide   = 600.0
	dogWideScale   = 0.75
)

// DoGKernel 宽度为 width 的高斯差分核，中心在 width/2
func DoGKernel(width int) []float64 {
	mu := float64(width / 2)
	kernel := make([]float64, width)
	for i := range kernel {
		d := float64(i) - mu
		kernel[i] = math.Exp(-0.5*math.Pow(d/dogSigmaNarrow, 2)) - dogWideScale*math.Exp(-0.5*math.Pow(d/dogSigmaWide, 2))
	}
	return kernel
}

// ConvolveDoG 去均值后与 DoG 核卷积，两端镜像填充，输出与输入等长
func ConvolveDoG(values []float64, width int) []float64 {
	n := len(values)
	if n == 0 || width <= 0 {
		return nil
	}

	centered := make([]float64, n)
	copy(centered, values)
	floats.AddConst(-stat.Mean(values, nil), centered)

	kernel := DoGKernel(width)
	// 卷积翻转核：out[i] = Σ k[m]·y[i+shift-m]
	shift := width - 1 - width/2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for m, k := range kernel {
			sum += k * centered[mirror(i+shift-m, n)]
		}
		out[i] = sum
	}
	return out
}

// mirror 越界下标按边界镜像（-1→0, n→n-1），仍越界时夹到端点
func mirror(i, n int) int {
	if i < 0 {
		i = -i - 1
	} else if i >= n {
		i = 2*n - i - 1
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// GaussianWeights 以 width/2 为中心、标准差 sigma 的归一化高斯权重
func GaussianWeights(width int, sigma float64) []float64 {
	if width <= 0 {
		return nil
	}
	mu := float64(width / 2)
	w := make([]float64, width)
	for i := range w {
		d := (float64(i) - mu) / sigma
		w[i] = math.Exp(-0.5 * d * d)
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// Percentile 第 p 百分位数，最近秩之间线性插值
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	h := float64(n-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// NormalizerScalar |x| 的第 90 百分位数，为 0 时取 1
func NormalizerScalar(values []float64) float64 {
	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
	}
	scalar := Percentile(abs, 90)
	if scalar == 0 || math.IsNaN(scalar) {
		return 1
	}
	return scalar
}
