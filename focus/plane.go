package focus

import (
	"fmt"
	"sort"
)

const (
	// DefaultBins 原实现取 50 bin，只是经验值，按配置可调。
	DefaultBins = 50
	// DefaultCenterCrop 取画面中间一半（25%~75%）作为主体先验区域。
	DefaultCenterCrop = 0.5
)

// PlaneEstimator 从归一化深度图里估计对焦平面。
// 假设主体落在画面中央：没有显式主体检测时这是个合理先验。
type PlaneEstimator struct {
	Bins       int
	CenterCrop float64
}

func NewPlaneEstimator() *PlaneEstimator {
	return &PlaneEstimator{Bins: DefaultBins, CenterCrop: DefaultCenterCrop}
}

// Estimate 返回 [0,1] 里的对焦深度。
// 中央区域的中位数抗离群值，直方图众数抓住主体占比最大的深度面，
// 两者取平均互相兜底。
func (e *PlaneEstimator) Estimate(depth *Grid) (float64, error) {
	bins := e.Bins
	if bins <= 0 {
		bins = DefaultBins
	}
	crop := e.CenterCrop
	if crop <= 0 || crop > 1 {
		crop = DefaultCenterCrop
	}

	cw := int(float64(depth.W) * crop)
	ch := int(float64(depth.H) * crop)
	if cw < 4 || ch < 4 {
		return 0, fmt.Errorf("%w: center crop %dx%d of %dx%d map", ErrInsufficientResolution, cw, ch, depth.W, depth.H)
	}

	x0 := (depth.W - cw) / 2
	y0 := (depth.H - ch) / 2

	center := make([]float64, 0, cw*ch)
	for y := y0; y < y0+ch; y++ {
		row := y * depth.W
		center = append(center, depth.Pix[row+x0:row+x0+cw]...)
	}

	median := medianOf(center)
	mode := histogramMode(center, bins)

	return (median + mode) / 2, nil
}

func medianOf(vs []float64) float64 {
	s := make([]float64, len(vs))
	copy(s, vs)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// histogramMode 返回计数最高 bin 的中点值。
// 按数据实际范围分桶，和 np.histogram 的行为保持一致。
func histogramMode(vs []float64, bins int) float64 {
	lo, hi := vs[0], vs[0]
	for _, v := range vs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return lo
	}

	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range vs {
		i := int((v - lo) / width)
		if i >= bins { // v == hi 落进最后一个 bin
			i = bins - 1
		}
		counts[i]++
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return lo + (float64(best)+0.5)*width
}
