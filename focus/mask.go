package focus

import (
	"fmt"
	"math"
)

// DefaultSmoothKernel 蒙版平滑核大小，对应原效果里 21×21 的高斯。
const DefaultSmoothKernel = 21

// MaskBuilder 把“离对焦平面的距离”转成逐像素的虚化强度场。
// SmoothKernel 必须是正奇数，取 1 表示不做平滑。
type MaskBuilder struct {
	SmoothKernel int
}

func NewMaskBuilder() *MaskBuilder {
	return &MaskBuilder{SmoothKernel: DefaultSmoothKernel}
}

// FocusRange 由 focusStrength 换算出对焦容差带宽：强度越大，清晰带越窄。
func FocusRange(focusStrength float64) (float64, error) {
	if focusStrength <= 0 || math.IsNaN(focusStrength) || math.IsInf(focusStrength, 0) {
		return 0, fmt.Errorf("%w: focus strength %v", ErrInvalidParameter, focusStrength)
	}
	return 0.1 / focusStrength, nil
}

// Build 生成 [0,1] 的虚化蒙版：0 全清晰，1 最大虚化。
//  1. 逐像素算 |depth - plane|
//  2. 按全图最大距离归一化（深度均匀时直接全 0）
//  3. 容差带内强制置 0，对焦带绝对清晰
//  4. 高斯平滑消除硬边和色带
func (b *MaskBuilder) Build(depth *Grid, plane, focusRange float64) (*Grid, error) {
	if focusRange < 0 || math.IsNaN(focusRange) {
		return nil, fmt.Errorf("%w: focus range %v", ErrInvalidParameter, focusRange)
	}

	dist := NewGrid(depth.W, depth.H)
	maxDist := 0.0
	for i, v := range depth.Pix {
		d := math.Abs(v - plane)
		dist.Pix[i] = d
		if d > maxDist {
			maxDist = d
		}
	}

	mask := NewGrid(depth.W, depth.H)
	if maxDist > 0 {
		for i, d := range dist.Pix {
			if d <= focusRange {
				continue
			}
			mask.Pix[i] = d / maxDist
		}
	}

	return smoothGrid(mask, b.SmoothKernel), nil
}

// smoothGrid 分离式高斯卷积，边缘取 clamp。
// sigma 沿用 OpenCV 对自动 sigma 的换算。
func smoothGrid(g *Grid, kernel int) *Grid {
	if kernel <= 1 {
		return g
	}
	if kernel%2 == 0 {
		kernel++
	}

	sigma := 0.3*(float64(kernel-1)*0.5-1) + 0.8
	radius := kernel / 2
	weights := make([]float64, kernel)
	sum := 0.0
	for i := range weights {
		d := float64(i - radius)
		weights[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	// 横向
	tmp := NewGrid(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			acc := 0.0
			for i, w := range weights {
				acc += w * g.At(clampIndex(x+i-radius, g.W), y)
			}
			tmp.Set(x, y, acc)
		}
	}

	// 纵向
	out := NewGrid(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			acc := 0.0
			for i, w := range weights {
				acc += w * tmp.At(x, clampIndex(y+i-radius, g.H))
			}
			out.Set(x, y, acc)
		}
	}
	return out
}
