package focus

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Grid 是和图像逐像素对齐的标量场，深度图和模糊蒙版都用它表示。
// 行优先存储，和 image.Gray 的 Pix 布局一致。
type Grid struct {
	W, H int
	Pix  []float64
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Pix: make([]float64, w*h)}
}

func (g *Grid) At(x, y int) float64 {
	return g.Pix[y*g.W+x]
}

func (g *Grid) Set(x, y int, v float64) {
	g.Pix[y*g.W+x] = v
}

// MinMax 返回全场最小值和最大值。
func (g *Grid) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Validate 检查尺寸和数值有效性，NaN/Inf 一律拒绝。
func (g *Grid) Validate() error {
	if g.W <= 0 || g.H <= 0 || len(g.Pix) != g.W*g.H {
		return fmt.Errorf("%w: bad size %dx%d with %d values", ErrInvalidDepthMap, g.W, g.H, len(g.Pix))
	}
	for i, v := range g.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidDepthMap, i)
		}
	}
	return nil
}

// Normalize 把任意有限范围的标量场线性拉伸到 [0,1]。
// 平坦场（max == min）定义为全 0：没有深度差就推不出任何虚化。
func (g *Grid) Normalize() (*Grid, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	lo, hi := g.MinMax()
	out := NewGrid(g.W, g.H)
	span := hi - lo
	if span <= 0 {
		return out, nil
	}
	for i, v := range g.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out, nil
}

// Resize 双线性插值缩放到目标尺寸。
// 不走图像缩放库：那些都按 8bit 通道算，会把连续值量化掉。
func (g *Grid) Resize(w, h int) *Grid {
	if w == g.W && h == g.H {
		out := NewGrid(g.W, g.H)
		copy(out.Pix, g.Pix)
		return out
	}

	out := NewGrid(w, h)
	sx := float64(g.W) / float64(w)
	sy := float64(g.H) / float64(h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(math.Floor(fy))
		ty := fy - float64(y0)
		y1 := y0 + 1
		y0 = clampIndex(y0, g.H)
		y1 = clampIndex(y1, g.H)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(math.Floor(fx))
			tx := fx - float64(x0)
			x1 := x0 + 1
			x0 = clampIndex(x0, g.W)
			x1 = clampIndex(x1, g.W)

			top := g.At(x0, y0)*(1-tx) + g.At(x1, y0)*tx
			bot := g.At(x0, y1)*(1-tx) + g.At(x1, y1)*tx
			out.Set(x, y, top*(1-ty)+bot*ty)
		}
	}
	return out
}

// Gray 渲染成灰度图，用于深度图/蒙版的可视化输出。
func (g *Grid) Gray() *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := g.At(x, y)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			dst.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return dst
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
