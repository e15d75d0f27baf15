package estimate

import (
	"context"
	"image"
	"math"

	"github.com/chaos-io/autofocus/focus"
)

// Luma 用亮度当深度的兜底估计器：亮的算近，gamma 压一下中间调。
// 不依赖任何模型，进程起来就绪，适合本地开发和测试环境。
type Luma struct {
	Gamma  float64
	Invert bool
}

func NewLuma() *Luma {
	return &Luma{Gamma: 1.5}
}

func (l *Luma) Ready() bool { return true }

func (l *Luma) EstimateDepth(ctx context.Context, img image.Image) (*focus.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	gamma := l.Gamma
	if gamma <= 0 {
		gamma = 1.5
	}

	// 灰度化 + gamma 校正
	grid := focus.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			v := math.Pow((0.299*float64(r)+0.587*float64(g)+0.114*float64(b))/65535.0, gamma)
			if l.Invert {
				v = 1 - v
			}
			grid.Set(x, y, v)
		}
	}

	// 3x3 高斯消噪
	kernel := [3][3]float64{
		{1 / 16.0, 2 / 16.0, 1 / 16.0},
		{2 / 16.0, 4 / 16.0, 2 / 16.0},
		{1 / 16.0, 2 / 16.0, 1 / 16.0},
	}
	out := focus.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += grid.At(clamp(x+kx, w), clamp(y+ky, h)) * kernel[ky+1][kx+1]
				}
			}
			out.Set(x, y, sum)
		}
	}
	return out, nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
