package focus

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blur"
)

// Composite 按蒙版在原图和重度虚化图之间逐像素线性混合。
// 只做一次大核高斯得到最大虚化版本，中间程度全靠混合权重过渡，
// 比逐像素挑模糊级别便宜得多，落焦效果也足够接近。
// 混合在浮点域完成，最后取整并夹回 0-255。
func Composite(img image.Image, mask *Grid, maxBlurRadius int) (*image.RGBA, error) {
	if maxBlurRadius <= 0 {
		return nil, fmt.Errorf("%w: blur radius %d", ErrInvalidParameter, maxBlurRadius)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if mask.W != w || mask.H != h {
		return nil, fmt.Errorf("%w: image %dx%d vs mask %dx%d", ErrDimensionMismatch, w, h, mask.W, mask.H)
	}

	src := toRGBA(img)
	heavy := HeavyBlur(src, maxBlurRadius)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := mask.At(x, y)
			if m < 0 {
				m = 0
			} else if m > 1 {
				m = 1
			}

			i := y*src.Stride + x*4
			j := y*heavy.Stride + x*4
			o := y*out.Stride + x*4
			for c := 0; c < 4; c++ {
				v := (1-m)*float64(src.Pix[i+c]) + m*float64(heavy.Pix[j+c])
				out.Pix[o+c] = clampUint8(v)
			}
		}
	}
	return out, nil
}

// HeavyBlur 生成最大虚化版本，核大小 2r+1。
func HeavyBlur(img image.Image, maxBlurRadius int) *image.RGBA {
	return blur.Gaussian(img, float64(maxBlurRadius))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func clampUint8(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}
