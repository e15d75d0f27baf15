package focus

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// DefaultMaxProcessSize 长边超过它就先缩小再估深度，深度推理太贵。
const DefaultMaxProcessSize = 512

// DepthEstimator 是外部深度模型的注入口。
// 返回的深度图分辨率必须和输入图一致；相对深度，数值越大越近。
type DepthEstimator interface {
	EstimateDepth(ctx context.Context, img image.Image) (*Grid, error)
	Ready() bool
}

type Options struct {
	Bins           int     // 对焦平面直方图 bin 数
	CenterCrop     float64 // 中央先验区域占比
	SmoothKernel   int     // 蒙版平滑核
	MaxProcessSize int     // 处理分辨率上限（长边）
}

func DefaultOptions() Options {
	return Options{
		Bins:           DefaultBins,
		CenterCrop:     DefaultCenterCrop,
		SmoothKernel:   DefaultSmoothKernel,
		MaxProcessSize: DefaultMaxProcessSize,
	}
}

// Params 是一次请求的两个旋钮，边界层负责范围校验，
// 这里仍然对退化值兜底（不能 panic、不能除零）。
type Params struct {
	FocusStrength float64
	BlurRadius    int
}

// Result 单次处理的完整产物，深度图和蒙版一并带出去做诊断可视化。
type Result struct {
	Image      *image.RGBA
	Depth      *Grid
	Mask       *Grid
	FocusPlane float64
	Params     Params
	Width      int
	Height     int
	Scaled     bool
}

// Pipeline 串起 归一化 → 对焦平面 → 蒙版 → 合成 四步。
// 无状态：每次调用只碰自己的缓冲，并发请求互不干扰。
type Pipeline struct {
	estimator      DepthEstimator
	planes         *PlaneEstimator
	masks          *MaskBuilder
	maxProcessSize int
}

func NewPipeline(estimator DepthEstimator, opts Options) *Pipeline {
	if opts.MaxProcessSize <= 0 {
		opts.MaxProcessSize = DefaultMaxProcessSize
	}
	return &Pipeline{
		estimator:      estimator,
		planes:         &PlaneEstimator{Bins: opts.Bins, CenterCrop: opts.CenterCrop},
		masks:          &MaskBuilder{SmoothKernel: opts.SmoothKernel},
		maxProcessSize: opts.MaxProcessSize,
	}
}

// Process 解码原始图片字节后走完整管道。
func (p *Pipeline) Process(ctx context.Context, imgBytes []byte, params Params) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return p.ProcessImage(ctx, img, params)
}

// ProcessImage 对已解码的图片做自动对焦合成。
// 任何一步失败都整体失败，不返回部分结果。
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image, params Params) (*Result, error) {
	if p.estimator == nil || !p.estimator.Ready() {
		return nil, fmt.Errorf("%w", ErrDepthModelUnavailable)
	}

	focusRange, err := FocusRange(params.FocusStrength)
	if err != nil {
		return nil, err
	}
	if params.BlurRadius <= 0 {
		return nil, fmt.Errorf("%w: blur radius %d", ErrInvalidParameter, params.BlurRadius)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	// 超过处理上限先等比缩小，结果再放大回去
	processed := img
	scaled := false
	if longest := max(origW, origH); longest > p.maxProcessSize {
		scale := float64(p.maxProcessSize) / float64(longest)
		newW := int(float64(origW) * scale)
		newH := int(float64(origH) * scale)
		processed = resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
		scaled = true
	}

	raw, err := p.estimator.EstimateDepth(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("estimate depth: %w", err)
	}

	pb := processed.Bounds()
	if raw == nil || raw.W != pb.Dx() || raw.H != pb.Dy() {
		return nil, fmt.Errorf("%w: depth map not aligned with image %dx%d", ErrInvalidDepthMap, pb.Dx(), pb.Dy())
	}

	depth, err := raw.Normalize()
	if err != nil {
		return nil, err
	}

	plane, err := p.planes.Estimate(depth)
	if err != nil {
		return nil, err
	}

	mask, err := p.masks.Build(depth, plane, focusRange)
	if err != nil {
		return nil, err
	}

	composited, err := Composite(processed, mask, params.BlurRadius)
	if err != nil {
		return nil, err
	}

	result := composited
	if scaled {
		result = upscaleRGBA(composited, origW, origH)
		depth = depth.Resize(origW, origH)
		mask = mask.Resize(origW, origH)
	}

	return &Result{
		Image:      result,
		Depth:      depth,
		Mask:       mask,
		FocusPlane: plane,
		Params:     params,
		Width:      origW,
		Height:     origH,
		Scaled:     scaled,
	}, nil
}

func upscaleRGBA(img *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
