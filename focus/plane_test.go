package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 构造一张深度图：中央 size×size 方块取 inner，其余取 outer
func squareDepth(w, h, size int, inner, outer float64) *Grid {
	g := NewGrid(w, h)
	for i := range g.Pix {
		g.Pix[i] = outer
	}
	x0 := (w - size) / 2
	y0 := (h - size) / 2
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			g.Set(x, y, inner)
		}
	}
	return g
}

func TestPlaneEstimator_CentralSubject(t *testing.T) {
	t.Parallel()

	// 主体方块盖满中央裁剪区：估出的对焦深度应当落在主体的深度附近
	depth := squareDepth(512, 512, 300, 0.0, 1.0)

	plane, err := NewPlaneEstimator().Estimate(depth)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, plane, 0.1)
}

func TestPlaneEstimator_FarSubject(t *testing.T) {
	t.Parallel()

	depth := squareDepth(256, 256, 160, 0.9, 0.1)

	plane, err := NewPlaneEstimator().Estimate(depth)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, plane, 0.1)
}

// 中位数和众数都在均匀场上退化成同一个值
func TestPlaneEstimator_UniformDepth(t *testing.T) {
	t.Parallel()

	depth := NewGrid(64, 64)
	for i := range depth.Pix {
		depth.Pix[i] = 0.42
	}

	plane, err := NewPlaneEstimator().Estimate(depth)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, plane, 1e-9)
}

func TestPlaneEstimator_TooSmall(t *testing.T) {
	t.Parallel()

	// 中央裁剪不足 4 像素就没法估
	depth := NewGrid(6, 6)
	_, err := NewPlaneEstimator().Estimate(depth)
	assert.ErrorIs(t, err, ErrInsufficientResolution)
}

func TestPlaneEstimator_ConfigurableBins(t *testing.T) {
	t.Parallel()

	depth := squareDepth(128, 128, 80, 0.3, 0.8)

	coarse := &PlaneEstimator{Bins: 10, CenterCrop: 0.5}
	fine := &PlaneEstimator{Bins: 200, CenterCrop: 0.5}

	p1, err := coarse.Estimate(depth)
	require.NoError(t, err)
	p2, err := fine.Estimate(depth)
	require.NoError(t, err)

	// bin 数只影响众数的量化精度，结论不应该漂太远
	assert.InDelta(t, p1, p2, 0.1)
}
