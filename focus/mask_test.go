package focus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFocusRange(t *testing.T) {
	t.Parallel()

	r, err := FocusRange(1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, r, 1e-12)

	r, err = FocusRange(2.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, r, 1e-12)

	// 0 会除零，必须拒绝而不是悄悄算出 Inf
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err = FocusRange(bad)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	}
}

// 深度均匀 ⇒ 不管 focus_strength 是多少，蒙版必须全 0
func TestMaskBuilder_UniformDepth(t *testing.T) {
	t.Parallel()

	depth := NewGrid(32, 32)
	for i := range depth.Pix {
		depth.Pix[i] = 0.7
	}

	for _, strength := range []float64{0.1, 1.0, 3.0} {
		focusRange, err := FocusRange(strength)
		require.NoError(t, err)

		mask, err := NewMaskBuilder().Build(depth, 0.7, focusRange)
		require.NoError(t, err)
		for _, v := range mask.Pix {
			assert.Equal(t, 0.0, v)
		}
	}
}

// 容差带内在平滑前严格为 0；SmoothKernel=1 关掉平滑来钉死这点
func TestMaskBuilder_InBandExactZero(t *testing.T) {
	t.Parallel()

	depth := rampDepth(64, 8)
	b := &MaskBuilder{SmoothKernel: 1}

	plane := 0.5
	focusRange := 0.1
	mask, err := b.Build(depth, plane, focusRange)
	require.NoError(t, err)

	for y := 0; y < depth.H; y++ {
		for x := 0; x < depth.W; x++ {
			d := math.Abs(depth.At(x, y) - plane)
			if d <= focusRange {
				assert.Equal(t, 0.0, mask.At(x, y), "x=%d", x)
			} else {
				assert.Greater(t, mask.At(x, y), 0.0, "x=%d", x)
			}
		}
	}
}

// 带外随 |depth-plane| 弱单调增，全场落在 [0,1]
func TestMaskBuilder_OffBandMonotonic(t *testing.T) {
	t.Parallel()

	depth := rampDepth(128, 4)
	b := &MaskBuilder{SmoothKernel: 1}

	mask, err := b.Build(depth, 0.0, 0.1)
	require.NoError(t, err)

	prev := -1.0
	for x := 0; x < depth.W; x++ {
		v := mask.At(x, 0)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		assert.GreaterOrEqual(t, v+1e-12, prev)
		prev = v
	}
}

// 开平滑后带内允许被邻居渗进一点非零，但仍应接近 0
func TestMaskBuilder_SmoothedBandBleed(t *testing.T) {
	t.Parallel()

	depth := squareDepth(256, 256, 200, 0.0, 1.0)

	mask, err := NewMaskBuilder().Build(depth, 0.0, 0.1)
	require.NoError(t, err)

	lo, hi := mask.MinMax()
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)

	// 方块中心离边界远，平滑渗不进来
	assert.Less(t, mask.At(128, 128), 0.05)
	// 远离主体的角落接近满虚化
	assert.Greater(t, mask.At(4, 4), 0.85)
}

func rampDepth(w, h int) *Grid {
	g := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, float64(x)/float64(w-1))
		}
	}
	return g
}
