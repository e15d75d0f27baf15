package focus

import "errors"

// 各阶段失败时返回带标记的错误，外层用 errors.Is 翻译成响应，
// 管道本身不吞也不降级。
var (
	ErrInvalidDepthMap        = errors.New("invalid depth map")
	ErrInsufficientResolution = errors.New("insufficient resolution")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrDimensionMismatch      = errors.New("dimension mismatch")
	ErrDepthModelUnavailable  = errors.New("depth model unavailable")
)
