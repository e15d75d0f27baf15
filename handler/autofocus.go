package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/autofocus/config"
	"github.com/chaos-io/autofocus/focus"
	"github.com/chaos-io/autofocus/model"
	"github.com/chaos-io/autofocus/utils"
)

type AutoFocusHandler struct {
	cfg       *config.Config
	pipeline  *focus.Pipeline
	estimator focus.DepthEstimator
}

func NewAutoFocusHandler(cfg *config.Config, pipeline *focus.Pipeline, estimator focus.DepthEstimator) *AutoFocusHandler {
	return &AutoFocusHandler{
		cfg:       cfg,
		pipeline:  pipeline,
		estimator: estimator,
	}
}

// AutoFocus 处理 POST /auto-focus：
// multipart 里的 file 是原图，focus_strength / blur_radius 两个旋钮可选。
func (h *AutoFocusHandler) AutoFocus(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "请上传图片文件", Error: err.Error()})
		return
	}

	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "file must be an image"})
		return
	}

	focusStrength := h.cfg.Focus.DefaultFocusStrength
	if s := c.PostForm("focus_strength"); s != "" {
		focusStrength, err = strconv.ParseFloat(s, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "invalid focus_strength", Error: err.Error()})
			return
		}
	}
	if focusStrength < 0.1 || focusStrength > 3.0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "focus_strength must be between 0.1 and 3.0"})
		return
	}

	blurRadius := h.cfg.Focus.DefaultBlurRadius
	if s := c.PostForm("blur_radius"); s != "" {
		blurRadius, err = strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "invalid blur_radius", Error: err.Error()})
			return
		}
	}
	if blurRadius < 3 || blurRadius > 50 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "blur_radius must be between 3 and 50"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "open upload", Error: err.Error()})
		return
	}
	defer func() {
		_ = src.Close()
	}()

	imgBytes, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "read upload", Error: err.Error()})
		return
	}

	requestID := ksuid.New().String()

	result, err := h.pipeline.Process(c.Request.Context(), imgBytes, focus.Params{
		FocusStrength: focusStrength,
		BlurRadius:    blurRadius,
	})
	if err != nil {
		utils.Logger.Error("auto focus failed", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(statusFor(err), model.ErrorResponse{Message: "processing failed", Error: err.Error()})
		return
	}

	processed, err := encodeJPEGDataURL(result.Image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "encode result", Error: err.Error()})
		return
	}
	depthVis, err := encodeJPEGDataURL(result.Depth.Gray())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "encode depth map", Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.AutoFocusResponse{
		ProcessedImage:  processed,
		DepthMap:        depthVis,
		FocusPlaneDepth: result.FocusPlane,
		ImageSize:       model.ImageSize{Width: result.Width, Height: result.Height},
		ProcessingInfo: model.ProcessingInfo{
			FocusStrength:       result.Params.FocusStrength,
			BlurRadius:          result.Params.BlurRadius,
			ScaledForProcessing: result.Scaled,
		},
		RequestID: requestID,
	})
}

// Health 健康检查，带上模型就绪状态
func (h *AutoFocusHandler) Health(c *gin.Context) {
	status := "healthy"
	if !h.estimator.Ready() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:     status,
		ModelReady: h.estimator.Ready(),
		Backend:    h.cfg.Depth.Backend,
	})
}

// Root API 信息
func (h *AutoFocusHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Auto Focus Depth Blur API",
		"description": "auto focus with depth-based background blur",
		"endpoints": gin.H{
			"/auto-focus": "Apply auto focus effect to image",
			"/health":     "Check API health status",
		},
		"parameters": gin.H{
			"focus_strength": "0.1-3.0 (default: 1.0)",
			"blur_radius":    "3-50 (default: 15)",
		},
	})
}

// statusFor 把管道的标记错误翻译成 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, focus.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, focus.ErrInsufficientResolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, focus.ErrDepthModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func encodeJPEGDataURL(img image.Image) (string, error) {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
