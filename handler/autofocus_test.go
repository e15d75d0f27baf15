package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/autofocus/config"
	"github.com/chaos-io/autofocus/estimate"
	"github.com/chaos-io/autofocus/focus"
	"github.com/chaos-io/autofocus/model"
	"github.com/chaos-io/autofocus/utils"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, utils.InitLogger("test"))

	cfg := config.New()
	estimator := estimate.NewLuma()
	pipeline := focus.NewPipeline(estimator, focus.Options{
		Bins:           cfg.Focus.HistogramBins,
		CenterCrop:     cfg.Focus.CenterCrop,
		SmoothKernel:   cfg.Focus.SmoothKernel,
		MaxProcessSize: cfg.Focus.MaxProcessSize,
	})
	h := NewAutoFocusHandler(cfg, pipeline, estimator)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/auto-focus", h.AutoFocus)
	return r
}

// multipartImage 构造带 image/png Content-Type 的上传体
func multipartImage(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 100, A: 255})
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="test.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestAutoFocusHandler_AutoFocus(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartImage(t, map[string]string{
		"focus_strength": "1.5",
		"blur_radius":    "9",
	})

	req := httptest.NewRequest(http.MethodPost, "/auto-focus", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.AutoFocusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, strings.HasPrefix(resp.ProcessedImage, "data:image/jpeg;base64,"))
	assert.True(t, strings.HasPrefix(resp.DepthMap, "data:image/jpeg;base64,"))
	assert.Equal(t, 64, resp.ImageSize.Width)
	assert.Equal(t, 64, resp.ImageSize.Height)
	assert.Equal(t, 1.5, resp.ProcessingInfo.FocusStrength)
	assert.Equal(t, 9, resp.ProcessingInfo.BlurRadius)
	assert.False(t, resp.ProcessingInfo.ScaledForProcessing)
	assert.NotEmpty(t, resp.RequestID)
	assert.GreaterOrEqual(t, resp.FocusPlaneDepth, 0.0)
	assert.LessOrEqual(t, resp.FocusPlaneDepth, 1.0)
}

func TestAutoFocusHandler_DefaultParams(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartImage(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auto-focus", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.AutoFocusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1.0, resp.ProcessingInfo.FocusStrength)
	assert.Equal(t, 15, resp.ProcessingInfo.BlurRadius)
}

func TestAutoFocusHandler_ParamValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"focus_strength为0", map[string]string{"focus_strength": "0"}},
		{"focus_strength超上限", map[string]string{"focus_strength": "3.5"}},
		{"focus_strength不是数", map[string]string{"focus_strength": "abc"}},
		{"blur_radius太小", map[string]string{"blur_radius": "2"}},
		{"blur_radius太大", map[string]string{"blur_radius": "51"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartImage(t, tt.fields)

			req := httptest.NewRequest(http.MethodPost, "/auto-focus", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestAutoFocusHandler_MissingFile(t *testing.T) {
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/auto-focus", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAutoFocusHandler_RejectsNonImage(t *testing.T) {
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/auto-focus", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAutoFocusHandler_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.ModelReady)
}

func TestAutoFocusHandler_Root(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Auto Focus Depth Blur API")
}
