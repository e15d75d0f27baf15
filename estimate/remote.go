package estimate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"sync/atomic"

	"github.com/chaos-io/autofocus/focus"
	nhttp "github.com/chaos-io/autofocus/util/http"
)

const depthPath = "/api/depth"

// Remote 调远端深度推理服务（MiDaS 之类挂在独立推理进程里）。
// 就绪状态由 Prober 维护，探活失败期间管道直接拒绝请求而不是每次重试。
type Remote struct {
	baseURL string
	cli     nhttp.IClient
	ready   atomic.Bool
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: baseURL,
		cli:     nhttp.NewHTTPClient(),
	}
}

func (r *Remote) Ready() bool { return r.ready.Load() }

func (r *Remote) markReady(ok bool) { r.ready.Store(ok) }

type depthResp struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Depth  []float64 `json:"depth"` // 行优先
}

/*
	curl -X POST "$BASE_URL/api/depth" \
	  -F "image=@my_image.png"

{"width": 512, "height": 384, "depth": [...]}
*/
func (r *Remote) EstimateDepth(ctx context.Context, img image.Image) (*focus.Grid, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	_ = writer.Close()

	resp := &depthResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: r.baseURL + depthPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	b := img.Bounds()
	if resp.Width != b.Dx() || resp.Height != b.Dy() || len(resp.Depth) != resp.Width*resp.Height {
		return nil, fmt.Errorf("%w: remote returned %dx%d with %d values for %dx%d image",
			focus.ErrInvalidDepthMap, resp.Width, resp.Height, len(resp.Depth), b.Dx(), b.Dy())
	}

	return &focus.Grid{W: resp.Width, H: resp.Height, Pix: resp.Depth}, nil
}
