package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/chaos-io/autofocus/focus"
)

// Metadata 描述 ONNX 模型的张量形状和输入归一化参数，
// 跟模型文件放在一起，导出模型时一并生成。
type Metadata struct {
	InputShape  []int64   `json:"input_shape"`  // NCHW，例如 [1,3,256,256]
	OutputShape []int64   `json:"output_shape"` // [1,H,W]
	Mean        []float32 `json:"mean"`
	Std         []float32 `json:"std"`
}

// MiDaS 进程内跑 MiDaS small 的 ONNX 会话。
// 输入输出张量是复用的，Run 必须串行，用锁保护。
type MiDaS struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	meta         Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewMiDaS(modelPath, metadataPath string) (*MiDaS, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaFile, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if len(meta.InputShape) != 4 || len(meta.OutputShape) != 3 {
		return nil, fmt.Errorf("unexpected tensor shapes in %s", metadataPath)
	}
	if len(meta.Mean) != 3 {
		meta.Mean = []float32{0.485, 0.456, 0.406}
	}
	if len(meta.Std) != 3 {
		meta.Std = []float32{0.229, 0.224, 0.225}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &MiDaS{
		session:      session,
		meta:         meta,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (m *MiDaS) Ready() bool { return m.session != nil }

func (m *MiDaS) EstimateDepth(ctx context.Context, img image.Image) (*focus.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inH := int(m.meta.InputShape[2])
	inW := int(m.meta.InputShape[3])
	inputData := m.preprocess(img, inW, inH)

	m.mu.Lock()
	copy(m.inputTensor.GetData(), inputData)
	err := m.session.Run()
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outH := int(m.meta.OutputShape[1])
	outW := int(m.meta.OutputShape[2])
	out := focus.NewGrid(outW, outH)
	for i, v := range m.outputTensor.GetData()[:outW*outH] {
		out.Pix[i] = float64(v)
	}
	m.mu.Unlock()

	// 插值回输入图分辨率，原始数值范围留给下游归一化
	b := img.Bounds()
	return out.Resize(b.Dx(), b.Dy()), nil
}

// preprocess 缩放到模型输入尺寸并按 mean/std 归一化，NCHW 排布。
func (m *MiDaS) preprocess(img image.Image, w, h int) []float32 {
	resized := resize.Resize(uint(w), uint(h), img, resize.Lanczos3)

	data := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*w + x
			data[i] = (float32(r)/65535.0 - m.meta.Mean[0]) / m.meta.Std[0]
			data[w*h+i] = (float32(g)/65535.0 - m.meta.Mean[1]) / m.meta.Std[1]
			data[2*w*h+i] = (float32(b)/65535.0 - m.meta.Mean[2]) / m.meta.Std[2]
		}
	}
	return data
}

func (m *MiDaS) Close() {
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	ort.DestroyEnvironment()
}
