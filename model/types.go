package model

// AutoFocusResponse 对外的处理结果：合成图和深度图都编成
// data:image/jpeg;base64 内联返回，数值元数据原样回显。
type AutoFocusResponse struct {
	ProcessedImage  string         `json:"processed_image"`
	DepthMap        string         `json:"depth_map"`
	FocusPlaneDepth float64        `json:"focus_plane_depth"`
	ImageSize       ImageSize      `json:"image_size"`
	ProcessingInfo  ProcessingInfo `json:"processing_info"`
	RequestID       string         `json:"request_id"`
}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ProcessingInfo struct {
	FocusStrength       float64 `json:"focus_strength"`
	BlurRadius          int     `json:"blur_radius"`
	ScaledForProcessing bool    `json:"scaled_for_processing"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"model_ready"`
	Backend    string `json:"backend"`
}
