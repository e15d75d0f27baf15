package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/autofocus/config"
	"github.com/chaos-io/autofocus/estimate"
	"github.com/chaos-io/autofocus/focus"
	"github.com/chaos-io/autofocus/handler"
	"github.com/chaos-io/autofocus/middleware"
	"github.com/chaos-io/autofocus/utils"
)

func main() {
	cfg := config.New()

	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	estimator, cleanup, err := newEstimator(cfg)
	if err != nil {
		utils.Logger.Fatal("failed to initialize depth estimator", zap.Error(err))
	}
	defer cleanup()

	pipeline := focus.NewPipeline(estimator, focus.Options{
		Bins:           cfg.Focus.HistogramBins,
		CenterCrop:     cfg.Focus.CenterCrop,
		SmoothKernel:   cfg.Focus.SmoothKernel,
		MaxProcessSize: cfg.Focus.MaxProcessSize,
	})

	h := handler.NewAutoFocusHandler(cfg, pipeline, estimator)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/auto-focus", h.AutoFocus)

	utils.Logger.Info("starting auto focus server",
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Depth.Backend))

	if err := r.Run(cfg.Server.Port); err != nil {
		utils.Logger.Fatal("server exited", zap.Error(err))
	}
}

// newEstimator 按配置装配深度后端。
// remote 后端先探活一次再挂上周期探针，模型不可用时服务照常起，
// 请求会被管道用就绪位挡掉。
func newEstimator(cfg *config.Config) (focus.DepthEstimator, func(), error) {
	switch cfg.Depth.Backend {
	case "onnx":
		m, err := estimate.NewMiDaS(cfg.Depth.ModelPath, cfg.Depth.MetadataPath)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case "remote":
		remote := estimate.NewRemote(cfg.Depth.BaseURL)
		prober := estimate.NewProber(remote, cfg.Depth.ProbeInterval)
		if err := prober.Start(); err != nil {
			return nil, nil, err
		}
		return remote, prober.Stop, nil
	default:
		return estimate.NewLuma(), func() {}, nil
	}
}
