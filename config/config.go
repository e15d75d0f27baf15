package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Depth  DepthConfig  `mapstructure:"depth"`
	Focus  FocusConfig  `mapstructure:"focus"`
	Upload UploadConfig `mapstructure:"upload"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DepthConfig 选择深度估计后端：
// luma（进程内亮度代理）、onnx（本地 MiDaS 会话）、remote（独立推理服务）。
type DepthConfig struct {
	Backend       string        `mapstructure:"backend"`
	ModelPath     string        `mapstructure:"model_path"`
	MetadataPath  string        `mapstructure:"metadata_path"`
	BaseURL       string        `mapstructure:"base_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// FocusConfig 核心管道的可调常量。bin 数和中央裁剪窗口只是原效果的
// 经验值，不保证最优，所以放配置里而不是写死。
type FocusConfig struct {
	HistogramBins        int     `mapstructure:"histogram_bins"`
	CenterCrop           float64 `mapstructure:"center_crop"`
	SmoothKernel         int     `mapstructure:"smooth_kernel"`
	MaxProcessSize       int     `mapstructure:"max_process_size"`
	DefaultFocusStrength float64 `mapstructure:"default_focus_strength"`
	DefaultBlurRadius    int     `mapstructure:"default_blur_radius"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败就退回默认值
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("depth.backend", "luma")
	v.SetDefault("depth.probe_interval", 30*time.Second)

	v.SetDefault("focus.histogram_bins", 50)
	v.SetDefault("focus.center_crop", 0.5)
	v.SetDefault("focus.smooth_kernel", 21)
	v.SetDefault("focus.max_process_size", 512)
	v.SetDefault("focus.default_focus_strength", 1.0)
	v.SetDefault("focus.default_blur_radius", 15)

	v.SetDefault("upload.max_size", int64(10<<20))
}

func getDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
