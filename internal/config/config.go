package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Capture
	DisplayIndex    int           `mapstructure:"display_index" yaml:"display_index"`
	FrameInterval   time.Duration `mapstructure:"frame_interval" yaml:"frame_interval"`
	HubCapacity     int           `mapstructure:"hub_capacity" yaml:"hub_capacity"`
	GPUProcessing   bool          `mapstructure:"gpu_processing" yaml:"gpu_processing"`
	StopSettleDelay time.Duration `mapstructure:"stop_settle_delay" yaml:"stop_settle_delay"`

	// Processing
	PreviewWidth  int `mapstructure:"preview_width" yaml:"preview_width"`
	PreviewHeight int `mapstructure:"preview_height" yaml:"preview_height"`
	JPEGQuality   int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`

	// Analysis worker pool
	AnalysisWorkers   int `mapstructure:"analysis_workers" yaml:"analysis_workers"`
	AnalysisQueueSize int `mapstructure:"analysis_queue_size" yaml:"analysis_queue_size"`

	// Preview server
	PreviewListenAddr string `mapstructure:"preview_listen_addr" yaml:"preview_listen_addr"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

func Default() *Config {
	return &Config{
		DisplayIndex:      0,
		FrameInterval:     33 * time.Millisecond, // ~30 FPS
		HubCapacity:       100,
		GPUProcessing:     true,
		StopSettleDelay:   100 * time.Millisecond,
		PreviewWidth:      800,
		PreviewHeight:     450,
		JPEGQuality:       30,
		AnalysisWorkers:   2,
		AnalysisQueueSize: 8,
		PreviewListenAddr: "127.0.0.1:8089",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("framecast")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FRAMECAST")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
