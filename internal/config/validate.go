package config

import "fmt"

func (c *Config) Validate() error {
	if c.DisplayIndex < 0 {
		return fmt.Errorf("display_index must be >= 0, got %d", c.DisplayIndex)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %v", c.FrameInterval)
	}
	if c.HubCapacity < 1 {
		return fmt.Errorf("hub_capacity must be >= 1, got %d", c.HubCapacity)
	}
	if c.PreviewWidth < 1 || c.PreviewHeight < 1 {
		return fmt.Errorf("preview dimensions must be positive, got %dx%d", c.PreviewWidth, c.PreviewHeight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", c.JPEGQuality)
	}
	if c.AnalysisWorkers < 1 {
		return fmt.Errorf("analysis_workers must be >= 1, got %d", c.AnalysisWorkers)
	}
	if c.AnalysisQueueSize < 1 {
		return fmt.Errorf("analysis_queue_size must be >= 1, got %d", c.AnalysisQueueSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
