package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Detection     DetectionConfig     `yaml:"detection"`
	Media         MediaConfig         `yaml:"media"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// DetectionPreset holds the four numeric fields of a silence detection
// configuration. Presets are immutable value objects.
type DetectionPreset struct {
	FrameDuration      float64 `yaml:"frame_duration"`       // seconds
	ThresholdSD        float64 `yaml:"threshold_sd"`         // standard deviations below the mean
	MinSilenceDuration float64 `yaml:"min_silence_duration"` // seconds
	EdgeBuffer         float64 `yaml:"edge_buffer"`          // seconds
}

// DetectionConfig selects the silence detection preset and allows custom
// presets to be declared alongside the built-in ones.
type DetectionConfig struct {
	Preset  string                     `yaml:"preset"`
	Presets map[string]DetectionPreset `yaml:"presets"`
}

// MediaConfig contains media pipeline parameters.
type MediaConfig struct {
	SpeedMultiplier  float64 `yaml:"speed_multiplier"`
	UploadSampleRate int     `yaml:"upload_sample_rate"` // Hz
	TempDir          string  `yaml:"temp_dir"`
}

// TranscriptionConfig contains transcription API configuration.
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Built-in presets. "default" is deliberately conservative; "aggressive"
// uses shorter frames, a tighter threshold and smaller padding, trading
// clipped word edges for more removed silence.
var builtinPresets = map[string]DetectionPreset{
	"default": {
		FrameDuration:      0.05,
		ThresholdSD:        1.5,
		MinSilenceDuration: 0.75,
		EdgeBuffer:         0.25,
	},
	"aggressive": {
		FrameDuration:      0.03,
		ThresholdSD:        1.0,
		MinSilenceDuration: 0.4,
		EdgeBuffer:         0.1,
	},
}

// apiKeyEnvVar overrides the YAML API key when set, so the secret can stay
// out of the config file.
const apiKeyEnvVar = "TRANSCRIPTION_API_KEY"

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv(apiKeyEnvVar); key != "" {
		config.Transcription.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}

	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates a single detection preset.
func (p *DetectionPreset) Validate() error {
	if p.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %f", p.FrameDuration)
	}

	if p.ThresholdSD < 0 {
		return fmt.Errorf("threshold_sd cannot be negative, got %f", p.ThresholdSD)
	}

	if p.MinSilenceDuration <= 0 {
		return fmt.Errorf("min_silence_duration must be positive, got %f", p.MinSilenceDuration)
	}

	if p.EdgeBuffer < 0 {
		return fmt.Errorf("edge_buffer cannot be negative, got %f", p.EdgeBuffer)
	}

	return nil
}

// Validate validates detection configuration, including custom presets.
func (d *DetectionConfig) Validate() error {
	if d.Preset == "" {
		return fmt.Errorf("preset cannot be empty")
	}

	if _, ok := d.ResolvePreset(d.Preset); !ok {
		return fmt.Errorf("unknown preset '%s'", d.Preset)
	}

	for name, preset := range d.Presets {
		p := preset
		if err := p.Validate(); err != nil {
			return fmt.Errorf("preset '%s': %w", name, err)
		}
	}

	return nil
}

// ResolvePreset looks a preset up by name, custom presets first, then the
// built-in ones.
func (d *DetectionConfig) ResolvePreset(name string) (DetectionPreset, bool) {
	if p, ok := d.Presets[name]; ok {
		return p, true
	}
	p, ok := builtinPresets[name]
	return p, ok
}

// PresetNames returns all available preset names, built-in and custom.
func (d *DetectionConfig) PresetNames() []string {
	names := make([]string, 0, len(builtinPresets)+len(d.Presets))
	for name := range builtinPresets {
		names = append(names, name)
	}
	for name := range d.Presets {
		if _, builtin := builtinPresets[name]; !builtin {
			names = append(names, name)
		}
	}
	return names
}

// Validate validates media pipeline configuration.
func (m *MediaConfig) Validate() error {
	if m.SpeedMultiplier <= 0 {
		return fmt.Errorf("speed_multiplier must be positive, got %f", m.SpeedMultiplier)
	}

	if m.SpeedMultiplier > 4 {
		return fmt.Errorf("speed_multiplier above 4 is not transcribable, got %f", m.SpeedMultiplier)
	}

	if m.UploadSampleRate < 8000 {
		return fmt.Errorf("upload_sample_rate must be at least 8000 Hz, got %d", m.UploadSampleRate)
	}

	return nil
}

// Enabled reports whether transcription is configured. An empty API key
// disables transcription; the service then serves the trimming endpoints
// only.
func (t *TranscriptionConfig) Enabled() bool {
	return t.APIKey != ""
}

// Validate validates transcription configuration. A disabled section
// (empty api_key) is valid and skips the remaining checks.
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled() {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration.
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetMinSilenceDuration returns the preset's minimum silence as a
// time.Duration.
func (p *DetectionPreset) GetMinSilenceDuration() time.Duration {
	return time.Duration(p.MinSilenceDuration * float64(time.Second))
}

// GetFrameDuration returns the preset's frame duration as a time.Duration.
func (p *DetectionPreset) GetFrameDuration() time.Duration {
	return time.Duration(p.FrameDuration * float64(time.Second))
}
