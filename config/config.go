package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the settings of the VARID host: where shaders and profiles live, how the
// extension is installed, and how the renderer sizes its pool and workers.
type Config struct {
	// ShaderDir mounts VARID shaders from disk. Empty uses the bundled shaders.
	ShaderDir string `json:"shader_dir,omitempty"`
	// ContentDir holds the Profiles directory searched by default.
	ContentDir string `json:"content_dir"`
	// Profile is loaded and activated at startup when set.
	Profile          string `json:"profile,omitempty"`
	ProfileExtension string `json:"profile_extension"`

	FOVX float32 `json:"fov_x"`
	FOVY float32 `json:"fov_y"`

	HookPriority int `json:"hook_priority"`

	PoolMaxShapes    int     `json:"pool_max_shapes"`
	PoolMaxIdle      int     `json:"pool_max_idle"`
	PoolBudgetMB     uint64  `json:"pool_budget_mb"` // 0 = no budget
	Workers          int     `json:"workers"`
	PipelineCache    int     `json:"pipeline_cache"`
	PresentMode      string  `json:"present_mode"`
	Stereo           bool    `json:"stereo"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FrameLimit       float64 `json:"frame_limit"` // 0 = uncapped
	ForceSoftwareGPU bool    `json:"force_software_gpu"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContentDir:       "Content",
		ProfileExtension: ".json",
		FOVX:             90,
		FOVY:             90,
		PoolMaxShapes:    64,
		PoolMaxIdle:      4,
		Workers:          2,
		PipelineCache:    128,
		PresentMode:      "vsync",
		Stereo:           true,
		Width:            1280,
		Height:           720,
	}
}

// LoadFromFile reads a JSON configuration over the defaults. Fields missing from the file keep
// their default values.
//
// Parameters:
//   - path: the JSON file
//
// Returns:
//   - *Config: the configuration
//   - error: a read or decode error
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the file at path if path is not
// empty, then VARID_* environment overrides. The result is validated.
//
// Parameters:
//   - path: an optional JSON file
//
// Returns:
//   - *Config: the configuration
//   - error: a load or validation error
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VARID_* variables. Values that do not parse are logged and ignored.
//
// Parameters:
//   - getenv: the variable lookup, usually os.Getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				log.Printf("[Config] ignoring %s=%q: %v", key, v, err)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float32) {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
			if err != nil {
				log.Printf("[Config] ignoring %s=%q: %v", key, v, err)
				return
			}
			*dst = float32(f)
		}
	}

	str("VARID_SHADER_DIR", &c.ShaderDir)
	str("VARID_CONTENT_DIR", &c.ContentDir)
	str("VARID_PROFILE", &c.Profile)
	str("VARID_PRESENT_MODE", &c.PresentMode)
	float("VARID_FOV_X", &c.FOVX)
	float("VARID_FOV_Y", &c.FOVY)
	integer("VARID_HOOK_PRIORITY", &c.HookPriority)
	integer("VARID_POOL_MAX_SHAPES", &c.PoolMaxShapes)
	integer("VARID_POOL_MAX_IDLE", &c.PoolMaxIdle)
	integer("VARID_WORKERS", &c.Workers)

	if v := getenv("VARID_POOL_BUDGET_MB"); v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			log.Printf("[Config] ignoring VARID_POOL_BUDGET_MB=%q: %v", v, err)
		} else {
			c.PoolBudgetMB = n
		}
	}
	if v := getenv("VARID_STEREO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("[Config] ignoring VARID_STEREO=%q: %v", v, err)
		} else {
			c.Stereo = b
		}
	}
}

// Validate checks every field and reports all problems at once.
//
// Returns:
//   - error: ErrInvalidConfig joined with each problem, or nil
func (c *Config) Validate() error {
	var errs []error
	if c.FOVX <= 0 || c.FOVY <= 0 {
		errs = append(errs, fmt.Errorf("display FOV must be positive on both axes, got %gx%g", c.FOVX, c.FOVY))
	}
	if c.PoolMaxShapes < 1 {
		errs = append(errs, fmt.Errorf("pool_max_shapes must be at least 1, got %d", c.PoolMaxShapes))
	}
	if c.PoolMaxIdle < 1 {
		errs = append(errs, fmt.Errorf("pool_max_idle must be at least 1, got %d", c.PoolMaxIdle))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.PipelineCache < 1 {
		errs = append(errs, fmt.Errorf("pipeline_cache must be at least 1, got %d", c.PipelineCache))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.FrameLimit < 0 {
		errs = append(errs, fmt.Errorf("frame_limit must not be negative, got %g", c.FrameLimit))
	}
	switch strings.ToLower(c.PresentMode) {
	case "vsync", "uncapped":
	default:
		errs = append(errs, fmt.Errorf("present_mode must be vsync or uncapped, got %q", c.PresentMode))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// DisplayFOV returns the configured display field of view.
func (c *Config) DisplayFOV() common.Vec2 {
	return common.Vec2{X: c.FOVX, Y: c.FOVY}
}

// PoolOptions returns the resource pool options for the configured limits.
func (c *Config) PoolOptions() []resource.PoolBuilderOption {
	opts := []resource.PoolBuilderOption{
		resource.WithMaxShapes(c.PoolMaxShapes),
		resource.WithMaxIdlePerShape(c.PoolMaxIdle),
	}
	if c.PoolBudgetMB > 0 {
		opts = append(opts, resource.WithMemoryBudget(c.PoolBudgetMB*1024*1024))
	}
	return opts
}

// Save writes the configuration as indented JSON.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: an encode or write error
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
