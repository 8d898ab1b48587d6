package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, common.Vec2{X: 90, Y: 90}, cfg.DisplayFOV())
	assert.Len(t, cfg.PoolOptions(), 2)
}

func TestLoadFromFile_KeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "varid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fov_x": 110, "workers": 4, "pool_budget_mb": 256}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, float32(110), cfg.FOVX)
	assert.Equal(t, float32(90), cfg.FOVY)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, ".json", cfg.ProfileExtension)
	assert.Len(t, cfg.PoolOptions(), 3)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fov_x": `), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(envOf(map[string]string{
		"VARID_SHADER_DIR":      "/opt/varid/shaders",
		"VARID_PROFILE":         "Content/Profiles/central_loss.json",
		"VARID_FOV_X":           "100.5",
		"VARID_HOOK_PRIORITY":   "-5",
		"VARID_POOL_BUDGET_MB":  "512",
		"VARID_WORKERS":         "not-a-number",
		"VARID_STEREO":          "false",
		"VARID_POOL_MAX_SHAPES": " 32 ",
	}))

	assert.Equal(t, "/opt/varid/shaders", cfg.ShaderDir)
	assert.Equal(t, "Content/Profiles/central_loss.json", cfg.Profile)
	assert.Equal(t, float32(100.5), cfg.FOVX)
	assert.Equal(t, -5, cfg.HookPriority)
	assert.Equal(t, uint64(512), cfg.PoolBudgetMB)
	assert.Equal(t, 2, cfg.Workers, "unparsable values are ignored")
	assert.False(t, cfg.Stereo)
	assert.Equal(t, 32, cfg.PoolMaxShapes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "varid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"content_dir": "file"}`), 0o644))
	t.Setenv("VARID_CONTENT_DIR", "env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.ContentDir)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FOVY = 0
	cfg.Workers = 0
	cfg.PresentMode = "mailbox"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "display FOV")
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "present_mode")
}

func TestSave_RoundTripsThroughLoadFromFile(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := DefaultConfig()
		cfg.FOVX = rapid.Float32Range(1, 180).Draw(t, "fov_x")
		cfg.HookPriority = rapid.IntRange(-100, 100).Draw(t, "priority")
		cfg.Stereo = rapid.Bool().Draw(t, "stereo")

		dir, err := os.MkdirTemp("", "varid-config")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "varid.json")
		if err := cfg.Save(path); err != nil {
			t.Fatal(err)
		}
		got, err := LoadFromFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if *got != *cfg {
			t.Fatalf("got %+v, want %+v", got, cfg)
		}
	})
}
