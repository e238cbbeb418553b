package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 2000*time.Second, cfg.CellTimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.OutputTimeoutDuration())
	assert.Equal(t, time.Minute, cfg.StartupTimeoutDuration())
	assert.True(t, cfg.CheckAll)
	assert.True(t, cfg.CoreSanitize)
	assert.True(t, cfg.TimingSanitize, "timing reprs are sanitized unless disabled")
	require.NoError(t, cfg.Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
cell_timeout: 30
kernel_name: python3
check_all: false
timing_sanitize: false
skip_timeit: true
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CellTimeoutDuration())
	assert.Equal(t, "python3", cfg.KernelName)
	assert.False(t, cfg.CheckAll)
	assert.False(t, cfg.TimingSanitize)
	assert.True(t, cfg.MagicPolicy().SkipTimeit)
	assert.False(t, cfg.MagicPolicy().SkipMemit)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.OutputTimeoutDuration())
}

func TestParse_RejectsUnknownKey(t *testing.T) {
	_, err := Parse([]byte("cell_timout: 30\n"))
	require.Error(t, err)
}

func TestParse_RejectsBadTimeout(t *testing.T) {
	_, err := Parse([]byte("cell_timeout: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cell_timeout must be positive")
}

func TestSkipKeySet(t *testing.T) {
	cfg := Default()
	skip := cfg.SkipKeySet()
	assert.True(t, skip["metadata"])
	assert.True(t, skip["image/png"], "images skipped without a richer diff")

	cfg.RicherDiff = true
	assert.False(t, cfg.SkipKeySet()["image/png"])

	cfg.SkipKeys = []string{"only-this"}
	set := cfg.SkipKeySet()
	assert.True(t, set["only-this"])
	assert.False(t, set["metadata"], "explicit list replaces the defaults")
}

func TestBuildSanitizer(t *testing.T) {
	cfg := Default()
	p, err := cfg.BuildSanitizer()
	require.NoError(t, err)
	assert.Positive(t, p.Len())
	assert.Equal(t, "MEMORY-REPORT", p.Sanitize("peak memory: 10.0 MiB, increment: 1.0 MiB"))

	// A user rule file appends after the built-ins.
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("regex: MEMORY-REPORT\nreplace: MEM\n"), 0o644))

	cfg.SanitizeFiles = []string{path}
	p, err = cfg.BuildSanitizer()
	require.NoError(t, err)
	assert.Equal(t, "MEM", p.Sanitize("peak memory: 10.0 MiB, increment: 1.0 MiB"))

	cfg.SanitizeFiles = []string{filepath.Join(dir, "missing.txt")}
	_, err = cfg.BuildSanitizer()
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbval.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_timeout: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.OutputTimeoutDuration())

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
