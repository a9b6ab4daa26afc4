package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("VG_TEST_STR", " value ")
	t.Setenv("VG_TEST_INT", "42")
	t.Setenv("VG_TEST_BAD_INT", "forty")
	t.Setenv("VG_TEST_DUR", "90s")
	t.Setenv("VG_TEST_BOOL", "true")
	t.Setenv("VG_TEST_FLOAT", "2.5")
	t.Setenv("VG_TEST_URL", "http://localhost:8081/")

	assert.Equal(t, "value", GetEnv("VG_TEST_STR", "x"))
	assert.Equal(t, "x", GetEnv("VG_TEST_MISSING", "x"))
	assert.Equal(t, 42, GetEnvInt("VG_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("VG_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, GetEnvDuration("VG_TEST_DUR", time.Second))
	assert.True(t, GetEnvBool("VG_TEST_BOOL", false))
	assert.Equal(t, 2.5, GetEnvFloat("VG_TEST_FLOAT", 0))
	assert.Equal(t, "http://localhost:8081", ServiceURL("VG_TEST_URL", ""))
}

func TestLoadDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VG_FROM_FILE=file\nVG_PRESET=file\n"), 0o600))
	t.Setenv("VG_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("VG_FROM_FILE") })

	Load(path, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "file", os.Getenv("VG_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("VG_PRESET"))
}
