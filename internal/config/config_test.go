package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 5*time.Second, c.Timeout())
	assert.Equal(t, 100*time.Millisecond, c.Poll())
	assert.Equal(t, 30*time.Second, c.NavigationTimeout())
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, 0, c.Retries)
	assert.Equal(t, "list", c.Reporter)
	assert.Equal(t, "rod", c.Driver)
	assert.True(t, c.Headless)
	assert.NoError(t, c.Validate())
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), DefaultFile), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, DefaultFile, `
baseUrl: https://dbis-uibk.github.io
workers: 4
retries: 2
reporter: html
`)
	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://dbis-uibk.github.io", c.BaseURL)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, 2, c.Retries)
	assert.Equal(t, "html", c.Reporter)
	assert.Equal(t, 5000, c.TimeoutMs, "unset keys keep defaults")
}

func TestLoad_EmptyFile(t *testing.T) {
	c, err := Load(writeFile(t, DefaultFile, ""), true)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeFile(t, DefaultFile, "workerz: 3\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workerz")
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyEnv(env(map[string]string{
		"WEBSCENARIO_BASE_URL":   "http://localhost:8080",
		"WEBSCENARIO_TIMEOUT_MS": " 2500 ",
		"WEBSCENARIO_HEADLESS":   "false",
		"WEBSCENARIO_DRIVER":     "playwright",
		"UNRELATED":              "x",
	})))
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
	assert.Equal(t, 2500, c.TimeoutMs)
	assert.False(t, c.Headless)
	assert.Equal(t, "playwright", c.Driver)
	assert.Equal(t, 100, c.PollMs)
}

func TestApplyEnv_CollectsErrors(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(env(map[string]string{
		"WEBSCENARIO_WORKERS":  "many",
		"WEBSCENARIO_HEADLESS": "sometimes",
	}))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		`WEBSCENARIO_WORKERS: invalid integer "many"`,
		`WEBSCENARIO_HEADLESS: invalid boolean "sometimes"`,
	}, verr.Errors)
}

func TestValidate_CollectsAll(t *testing.T) {
	c := Default()
	c.BaseURL = "/relative"
	c.TimeoutMs = 0
	c.Workers = 0
	c.Retries = -1
	c.Reporter = "junit"
	c.Driver = "selenium"

	err := c.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 6)
	assert.Contains(t, err.Error(), "invalid configuration:")
	assert.Contains(t, err.Error(), `baseUrl: "/relative" must be an absolute URL`)
	assert.Contains(t, err.Error(), "workers: must be at least 1, got 0")
	assert.Contains(t, err.Error(), `driver: unknown driver "selenium"`)
}

func TestValidate_PollExceedsTimeout(t *testing.T) {
	c := Default()
	c.TimeoutMs = 50
	c.PollMs = 100
	assert.ErrorContains(t, c.Validate(), "pollMs: 100 exceeds timeoutMs 50")
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := writeFile(t, ".env", "WEBSCENARIO_TEST_DOTENV=from-file\n")
	t.Setenv("WEBSCENARIO_TEST_DOTENV", "")
	os.Unsetenv("WEBSCENARIO_TEST_DOTENV")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("WEBSCENARIO_TEST_DOTENV"))
}
