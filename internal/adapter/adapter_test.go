package adapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgonzaleza9671/estampas/internal/narration"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "stories", cfg.Backend.Tables.Stories)
	assert.Equal(t, narration.DefaultLatencyOffset, cfg.Narration.LatencyOffset)
	assert.Equal(t, narration.DefaultParagraphGap, cfg.Narration.ParagraphGap)
	assert.Equal(t, []float64{0.75, 1, 1.25, 1.5}, cfg.Narration.Rates)
	assert.Equal(t, "speaker", cfg.Player.Backend)
	assert.False(t, cfg.IsConfigured())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
backend:
  url: https://archive.example
  tables:
    stories: cuentos
narration:
  latency_offset: -150ms
  paragraph_gap: 120
  rates: [1.5, 0.5, 1]
player:
  backend: silent
`), 0644))

	t.Setenv("ESTAMPAS_BACKEND_API_KEY", "anon-key")
	t.Setenv("ESTAMPAS_UI_THEME", "sepia")

	cfg, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "https://archive.example", cfg.Backend.URL)
	assert.Equal(t, "anon-key", cfg.Backend.APIKey)
	assert.Equal(t, "cuentos", cfg.Backend.Tables.Stories)
	assert.Equal(t, "recordings", cfg.Backend.Tables.Recordings)
	assert.Equal(t, "sepia", cfg.UI.Theme)
	assert.Equal(t, "silent", cfg.Player.Backend)

	assert.True(t, cfg.IsConfigured())
	assert.True(t, cfg.UsesBackend())
	assert.Equal(t, "https://archive.example", cfg.Source())
	assert.Equal(t, "cuentos", cfg.CatalogTables().Stories)

	params := cfg.Narration.Params()
	assert.Equal(t, -150*time.Millisecond, params.LatencyOffset)
	assert.Equal(t, 120.0, params.ParagraphGap)
	assert.Equal(t, narration.DefaultRefreshInterval, params.RefreshInterval)
	assert.Equal(t, []float64{0.5, 1, 1.5}, cfg.Narration.RateSteps())
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: [oops"), 0644))

	_, err := loadConfig(viper.New(), dir)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestConfig_LibraryTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.URL = "https://archive.example"
	cfg.Library.Dir = "/srv/cuentos"

	assert.False(t, cfg.UsesBackend())
	assert.Equal(t, "/srv/cuentos", cfg.Source())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Backend.URL = "https://archive.example"
	cfg.Backend.APIKey = "secret"
	cfg.Narration.LatencyOffset = -200 * time.Millisecond

	require.NoError(t, saveConfig(viper.New(), cfg, dir))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "https://archive.example", loaded.Backend.URL)
	assert.Equal(t, -200*time.Millisecond, loaded.Narration.LatencyOffset)
}

func TestRateSteps_FallsBackToNormal(t *testing.T) {
	n := NarrationConfig{Rates: []float64{0, -1}}
	assert.Equal(t, []float64{1}, n.RateSteps())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ESTAMPAS_TEST_DOTENV=hola\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ESTAMPAS_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "hola", os.Getenv("ESTAMPAS_TEST_DOTENV"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("bogus"))
	assert.Equal(t, slog.LevelWarn+2, ParseLogLevel("warn+2"))
}

func TestNewLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggingConfig{Level: "warn"})

	logger.Info("dropped")
	logger.Warn("narration rejected", "story", "7")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "narration rejected", entry["msg"])
	assert.Equal(t, "7", entry["story"])
	assert.Equal(t, "estampas", entry["app"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggingConfig{Level: "debug", Format: "TEXT"})
	logger.Debug("model built", "tokens", 12)

	assert.Contains(t, buf.String(), "msg=\"model built\"")
	assert.Contains(t, buf.String(), "tokens=12")
	assert.Contains(t, buf.String(), "app=estampas")
}

func TestSetupLogger_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "estampas.log")
	logger, closeFn, err := SetupLogger(LoggingConfig{File: path, Level: "INFO"})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestLauncher_DetectsOffsetFlag(t *testing.T) {
	l := NewLauncher("/usr/bin/mpv", []string{"--volume=80"}, "", nil)
	assert.Equal(t, []string{"--volume=80", "--start=90", "https://cdn.example/a.mp3"},
		l.Command("https://cdn.example/a.mp3", 90*time.Second, false))

	assert.Equal(t, []string{"--volume=80", "--force-window=no", "https://cdn.example/a.mp3"},
		l.Command("https://cdn.example/a.mp3", 0, true))

	ff := NewLauncher("ffplay", nil, "", nil)
	assert.Equal(t, []string{"-nodisp", "-autoexit", "-ss", "12", "x.mp3"}, ff.Command("x.mp3", 12*time.Second, true))

	unknown := NewLauncher("myplayer", nil, "", nil)
	assert.Equal(t, []string{"x.mp4"}, unknown.Command("x.mp4", 30*time.Second, false))
}

func TestLauncher_PlanDetectsPlayers(t *testing.T) {
	l := NewLauncher("", nil, "", nil)

	argvs := func(plan []attempt) [][]string {
		out := make([][]string, len(plan))
		for i, a := range plan {
			out[i] = a.argv
		}
		return out
	}

	linux := l.plan("linux", "a.mp3", 5*time.Second, true)
	assert.Equal(t, [][]string{
		{"mpv", "--force-window=no", "--start=5", "a.mp3"},
		{"vlc", "--start-time=5", "a.mp3"},
		{"ffplay", "-nodisp", "-autoexit", "-ss", "5", "a.mp3"},
		{"celluloid", "--mpv-start=5", "a.mp3"},
		{"xdg-open", "a.mp3"},
	}, argvs(linux))
	assert.True(t, linux[0].lookup)
	assert.True(t, linux[len(linux)-1].detached)

	darwin := l.plan("darwin", "v.mp4", 0, false)
	assert.Contains(t, argvs(darwin), []string{"open", "-n", "-a", "IINA", "v.mp4"})
	assert.Contains(t, argvs(darwin), []string{"open", "-a", "VLC", "v.mp4"})
	assert.Equal(t, []string{"open", "v.mp4"}, darwin[len(darwin)-1].argv)

	assert.Equal(t, linux[0].argv[0], l.plan("plan9", "a.mp3", 0, false)[0].argv[0], "unknown OS uses the linux order")
}

func TestLauncher_PlanUnknownOSTriesLinuxPlayers(t *testing.T) {
	l := NewLauncher("", nil, "", nil)
	linux := l.plan("linux", "a.mp3", 5*time.Second, true)

	for _, goos := range []string{"freebsd", "openbsd", "plan9"} {
		assert.Equal(t, linux, l.plan(goos, "a.mp3", 5*time.Second, true), goos)
	}
}

func TestLauncher_PlanConfiguredCommand(t *testing.T) {
	l := NewLauncher("sh", []string{"-c", "true"}, "", nil)
	plan := l.plan("linux", "x.mp3", 0, false)
	require.Len(t, plan, 1)
	assert.Equal(t, []string{"sh", "-c", "true", "x.mp3"}, plan[0].argv)
	assert.False(t, plan[0].detached)
}

func TestLauncher_StopKillsPlayer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	// sh -c 'sleep 30' -- <url>
	l := NewLauncher("sh", []string{"-c", "sleep 30", "--"}, "", nil)
	p, err := l.Launch("https://cdn.example/v.mp4", 0, false)
	require.NoError(t, err)
	assert.False(t, p.Detached())

	require.NoError(t, p.Stop())
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player did not exit")
	}
	assert.NoError(t, p.Err())
	assert.NoError(t, p.Stop())
}

func TestLauncher_ReportsExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	l := NewLauncher("sh", []string{"-c", "exit 3", "--"}, "", nil)
	p, err := l.Launch("x", 0, false)
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player did not exit")
	}
	assert.Error(t, p.Err())
}
