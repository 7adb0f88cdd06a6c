package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cgonzaleza9671/estampas/internal/catalog"
	"github.com/cgonzaleza9671/estampas/internal/narration"
)

const envPrefix = "ESTAMPAS"

// Config holds all application configuration
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Library   LibraryConfig   `mapstructure:"library"`
	Narration NarrationConfig `mapstructure:"narration"`
	Player    PlayerConfig    `mapstructure:"player"`
	Cache     CacheConfig     `mapstructure:"cache"`
	UI        UIConfig        `mapstructure:"ui"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BackendConfig holds the hosted archive backend configuration
type BackendConfig struct {
	URL    string       `mapstructure:"url"`
	APIKey string       `mapstructure:"api_key"` // public (anon) key, usually from .env
	Tables TablesConfig `mapstructure:"tables"`
}

// TablesConfig names the backend tables
type TablesConfig struct {
	Stories    string `mapstructure:"stories"`
	Recordings string `mapstructure:"recordings"`
	Videos     string `mapstructure:"videos"`
	Biography  string `mapstructure:"biography"`
}

// LibraryConfig points at a local directory of YAML stories
type LibraryConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// NarrationConfig tunes the highlight synchronizer
type NarrationConfig struct {
	LatencyOffset   time.Duration `mapstructure:"latency_offset"`
	ParagraphGap    float64       `mapstructure:"paragraph_gap"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Rates           []float64     `mapstructure:"rates"`
	DefaultRate     float64       `mapstructure:"default_rate"`
}

// PlayerConfig holds narration output and external media player configuration
type PlayerConfig struct {
	Backend         string   `mapstructure:"backend"` // "speaker" or "silent"
	FramesPerBuffer int      `mapstructure:"frames_per_buffer"`
	Command         string   `mapstructure:"command"`
	Args            []string `mapstructure:"args"`
	StartFlag       string   `mapstructure:"start_flag"` // e.g., "--start=" or "--start-time="
}

// CacheConfig holds the cache location; empty keeps the cache in memory
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	tables := catalog.DefaultTables()
	return &Config{
		Backend: BackendConfig{
			Tables: TablesConfig{
				Stories:    tables.Stories,
				Recordings: tables.Recordings,
				Videos:     tables.Videos,
				Biography:  tables.Biography,
			},
		},
		Narration: NarrationConfig{
			LatencyOffset:   narration.DefaultLatencyOffset,
			ParagraphGap:    narration.DefaultParagraphGap,
			RefreshInterval: narration.DefaultRefreshInterval,
			Rates:           []float64{0.75, 1, 1.25, 1.5},
			DefaultRate:     1,
		},
		Player: PlayerConfig{
			Backend:         "speaker",
			FramesPerBuffer: 1024,
			Args:            []string{},
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		UI: UIConfig{
			Theme: "default",
		},
		Logging: LoggingConfig{
			File:   defaultLogPath(),
			Level:  "INFO",
			Format: "json",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "estampas", "estampas.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "estampas", "estampas.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "estampas")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "estampas")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "estampas", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "estampas", "cache")
	}
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.api_key", cfg.Backend.APIKey)
	v.SetDefault("backend.tables.stories", cfg.Backend.Tables.Stories)
	v.SetDefault("backend.tables.recordings", cfg.Backend.Tables.Recordings)
	v.SetDefault("backend.tables.videos", cfg.Backend.Tables.Videos)
	v.SetDefault("backend.tables.biography", cfg.Backend.Tables.Biography)

	v.SetDefault("library.dir", cfg.Library.Dir)
	v.SetDefault("library.watch", cfg.Library.Watch)

	v.SetDefault("narration.latency_offset", cfg.Narration.LatencyOffset)
	v.SetDefault("narration.paragraph_gap", cfg.Narration.ParagraphGap)
	v.SetDefault("narration.refresh_interval", cfg.Narration.RefreshInterval)
	v.SetDefault("narration.rates", cfg.Narration.Rates)
	v.SetDefault("narration.default_rate", cfg.Narration.DefaultRate)

	v.SetDefault("player.backend", cfg.Player.Backend)
	v.SetDefault("player.frames_per_buffer", cfg.Player.FramesPerBuffer)
	v.SetDefault("player.command", cfg.Player.Command)
	v.SetDefault("player.args", cfg.Player.Args)
	v.SetDefault("player.start_flag", cfg.Player.StartFlag)

	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// loadDotEnv loads .env files without overriding variables already set.
// Missing files are fine.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from .env, the config file and environment
func LoadConfig() (*Config, error) {
	dir := defaultConfigPath()
	if err := loadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	return loadConfig(viper.GetViper(), dir, ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides, e.g. ESTAMPAS_BACKEND_API_KEY
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Library.Dir = expandHome(cfg.Library.Dir)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	return cfg, nil
}

// SaveConfig writes the configuration to the default config file. The API
// key is left out so it stays in .env or the environment.
func SaveConfig(cfg *Config) error {
	return saveConfig(viper.GetViper(), cfg, defaultConfigPath())
}

func saveConfig(v *viper.Viper, cfg *Config, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v.Set("backend.url", cfg.Backend.URL)
	v.Set("backend.tables.stories", cfg.Backend.Tables.Stories)
	v.Set("backend.tables.recordings", cfg.Backend.Tables.Recordings)
	v.Set("backend.tables.videos", cfg.Backend.Tables.Videos)
	v.Set("backend.tables.biography", cfg.Backend.Tables.Biography)

	v.Set("library.dir", cfg.Library.Dir)
	v.Set("library.watch", cfg.Library.Watch)

	v.Set("narration.latency_offset", cfg.Narration.LatencyOffset.String())
	v.Set("narration.paragraph_gap", cfg.Narration.ParagraphGap)
	v.Set("narration.refresh_interval", cfg.Narration.RefreshInterval.String())
	v.Set("narration.rates", cfg.Narration.Rates)
	v.Set("narration.default_rate", cfg.Narration.DefaultRate)

	v.Set("player.backend", cfg.Player.Backend)
	v.Set("player.frames_per_buffer", cfg.Player.FramesPerBuffer)
	v.Set("player.command", cfg.Player.Command)
	v.Set("player.args", cfg.Player.Args)
	v.Set("player.start_flag", cfg.Player.StartFlag)

	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("ui.theme", cfg.UI.Theme)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// IsConfigured returns true if a backend URL or a local library is set
func (c *Config) IsConfigured() bool {
	return c.Backend.URL != "" || c.Library.Dir != ""
}

// UsesBackend reports whether the hosted backend is the catalog source.
// A local library takes precedence.
func (c *Config) UsesBackend() bool {
	return c.Library.Dir == "" && c.Backend.URL != ""
}

// Source identifies the catalog source for per-source cache files
func (c *Config) Source() string {
	if c.UsesBackend() {
		return c.Backend.URL
	}
	return c.Library.Dir
}

// CatalogTables returns the configured backend table names
func (c *Config) CatalogTables() catalog.Tables {
	return catalog.Tables{
		Stories:    c.Backend.Tables.Stories,
		Recordings: c.Backend.Tables.Recordings,
		Videos:     c.Backend.Tables.Videos,
		Biography:  c.Backend.Tables.Biography,
	}
}

// Params converts the narration section to synchronizer tuning
func (n NarrationConfig) Params() narration.Params {
	p := narration.DefaultParams()
	p.LatencyOffset = n.LatencyOffset
	p.ParagraphGap = n.ParagraphGap
	if n.RefreshInterval > 0 {
		p.RefreshInterval = n.RefreshInterval
	}
	return p
}

// RateSteps returns the sorted positive rates, falling back to normal speed
func (n NarrationConfig) RateSteps() []float64 {
	rates := make([]float64, 0, len(n.Rates))
	for _, r := range n.Rates {
		if r > 0 {
			rates = append(rates, r)
		}
	}
	if len(rates) == 0 {
		return []float64{1}
	}
	sort.Float64s(rates)
	return rates
}

// ClearCache removes all cached data
func ClearCache(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
