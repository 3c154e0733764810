package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/weezy20/zv/internal/platform"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIndexTTLDays   = 21
	DefaultMirrorsTTLDays = 21
	DefaultFetchTimeout   = 15 * time.Second

	settingsFile = "config.yml"
)

// Settings is the read-only environment snapshot captured once at startup.
// Precedence: built-in defaults < config.yml < environment variables.
type Settings struct {
	ZVDir        string
	LogLevel     string
	IndexTTL     time.Duration
	MirrorsTTL   time.Duration
	FetchTimeout time.Duration
	NoColor      bool
	ForceZiglang bool
}

// fileSettings is the persisted shape of $ZV_DIR/config.yml. Every field is
// optional; zero values mean "use the default".
type fileSettings struct {
	LogLevel         string `yaml:"log_level,omitempty"`
	IndexTTLDays     *int   `yaml:"index_ttl_days,omitempty"`
	MirrorsTTLDays   *int   `yaml:"mirrors_ttl_days,omitempty"`
	FetchTimeoutSecs *int   `yaml:"fetch_timeout_secs,omitempty"`
	ForceZiglang     bool   `yaml:"force_ziglang,omitempty"`
}

// Load builds the settings snapshot from the environment and the optional
// settings file inside the store root.
func Load() (*Settings, error) {
	s := &Settings{
		ZVDir:        platform.DefaultDir(),
		IndexTTL:     DefaultIndexTTLDays * 24 * time.Hour,
		MirrorsTTL:   DefaultMirrorsTTLDays * 24 * time.Hour,
		FetchTimeout: DefaultFetchTimeout,
	}

	if dir := os.Getenv("ZV_DIR"); dir != "" {
		if !filepath.IsAbs(dir) {
			return nil, fmt.Errorf("ZV_DIR must be an absolute path, got %q", dir)
		}
		s.ZVDir = filepath.Clean(dir)
	}

	if fs, err := readFile(filepath.Join(s.ZVDir, settingsFile)); err == nil && fs != nil {
		if fs.LogLevel != "" {
			s.LogLevel = fs.LogLevel
		}
		if fs.IndexTTLDays != nil && *fs.IndexTTLDays >= 0 {
			s.IndexTTL = time.Duration(*fs.IndexTTLDays) * 24 * time.Hour
		}
		if fs.MirrorsTTLDays != nil && *fs.MirrorsTTLDays >= 0 {
			s.MirrorsTTL = time.Duration(*fs.MirrorsTTLDays) * 24 * time.Hour
		}
		if fs.FetchTimeoutSecs != nil && *fs.FetchTimeoutSecs >= 1 {
			s.FetchTimeout = time.Duration(*fs.FetchTimeoutSecs) * time.Second
		}
		s.ForceZiglang = fs.ForceZiglang
	}

	if lvl := os.Getenv("ZV_LOG"); lvl != "" {
		s.LogLevel = lvl
	}
	if d, ok := envInt("ZV_INDEX_TTL_DAYS", 0); ok {
		s.IndexTTL = time.Duration(d) * 24 * time.Hour
	}
	if d, ok := envInt("ZV_MIRRORS_TTL_DAYS", 0); ok {
		s.MirrorsTTL = time.Duration(d) * 24 * time.Hour
	}
	if secs, ok := envInt("ZV_FETCH_TIMEOUT_SECS", 1); ok {
		s.FetchTimeout = time.Duration(secs) * time.Second
	}
	s.NoColor = os.Getenv("NO_COLOR") != ""

	return s, nil
}

// Save persists the file-backed subset of the settings.
func (s *Settings) Save() error {
	indexDays := int(s.IndexTTL / (24 * time.Hour))
	mirrorsDays := int(s.MirrorsTTL / (24 * time.Hour))
	timeoutSecs := int(s.FetchTimeout / time.Second)
	fs := fileSettings{
		LogLevel:         s.LogLevel,
		IndexTTLDays:     &indexDays,
		MirrorsTTLDays:   &mirrorsDays,
		FetchTimeoutSecs: &timeoutSecs,
		ForceZiglang:     s.ForceZiglang,
	}
	data, err := yaml.Marshal(&fs)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(s.ZVDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.ZVDir, err)
	}
	return os.WriteFile(filepath.Join(s.ZVDir, settingsFile), data, 0o644)
}

func readFile(path string) (*fileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return &fs, nil
}

func envInt(name string, min int) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, false
	}
	return n, true
}
