// Package config layers Takopi's configuration: built-in defaults,
// overridden by an optional TOML file, overridden again by environment
// variables. The TOML file is also watched with fsnotify so the
// allowlist and per-engine overrides can be hot-reloaded without a
// restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/takopi-bot/takopi/internal/domain"
)

// EngineConfig is the per-engine CLI invocation override.
type EngineConfig struct {
	Cmd  string   `toml:"cmd"`
	Args []string `toml:"args"`
}

// DailyPrompt is one cron-scheduled prompt fed to the Thread Scheduler.
type DailyPrompt struct {
	Cron     string `toml:"cron"`
	ThreadID string `toml:"thread_id"`
	Engine   string `toml:"engine"`
	Prompt   string `toml:"prompt"`
}

// fileConfig is the TOML-decodable shape of config.toml.
type fileConfig struct {
	TelegramToken  string                  `toml:"telegram_token"`
	Allowlist      []int64                 `toml:"allowlist"`
	LogUnknown     bool                    `toml:"log_unknown"`
	DefaultEngine  string                  `toml:"default_engine"`
	Engines        map[string]EngineConfig `toml:"engines"`
	WorkDir        string                  `toml:"work_dir"`
	EditBudget     int                     `toml:"edit_budget"`
	EditsPerSecond float64                 `toml:"edits_per_second"`
	Transport      string                  `toml:"transport"`
	ConsoleAddr    string                  `toml:"console_addr"`
	MetricsAddr    string                  `toml:"metrics_addr"`
	LockDir        string                  `toml:"lock_dir"`
	StorePath      string                  `toml:"store_path"`
	Debug          bool                    `toml:"debug"`
	TracingEnabled bool                    `toml:"tracing_enabled"`
	OTLPEndpoint   string                  `toml:"otlp_endpoint"`
	Daily          []DailyPrompt           `toml:"daily"`
}

// Config is the resolved, immutable-per-snapshot configuration. Hot
// reload replaces the whole value under Store's mutex rather than
// mutating fields in place.
type Config struct {
	TelegramToken  string
	Allowlist      map[int64]struct{}
	LogUnknown     bool
	DefaultEngine  domain.EngineID
	Engines        map[string]EngineConfig
	WorkDir        string
	EditBudget     int
	EditsPerSecond float64
	Transport      string
	ConsoleAddr    string
	MetricsAddr    string
	LockDir        string
	StorePath      string
	Debug          bool
	TracingEnabled bool
	OTLPEndpoint   string
	Daily          []DailyPrompt
}

func defaults() fileConfig {
	return fileConfig{
		DefaultEngine:  "mock",
		Engines:        map[string]EngineConfig{},
		EditBudget:     3500,
		EditsPerSecond: 1,
		Transport:      "telegram",
		ConsoleAddr:    ":8081",
		MetricsAddr:    "",
		LockDir:        ".takopi",
		StorePath:      filepath.Join(".takopi", "takopi.db"),
	}
}

// Load resolves config.toml (if present at path) layered under defaults,
// then applies environment variable overrides.
func Load(path string) (Config, error) {
	fc := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &fc); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(&fc)

	return resolve(fc)
}

func applyEnvOverrides(fc *fileConfig) {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		fc.TelegramToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ALLOWLIST")); v != "" {
		fc.Allowlist = nil
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if id, err := strconv.ParseInt(p, 10, 64); err == nil {
				fc.Allowlist = append(fc.Allowlist, id)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_ENGINE")); v != "" {
		fc.DefaultEngine = v
	}
	if v := strings.TrimSpace(os.Getenv("WORKDIR")); v != "" {
		fc.WorkDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TRANSPORT")); v != "" {
		fc.Transport = v
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ADDR")); v != "" {
		fc.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("OTLP_ENDPOINT")); v != "" {
		fc.OTLPEndpoint = v
		fc.TracingEnabled = true
	}
	fc.Debug = envBool("TAKOPI_DEBUG", fc.Debug)
	fc.LogUnknown = envBool("TELEGRAM_LOG_UNKNOWN", fc.LogUnknown)
}

func resolve(fc fileConfig) (Config, error) {
	if fc.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			fc.WorkDir = wd
		}
	}
	allow := make(map[int64]struct{}, len(fc.Allowlist))
	for _, id := range fc.Allowlist {
		allow[id] = struct{}{}
	}
	if fc.Transport == "telegram" && fc.TelegramToken == "" {
		return Config{}, errors.New("config: missing telegram_token (TELEGRAM_BOT_TOKEN)")
	}
	if fc.Transport == "telegram" && len(allow) == 0 {
		return Config{}, errors.New("config: missing allowlist (TELEGRAM_ALLOWLIST)")
	}
	if !domain.EngineID(fc.DefaultEngine).Valid() {
		return Config{}, fmt.Errorf("config: invalid default_engine %q", fc.DefaultEngine)
	}

	return Config{
		TelegramToken:  fc.TelegramToken,
		Allowlist:      allow,
		LogUnknown:     fc.LogUnknown,
		DefaultEngine:  domain.EngineID(fc.DefaultEngine),
		Engines:        fc.Engines,
		WorkDir:        fc.WorkDir,
		EditBudget:     fc.EditBudget,
		EditsPerSecond: fc.EditsPerSecond,
		Transport:      fc.Transport,
		ConsoleAddr:    fc.ConsoleAddr,
		MetricsAddr:    fc.MetricsAddr,
		LockDir:        fc.LockDir,
		StorePath:      fc.StorePath,
		Debug:          fc.Debug,
		TracingEnabled: fc.TracingEnabled,
		OTLPEndpoint:   fc.OTLPEndpoint,
		Daily:          fc.Daily,
	}, nil
}

func envBool(key string, def bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// Store holds the live Config and reloads it when the backing TOML file
// changes on disk, so the allowlist and engine overrides can be edited
// without restarting the process. Only the fields that are safe to change
// mid-run (allowlist, log_unknown, engines, daily) are intended to be
// edited live; identity fields like transport or telegram_token still
// require a restart to take effect against already-constructed adapters.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Config
}

// NewStore loads the initial config and, if path is non-empty, starts a
// watcher on path's directory that reloads the config whenever path
// changes (the file need not exist yet).
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, cur: cfg}
	if path != "" {
		go s.watch(path)
	}
	return s, nil
}

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) watch(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return
	}

	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(s.path)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.cur = cfg
		s.mu.Unlock()
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(300*time.Millisecond, reload)
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
