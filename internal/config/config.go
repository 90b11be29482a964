// Package config loads process configuration: defaults, then an optional
// YAML file, then CHESSMATE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"chessmate/internal/core"
	"chessmate/internal/engine"
	"chessmate/internal/logger"
	"chessmate/internal/metrics"
	"chessmate/internal/platform"
	"chessmate/internal/processor"
)

const (
	EnvPrefix = "CHESSMATE_"
	// EnvFile names the variable that points at a YAML file when no path is given
	EnvFile = EnvPrefix + "CONFIG"
)

type Config struct {
	Log       logger.Options      `koanf:"log" json:"log"`
	Server    Server              `koanf:"server" json:"server"`
	Engine    Engine              `koanf:"engine" json:"engine"`
	Analysis  processor.Config    `koanf:"analysis" json:"analysis"`
	Storage   Storage             `koanf:"storage" json:"storage"`
	Client    Client              `koanf:"client" json:"client"`
	Platforms []platform.Settings `koanf:"platforms" json:"platforms" validate:"dive"`
}

type Server struct {
	Addr string `koanf:"addr" json:"addr" validate:"required"`
	// RateLimit is requests per minute per client IP on the analysis endpoint; 0 disables it
	RateLimit int    `koanf:"rate_limit" json:"rate_limit" validate:"gte=0"`
	PIDFile   string `koanf:"pid_file" json:"pid_file"`
	PIDLock   bool   `koanf:"pid_lock" json:"pid_lock"`
}

type Engine struct {
	Path    string        `koanf:"path" json:"path" validate:"required"`
	Workers int           `koanf:"workers" json:"workers" validate:"gte=1,lte=64"`
	Threads int           `koanf:"threads" json:"threads" validate:"gte=0"`
	HashMB  int           `koanf:"hash_mb" json:"hash_mb" validate:"gte=0"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
}

type Storage struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Path    string `koanf:"path" json:"path" validate:"required_if=Enabled true"`
}

// Client tunes outbound platform requests
type Client struct {
	Timeout   time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
	Retries   uint          `koanf:"retries" json:"retries"`
	RetryWait time.Duration `koanf:"retry_wait" json:"retry_wait" validate:"gte=0"`
}

func Default() *Config {
	return &Config{
		Log: logger.Options{Level: "info", Format: "text"},
		Server: Server{
			Addr:      ":8080",
			RateLimit: 30,
		},
		Engine: Engine{
			Path:    "stockfish",
			Workers: max(1, runtime.NumCPU()/2),
			Threads: 1,
			HashMB:  64,
			Timeout: 30 * time.Second,
		},
		Analysis: processor.DefaultConfig(),
		Storage: Storage{
			Enabled: false,
			Path:    "chessmate.db",
		},
		Client: Client{
			Timeout:   30 * time.Second,
			Retries:   3,
			RetryWait: 500 * time.Millisecond,
		},
		Platforms: DefaultPlatforms(),
	}
}

// DefaultPlatforms is the registry used when the configuration names none
func DefaultPlatforms() []platform.Settings {
	return []platform.Settings{
		{Name: string(platform.Lichess), Enabled: true, RatePerSecond: 1},
		{Name: string(platform.ChessCom), Enabled: true, RatePerSecond: 3},
		{Name: string(platform.Offline), Enabled: false},
	}
}

// Load layers defaults, the YAML file at path (or $CHESSMATE_CONFIG) and the
// environment. CHESSMATE_ENGINE__WORKERS=4 sets engine.workers.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = DefaultPlatforms()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return core.Errorf(core.KindInvalidArgument, "config", "%s", strings.Join(msgs, "; "))
		}
		return core.Wrap(core.KindInvalidArgument, "config", err)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return core.Wrap(core.KindInvalidArgument, "config", err)
	}

	seen := make(map[string]bool)
	for _, p := range c.Platforms {
		if seen[p.Name] {
			return core.Errorf(core.KindInvalidArgument, "config", "platform %q configured twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Options converts the engine section for engine.New
func (e Engine) Options(log *slog.Logger) engine.Options {
	return engine.Options{
		Path:    e.Path,
		Threads: e.Threads,
		HashMB:  e.HashMB,
		Timeout: e.Timeout,
		Logger:  log,
	}
}

// Deps converts the client section for the platform adapters
func (c Client) Deps(log *slog.Logger, m *metrics.Manager) platform.Deps {
	return platform.Deps{
		Client:    &http.Client{Timeout: c.Timeout},
		Logger:    log,
		Metrics:   m,
		Retries:   c.Retries,
		RetryWait: c.RetryWait,
	}
}
