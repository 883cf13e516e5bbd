// Package config loads antnest settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/antnest/internal/agents"
	"github.com/talgya/antnest/internal/nest"
)

// Config is the full runtime configuration.
type Config struct {
	Server      Server         `yaml:"server"`
	Sim         Sim            `yaml:"sim"`
	Nest        nest.GenConfig `yaml:"nest"`
	Seed        int64          `yaml:"seed"`          // 0 = random each start
	DBPath      string         `yaml:"db_path"`       // Empty disables the run ledger
	EventLogDir string         `yaml:"event_log_dir"` // Empty disables the event log
	LogLevel    string         `yaml:"log_level"`
}

// Server configures the HTTP API.
type Server struct {
	Port            int      `yaml:"port"`
	WSPushMs        int      `yaml:"ws_push_ms"`
	SpawnRatePerMin int      `yaml:"spawn_rate_per_min"` // Per client; 0 disables the limit
	CORSOrigins     []string `yaml:"cors_origins"`
}

// Sim configures the tick loop and ant movement.
type Sim struct {
	TickMs    int     `yaml:"tick_ms"`
	TimeScale float64 `yaml:"time_scale"` // Engine speed multiplier; 0 starts paused

	agents.MoveConfig `yaml:",inline"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			WSPushMs:        33,
			CORSOrigins:     []string{"*"},
		},
		Sim: Sim{
			TickMs:     16,
			TimeScale:  1,
			MoveConfig: agents.DefaultMoveConfig(),
		},
		Nest:     nest.DefaultGenConfig(),
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	if v := os.Getenv("ANTNEST_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ANTNEST_PORT: %w", err))
		} else {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("ANTNEST_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ANTNEST_SEED: %w", err))
		} else {
			c.Seed = n
		}
	}
	if v, ok := os.LookupEnv("ANTNEST_DB"); ok {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv("ANTNEST_EVENT_LOG"); ok {
		c.EventLogDir = v
	}
	if v := os.Getenv("ANTNEST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	return errors.Join(errs...)
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.WSPushMs <= 0 {
		errs = append(errs, fmt.Errorf("server.ws_push_ms must be positive"))
	}
	if c.Server.SpawnRatePerMin < 0 {
		errs = append(errs, fmt.Errorf("server.spawn_rate_per_min must not be negative"))
	}
	if c.Sim.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("sim.tick_ms must be positive"))
	}
	if c.Sim.TimeScale < 0 {
		errs = append(errs, fmt.Errorf("sim.time_scale must not be negative"))
	}
	if c.Sim.Speed <= 0 {
		errs = append(errs, fmt.Errorf("sim.speed must be positive"))
	}
	if c.Sim.Wiggle < 0 || c.Sim.Bounce < 0 {
		errs = append(errs, fmt.Errorf("sim.wiggle and sim.bounce must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := c.Nest.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("nest: %w", err))
	}
	return errors.Join(errs...)
}

// TickInterval is the base engine period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Sim.TickMs) * time.Millisecond
}

// PushInterval is the websocket state push period.
func (c Config) PushInterval() time.Duration {
	return time.Duration(c.Server.WSPushMs) * time.Millisecond
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
