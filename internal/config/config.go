package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/paper"
)

type Config struct {
	// UserID is the signed-in user; empty runs as a guest.
	UserID     string `yaml:"user_id"`
	QuickStart string `yaml:"quick_start"`
	LogLevel   string `yaml:"log_level"`
	LogPretty  bool   `yaml:"log_pretty"`

	Backend   BackendConfig        `yaml:"backend"`
	Request   parlay.RequestConfig `yaml:"request"`
	Probe     ProbeConfig          `yaml:"probe"`
	Progress  ProgressConfig       `yaml:"progress"`
	Weeks     WeeksConfig          `yaml:"weeks"`
	History   HistoryConfig        `yaml:"history"`
	Telemetry TelemetryConfig      `yaml:"telemetry"`
	API       APIConfig            `yaml:"api"`
	Paper     paper.Config         `yaml:"paper"`
}

type BackendConfig struct {
	// Kind is "paper" (in-process simulator) or "http".
	Kind            string        `yaml:"kind"`
	BaseURL         string        `yaml:"base_url"`
	Token           string        `yaml:"token"`
	Timeout         time.Duration `yaml:"timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	MaxRPS          float64       `yaml:"max_rps"`
	Burst           int           `yaml:"burst"`
}

type ProbeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// Cache is "memory", "redis" or "none".
	Cache string      `yaml:"cache"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProgressConfig struct {
	TickPeriod time.Duration `yaml:"tick_period"`
	FlashDelay time.Duration `yaml:"flash_delay"`
}

type WeeksConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

type TelemetryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queue_size"`
}

type APIConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Default() Config {
	return Config{
		UserID:   "demo",
		LogLevel: "info",
		Backend: BackendConfig{
			Kind:            "paper",
			Timeout:         10 * time.Second,
			GenerateTimeout: 3 * time.Minute,
			MaxRPS:          5,
			Burst:           5,
		},
		Request: parlay.DefaultRequest(),
		Probe: ProbeConfig{
			Enabled:  true,
			Debounce: 300 * time.Millisecond,
			CacheTTL: 60 * time.Second,
			Cache:    "memory",
			Redis:    RedisConfig{Addr: "localhost:6379"},
		},
		Progress: ProgressConfig{
			TickPeriod: 500 * time.Millisecond,
			FlashDelay: time.Second,
		},
		Weeks: WeeksConfig{
			Enabled:         true,
			RefreshInterval: time.Hour,
		},
		History: HistoryConfig{Capacity: 200},
		Telemetry: TelemetryConfig{
			Timeout:   5 * time.Second,
			QueueSize: 256,
		},
		API: APIConfig{
			Addr: ":8080",
		},
		Paper: paper.DefaultConfig(),
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize canonicalises user supplied enum spellings.
func (c *Config) normalize() {
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	c.Probe.Cache = strings.ToLower(strings.TrimSpace(c.Probe.Cache))
	if m, err := parlay.ParseMode(string(c.Request.Mode)); err == nil {
		c.Request.Mode = m
	}
	if r, err := parlay.ParseRiskProfile(string(c.Request.Risk)); err == nil {
		c.Request.Risk = r
	}
	for i, s := range c.Request.Sports {
		if parsed, err := parlay.ParseSport(string(s)); err == nil {
			c.Request.Sports[i] = parsed
		}
	}
	if c.Request.Mode == parlay.ModeTriple && c.Request.TripleVariant == "" {
		c.Request.TripleVariant = parlay.TripleFlight
	}
}

func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PARLAY_BACKEND")); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("PARLAY_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("PARLAY_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v, ok := os.LookupEnv("PARLAY_USER_ID"); ok {
		c.UserID = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_SPORTS")); v != "" {
		c.Request.Sports = nil
		for _, raw := range strings.Split(v, ",") {
			if raw = strings.TrimSpace(raw); raw != "" {
				c.Request.Sports = append(c.Request.Sports, parlay.Sport(raw))
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_QUICK_START")); v != "" {
		c.QuickStart = v
	}
	if v := os.Getenv("PARLAY_REDIS_ADDR"); v != "" {
		c.Probe.Redis.Addr = v
		c.Probe.Cache = "redis"
	}
	if v := os.Getenv("PARLAY_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("PARLAY_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_API_ENABLED")); v != "" {
		c.API.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_PAPER_LATENCY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Paper.Latency = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_PAPER_FREE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Paper.FreeLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PARLAY_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.normalize()
}
