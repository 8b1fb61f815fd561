// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formchat/pkg/extract"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// Config holds every setting the binaries read.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	LLM     LLMConfig     `yaml:"llm"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Forms   FormsConfig   `yaml:"forms"`
	Clarify ClarifyConfig `yaml:"clarify"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// LLMConfig configures the OpenAI compatible extraction endpoint. An empty
// APIKey selects the rule-based extractor.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StoreConfig selects persistence. An empty RedisAddr keeps session
// snapshots in memory; an empty SQLiteDSN disables submissions and history.
type StoreConfig struct {
	SQLiteDSN     string        `yaml:"sqlite_dsn"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type EngineConfig struct {
	Language            string        `yaml:"language"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Dampening           float64       `yaml:"dampening"`
	HistoryLimit        int           `yaml:"history_limit"`
	PrimaryFields       []string      `yaml:"primary_fields"`
	TurnTimeout         time.Duration `yaml:"turn_timeout"`
}

type FormsConfig struct {
	Dir string `yaml:"dir"`
	// Default is the form the chat endpoint fills.
	Default string `yaml:"default"`
}

type ClarifyConfig struct {
	// Catalog is an optional directory of YAML files merged over the
	// embedded phrases.
	Catalog string `yaml:"catalog"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Log: LogConfig{Mode: "development", Level: "info"},
		LLM: LLMConfig{
			BaseURL:   extract.DefaultBaseURL,
			Model:     extract.DefaultModel,
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Store: StoreConfig{
			SQLiteDSN:  "formchat.db",
			SessionTTL: 24 * time.Hour,
		},
		Engine: EngineConfig{
			Language:            turn.DefaultLanguage,
			ConfidenceThreshold: turn.DefaultConfidenceThreshold,
			Dampening:           turn.DefaultDampening,
			HistoryLimit:        turn.DefaultHistoryLimit,
			TurnTimeout:         time.Minute,
		},
		Forms: FormsConfig{Dir: "forms", Default: "equipment_form"},
	}
}

// Load reads path (optional), the .env file in the working directory when
// present, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the environment variables lookup reports.
// Malformed numbers and durations are reported together.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("FORMCHAT_ADDR", &cfg.Server.Addr)
	env.list("FORMCHAT_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	env.str("FORMCHAT_LOG_MODE", &cfg.Log.Mode)
	env.str("FORMCHAT_LOG_LEVEL", &cfg.Log.Level)

	env.str("OPENROUTER_API_KEY", &cfg.LLM.APIKey)
	env.str("OPENROUTER_MODEL", &cfg.LLM.Model)
	env.str("OPENROUTER_BASE_URL", &cfg.LLM.BaseURL)
	env.float("FORMCHAT_LLM_TEMPERATURE", &cfg.LLM.Temperature)
	env.int("FORMCHAT_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	env.duration("FORMCHAT_LLM_TIMEOUT", &cfg.LLM.Timeout)

	env.str("FORMCHAT_SQLITE_DSN", &cfg.Store.SQLiteDSN)
	env.str("FORMCHAT_REDIS_ADDR", &cfg.Store.RedisAddr)
	env.str("FORMCHAT_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	env.int("FORMCHAT_REDIS_DB", &cfg.Store.RedisDB)
	env.duration("FORMCHAT_SESSION_TTL", &cfg.Store.SessionTTL)

	env.str("FORMCHAT_LANGUAGE", &cfg.Engine.Language)
	env.float("FORMCHAT_CONFIDENCE_THRESHOLD", &cfg.Engine.ConfidenceThreshold)
	env.float("FORMCHAT_DAMPENING", &cfg.Engine.Dampening)
	env.int("FORMCHAT_HISTORY_LIMIT", &cfg.Engine.HistoryLimit)
	env.list("FORMCHAT_PRIMARY_FIELDS", &cfg.Engine.PrimaryFields)
	env.duration("FORMCHAT_TURN_TIMEOUT", &cfg.Engine.TurnTimeout)

	env.str("FORMCHAT_FORMS_DIR", &cfg.Forms.Dir)
	env.str("FORMCHAT_FORM", &cfg.Forms.Default)
	env.str("FORMCHAT_CLARIFY_CATALOG", &cfg.Clarify.Catalog)

	return errors.Join(env.errs...)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("config: engine.confidence_threshold %v is outside [0,1]", c.Engine.ConfidenceThreshold))
	}
	if c.Engine.Dampening <= 0 || c.Engine.Dampening > 1 {
		errs = append(errs, fmt.Errorf("config: engine.dampening %v is outside (0,1]", c.Engine.Dampening))
	}
	if c.Engine.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("config: engine.history_limit %d is negative", c.Engine.HistoryLimit))
	}
	if strings.TrimSpace(c.Forms.Default) == "" {
		errs = append(errs, errors.New("config: forms.default is required"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	raw, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (e *envReader) str(key string, dst *string) {
	if raw, ok := e.value(key); ok {
		*dst = raw
	}
}

func (e *envReader) list(key string, dst *[]string) {
	raw, ok := e.value(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) int(key string, dst *int) {
	raw, ok := e.value(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = v
}

func (e *envReader) float(key string, dst *float64) {
	raw, ok := e.value(key)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = v
}

func (e *envReader) duration(key string, dst *time.Duration) {
	raw, ok := e.value(key)
	if !ok {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = v
}
