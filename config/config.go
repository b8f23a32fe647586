// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads process configuration with koanf: built-in defaults,
// then an optional YAML or JSON file, then ADALA_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/poiesic/adala/agents"
	"github.com/poiesic/adala/ai"
)

// EnvPrefix starts every environment variable read by Load. Nested keys are
// separated by a double underscore: ADALA_SERVICES__OLLAMA__BASE_URL sets
// services.ollama.base_url.
const EnvPrefix = "ADALA_"

// geminiKeyEnv is consulted when no validation key is configured.
const geminiKeyEnv = "GEMINI_API_KEY"

// Index backends.
const (
	IndexBadger    = "badger"
	IndexSQLiteVec = "sqlitevec"
)

// History backends.
const (
	HistoryJSONFile = "jsonfile"
	HistoryRedis    = "redis"
)

// ErrUnsupportedConfigFile is returned for files that are neither YAML nor JSON.
var ErrUnsupportedConfigFile = errors.New("unsupported config file extension")

// Config holds all configuration for the assistant process.
type Config struct {
	App      AppConfig      `koanf:"app"`
	Services ServicesConfig `koanf:"services"`
	Index    IndexConfig    `koanf:"index"`
	Data     DataConfig     `koanf:"data"`
	History  HistoryConfig  `koanf:"history"`
	Agents   AgentsConfig   `koanf:"agents"`
	Server   ServerConfig   `koanf:"server"`
	Query    QueryConfig    `koanf:"query"`
}

// AppConfig holds logging settings.
type AppConfig struct {
	LogLevel  string `koanf:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `koanf:"log_format"` // "text" or "json"
}

// ServicesConfig holds model service settings.
type ServicesConfig struct {
	Ollama OllamaConfig `koanf:"ollama"`
	Gemini GeminiConfig `koanf:"gemini"`
}

// OllamaConfig holds the local model server settings.
type OllamaConfig struct {
	BaseURL         string `koanf:"base_url"`
	GenerationModel string `koanf:"generation_model"`
	EmbeddingModel  string `koanf:"embedding_model"`
	AgentModel      string `koanf:"agent_model"` // defaults to generation_model
	Timeout         int    `koanf:"timeout"`     // seconds
}

// GeminiConfig holds the cloud validation model settings.
type GeminiConfig struct {
	Model  string `koanf:"model"`
	APIKey string `koanf:"api_key"`
}

// IndexConfig selects and locates the vector index.
type IndexConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// DataConfig locates the CSV corpus.
type DataConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

// HistoryConfig selects and locates the conversation log.
type HistoryConfig struct {
	Backend string      `koanf:"backend"`
	Path    string      `koanf:"path"`
	Limit   int         `koanf:"limit"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig holds the Redis history store connection.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Key      string `koanf:"key"`
}

// AgentsConfig tunes the multi-agent coordinator.
type AgentsConfig struct {
	Enabled               bool    `koanf:"enabled"`
	TopK                  int     `koanf:"top_k"`
	MinScore              float64 `koanf:"min_score"`
	SpecialistTemperature float64 `koanf:"specialist_temperature"`
	SupervisorTemperature float64 `koanf:"supervisor_temperature"`
	MaxTokens             int     `koanf:"max_tokens"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds; generation is slow
}

// QueryConfig holds per-question defaults.
type QueryConfig struct {
	ContextLimit int `koanf:"context_limit"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.log_level":  "info",
		"app.log_format": "text",

		"services.ollama.base_url":         "http://localhost:11434",
		"services.ollama.generation_model": "qwen2.5:7b",
		"services.ollama.embedding_model":  "nomic-embed-text",
		"services.ollama.agent_model":      "",
		"services.ollama.timeout":          3600,
		"services.gemini.model":            "gemini-pro",
		"services.gemini.api_key":          "",

		"index.backend": IndexBadger,
		"index.path":    "./index_db",

		"data.dir":   "../data",
		"data.watch": false,

		"history.backend":       HistoryJSONFile,
		"history.path":          "conversation_history.json",
		"history.limit":         100,
		"history.redis.address": "localhost:6379",
		"history.redis.key":     "adala:conversation_history",

		"agents.enabled":                true,
		"agents.top_k":                  3,
		"agents.min_score":              0.05,
		"agents.specialist_temperature": 0.2,
		"agents.supervisor_temperature": 0.15,
		"agents.max_tokens":             800,

		"server.host":          "0.0.0.0",
		"server.port":          8000,
		"server.read_timeout":  30,
		"server.write_timeout": 3600,

		"query.context_limit": 5,
	}
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg, err := load(koanf.New("."), "", false)
	if err != nil {
		panic(err) // the defaults are static and valid
	}
	return cfg
}

// Load builds the configuration. path names an optional YAML or JSON file;
// when empty, config.yaml and then config.json in the working directory are
// tried. Environment variables take precedence over files.
func Load(path string) (*Config, error) {
	return load(koanf.New("."), path, true)
}

func load(k *koanf.Koanf, path string, external bool) (*Config, error) {
	for key, value := range defaults() {
		_ = k.Set(key, value)
	}

	if external {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: envKey,
		}), nil); err != nil {
			return nil, fmt.Errorf("error loading environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if external && cfg.Services.Gemini.APIKey == "" {
		cfg.Services.Gemini.APIKey = os.Getenv(geminiKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey maps ADALA_SERVICES__OLLAMA__BASE_URL to services.ollama.base_url.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

func loadFile(k *koanf.Koanf, path string) error {
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return fmt.Errorf("error loading %s: %w", path, err)
		}
		return nil
	}

	for _, candidate := range []string{"config.yaml", "config.json"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		parser, _ := parserFor(candidate)
		if err := k.Load(file.Provider(candidate), parser); err != nil {
			slog.Warn("failed to load config file", "path", candidate, "err", err)
		}
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFile, path)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.App.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", c.App.LogFormat)
	}
	if c.Services.Ollama.BaseURL == "" {
		return errors.New("services.ollama.base_url is required")
	}
	if c.Services.Ollama.Timeout <= 0 {
		return errors.New("services.ollama.timeout must be positive")
	}
	switch c.Index.Backend {
	case IndexBadger, IndexSQLiteVec:
	default:
		return fmt.Errorf("index.backend must be %s or %s, got %q", IndexBadger, IndexSQLiteVec, c.Index.Backend)
	}
	if c.Index.Path == "" {
		return errors.New("index.path is required")
	}
	if c.Data.Dir == "" {
		return errors.New("data.dir is required")
	}
	switch c.History.Backend {
	case HistoryJSONFile:
		if c.History.Path == "" {
			return errors.New("history.path is required")
		}
	case HistoryRedis:
		if c.History.Redis.Address == "" {
			return errors.New("history.redis.address is required")
		}
	default:
		return fmt.Errorf("history.backend must be %s or %s, got %q", HistoryJSONFile, HistoryRedis, c.History.Backend)
	}
	if c.History.Limit <= 0 {
		return errors.New("history.limit must be positive")
	}
	if c.Agents.TopK <= 0 {
		return errors.New("agents.top_k must be positive")
	}
	if c.Agents.MaxTokens <= 0 {
		return errors.New("agents.max_tokens must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Query.ContextLimit <= 0 {
		return errors.New("query.context_limit must be positive")
	}
	return nil
}

// RequestTimeout bounds one model call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Services.Ollama.Timeout) * time.Second
}

// AIConfig converts the model settings for the ai package.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.Services.Ollama.BaseURL),
		ai.WithEmbeddingModel(c.Services.Ollama.EmbeddingModel),
		ai.WithGenerationModel(c.Services.Ollama.GenerationModel),
		ai.WithAgentModel(c.Services.Ollama.AgentModel),
		ai.WithValidation(c.Services.Gemini.Model, c.Services.Gemini.APIKey),
		ai.WithRequestTimeout(c.RequestTimeout()),
	)
}

// AgentSettings converts the agent settings for the agents package.
func (c *Config) AgentSettings() agents.Settings {
	return agents.Settings{
		TopK:                  c.Agents.TopK,
		MinScore:              c.Agents.MinScore,
		SpecialistTemperature: c.Agents.SpecialistTemperature,
		SupervisorTemperature: c.Agents.SupervisorTemperature,
		MaxTokens:             c.Agents.MaxTokens,
		Timeout:               c.RequestTimeout(),
	}
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LogLevel parses app.log_level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
