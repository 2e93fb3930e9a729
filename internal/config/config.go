package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrModelNotAllowed is returned by ModelsConfig.Resolve for names outside
// the allow-list.
var ErrModelNotAllowed = errors.New("model not allowed")

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Models  ModelsConfig
	Client  ClientConfig
	Storage StorageConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := resolveAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.Server.HistoryWindow < 1 {
		cfg.Server.HistoryWindow = 1
	}
	if !cfg.Models.Allows(cfg.Models.Default) {
		return nil, fmt.Errorf("default model %q is not in NEXUS_ALLOWED_MODELS", cfg.Models.Default)
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	// Addr is derived from Port by Load.
	Addr          string
	AgentsFile    string `env:"NEXUS_AGENTS_FILE"`
	CORSOrigins   string `env:"NEXUS_CORS_ORIGINS" envDefault:"*"`
	HistoryWindow int    `env:"NEXUS_HISTORY_WINDOW" envDefault:"6"`
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL plus ARK_API_KEY or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// ModelsConfig lists the model names clients may request.
type ModelsConfig struct {
	Default string   `env:"NEXUS_DEFAULT_MODEL" envDefault:"o3-mini"`
	Allowed []string `env:"NEXUS_ALLOWED_MODELS" envSeparator:"," envDefault:"o3-mini,GPT-4o,deepseek-reasoner,o1,o1-mini"`
}

// Allows reports whether name is on the allow-list.
func (c ModelsConfig) Allows(name string) bool {
	for _, allowed := range c.Allowed {
		if strings.TrimSpace(allowed) == name {
			return true
		}
	}
	return false
}

// Resolve returns the model to use for a request naming name. An empty name
// falls back to the default.
func (c ModelsConfig) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.Default
	}
	if !c.Allows(name) {
		return "", fmt.Errorf("%w: %s", ErrModelNotAllowed, name)
	}
	return name, nil
}

// ClientConfig 描述命令行客户端访问后端的方式。
type ClientConfig struct {
	BaseURL   string        `env:"NEXUS_API_BASE_URL" envDefault:"http://localhost:8080"`
	ModelName string        `env:"NEXUS_MODEL_NAME" envDefault:"o3-mini"`
	Timeout   time.Duration `env:"NEXUS_CLIENT_TIMEOUT" envDefault:"60s"`
	SessionID string        `env:"NEXUS_SESSION_ID"`
	Markdown  bool          `env:"NEXUS_MARKDOWN" envDefault:"true"`
}

// StorageConfig selects the key-value backend behind widget transcripts.
type StorageConfig struct {
	Driver        string `env:"NEXUS_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"NEXUS_SQLITE_PATH" envDefault:"nexus.db"`
	RedisAddr     string `env:"NEXUS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"NEXUS_REDIS_PASSWORD"`
	RedisDB       int    `env:"NEXUS_REDIS_DB" envDefault:"0"`
	KeyPrefix     string `env:"NEXUS_REDIS_PREFIX" envDefault:"nexus:"`
	// QuotaBytes mirrors the browser's local storage budget; 0 disables it.
	QuotaBytes int `env:"NEXUS_STORAGE_QUOTA_BYTES" envDefault:"5242880"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"NEXUS_LOG_LEVEL" envDefault:"info"`
	Format string `env:"NEXUS_LOG_FORMAT" envDefault:"auto"`
}
