package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	AI          AIConfig
	Chat        ChatConfig
	Store       StoreConfig
	Admin       AdminConfig
	Log         LogConfig
	CatalogPath string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	admin, err := loadAdminConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		AI:          ai,
		Chat:        chat,
		Store:       store,
		Admin:       admin,
		Log:         LogConfig{Mode: getEnvOrDefault("LOG_MODE", "dev")},
		CatalogPath: strings.TrimSpace(os.Getenv("CATALOG_PATH")),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
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

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// ChatConfig 描述会话编排相关的限制。
type ChatConfig struct {
	MaxToolRounds  int
	MaxImageBytes  int
	SessionTimeout time.Duration
	SweepSchedule  string
	ContextLimit   int
	SnippetLimit   int
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{
		MaxToolRounds:  10,
		MaxImageBytes:  1 << 20,
		SessionTimeout: 15 * time.Minute,
		SweepSchedule:  getEnvOrDefault("CHAT_SWEEP_SCHEDULE", "@every 1m"),
		ContextLimit:   150000,
		SnippetLimit:   2000,
	}

	overrides := []struct {
		key string
		dst *int
	}{
		{"CHAT_MAX_TOOL_ROUNDS", &cfg.MaxToolRounds},
		{"CHAT_MAX_IMAGE_BYTES", &cfg.MaxImageBytes},
		{"CHAT_CONTEXT_LIMIT", &cfg.ContextLimit},
		{"CHAT_SNIPPET_LIMIT", &cfg.SnippetLimit},
	}
	for _, o := range overrides {
		val, err := parseOptionalIntEnv(o.key)
		if err != nil {
			return ChatConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 1 {
			return ChatConfig{}, fmt.Errorf("invalid %s value %d: must be positive", o.key, *val)
		}
		*o.dst = *val
	}

	timeout, err := parseOptionalDurationEnv("CHAT_SESSION_TIMEOUT")
	if err != nil {
		return ChatConfig{}, err
	}
	if timeout != nil {
		cfg.SessionTimeout = *timeout
	}

	return cfg, nil
}

// StoreConfig 描述知识库存储。Redis 为可选的远端存储，SQLite 始终作为本地兜底。
type StoreConfig struct {
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// RemoteEnabled 表示是否配置了远端存储。
func (c StoreConfig) RemoteEnabled() bool {
	return c.RedisAddr != ""
}

func loadStoreConfig() (StoreConfig, error) {
	db, err := parseOptionalIntEnv("REDIS_DB")
	if err != nil {
		return StoreConfig{}, err
	}
	redisDB := 0
	if db != nil {
		redisDB = *db
	}

	cfg := StoreConfig{
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "./data/estock.db"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RedisPrefix:   getEnvOrDefault("REDIS_PREFIX", "estock"),
	}
	return cfg, nil
}

// AdminConfig 描述管理后台的认证配置。
type AdminConfig struct {
	DefaultPassword string
	JWTSecret       string
	TokenTTL        time.Duration
}

func loadAdminConfig() (AdminConfig, error) {
	ttl, err := parseOptionalDurationEnv("ADMIN_TOKEN_TTL")
	if err != nil {
		return AdminConfig{}, err
	}
	tokenTTL := 12 * time.Hour
	if ttl != nil {
		tokenTTL = *ttl
	}

	return AdminConfig{
		DefaultPassword: getEnvOrDefault("ADMIN_DEFAULT_PASSWORD", "admin123"),
		JWTSecret:       strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET")),
		TokenTTL:        tokenTTL,
	}, nil
}

// LogConfig 描述日志输出模式。
type LogConfig struct {
	Mode string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val <= 0 {
		return nil, fmt.Errorf("invalid %s value %q: must be positive", key, value)
	}
	return &val, nil
}
