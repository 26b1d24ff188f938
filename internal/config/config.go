package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kylevidrine/portal/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Session    SessionConfig
	Workspace  WorkspaceConfig
	Accounting AccountingConfig
	API        APIConfig
	RateLimit  RateLimitConfig
	MinIO      MinIOConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	PublicURL    string
	ResultPath   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the customer store backend: memory, sqlite or mongo.
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	CookieName   string
	CookieSecret string
	StateSecret  string
	TTL          time.Duration
	SecureCookie bool
}

type WorkspaceConfig struct {
	ClientID             string
	ClientSecret         string
	RedirectURL          string
	Issuer               string
	AuthURL              string
	TokenURL             string
	TokenInfoURL         string
	ValidationTimeout    time.Duration
	AllowInsecureIDToken bool
}

type AccountingConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Environment  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

type APIConfig struct {
	Keys []string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

const (
	accountingSandboxAPI    = "https://sandbox-quickbooks.api.intuit.com"
	accountingProductionAPI = "https://quickbooks.api.intuit.com"
)

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("RESULT_PATH", "/auth/result")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "customers.db")
	v.SetDefault("MONGODB_DATABASE", "portal")
	v.SetDefault("MONGODB_COLLECTION", "customers")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("SESSION_COOKIE_NAME", "portal_session")
	v.SetDefault("SESSION_TTL_MINUTES", 60*24)
	v.SetDefault("SESSION_SECURE_COOKIE", false)
	v.SetDefault("WORKSPACE_ISSUER", "https://accounts.google.com")
	v.SetDefault("WORKSPACE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
	v.SetDefault("WORKSPACE_TOKEN_URL", "https://oauth2.googleapis.com/token")
	v.SetDefault("WORKSPACE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo")
	v.SetDefault("VALIDATION_TIMEOUT_SECONDS", 5)
	v.SetDefault("ACCOUNTING_ENVIRONMENT", "sandbox")
	v.SetDefault("ACCOUNTING_AUTH_URL", "https://appcenter.intuit.com/connect/oauth2")
	v.SetDefault("ACCOUNTING_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "portal-audit")

	publicURL := strings.TrimRight(v.GetString("PUBLIC_URL"), "/")
	accEnv := strings.ToLower(v.GetString("ACCOUNTING_ENVIRONMENT"))
	accAPI := v.GetString("ACCOUNTING_API_BASE_URL")
	if accAPI == "" {
		accAPI = accountingSandboxAPI
		if accEnv == "production" {
			accAPI = accountingProductionAPI
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			PublicURL:    publicURL,
			ResultPath:   v.GetString("RESULT_PATH"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(v.GetString("STORE_DRIVER")),
			SQLitePath: v.GetString("SQLITE_PATH"),
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			CookieName:   v.GetString("SESSION_COOKIE_NAME"),
			CookieSecret: v.GetString("SESSION_SECRET"),
			StateSecret:  v.GetString("STATE_SECRET"),
			TTL:          time.Duration(v.GetInt("SESSION_TTL_MINUTES")) * time.Minute,
			SecureCookie: v.GetBool("SESSION_SECURE_COOKIE"),
		},
		Workspace: WorkspaceConfig{
			ClientID:             v.GetString("WORKSPACE_CLIENT_ID"),
			ClientSecret:         v.GetString("WORKSPACE_CLIENT_SECRET"),
			RedirectURL:          orDefault(v.GetString("WORKSPACE_REDIRECT_URL"), publicURL+"/auth/workspace/callback"),
			Issuer:               v.GetString("WORKSPACE_ISSUER"),
			AuthURL:              v.GetString("WORKSPACE_AUTH_URL"),
			TokenURL:             v.GetString("WORKSPACE_TOKEN_URL"),
			TokenInfoURL:         v.GetString("WORKSPACE_TOKENINFO_URL"),
			ValidationTimeout:    time.Duration(v.GetInt("VALIDATION_TIMEOUT_SECONDS")) * time.Second,
			AllowInsecureIDToken: strings.EqualFold(strings.TrimSpace(v.GetString("ALLOW_INSECURE_TOKEN")), "true"),
		},
		Accounting: AccountingConfig{
			ClientID:     v.GetString("ACCOUNTING_CLIENT_ID"),
			ClientSecret: v.GetString("ACCOUNTING_CLIENT_SECRET"),
			RedirectURL:  orDefault(v.GetString("ACCOUNTING_REDIRECT_URL"), publicURL+"/auth/accounting/callback"),
			Environment:  accEnv,
			AuthURL:      v.GetString("ACCOUNTING_AUTH_URL"),
			TokenURL:     v.GetString("ACCOUNTING_TOKEN_URL"),
			APIBaseURL:   accAPI,
		},
		API: APIConfig{
			Keys: splitList(v.GetString("API_KEYS")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
	}

	if cfg.Session.CookieSecret == "" {
		logger.Warnf("SESSION_SECRET is not set; set a secure value in production")
	}
	if cfg.Session.StateSecret == "" {
		cfg.Session.StateSecret = cfg.Session.CookieSecret
	}
	if cfg.Store.Driver == "mongo" && cfg.MongoDB.URI == "" {
		logger.Warnf("STORE_DRIVER=mongo but MONGODB_URI is empty")
	}

	return cfg, nil
}

// ReauthURL is the URL a caller should visit to reconnect the Workspace provider.
func (c *Config) ReauthURL() string {
	return c.Server.PublicURL + "/auth/workspace"
}

func orDefault(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
