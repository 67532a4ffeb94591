// Package config はアプリケーション全体の設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/unidash/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数（または.envファイル）から起動時に1回読み込み、イミュータブルとして扱う。
// 必須項目の欠落はCONFIGURATION_ERRORとして起動時に致命的エラーになる。
type Config struct {
	// Database（プロジェクトごとに独立した接続先）
	LeadDatabaseURL string
	CPADatabaseURL  string
	PropDatabaseURL string

	// AI Assistant（OpenAI互換のチャット補完API）
	AIAPIKey        string
	AIAPIURL        string
	AIModel         string
	AIMaxTokens     int
	AITemperature   float64
	AITimeout       time.Duration
	AIRetryAttempts int
	AICacheTTL      time.Duration

	// 認証（設定由来の固定クレデンシャルテーブル）
	Credentials []model.Credential

	// Session / Lockout
	SessionMaxAge      int           // セッション有効期間（秒）
	LoginMaxAttempts   int           // ロックアウトまでの失敗回数閾値
	LoginLockoutWindow time.Duration // 失敗回数を数えるローリングウィンドウ

	// Rate Limit
	RateLimitGeneral int // API全般（req/min/user）
	RateLimitAI      int // AIアシスタント（req/min/user）

	// Audit / Worker
	AuditRetentionDays int
	DBCheckInterval    time.Duration

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// credentialEnvVars はロールごとのクレデンシャル環境変数の対応表。
var credentialEnvVars = []struct {
	usernameVar string
	hashVar     string
	role        model.Role
}{
	{"ADMIN_USERNAME", "ADMIN_PASSWORD_HASH", model.RoleAdmin},
	{"MANAGER_USERNAME", "MANAGER_PASSWORD_HASH", model.RoleManager},
	{"VIEWER_USERNAME", "VIEWER_PASSWORD_HASH", model.RoleViewer},
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（既存の環境変数が優先される）。
// 必須環境変数が未設定の場合はCONFIGURATION_ERRORを返す。
func Load() (*Config, error) {
	// .envファイルはローカル開発用。存在しない場合は無視する。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.LeadDatabaseURL = os.Getenv("LEAD_DATABASE_URL")
	if cfg.LeadDatabaseURL == "" {
		missing = append(missing, "LEAD_DATABASE_URL")
	}

	cfg.CPADatabaseURL = os.Getenv("CPA_DATABASE_URL")
	if cfg.CPADatabaseURL == "" {
		missing = append(missing, "CPA_DATABASE_URL")
	}

	cfg.PropDatabaseURL = os.Getenv("PROP_DATABASE_URL")
	if cfg.PropDatabaseURL == "" {
		missing = append(missing, "PROP_DATABASE_URL")
	}

	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	if cfg.AIAPIKey == "" {
		missing = append(missing, "AI_API_KEY")
	}

	cfg.AIAPIURL = os.Getenv("AI_API_URL")
	if cfg.AIAPIURL == "" {
		missing = append(missing, "AI_API_URL")
	}

	cfg.AIModel = os.Getenv("AI_MODEL")
	if cfg.AIModel == "" {
		missing = append(missing, "AI_MODEL")
	}

	// クレデンシャルテーブル（admin / manager / viewer の3ロール分）
	seen := make(map[string]bool)
	for _, ev := range credentialEnvVars {
		username := os.Getenv(ev.usernameVar)
		hash := os.Getenv(ev.hashVar)
		if username == "" {
			missing = append(missing, ev.usernameVar)
		}
		if hash == "" {
			missing = append(missing, ev.hashVar)
		}
		if username == "" || hash == "" {
			continue
		}
		if seen[username] {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("duplicate username in credential table: %s", username))
		}
		seen[username] = true
		cfg.Credentials = append(cfg.Credentials, model.Credential{
			Username:     username,
			PasswordHash: hash,
			Role:         ev.role,
		})
	}

	if len(missing) > 0 {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("required environment variables are not set: %v", missing))
	}

	// Optional fields with defaults
	cfg.AIMaxTokens = getEnvInt("AI_MAX_TOKENS", 1500)
	cfg.AITemperature = getEnvFloat("AI_TEMPERATURE", 0.7)
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 60*time.Second)
	cfg.AIRetryAttempts = getEnvInt("AI_RETRY_ATTEMPTS", 3)
	cfg.AICacheTTL = getEnvDuration("AI_CACHE_TTL", 5*time.Minute)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.LoginMaxAttempts = getEnvInt("LOGIN_MAX_ATTEMPTS", 5)
	cfg.LoginLockoutWindow = getEnvDuration("LOGIN_LOCKOUT_WINDOW", 15*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 10)
	cfg.AuditRetentionDays = getEnvInt("AUDIT_RETENTION_DAYS", 30)
	cfg.DBCheckInterval = getEnvDuration("DB_CHECK_INTERVAL", 5*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.LoginMaxAttempts < 1 {
		return nil, model.NewConfigurationError("LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.LoginLockoutWindow <= 0 {
		return nil, model.NewConfigurationError("LOGIN_LOCKOUT_WINDOW must be positive")
	}

	return cfg, nil
}

// DatabaseURL は指定プロジェクトの接続URLを返す。
func (c *Config) DatabaseURL(project model.ProjectType) (string, error) {
	switch project {
	case model.ProjectLead:
		return c.LeadDatabaseURL, nil
	case model.ProjectCPA:
		return c.CPADatabaseURL, nil
	case model.ProjectProp:
		return c.PropDatabaseURL, nil
	default:
		return "", model.NewInvalidProjectError(string(project))
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
