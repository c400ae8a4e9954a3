package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxRedirects  int
	FetchMaxSize       int64
	FetchUserAgent     string
	FetchMaxConcurrent int

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Object Storage
	ObjectStoreDir string

	// Scheduler
	BatchSize          int
	RefreshRates       []int // サポートするリフレッシュレート階層（秒）
	DefaultRefreshRate int   // デフォルトのリフレッシュレート（秒）

	// Entitlement
	MaxDailyArticlesDefault int
	EntitlementAPIURL       string

	// Delivery API
	DeliveryAPIBaseURL string

	// Delivery
	MessageSplitLimit int

	// Producer
	ProducerWorkers   int
	ProducerRate      float64 // 配信先ごとの秒間リクエスト数
	ProducerBurst     int
	ProducerQueueSize int

	// Audit
	RequestRetentionDays int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxRedirects = getEnvInt("FETCH_MAX_REDIRECTS", 5)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 3*1024*1024)
	cfg.FetchUserAgent = getEnvString("FETCH_USER_AGENT", "Feednotify/1.0 Feed Fetcher")
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 30*time.Minute)
	cfg.CacheMaxEntries = getEnvInt("CACHE_MAX_ENTRIES", 10000)
	cfg.ObjectStoreDir = getEnvString("OBJECT_STORE_DIR", "/var/lib/feednotify/objects")
	cfg.BatchSize = getEnvInt("BATCH_SIZE", 25)
	cfg.DefaultRefreshRate = getEnvInt("DEFAULT_REFRESH_RATE_SECONDS", 600)

	rates, err := parseRefreshRates(getEnvString("REFRESH_RATES", "120,600"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_RATES: %w", err)
	}
	cfg.RefreshRates = rates

	cfg.MaxDailyArticlesDefault = getEnvInt("MAX_DAILY_ARTICLES_DEFAULT", 50)
	cfg.EntitlementAPIURL = getEnvString("ENTITLEMENT_API_URL", "")
	cfg.DeliveryAPIBaseURL = getEnvString("DELIVERY_API_BASE_URL", "https://discord.com/api/v10")
	cfg.MessageSplitLimit = getEnvInt("MESSAGE_SPLIT_LIMIT", 2000)
	cfg.ProducerWorkers = getEnvInt("PRODUCER_WORKERS", 4)
	cfg.ProducerRate = getEnvFloat("PRODUCER_RATE", 5)
	cfg.ProducerBurst = getEnvInt("PRODUCER_BURST", 5)
	cfg.ProducerQueueSize = getEnvInt("PRODUCER_QUEUE_SIZE", 1000)
	cfg.RequestRetentionDays = getEnvInt("REQUEST_RETENTION_DAYS", 14)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseRefreshRates はカンマ区切りのリフレッシュレート階層（秒）をパースする。
// 各値は正の整数でなければならない。
func parseRefreshRates(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	rates := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh rate %q: %w", p, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("refresh rate must be positive: %d", n)
		}
		rates = append(rates, n)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no refresh rates configured")
	}
	return rates, nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
