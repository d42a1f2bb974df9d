package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is loaded once at startup and
// passed by value; nothing in the application mutates it afterwards.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	SchedulerInterval time.Duration

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GitHub    GitHubConfig
	Storage   StorageConfig
	Company   CompanyConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// TelemetryConfig feeds logging, tracing and OTLP metrics. Tracing is on by
// default outside development environments.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OTLPEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

// BootstrapConfig seeds a first superuser on an empty install. AdminToken is
// the plain API token; only its hash is stored.
type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminToken    string
}

// Enabled reports whether a bootstrap admin was configured.
func (c BootstrapConfig) Enabled() bool {
	return c.AdminUsername != "" && c.AdminToken != ""
}

type GitHubConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	APIBaseURL    string
	OAuthBaseURL  string
	WebhookSecret string
	Timeout       time.Duration
}

// OAuthEnabled reports whether the OAuth application credentials are present.
func (c GitHubConfig) OAuthEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// RateLimitConfig throttles webhook deliveries per repository. It needs
// RedisAddr; a zero WebhookRate disables it.
type RateLimitConfig struct {
	WebhookRate  float64
	WebhookBurst int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CompanyConfig is printed on generated quotes.
type CompanyConfig struct {
	Name     string
	Address  string
	Email    string
	Currency string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "glichflow"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SchedulerInterval: time.Duration(getenvInt("SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second,
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "glichflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		GitHub: GitHubConfig{
			ClientID:      strings.TrimSpace(getenv("GITHUB_CLIENT_ID", "")),
			ClientSecret:  strings.TrimSpace(getenv("GITHUB_CLIENT_SECRET", "")),
			RedirectURL:   strings.TrimSpace(getenv("GITHUB_REDIRECT_URL", "")),
			APIBaseURL:    strings.TrimRight(getenv("GITHUB_API_URL", "https://api.github.com"), "/"),
			OAuthBaseURL:  strings.TrimRight(getenv("GITHUB_OAUTH_URL", "https://github.com"), "/"),
			WebhookSecret: getenv("GITHUB_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getenvInt("GITHUB_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(getenv("STORAGE_ENDPOINT", "")),
			AccessKey: getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getenv("STORAGE_SECRET_KEY", ""),
			Bucket:    getenv("STORAGE_BUCKET", "glichflow"),
			UseSSL:    getenvBool("STORAGE_USE_SSL", false),
		},
		Company: CompanyConfig{
			Name:     getenv("COMPANY_NAME", "GlichFlow"),
			Address:  getenv("COMPANY_ADDRESS", ""),
			Email:    getenv("COMPANY_EMAIL", ""),
			Currency: strings.ToUpper(getenv("COMPANY_CURRENCY", "TRY")),
		},
		RateLimit: RateLimitConfig{
			WebhookRate:  getenvFloat("WEBHOOK_RATE_PER_SECOND", 5),
			WebhookBurst: getenvInt("WEBHOOK_BURST", 20),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_USERNAME", ""))),
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
			AdminToken:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_TOKEN", "")),
		},
	}

	cfg.Telemetry.OTLPEnabled = getenvBool("OTEL_ENABLED", !cfg.IsDevelopment())

	return cfg
}

// IsDevelopment covers every non-deployed environment, tests included.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
