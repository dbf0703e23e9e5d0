package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	QR       QRConfig
	AWS      AWSConfig
	WhatsApp WhatsAppConfig
	Worker   WorkerConfig
	Assets   AssetsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	BaseURL            string // public base URL, used to resolve relative image references
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/sangam?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// OTPConfig holds mobile OTP login settings.
type OTPConfig struct {
	TTLMinutes  int
	Digits      int
	DevLogCodes bool // log generated codes instead of relying on delivery (local dev)
}

// QRConfig holds the HMAC secret for visitor-pass QR credentials.
type QRConfig struct {
	Secret string
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string // member photos, association logos
	PassesBucket         string // archived visitor-pass PDFs
	PresignExpireMinutes int
}

// WhatsAppConfig holds WhatsApp Cloud API settings for pass and OTP delivery.
type WhatsAppConfig struct {
	APIBaseURL    string // e.g. https://graph.facebook.com/v19.0
	AccessToken   string
	PhoneNumberID string
}

// WorkerConfig holds notification worker pool settings.
type WorkerConfig struct {
	PassWorkerCount    int     // concurrent pass-send jobs per process
	PassSendRatePerSec float64 // shared across the whole pool
}

// AssetsConfig points at bundled render assets (logo, script fonts).
type AssetsConfig struct {
	LogoPath string
	FontsDir string // expects NotoSans-Regular.ttf plus per-script variants
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/sangam?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "sangam"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		OTP: OTPConfig{
			TTLMinutes:  getEnvInt("OTP_TTL_MINUTES", 5),
			Digits:      getEnvInt("OTP_DIGITS", 6),
			DevLogCodes: getEnv("OTP_DEV_LOG_CODES", "") == "true",
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET", "change-me-in-production"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", "sangam-media-bucket"),
			PassesBucket:         getEnv("AWS_S3_PASSES_BUCKET", "sangam-passes-bucket"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		},
		Worker: WorkerConfig{
			PassWorkerCount:    getEnvInt("PASS_WORKER_COUNT", 5),
			PassSendRatePerSec: getEnvFloat("PASS_SEND_RATE_PER_SEC", 10),
		},
		Assets: AssetsConfig{
			LogoPath: getEnv("ASSETS_LOGO_PATH", "assets/logo.png"),
			FontsDir: getEnv("ASSETS_FONTS_DIR", "assets/fonts"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
