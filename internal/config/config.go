package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is loaded once at process start and passed explicitly to
// constructors. Nothing else in the tree reads the environment.
type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	MomoPartnerCode string
	MomoAccessKey   string
	MomoSecretKey   string
	MomoEndpoint    string
	MomoRedirectURL string
	MomoIPNURL      string

	AIEndpoint string
	AIKey      string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info(".env not loaded: ", err)
	}
	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "phustore"),
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnvOrDefault("REDIS_PASSWORD", ""),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 120, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 30, 24*time.Hour),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:     getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUsername: getEnvOrDefault("SMTP_USERNAME", ""),
		SMTPPassword: getEnvOrDefault("SMTP_PASSWORD", ""),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "no-reply@phustore.local"),

		MomoPartnerCode: getEnvOrDefault("MOMO_PARTNER_CODE", ""),
		MomoAccessKey:   getEnvOrDefault("MOMO_ACCESS_KEY", ""),
		MomoSecretKey:   getEnvOrDefault("MOMO_SECRET_KEY", ""),
		MomoEndpoint:    getEnvOrDefault("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
		MomoRedirectURL: getEnvOrDefault("MOMO_REDIRECT_URL", ""),
		MomoIPNURL:      getEnvOrDefault("MOMO_IPN_URL", ""),

		AIEndpoint: getEnvOrDefault("AI_ENDPOINT", ""),
		AIKey:      getEnvOrDefault("AI_KEY", ""),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
