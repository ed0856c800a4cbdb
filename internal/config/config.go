package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	LogstashTCPAddr string

	JWTSecret string
	JWTTTL    time.Duration

	BcryptCost          int
	VerificationCodeTTL time.Duration
	PasswordResetTTL    time.Duration

	RedisAddr            string
	RedisPassword        string
	NotificationChannel  string
	ProfileChangeChannel string

	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinIOBucketProfile string
	MinIOPublicURL     string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	bcryptCost := 14
	if v, err := strconv.Atoi(getenv("BCRYPT_COST", "14")); err == nil && v > 0 {
		bcryptCost = v
	}

	return Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     must("DATABASE_URL"),
		LogstashTCPAddr: getenv("LOGSTASH_TCP_ADDR", ""),

		JWTSecret: must("JWT_SECRET"),
		JWTTTL:    duration("JWT_TTL", "24h"),

		BcryptCost:          bcryptCost,
		VerificationCodeTTL: duration("VERIFICATION_CODE_TTL", "15m"),
		PasswordResetTTL:    duration("PASSWORD_RESET_TTL", "15m"),

		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getenv("REDIS_PASSWORD", ""),
		NotificationChannel:  getenv("NOTIFICATION_CHANNEL", "user.notifications"),
		ProfileChangeChannel: getenv("PROFILE_CHANGE_CHANNEL", "user.profile-changes"),

		MinIOEndpoint:      must("MINIO_ENDPOINT"),
		MinIOAccessKey:     must("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     must("MINIO_SECRET_KEY"),
		MinIOUseSSL:        getenv("MINIO_USE_SSL", "false") == "true",
		MinIOBucketProfile: getenv("MINIO_BUCKET_PROFILE", "user-profiles"),
		MinIOPublicURL:     getenv("MINIO_PUBLIC_URL", ""),
	}
}

func duration(k, d string) time.Duration {
	raw := getenv(k, d)
	v, err := time.ParseDuration(raw)
	if err != nil {
		fallback, _ := time.ParseDuration(d)
		log.Printf("Warning: invalid %s=%q, using %s", k, raw, d)
		return fallback
	}
	return v
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
