package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	GenModel     string

	TranscribeAPIKey  string
	TranscribeBaseURL string

	JWTSecret string
	Port      string
	LogMode   string

	IngestWorkers int
	MaxMediaMB    int
	MaxPDFMB      int

	// CompatSubstringMatch re-enables the legacy substring matching between
	// eligible identifiers and record origins at query time. Off by default;
	// exact matching is the documented behavior.
	CompatSubstringMatch bool
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "kbchat-docs"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),

		TranscribeAPIKey:  getEnv("TRANSCRIBE_API_KEY", ""),
		TranscribeBaseURL: getEnv("TRANSCRIBE_BASE_URL", "https://api.assemblyai.com/v2"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),
		LogMode:   getEnv("LOG_MODE", "dev"),

		IngestWorkers: getEnvInt("INGEST_WORKERS", 4),
		MaxMediaMB:    getEnvInt("MAX_MEDIA_MB", 500),
		MaxPDFMB:      getEnvInt("MAX_PDF_MB", 10),

		CompatSubstringMatch: getEnvBool("COMPAT_SUBSTRING_MATCH", false),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
