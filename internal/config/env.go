package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Feishu open-platform credentials.
	FeishuAppID      string
	FeishuAppSecret  string
	FeishuEncryptKey string

	// LLM / embeddings.
	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	// Vector store.
	VectorBackend string // "chromem" or "pgvector"
	VectorDBPath  string
	Collection    string
	DatabaseURL   string
	TopK          int

	// Ingestion.
	UnstructuredAPIURL string
	UnstructuredAPIKey string
	ExportPath         string
	BatchSize          int
	BatchInterval      time.Duration

	// Optional archive upload.
	AwsAccessKey  string
	AwsSecretKey  string
	AwsRegion     string
	ArchiveBucket string

	// Server.
	Port       string
	NgrokToken string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		FeishuAppID:      getEnv("FEISHU_APP_ID", ""),
		FeishuAppSecret:  getEnv("FEISHU_APP_SECRET", ""),
		FeishuEncryptKey: getEnv("FEISHU_ENCRYPT_KEY", ""),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		VectorBackend: getEnv("VECTOR_BACKEND", "chromem"),
		VectorDBPath:  getEnv("VECTOR_DB_PATH", "vector_db"),
		Collection:    getEnv("VECTOR_COLLECTION", "knowledge"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		TopK:          getEnvInt("TOP_K", 2),

		UnstructuredAPIURL: getEnv("UNSTRUCTURED_API_URL", ""),
		UnstructuredAPIKey: getEnv("UNSTRUCTURED_API_KEY", ""),
		ExportPath:         getEnv("EXPORT_PATH", "data/summarised_chunks.json"),
		BatchSize:          getEnvInt("BATCH_SIZE", 10),
		BatchInterval:      getEnvDuration("BATCH_INTERVAL", 500*time.Millisecond),

		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		Port:       getEnv("PORT", "8000"),
		NgrokToken: getEnv("NGROK_TOKEN", ""),
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
