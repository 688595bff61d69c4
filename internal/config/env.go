package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting the service needs. It is built once
// at startup and passed down explicitly; nothing reads the environment after
// LoadConfig returns.
type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	AIAPIKey     string
	EmbedModel   string
	GenModel     string
	Port         string

	// MaxPromptBytes rejects oversized prompts before any backend call.
	MaxPromptBytes int
	// SentencePadding is the number of sentences included before and after
	// the center sentence of each chunk (overlapping windows).
	SentencePadding int
	// EmbedBatchSize bounds how many chunk texts are embedded per request.
	EmbedBatchSize int
	// RetrievalTopK is the number of chunks retrieved per query.
	RetrievalTopK int
	// BuildWorkers is the number of concurrent engine build workers.
	BuildWorkers int
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		Port:         getEnv("PORT", "8080"),

		MaxPromptBytes:  getEnvInt("MAX_PROMPT_BYTES", 1024),
		SentencePadding: getEnvInt("CHUNK_SENTENCE_PADDING", 1),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 16),
		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 5),
		BuildWorkers:    getEnvInt("BUILD_WORKERS", 2),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
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
