// Package config provides configuration for the inference service.
package config

import (
	"os"
	"strconv"
	"time"
)

const defaultSystemPrompt = "You are a helpful assistant. Respond using Markdown formatting: include headings, bullet lists, and code fences for code blocks."

// Config holds the inference service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// OpenAI-compatible completion endpoint
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	LLMModel       string
	EmbeddingModel string
	SystemPrompt   string

	// Qdrant record store
	QdrantURL  string
	Collection string
	VectorSize int

	// Timeouts
	LLMTimeout   time.Duration
	StoreTimeout time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:       getEnvInt("INFERENCE_PORT", 8001),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		SystemPrompt:   getEnv("OPENAI_SYSTEM_PROMPT", defaultSystemPrompt),
		QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
		Collection:     getEnv("QDRANT_COLLECTION", "chat_transcripts"),
		VectorSize:     getEnvInt("EMBEDDING_DIMS", 1536),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		StoreTimeout:   time.Duration(getEnvInt("STORE_TIMEOUT_MS", 10000)) * time.Millisecond,
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
