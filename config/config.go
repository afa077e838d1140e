package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the orchestrator configuration. Flags override these
// values where a flag exists.
type Config struct {
	// Output
	OutDir string

	// Registry
	RegistryPath string

	// Grader
	GraderCmd string
	Model     string

	// Optional sinks
	PostgresDSN string
	RedisAddr   string

	// Status API
	StatusAddr string
}

// Load reads configuration from the environment, consulting a local .env
// file first when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		OutDir:       getEnv("OUT_DIR", "./grader_outputs"),
		RegistryPath: getEnv("PAPER_REGISTRY", "registry.yaml"),
		GraderCmd:    getEnv("GRADER_CMD", ""),
		Model:        getEnv("GRADER_MODEL", "gemini-2.5-pro"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		StatusAddr:   getEnv("STATUS_ADDR", ""),
	}
}

// HasGraderKey reports whether a Gemini API key is present in the
// environment.
func HasGraderKey() bool {
	return os.Getenv("GOOGLE_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
