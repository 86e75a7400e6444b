package config

import (
	"log"
	"os"
	"strconv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	// Gemini / Vertex settings. When APIKey is set the Gemini API backend
	// is used; otherwise project+location select Vertex.
	GeminiAPIKey string
	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory", "sqlite" or "firestore"
	DataDir        string // sqlite location

	HistoryLimit int
	UseMockLLM   bool // true = use mock LLM and lexicon classifiers
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("MYBRO_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("MYBRO_PORT", "8080"),

		GeminiAPIKey: getEnv("MYBRO_GEMINI_API_KEY", ""),
		GCPProjectID: getEnv("MYBRO_GCP_PROJECT", ""),
		GCPLocation:  getEnv("MYBRO_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("MYBRO_MODEL_NAME", "gemini-2.5-flash"),

		StorageBackend: getEnv("MYBRO_STORAGE_BACKEND", "memory"),
		DataDir:        getEnv("MYBRO_DATA_DIR", "data"),

		HistoryLimit: getIntEnv("MYBRO_HISTORY_LIMIT", 20),
		UseMockLLM:   getBoolEnv("MYBRO_USE_MOCK_LLM", mode == ModeLocal),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" && cfg.GeminiAPIKey == "" {
		log.Fatal("MYBRO_GCP_PROJECT or MYBRO_GEMINI_API_KEY must be set in gcp mode")
	}

	return cfg
}
