package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	// Provider selection. When UseRealAPIs is false every provider returns
	// canned results so the pipeline can run without API keys or cost.
	UseRealAPIs bool

	GeminiAPIKey   string
	GeminiModel    string
	GeminiRPM      int
	AWSRegion      string
	S3Bucket       string
	S3Prefix       string
	BedrockModelID string
	PollyVoice     string

	// Pipeline policy.
	VisualFirst    bool
	StrictBriefing bool
	// WordThreshold routes short transcripts to the visually grounded
	// provider. Zero means the built-in default.
	WordThreshold int

	// Briefing delivery: "inline" returns a base64 data URI, "store" uploads
	// the MP3 to the object store and returns its key/URL.
	BriefingDelivery string

	// ObjectStoreType selects "local" or "s3".
	ObjectStoreType string
	LocalStoreDir   string

	YtDlpPath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		DatabaseURL:      dbURL,
		UseRealAPIs:      getBool("USE_REAL_APIS", false),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		GeminiRPM:        getInt("GEMINI_RPM", 10),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET_NAME", "sorot-ai-temp"),
		S3Prefix:         os.Getenv("S3_PREFIX"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", "us.deepseek.r1-v1:0"),
		PollyVoice:       getEnv("POLLY_VOICE_ID", "Joanna"),
		VisualFirst:      getBool("VISUAL_FIRST", false),
		StrictBriefing:   getBool("STRICT_BRIEFING", false),
		WordThreshold:    getInt("WORD_THRESHOLD", 0),
		BriefingDelivery: normalizeBriefingDelivery(getEnv("BRIEFING_DELIVERY", "inline")),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		YtDlpPath:        os.Getenv("YTDLP_PATH"),
	}

	if cfg.UseRealAPIs && cfg.GeminiAPIKey == "" {
		log.Printf("config: USE_REAL_APIS is set but GEMINI_API_KEY is empty; visual analysis will fail")
	}

	return cfg
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeBriefingDelivery(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "store", "s3":
		return "store"
	default:
		return "inline"
	}
}
