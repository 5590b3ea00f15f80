package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Settings holds all runtime configuration, loaded once in main.
type Settings struct {
	Env     string
	AppPort string

	DefaultTimezone string
	StorageDir      string

	// DATABASE_URL: "postgres" selects the Postgres DSN from DB_* vars,
	// anything else is treated as a sqlite file path. Empty defaults to
	// <storage_dir>/app.db.
	DatabaseURL string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string // Format: "whatsapp:+14155238886"
	PublicBaseURL      string

	Mem0APIKey  string
	Mem0BaseURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Load reads settings from environment variables and ensures the storage
// directory exists. Call after godotenv has loaded any .env file.
func Load() *Settings {
	storageDir := getEnv("STORAGE_DIR", filepath.Join(mustGetwd(), "data"))

	s := &Settings{
		Env:     getEnv("ENV", "development"),
		AppPort: getEnv("PORT", "8080"),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
		StorageDir:      storageDir,

		DatabaseURL: getEnv("DATABASE_URL", filepath.Join(storageDir, "app.db")),

		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: os.Getenv("TWILIO_WHATSAPP_FROM"),
		PublicBaseURL:      os.Getenv("PUBLIC_BASE_URL"),

		Mem0APIKey:  os.Getenv("MEM0_API_KEY"),
		Mem0BaseURL: getEnv("MEM0_BASE_URL", "https://api.mem0.ai"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
	}

	if err := os.MkdirAll(filepath.Join(s.StorageDir, "media"), 0o755); err != nil {
		log.Printf("⚠️  Could not create storage dir %s: %v", s.StorageDir, err)
	}

	return s
}

// IsDevelopment reports whether webhook signature validation should be relaxed.
func (s *Settings) IsDevelopment() bool {
	if v, err := strconv.ParseBool(os.Getenv("DISABLE_WEBHOOK_VALIDATION")); err == nil && v {
		return true
	}
	return s.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
