package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	YCOAuthToken string
	YCFolderID   string

	TelegramBotToken string
	WebhookURL       string

	DatabaseURL string

	// Segmentation and crop tuning. The defaults are empirical; see the
	// segment and geometry packages.
	GapThreshold     float64
	MinSegmentHeight float64
	CropPadding      float64
	Parallelism      int
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: bad %s=%q, using %v", k, v, def)
		return def
	}
	return f
}

func getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

// MustEnv fetches a required variable; binaries call it for the keys they
// cannot run without.
func MustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		YCOAuthToken: os.Getenv("YC_OAUTH_TOKEN"),
		YCFolderID:   os.Getenv("YC_FOLDER_ID"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		GapThreshold:     getEnvFloat("SEGMENT_GAP_THRESHOLD", 0.05),
		MinSegmentHeight: getEnvFloat("SEGMENT_MIN_HEIGHT", 0.03),
		CropPadding:      getEnvFloat("CROP_PADDING", 0.02),
		Parallelism:      getEnvInt("SEGMENT_PARALLELISM", 1),
	}
}
