package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
// Both services share one config surface; each main reads the fields it needs.
type App struct {
	Env       string
	FacePort  string
	QRPort    string
	DataDir   string
	LogLevel  string
	LogFormat string

	// Face matching
	FaceServiceURL string
	FaceSkip       bool
	MatchThreshold float64

	// Auth (optional; mutating routes are open when disabled)
	AuthEnabled   bool
	AdminKey      string
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration

	// Rate limiting
	RateLimitPerMin  int
	RateLimitBackend string
	RedisAddr        string
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is honored.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:       getEnv("APP_ENV", "dev"),
		FacePort:  getEnv("FACE_HTTP_PORT", "5000"),
		QRPort:    getEnv("QR_HTTP_PORT", "5001"),
		DataDir:   getEnv("DATA_DIR", "data"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		FaceServiceURL: getEnv("FACE_SERVICE_URL", "http://localhost:8000"),
		FaceSkip:       boolEnv("FACE_SKIP", false),
		MatchThreshold: floatEnv("MATCH_THRESHOLD", 0.6),

		AuthEnabled:   boolEnv("AUTH_ENABLED", false),
		AdminKey:      getEnv("ADMIN_KEY", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "attendtrack"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:     durationEnv("ACCESS_TTL", 12*time.Hour),

		RateLimitPerMin:  intEnv("RATE_LIMIT_PER_MIN", 120),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var parsed float64
		if _, err := fmt.Sscanf(val, "%g", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid float for %s, using fallback %g", key, fallback)
	}
	return fallback
}
