package fixture

import (
	"os"
	"strconv"
)

// ReadyMessage is printed once the listener accepts connections.
const ReadyMessage = "Application startup complete."

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	CertFile       string
	KeyFile        string
	LogRequests    bool
	LogHeaders     bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// Addr returns host:port for the listener.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// LoadConfigFromEnv builds a Config from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Host:           getEnv("FIXTURE_HOST", "0.0.0.0"),
		Port:           int(parseInt64(getEnv("FIXTURE_PORT", "8443"))),
		CertFile:       getEnv("FIXTURE_CERT_FILE", "cert.pem"),
		KeyFile:        getEnv("FIXTURE_KEY_FILE", "key.pem"),
		LogRequests:    getEnv("FIXTURE_LOG_REQUESTS", "true") == "true",
		LogHeaders:     getEnv("FIXTURE_LOG_HEADERS", "false") == "true",
		RateLimitRPS:   parseFloat64(getEnv("FIXTURE_RATE_LIMIT_RPS", "0")),
		RateLimitBurst: int(parseInt64(getEnv("FIXTURE_RATE_LIMIT_BURST", "0"))),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(s string) int64 {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return 0
}

func parseFloat64(s string) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return 0
}
