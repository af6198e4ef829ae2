package config

import (
	"os"
	"strconv"
	"time"
)

// Config covers both the chatpopup client and the chatd backend; each
// command reads the fields it needs.
type Config struct {
	// client
	BaseURL        string
	ConversationID string
	PollInterval   time.Duration
	CSRFToken      string
	Sender         string

	// backend
	Port        int
	DatabaseURL string
	NatsURL     string
	NatsToken   string

	LogLevel string
}

func Load() Config {
	return Config{
		BaseURL:        envStr("CHAT_BASE_URL", "http://localhost:8760"),
		ConversationID: envStr("CHAT_CONVERSATION", ""),
		PollInterval:   envDuration("CHAT_POLL_INTERVAL", 3*time.Second),
		CSRFToken:      envStr("CHAT_CSRF_TOKEN", ""),
		Sender:         envStr("CHAT_SENDER", ""),
		Port:           envInt("CHATD_PORT", 8760),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("3s") or bare milliseconds ("3000").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
