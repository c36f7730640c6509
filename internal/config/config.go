package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds every runtime setting of the API and the seed tool.
type Config struct {
	Port            string
	StoreDriver     string
	DSN             string
	MaxOpenConns    int
	JWTSecret       string
	CheckoutTimeout time.Duration
	CORSOrigin      string

	// Event relay (disabled when KafkaBrokers is empty)
	KafkaBrokers   string
	KafkaTopic     string
	RelayInterval  time.Duration
	RelayBatchSize int
}

// Load reads the .env file (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() Config {
	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		StoreDriver:     strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMySQL)),
		DSN:             getEnvOrDefault("DB_DSN_PRIMARY", "root:root@tcp(127.0.0.1:3306)/taptosell_checkout?parseTime=true"),
		MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		CheckoutTimeout: getDurationEnv("CHECKOUT_TIMEOUT_MS", 5000, time.Millisecond),
		CORSOrigin:      getEnvOrDefault("CORS_ORIGIN", "http://localhost:5173"),
		KafkaBrokers:    getEnvOrDefault("KAFKA_BROKERS", ""),
		KafkaTopic:      getEnvOrDefault("KAFKA_TOPIC", "purchase-events"),
		RelayInterval:   getDurationEnv("RELAY_INTERVAL_MS", 2000, time.Millisecond),
		RelayBatchSize:  getIntEnv("RELAY_BATCH_SIZE", 200),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
