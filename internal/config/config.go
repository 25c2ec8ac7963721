package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	AuthURL       string
	AdminAPIURL   string
	StorePath     string
	KafkaAddress  string
	LogLevel      string
	StatsInterval time.Duration
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	interval := 30 * time.Second
	if raw := os.Getenv("STATS_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		} else {
			log.Printf("Notice: invalid STATS_INTERVAL %q, using %s", raw, interval)
		}
	}

	return &Config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		AuthURL:       must(os.Getenv("AUTH_URL"), "AUTH_URL"),
		AdminAPIURL:   must(os.Getenv("ADMIN_API_URL"), "ADMIN_API_URL"),
		StorePath:     getenvDefault("STORE_PATH", "storefront.db"),
		KafkaAddress:  os.Getenv("KAFKA_ADDRESS"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		StatsInterval: interval,
	}
}
