package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration

	DBPath   string // SQLite progress database
	BanksDir string // directory scanned for .xlsx banks at startup

	AdvanceDelay time.Duration // pause before auto-advancing after a correct answer
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()
	return &Config{
		ServerAddress:   getenvDefault("SERVER_ADDRESS", ":8080"),
		ShutdownTimeout: getDurationDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		DBPath:          getenvDefault("DB_PATH", "user_data.db"),
		BanksDir:        getenvDefault("BANKS_DIR", "."),
		AdvanceDelay:    getDurationDefault("ADVANCE_DELAY", 500*time.Millisecond),
	}
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getDurationDefault(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", k, v, err)
	}
	return d
}
