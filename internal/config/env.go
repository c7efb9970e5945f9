package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local if present.
// Existing process environment variables are not overwritten.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("failed to load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("loaded environment variables", "path", envPath)
	}
}

// applyEnvOverrides lets deploy environments override file settings without
// editing the config file.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("UPDRAFT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("UPDRAFT_PUBLIC_URL"); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv("UPDRAFT_DATABASE_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("UPDRAFT_BLOB_PATH"); v != "" {
		c.Storage.BlobPath = v
	}
	if v := os.Getenv("UPDRAFT_EXECUTOR_ENDPOINT"); v != "" {
		c.Executor.Type = "http"
		c.Executor.Endpoint = v
	}
	if v := os.Getenv("UPDRAFT_NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	if v := os.Getenv("UPDRAFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
