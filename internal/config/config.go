// Package config loads client settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when Load is called without files
const DefaultEnvFile = ".env"

type Config struct {
	AppViewURL   string
	UserDID      string
	AccessToken  string
	VoteTimeout  time.Duration
	CommentDepth int
	CommentSort  string
	LogLevel     slog.Level
}

// Load reads settings. Process environment wins over env files; missing
// env files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}

	fileEnv := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			if _, seen := fileEnv[k]; !seen {
				fileEnv[k] = v
			}
		}
	}

	env := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		if value := fileEnv[key]; value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		AppViewURL:  strings.TrimRight(env("APPVIEW_URL", "http://localhost:8081"), "/"),
		UserDID:     env("USER_DID", ""),
		AccessToken: env("ACCESS_TOKEN", ""),
		CommentSort: env("COMMENT_SORT", "hot"),
	}

	timeout, err := time.ParseDuration(env("VOTE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("VOTE_TIMEOUT must be a duration: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("VOTE_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.VoteTimeout = timeout

	depth, err := strconv.Atoi(env("COMMENT_DEPTH", "10"))
	if err != nil {
		return nil, fmt.Errorf("COMMENT_DEPTH must be an integer: %w", err)
	}
	if depth < 0 || depth > 100 {
		return nil, fmt.Errorf("COMMENT_DEPTH must be between 0 and 100, got %d", depth)
	}
	cfg.CommentDepth = depth

	switch cfg.CommentSort {
	case "hot", "top", "new":
	default:
		return nil, fmt.Errorf("COMMENT_SORT must be hot, top or new, got %q", cfg.CommentSort)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	// Credentials come as a pair
	if (cfg.UserDID == "") != (cfg.AccessToken == "") {
		return nil, fmt.Errorf("USER_DID and ACCESS_TOKEN must be set together")
	}

	return cfg, nil
}

// LoggedIn reports whether credentials were supplied
func (c *Config) LoggedIn() bool {
	return c.AccessToken != ""
}
