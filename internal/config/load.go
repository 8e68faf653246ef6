package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional llmequeue.yaml file and from
// environment variables with the LLMEQUEUE_ prefix (dots replaced by
// underscores, e.g. LLMEQUEUE_SERVER_PORT). Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("llmequeue")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/llmequeue")

	v.SetEnvPrefix("LLMEQUEUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus environment
		// variables are a complete configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting. The defaults
// mirror the reference deployment: SQLite file store, 1 h retention swept
// every 10 min, 200 ms wait polls, 30 s / 180 s wait budgets.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "data/llmequeue.db")

	v.SetDefault("auth.token", "default-secret-token")

	v.SetDefault("queue.retention_window", "1h")
	v.SetDefault("queue.sweep_interval", "10m")
	v.SetDefault("queue.poll_interval", "200ms")
	v.SetDefault("queue.embedding_wait", "30s")
	v.SetDefault("queue.chat_wait", "180s")
	v.SetDefault("queue.max_wait", "300s")

	v.SetDefault("models.embedding", "nomic-embed-text")
	v.SetDefault("models.chat", "llama3.2")

	v.SetDefault("worker.server_url", "http://localhost:8000")
	v.SetDefault("worker.ollama_url", "http://localhost:11434")
	v.SetDefault("worker.poll_interval", "1s")
	v.SetDefault("worker.request_timeout", "30s")
}
