package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Models   ModelsConfig   `mapstructure:"models"   validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ModelsConfig names the default backend models used when a request does
// not specify one. Shared by the server (response shaping) and the worker
// (backend calls).
type ModelsConfig struct {
	Embedding string `mapstructure:"embedding" validate:"required"`
	Chat      string `mapstructure:"chat"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// Driver selects the backend; URL is a file path for sqlite and a
// connection string for postgres.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	URL    string `mapstructure:"url"    validate:"required"`
}

// AuthConfig contains the shared bearer token presented by clients and
// workers alike.
type AuthConfig struct {
	Token string `mapstructure:"token" validate:"required,min=8"`
}

// QueueConfig contains the queue engine, sweeper and wait adapter settings.
type QueueConfig struct {
	// RetentionWindow is how long task records are kept before the sweeper
	// purges them, regardless of status.
	RetentionWindow time.Duration `mapstructure:"retention_window" validate:"required"`

	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required"`

	// PollInterval is the fixed sleep between polls in the wait adapter.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// EmbeddingWait is the default synchronous wait budget for embedding tasks.
	EmbeddingWait time.Duration `mapstructure:"embedding_wait" validate:"required"`

	// ChatWait is the default synchronous wait budget for chat tasks.
	ChatWait time.Duration `mapstructure:"chat_wait" validate:"required"`

	// MaxWait is the hard ceiling on any caller-requested wait budget.
	MaxWait time.Duration `mapstructure:"max_wait" validate:"required"`
}

// WorkerConfig contains the settings for the inference worker binary.
type WorkerConfig struct {
	// ServerURL is the base URL of the queue API server.
	ServerURL string `mapstructure:"server_url" validate:"required,url"`

	// OllamaURL is the base URL of the backend model server.
	OllamaURL string `mapstructure:"ollama_url" validate:"required,url"`

	// PollInterval is how long the worker sleeps when no work is available.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// RequestTimeout bounds claim/complete/fail calls against the server.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}
