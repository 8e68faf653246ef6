// Package config defines the application configuration structure and
// loading. Settings come from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence, and are
// validated before use.
package config
