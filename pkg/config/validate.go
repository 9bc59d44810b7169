package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	providers = []string{"openaicompat", "goopenai"}
	authTypes = []string{"none", "apikey", "jwt"}
	logLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.BackendURL == "" {
		errs = append(errs, errors.New("engine.backend_url is required"))
	} else if u, err := url.Parse(c.Engine.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("engine.backend_url must be an absolute http(s) URL, got %q", c.Engine.BackendURL))
	}

	if !slices.Contains(providers, c.Engine.Provider) {
		errs = append(errs, fmt.Errorf("engine.provider must be one of %s, got %q", strings.Join(providers, ", "), c.Engine.Provider))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be >= 0, got %v", c.Engine.Timeout))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must be >= 0"))
	}

	switch c.Auth.Type {
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		hasSecret := c.Auth.JWT.Secret != "" || c.Auth.JWT.SecretFile != ""
		hasKey := c.Auth.JWT.PublicKey != "" || c.Auth.JWT.PublicKeyFile != ""
		if hasSecret == hasKey {
			errs = append(errs, errors.New("auth.jwt requires exactly one of secret or public_key"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("auth.type must be one of %s, got %q", strings.Join(authTypes, ", "), c.Auth.Type))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	if c.Logging.Level != "" && !slices.Contains(logLevels, strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level must be one of TRACE, DEBUG, INFO, WARN, ERROR, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
