package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "LFC_CONFIG"

// searchPath is tried in order when neither an explicit path nor
// LFC_CONFIG is given.
var searchPath = []string{"config.yaml", "/etc/lfc/config.yaml"}

// Load builds a Config from defaults, then the YAML file, then LFC_*
// variables, then *_file references, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := locate(configPath); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := readSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func locate(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	for _, p := range searchPath {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// decodeFile overlays the YAML document at path onto cfg. Unknown keys are
// an error. An empty file leaves cfg untouched.
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envBinding parses one variable into its config field.
type envBinding struct {
	name  string
	parse func(string) error
}

func bindings(cfg *Config) []envBinding {
	return []envBinding{
		{"LFC_BACKEND_URL", text(&cfg.Engine.BackendURL)},
		{"LFC_MODEL", text(&cfg.Engine.DefaultModel)},
		{"LFC_PROVIDER", text(&cfg.Engine.Provider)},
		{"LFC_API_KEY", text(&cfg.Engine.APIKey)},
		{"LFC_AUTH_TYPE", text(&cfg.Auth.Type)},
		{"LFC_JWT_SECRET", text(&cfg.Auth.JWT.Secret)},
		{"LFC_SHIM_DEBUG", flag(&cfg.Shim.Debug)},
		{"LFC_STREAM_DEFAULT", flag(&cfg.Shim.StreamDefault)},
		{"LFC_STRIP_TOOLS", flag(&cfg.Shim.StripTools)},
		{"LFC_PORT", number(&cfg.Server.Port)},
		{"LFC_API_KEYS", apiKeys(&cfg.Auth.APIKeys)},
	}
}

// applyEnv runs every binding whose variable is set. All malformed values
// are reported together.
func applyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	for _, b := range bindings(cfg) {
		v := getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.parse(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

func text(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func flag(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func number(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

// apiKeys takes a JSON array of key entries. An empty array keeps the
// keys from the file.
func apiKeys(dst *[]APIKeyConfig) func(string) error {
	return func(v string) error {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("parsing API keys JSON: %w", err)
		}
		if len(keys) > 0 {
			*dst = keys
		}
		return nil
	}
}

// secretRef pairs a *_file setting with the field it fills.
type secretRef struct {
	key  string
	file string
	dst  *string
}

// readSecrets fills empty secret fields from their *_file settings. A
// value given directly always wins.
func readSecrets(cfg *Config) error {
	refs := []secretRef{
		{"engine.api_key_file", cfg.Engine.APIKeyFile, &cfg.Engine.APIKey},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
		{"auth.jwt.public_key_file", cfg.Auth.JWT.PublicKeyFile, &cfg.Auth.JWT.PublicKey},
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		refs = append(refs, secretRef{fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key})
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.dst != "" {
			continue
		}
		data, err := os.ReadFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.key, err)
		}
		*ref.dst = strings.TrimSpace(string(data))
	}
	return nil
}
