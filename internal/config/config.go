package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, loaded from SURVEUS_* environment
// variables.
type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Google  GoogleConfig
	Resend  ResendConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int    `env:"SURVEUS_PORT" envDefault:"4600"`
	APIToken string `env:"SURVEUS_API_TOKEN"`
}

type OpenAIConfig struct {
	APIKey  string `env:"SURVEUS_OPENAI_API_KEY"`
	BaseURL string `env:"SURVEUS_OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"SURVEUS_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type GoogleConfig struct {
	// CredentialsFile points at a service account JSON key with access to
	// the Forms and Drive APIs.
	CredentialsFile string `env:"SURVEUS_GOOGLE_CREDENTIALS_FILE"`
	// OperatorEmail is granted writer access on every provisioned form.
	OperatorEmail string `env:"SURVEUS_OPERATOR_EMAIL"`
}

type ResendConfig struct {
	APIKey string `env:"SURVEUS_RESEND_API_KEY"`
	From   string `env:"SURVEUS_EMAIL_FROM" envDefault:"Surveus <onboarding@resend.dev>"`
}

type StorageConfig struct {
	DataDir string `env:"SURVEUS_DATA_DIR"`
}

type LogConfig struct {
	Level string `env:"SURVEUS_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment. Validation of keys that are
// only needed by a particular mode is deferred to Validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.Storage.DataDir = home + "/.surveus"
	}
	return cfg, nil
}

// Validate checks that the credentials required by the given mode are
// present. Create mode talks to OpenAI, Google and Resend; fetch mode only
// needs Google; serve needs everything create needs plus an API token.
func (c Config) Validate(mode string) error {
	needsGoogle := mode == "create" || mode == "fetch" || mode == "serve" || mode == "mcp"
	needsOpenAI := mode == "create" || mode == "serve" || mode == "mcp"
	needsResend := mode == "create"

	if needsOpenAI && c.OpenAI.APIKey == "" {
		return fmt.Errorf("missing required config: OpenAI API key (set SURVEUS_OPENAI_API_KEY)")
	}
	if needsGoogle && c.Google.CredentialsFile == "" {
		return fmt.Errorf("missing required config: Google service account key (set SURVEUS_GOOGLE_CREDENTIALS_FILE)")
	}
	if needsResend && c.Resend.APIKey == "" {
		return fmt.Errorf("missing required config: Resend API key (set SURVEUS_RESEND_API_KEY)")
	}
	if mode == "serve" && c.Server.APIToken == "" {
		return fmt.Errorf("missing required config: API bearer token (set SURVEUS_API_TOKEN)")
	}
	return nil
}
