package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

// ctlConfig mirrors ~/.relayctl.yaml. Flags and env override file values.
type ctlConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

var (
	flagConfig  string
	flagAPIKey  string
	flagBaseURL string
	flagModel   string
	flagMock    bool
)

var rootCmd = &cobra.Command{
	Use:           "relayctl",
	Short:         "Manage the remote assistants behind the relay",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.relayctl.yaml)")
	pf.StringVar(&flagAPIKey, "api-key", "", "API key (overrides config file)")
	pf.StringVar(&flagBaseURL, "base-url", "", "API base URL (overrides config file)")
	pf.StringVar(&flagModel, "model", "", "default model for new assistants")
	pf.BoolVar(&flagMock, "mock", false, "talk to an in-memory mock instead of the real API")

	rootCmd.AddCommand(assistantsCmd)
}

func loadCtlConfig() (ctlConfig, error) {
	path := flagConfig
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".relayctl.yaml")
		}
	}

	var cfg ctlConfig
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case flagConfig != "":
			// an explicitly named config file must exist
			return cfg, err
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ASSISTANT_API_KEY")
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	return cfg, nil
}

func newClient() (assistant.Client, error) {
	if flagMock {
		return assistant.NewMockClient(), nil
	}

	cfg, err := loadCtlConfig()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key required (--api-key, ASSISTANT_API_KEY or ~/.relayctl.yaml)")
	}
	return assistant.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Model, 0), nil
}
