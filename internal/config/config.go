// Package config loads and validates pipeline configuration from Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when a knob is absent from the config file, env, and flags.
const (
	DefaultPoolWidth       = 10
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 3 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
	DefaultProcessTimeout  = 20 * time.Second

	DefaultProcessEndpoint = "https://creodias.sentinel-hub.com/api/v1/process"
	DefaultTokenURL        = "https://services.sentinel-hub.com/auth/realms/main/protocol/openid-connect/token"
)

// OAuth holds client-credentials material for token exchange.
type OAuth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// ProcessAPI describes a render-on-demand backend endpoint.
type ProcessAPI struct {
	Endpoint string
	Auth     OAuth
}

// Config captures every knob that influences a pipeline run. All values
// originate from Viper so the pipeline can be configured via file, env
// vars, or CLI flags, but only this struct is threaded through the code.
type Config struct {
	OutputDir       string
	PoolWidth       int
	RetryAttempts   int
	RetryDelay      time.Duration
	DownloadTimeout time.Duration
	ProcessTimeout  time.Duration
	DevLogging      bool
	MetricsAddr     string
	ProcessAPI      ProcessAPI
}

// InitViper wires env binding and an optional config file into v.
func InitViper(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("STACFETCH")
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".stacfetch")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// No config file is fine; env vars and flags still apply.
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load constructs a Config by reading from Viper and applying defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		OutputDir:       v.GetString("pipeline.output_dir"),
		PoolWidth:       v.GetInt("pipeline.pool_width"),
		RetryAttempts:   v.GetInt("pipeline.retry_attempts"),
		RetryDelay:      v.GetDuration("pipeline.retry_delay"),
		DownloadTimeout: v.GetDuration("pipeline.download_timeout"),
		ProcessTimeout:  v.GetDuration("pipeline.process_timeout"),
		DevLogging:      v.GetBool("logging.development"),
		MetricsAddr:     v.GetString("metrics.addr"),
		ProcessAPI: ProcessAPI{
			Endpoint: v.GetString("process_api.endpoint"),
			Auth: OAuth{
				ClientID:     v.GetString("process_api.client_id"),
				ClientSecret: v.GetString("process_api.client_secret"),
				TokenURL:     v.GetString("process_api.token_url"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.PoolWidth == 0 {
		c.PoolWidth = DefaultPoolWidth
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = DefaultDownloadTimeout
	}
	if c.ProcessTimeout == 0 {
		c.ProcessTimeout = DefaultProcessTimeout
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(".", "output")
	}
	if c.ProcessAPI.Endpoint == "" {
		c.ProcessAPI.Endpoint = DefaultProcessEndpoint
	}
	if c.ProcessAPI.Auth.TokenURL == "" {
		c.ProcessAPI.Auth.TokenURL = DefaultTokenURL
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.PoolWidth <= 0 {
		return fmt.Errorf("pipeline.pool_width must be > 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("pipeline.retry_attempts must be > 0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("pipeline.retry_delay must be >= 0")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("pipeline.download_timeout must be > 0")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("pipeline.process_timeout must be > 0")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir must be set")
	}
	return nil
}

// ValidateProcessAPI checks the credentials required by render-on-demand
// sources. Called only when such a source is selected; missing credentials
// are a fatal configuration error, not a per-item one.
func (c Config) ValidateProcessAPI() error {
	if c.ProcessAPI.Endpoint == "" {
		return fmt.Errorf("process_api.endpoint must be set")
	}
	if c.ProcessAPI.Auth.ClientID == "" || c.ProcessAPI.Auth.ClientSecret == "" {
		return fmt.Errorf("process_api.client_id and process_api.client_secret must be set")
	}
	if c.ProcessAPI.Auth.TokenURL == "" {
		return fmt.Errorf("process_api.token_url must be set")
	}
	return nil
}
