package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	require.Equal(t, DefaultPoolWidth, cfg.PoolWidth)
	require.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	require.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	require.Equal(t, DefaultDownloadTimeout, cfg.DownloadTimeout)
	require.Equal(t, DefaultProcessTimeout, cfg.ProcessTimeout)
	require.Equal(t, DefaultProcessEndpoint, cfg.ProcessAPI.Endpoint)
	require.Equal(t, DefaultTokenURL, cfg.ProcessAPI.Auth.TokenURL)
	require.NotEmpty(t, cfg.OutputDir)
}

func TestLoadReadsValues(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("pipeline.output_dir", "/data/out")
	v.Set("pipeline.pool_width", 4)
	v.Set("pipeline.retry_delay", "500ms")
	v.Set("process_api.client_id", "id")
	v.Set("process_api.client_secret", "secret")

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "/data/out", cfg.OutputDir)
	require.Equal(t, 4, cfg.PoolWidth)
	require.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	require.NoError(t, cfg.ValidateProcessAPI())
}

func TestLoadRejectsNegativePoolWidth(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("pipeline.pool_width", -1)

	_, err := Load(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool_width")
}

func TestValidateProcessAPI_MissingCredentials(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	err = cfg.ValidateProcessAPI()
	require.Error(t, err)
	require.Contains(t, err.Error(), "client_id")
}
