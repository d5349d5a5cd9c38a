package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/stac"
)

func quietPolicy(attempts int) *RetryPolicy {
	policy := NewRetryPolicy(attempts, time.Millisecond)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return policy
}

func TestAssetFetcher_Download(t *testing.T) {
	t.Parallel()

	payload := []byte("not really a geotiff but close enough")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff; application=geotiff; profile=cloud-optimized")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	fetcher := NewAssetFetcher(5*time.Second, quietPolicy(3), zap.NewNop())
	asset := &stac.Asset{
		Href:      srv.URL + "/B04.tif",
		Title:     "Red band",
		MediaType: "image/tiff; application=geotiff; profile=cloud-optimized",
	}
	destPath := filepath.Join(t.TempDir(), "B04.tif")

	got, err := fetcher.Download(context.Background(), asset, destPath)
	require.NoError(t, err)
	require.Equal(t, destPath, got.Href)
	// The input asset is untouched; callers reuse it across retries.
	require.Equal(t, srv.URL+"/B04.tif", asset.Href)
	require.Equal(t, "Red band", got.Title)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestAssetFetcher_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	fetcher := NewAssetFetcher(5*time.Second, quietPolicy(3), zap.NewNop())
	asset := &stac.Asset{Href: srv.URL + "/asset.tif"}
	destPath := filepath.Join(t.TempDir(), "asset.tif")

	got, err := fetcher.Download(context.Background(), asset, destPath)
	require.NoError(t, err)
	require.Equal(t, int32(3), hits.Load())

	data, err := os.ReadFile(got.Href)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestAssetFetcher_ExhaustedRetriesSurfaceError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	fetcher := NewAssetFetcher(5*time.Second, quietPolicy(3), zap.NewNop())
	asset := &stac.Asset{Href: srv.URL + "/asset.tif"}

	_, err := fetcher.Download(context.Background(), asset, filepath.Join(t.TempDir(), "asset.tif"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, int32(3), hits.Load())
}

func TestAssetFetcher_RestartsFromZeroOnRetry(t *testing.T) {
	t.Parallel()

	full := []byte("0123456789abcdef")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "16")
		if hits.Add(1) == 1 {
			// Truncated body: the client sees a short read and retries.
			_, _ = w.Write(full[:8])
			return
		}
		_, _ = w.Write(full)
	}))
	defer srv.Close()

	fetcher := NewAssetFetcher(5*time.Second, quietPolicy(3), zap.NewNop())
	asset := &stac.Asset{Href: srv.URL + "/asset.tif"}
	destPath := filepath.Join(t.TempDir(), "asset.tif")

	_, err := fetcher.Download(context.Background(), asset, destPath)
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, full, data)
}
