// Package fetch implements the leaf fetchers of the acquisition pipeline:
// streaming asset downloads, download-and-clip against remote COGs, and
// the render-on-demand process API client.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/metrics"
	"github.com/eodatalab/stacfetch/internal/raster"
	"github.com/eodatalab/stacfetch/internal/stac"
)

// progressLogBytes is how often the downloader reports streamed bytes.
const progressLogBytes = 32 << 20

// AssetFetcher localizes a single remote asset, either by streaming it to
// disk or by clipping it to an AOI with windowed reads.
type AssetFetcher struct {
	client *http.Client
	retry  *RetryPolicy
	logger *zap.Logger
}

// NewAssetFetcher builds an AssetFetcher. timeout applies per HTTP request.
func NewAssetFetcher(timeout time.Duration, retry *RetryPolicy, logger *zap.Logger) *AssetFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetFetcher{
		client: &http.Client{Timeout: timeout},
		retry:  retry,
		logger: logger,
	}
}

// Download streams the asset's href to destPath and returns a copy of the
// asset pointing at the local file. Each retry restarts from byte zero.
func (f *AssetFetcher) Download(ctx context.Context, asset *stac.Asset, destPath string) (*stac.Asset, error) {
	err := f.retry.Do(ctx, func() error {
		return f.downloadOnce(ctx, asset.Href, destPath)
	})
	if err != nil {
		metrics.AssetsFailed.Inc()
		return nil, fmt.Errorf("download %s: %w", asset.Href, err)
	}
	metrics.AssetsFetched.Inc()

	out := asset.Clone()
	out.Href = destPath
	return out, nil
}

func (f *AssetFetcher) downloadOnce(ctx context.Context, href, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get: status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	counter := &progressWriter{
		dest:   destPath,
		total:  resp.ContentLength,
		logger: f.logger,
	}
	written, err := io.Copy(io.MultiWriter(out, counter), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("stream to %s: %w", destPath, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("short read: got %d of %d bytes", written, resp.ContentLength)
	}
	metrics.BytesDownloaded.Add(float64(written))
	f.logger.Debug("asset downloaded",
		zap.String("dest", destPath),
		zap.Int64("bytes", written),
	)
	return nil
}

// DownloadAndClip opens the asset in random access mode (remote hrefs are
// read windowed, never fully downloaded), crops it to the AOI, and writes
// the result to destPath. The returned asset carries refreshed projection
// metadata.
func (f *AssetFetcher) DownloadAndClip(ctx context.Context, asset *stac.Asset, destPath string, aoi orb.Polygon) (*stac.Asset, error) {
	f.logger.Info("downloading and clipping asset", zap.String("href", asset.Href))

	var meta raster.Metadata
	err := f.retry.Do(ctx, func() error {
		var clipErr error
		meta, clipErr = raster.Clip(asset.Href, destPath, aoi)
		return clipErr
	})
	if err != nil {
		metrics.AssetsFailed.Inc()
		return nil, fmt.Errorf("clip %s: %w", asset.Href, err)
	}
	metrics.AssetsFetched.Inc()

	out := asset.Clone()
	out.Href = destPath
	if out.Extra == nil {
		out.Extra = make(map[string]any, 3)
	}
	out.Extra["proj:shape"] = meta.Shape()
	out.Extra["proj:transform"] = meta.TransformSlice()
	out.Extra["proj:epsg"] = meta.EPSG
	return out, nil
}

// progressWriter logs cumulative byte counts as a download streams.
type progressWriter struct {
	dest    string
	total   int64
	written int64
	lastLog int64
	logger  *zap.Logger
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.written-w.lastLog >= progressLogBytes {
		w.lastLog = w.written
		w.logger.Debug("download progress",
			zap.String("dest", w.dest),
			zap.Int64("bytes", w.written),
			zap.Int64("content_length", w.total),
		)
	}
	return len(p), nil
}
