package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eodatalab/stacfetch/internal/stac"
)

// AssetFetcher localizes one asset, either whole or clipped to an AOI.
// Implemented by fetch.AssetFetcher.
type AssetFetcher interface {
	Download(ctx context.Context, asset *stac.Asset, destPath string) (*stac.Asset, error)
	DownloadAndClip(ctx context.Context, asset *stac.Asset, destPath string, aoi orb.Polygon) (*stac.Asset, error)
}

// AssetListBackend fetches each retained asset of an item independently
// across a bounded pool of workers. The pool lives for one Acquire call.
type AssetListBackend struct {
	fetcher AssetFetcher
	width   int
	renames map[string]string
	logger  *zap.Logger
}

// NewAssetListBackend builds the backend. width bounds the number of
// concurrent asset fetches per item; renames optionally remaps asset keys
// in the output item.
func NewAssetListBackend(fetcher AssetFetcher, width int, renames map[string]string, logger *zap.Logger) *AssetListBackend {
	if width <= 0 {
		width = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetListBackend{
		fetcher: fetcher,
		width:   width,
		renames: renames,
		logger:  logger,
	}
}

// Acquire schedules one fetch-or-clip task per retained raster asset, in
// the asset map's document order, and rejoins completions by asset key so
// unordered completion can never mislabel a result. Failed siblings do
// not abort in-flight tasks.
func (b *AssetListBackend) Acquire(ctx context.Context, item *stac.Item, workDir string, aoi orb.Polygon, clip bool) (*Acquisition, error) {
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("create item dir %s: %w", workDir, err)
	}

	keys := item.RasterAssetKeys()
	results := make([]Result, len(keys))

	pool := new(errgroup.Group)
	pool.SetLimit(b.width)
	for i, key := range keys {
		asset := item.Assets[key]
		dest := filepath.Join(workDir, key+".tif")
		pool.Go(func() error {
			results[i] = b.fetchOne(ctx, key, asset, dest, aoi, clip)
			return nil
		})
	}
	// Tasks never return errors through the group; Wait only joins.
	_ = pool.Wait()

	joined := make(map[string]Result, len(results))
	for _, res := range results {
		if _, dup := joined[res.Key]; dup {
			return nil, fmt.Errorf("item %s: asset key %s produced twice after rename", item.ID, res.Key)
		}
		joined[res.Key] = res
	}
	return &Acquisition{Results: joined}, nil
}

func (b *AssetListBackend) fetchOne(ctx context.Context, key string, asset *stac.Asset, dest string, aoi orb.Polygon, clip bool) Result {
	var (
		localized *stac.Asset
		err       error
	)
	if clip {
		localized, err = b.fetcher.DownloadAndClip(ctx, asset, dest, aoi)
	} else {
		localized, err = b.fetcher.Download(ctx, asset, dest)
	}
	if err != nil {
		b.logger.Warn("asset fetch failed",
			zap.String("asset_key", key),
			zap.String("href", asset.Href),
			zap.Error(err),
		)
	}
	return Result{Key: b.rename(key), Asset: localized, Err: err}
}

func (b *AssetListBackend) rename(key string) string {
	if renamed, ok := b.renames[key]; ok {
		return renamed
	}
	return key
}
