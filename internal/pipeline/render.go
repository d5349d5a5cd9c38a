package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/fetch"
	"github.com/eodatalab/stacfetch/internal/source"
	"github.com/eodatalab/stacfetch/internal/stac"
)

// ItemFetcher renders one catalog item into a single local raster.
// Implemented by fetch.ProcessAPIFetcher.
type ItemFetcher interface {
	FetchItem(ctx context.Context, item *stac.Item, aoi orb.Polygon, collectionID, evalscript, destDir string) (string, error)
}

// RenderOnDemandBackend acquires items from sources without browsable
// assets: one process-API call renders one composited raster per item.
// Whatever assets the source item declared are discarded and replaced by
// the single rendered asset.
type RenderOnDemandBackend struct {
	fetcher ItemFetcher
	ds      source.DataSource
	logger  *zap.Logger
}

// NewRenderOnDemandBackend builds the backend for one data source.
func NewRenderOnDemandBackend(fetcher ItemFetcher, ds source.DataSource, logger *zap.Logger) *RenderOnDemandBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderOnDemandBackend{fetcher: fetcher, ds: ds, logger: logger}
}

// Acquire renders the item into workDir. The clip flag is ignored at the
// raster level: the request's spatial filter is already the AOI bounding
// box, so the rendered output never extends beyond it.
func (b *RenderOnDemandBackend) Acquire(ctx context.Context, item *stac.Item, workDir string, aoi orb.Polygon, _ bool) (*Acquisition, error) {
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("create item dir %s: %w", workDir, err)
	}

	path, err := b.fetcher.FetchItem(ctx, item, aoi, b.ds.Collection, b.ds.Evalscript, workDir)
	if err != nil {
		b.logger.Warn("item render failed", zap.String("item_id", item.ID), zap.Error(err))
		return &Acquisition{
			Results: map[string]Result{
				fetch.DataAssetKey: {Key: fetch.DataAssetKey, Err: err},
			},
		}, nil
	}

	asset := &stac.Asset{
		Href:  path,
		Title: fmt.Sprintf("Data for %s", b.ds.Collection),
		Roles: []string{"data"},
		Extra: map[string]any{
			"classification:classes": b.ds.Classes,
		},
	}
	return &Acquisition{
		Results: map[string]Result{
			fetch.DataAssetKey: {Key: fetch.DataAssetKey, Asset: asset},
		},
		Properties: map[string]any{
			"proj:epsg": source.WGS84,
		},
		DropProperties: []string{"proj:bbox", "proj:geometry"},
	}, nil
}
