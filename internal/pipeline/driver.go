package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/metrics"
	"github.com/eodatalab/stacfetch/internal/stac"
)

// sourceDataDir is the directory under the output root holding one
// subdirectory per item.
const sourceDataDir = "source_data"

// Driver runs the acquisition pipeline over a collection of items:
// sequentially per item, concurrently within an item. A failed item is
// logged and dropped; the run itself only stops on context cancellation.
type Driver struct {
	backend    Backend
	mutator    *Mutator
	aoi        orb.Polygon
	clip       bool
	outputRoot string
	logger     *zap.Logger
}

// NewDriver builds a Driver for one pipeline run.
func NewDriver(backend Backend, mutator *Mutator, aoi orb.Polygon, clip bool, outputRoot string, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		backend:    backend,
		mutator:    mutator,
		aoi:        aoi,
		clip:       clip,
		outputRoot: outputRoot,
		logger:     logger,
	}
}

// Run processes items ascending by acquisition time and returns the
// paths of the item definitions it produced, in that order. Items that
// fail are absent from the returned list.
func (d *Driver) Run(ctx context.Context, items []*stac.Item) ([]string, error) {
	logger := d.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("pipeline run starting",
		zap.Int("items", len(items)),
		zap.Bool("clip", d.clip),
		zap.String("output_root", d.outputRoot),
	)

	paths := make([]string, 0, len(items))
	for _, item := range stac.SortByDatetime(items) {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		workDir := filepath.Join(d.outputRoot, sourceDataDir, item.ID)

		acq, err := d.backend.Acquire(ctx, item, workDir, d.aoi, d.clip)
		if err != nil {
			logger.Warn("item acquisition failed, dropping item",
				zap.String("item_id", item.ID), zap.Error(err))
			metrics.ItemsDropped.Inc()
			continue
		}

		path, err := d.mutator.Mutate(item, acq, d.aoi, d.clip, workDir)
		if err != nil {
			if errors.Is(err, ErrEmptyIntersection) {
				logger.Warn("item footprint outside AOI, skipping item",
					zap.String("item_id", item.ID))
			} else {
				logger.Warn("item mutation failed, dropping item",
					zap.String("item_id", item.ID), zap.Error(err))
			}
			metrics.ItemsDropped.Inc()
			continue
		}

		metrics.ItemsProcessed.Inc()
		paths = append(paths, path)
	}

	logger.Info("pipeline run finished", zap.Int("produced", len(paths)))
	return paths, nil
}
