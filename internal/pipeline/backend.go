// Package pipeline orchestrates the acquisition of catalog items: fanning
// asset fetches across a bounded worker pool, mutating each item into a
// self-contained local definition, and driving the item loop.
package pipeline

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/eodatalab/stacfetch/internal/stac"
)

// Result is the outcome of localizing one asset: either a localized asset
// or a terminal error. Consumed exactly once by the item mutator.
type Result struct {
	Key   string
	Asset *stac.Asset
	Err   error
}

// Acquisition is everything a backend produced for one item: per-asset
// results plus property adjustments the mutator must apply.
type Acquisition struct {
	Results map[string]Result

	// Properties are merged into the item's properties map; keys listed
	// in DropProperties are removed. Used by render-on-demand sources to
	// correct projection metadata.
	Properties     map[string]any
	DropProperties []string
}

// Backend localizes the raster content of one item into workDir. The two
// variants are AssetListBackend (per-asset fetches against browsable
// files) and RenderOnDemandBackend (one composited raster per item).
// Acquire returns an error only for failures outside the per-asset error
// model, such as an unusable working directory.
type Backend interface {
	Acquire(ctx context.Context, item *stac.Item, workDir string, aoi orb.Polygon, clip bool) (*Acquisition, error)
}
