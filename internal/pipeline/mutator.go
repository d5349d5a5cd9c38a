package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/geometry"
	"github.com/eodatalab/stacfetch/internal/stac"
)

// ErrEmptyIntersection reports an AOI that does not overlap an item's
// footprint at all. The driver skips such items.
var ErrEmptyIntersection = errors.New("AOI does not intersect item footprint")

// Mutator turns a source item plus its fetch results into a
// self-contained local item definition.
type Mutator struct {
	logger *zap.Logger
}

// NewMutator builds a Mutator.
func NewMutator(logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{logger: logger}
}

// Mutate writes the mutated item JSON into workDir and returns its path.
// It operates on a detached copy of the item, so the caller's Item is
// never modified. Any failed asset result fails the whole item; nothing
// is written in that case.
func (m *Mutator) Mutate(item *stac.Item, acq *Acquisition, aoi orb.Polygon, clip bool, workDir string) (string, error) {
	for _, key := range sortedResultKeys(acq.Results) {
		if err := acq.Results[key].Err; err != nil {
			return "", fmt.Errorf("asset %s: %w", key, err)
		}
	}

	doc, err := item.ToMap()
	if err != nil {
		return "", err
	}

	if clip {
		if err := m.clipFootprint(item, doc, aoi); err != nil {
			return "", err
		}
	}

	assets := make(map[string]any, len(acq.Results))
	for key, res := range acq.Results {
		encoded, err := toJSONMap(res.Asset)
		if err != nil {
			return "", fmt.Errorf("encode asset %s: %w", key, err)
		}
		assets[key] = encoded
	}
	doc["assets"] = assets

	if len(acq.Properties) > 0 || len(acq.DropProperties) > 0 {
		props, ok := doc["properties"].(map[string]any)
		if !ok {
			props = make(map[string]any)
			doc["properties"] = props
		}
		for k, v := range acq.Properties {
			props[k] = v
		}
		for _, k := range acq.DropProperties {
			delete(props, k)
		}
	}

	path := filepath.Join(workDir, item.ID+".json")
	if err := writeJSON(path, doc); err != nil {
		return "", err
	}
	m.logger.Debug("item definition written", zap.String("item_id", item.ID), zap.String("path", path))
	return path, nil
}

// clipFootprint replaces the document's geometry with the intersection of
// the item footprint and the AOI, and recomputes the bbox from it.
func (m *Mutator) clipFootprint(item *stac.Item, doc map[string]any, aoi orb.Polygon) error {
	if item.Geometry == nil {
		return fmt.Errorf("item %s has no geometry to clip", item.ID)
	}
	intersection, err := geometry.Intersection(item.Geometry.Geometry(), aoi)
	if err != nil {
		return fmt.Errorf("clip footprint of %s: %w", item.ID, err)
	}
	if len(intersection) == 0 {
		return fmt.Errorf("item %s: %w", item.ID, ErrEmptyIntersection)
	}
	clipped := geometry.Simplify(intersection)
	encoded, err := toJSONMap(geojson.NewGeometry(clipped))
	if err != nil {
		return fmt.Errorf("encode clipped geometry of %s: %w", item.ID, err)
	}
	doc["geometry"] = encoded
	doc["bbox"] = geometry.BBox(clipped)
	return nil
}

// writeJSON persists the document atomically: the final path appears only
// once the content is complete.
func writeJSON(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal item document: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

func toJSONMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedResultKeys(results map[string]Result) []string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
