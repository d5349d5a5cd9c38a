// Package stac models catalog items and their assets as exchanged with
// STAC APIs, and provides the filtering and ordering rules the pipeline
// relies on.
package stac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Media types and extensions accepted by the fetch stage. Anything else is
// dropped from the item before scheduling.
var supportedRasterTypes = map[string]struct{}{
	"image/tiff; application=geotiff; profile=cloud-optimized": {},
	"tif":     {},
	"tiff":    {},
	"geotiff": {},
	"cog":     {},
}

// Asset is one named file belonging to an Item.
type Asset struct {
	Href      string         `json:"href"`
	Title     string         `json:"title,omitempty"`
	MediaType string         `json:"type,omitempty"`
	Roles     []string       `json:"roles,omitempty"`
	Extra     map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the asset object.
func (a Asset) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+4)
	for k, v := range a.Extra {
		out[k] = v
	}
	out["href"] = a.Href
	if a.Title != "" {
		out["title"] = a.Title
	}
	if a.MediaType != "" {
		out["type"] = a.MediaType
	}
	if len(a.Roles) > 0 {
		out["roles"] = a.Roles
	}
	return json.Marshal(out)
}

// UnmarshalJSON captures unknown fields into Extra.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal asset: %w", err)
	}
	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(v, dst)
	}
	if err := take("href", &a.Href); err != nil {
		return fmt.Errorf("asset href: %w", err)
	}
	if err := take("title", &a.Title); err != nil {
		return fmt.Errorf("asset title: %w", err)
	}
	if err := take("type", &a.MediaType); err != nil {
		return fmt.Errorf("asset type: %w", err)
	}
	if err := take("roles", &a.Roles); err != nil {
		return fmt.Errorf("asset roles: %w", err)
	}
	if len(raw) > 0 {
		a.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("asset field %s: %w", k, err)
			}
			a.Extra[k] = val
		}
	}
	return nil
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	out := &Asset{
		Href:      a.Href,
		Title:     a.Title,
		MediaType: a.MediaType,
	}
	if len(a.Roles) > 0 {
		out.Roles = append([]string(nil), a.Roles...)
	}
	if len(a.Extra) > 0 {
		out.Extra = make(map[string]any, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// IsRaster reports whether the asset carries a supported raster media
// type. When the declared type is absent it is inferred from the href
// extension.
func (a *Asset) IsRaster() bool {
	mediaType := a.MediaType
	if mediaType == "" {
		mediaType = strings.TrimPrefix(path.Ext(a.Href), ".")
	}
	_, ok := supportedRasterTypes[strings.ToLower(mediaType)]
	return ok
}

// Item is one cataloged satellite observation: its time, footprint, and
// named assets. Asset insertion order from the source document is kept so
// scheduling order is reproducible.
type Item struct {
	ID         string
	Collection string
	Geometry   *geojson.Geometry
	BBox       []float64
	Properties map[string]any
	Assets     map[string]*Asset
	Links      []map[string]any
	Extra      map[string]json.RawMessage

	assetOrder []string
}

// itemEnvelope is the raw wire shape of a STAC item feature.
type itemEnvelope struct {
	Type       string                     `json:"type"`
	ID         string                     `json:"id"`
	Collection string                     `json:"collection,omitempty"`
	Geometry   *geojson.Geometry          `json:"geometry"`
	BBox       []float64                  `json:"bbox,omitempty"`
	Properties map[string]any             `json:"properties"`
	Assets     map[string]json.RawMessage `json:"assets"`
	Links      []map[string]any           `json:"links,omitempty"`
}

// UnmarshalJSON decodes a STAC item feature, preserving unknown top-level
// fields and the document order of asset keys.
func (it *Item) UnmarshalJSON(data []byte) error {
	var env itemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal item fields: %w", err)
	}
	for _, known := range []string{"type", "id", "collection", "geometry", "bbox", "properties", "assets", "links"} {
		delete(raw, known)
	}

	it.ID = env.ID
	it.Collection = env.Collection
	it.Geometry = env.Geometry
	it.BBox = env.BBox
	it.Properties = env.Properties
	it.Links = env.Links
	it.Extra = raw

	it.Assets = make(map[string]*Asset, len(env.Assets))
	it.assetOrder = assetKeyOrder(data)
	for key, rawAsset := range env.Assets {
		asset := &Asset{}
		if err := json.Unmarshal(rawAsset, asset); err != nil {
			return fmt.Errorf("item %s asset %s: %w", env.ID, key, err)
		}
		it.Assets[key] = asset
	}
	// Keys missed by the order scan (malformed order data) still schedule.
	seen := make(map[string]struct{}, len(it.assetOrder))
	for _, k := range it.assetOrder {
		seen[k] = struct{}{}
	}
	var missing []string
	for k := range it.Assets {
		if _, ok := seen[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	it.assetOrder = append(it.assetOrder, missing...)
	return nil
}

// MarshalJSON re-emits the feature shape.
func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+8)
	for k, v := range it.Extra {
		out[k] = v
	}
	out["type"] = "Feature"
	out["id"] = it.ID
	if it.Collection != "" {
		out["collection"] = it.Collection
	}
	out["geometry"] = it.Geometry
	if it.BBox != nil {
		out["bbox"] = it.BBox
	}
	out["properties"] = it.Properties
	out["assets"] = it.Assets
	if it.Links != nil {
		out["links"] = it.Links
	}
	return json.Marshal(out)
}

// assetKeyOrder scans the raw document for the order of keys inside the
// top-level "assets" object.
func assetKeyOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	// Walk to the top-level assets key.
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := keyTok.(string)
		if key != "assets" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
			continue
		}
		open, err := dec.Token()
		if err != nil {
			return nil
		}
		if delim, ok := open.(json.Delim); !ok || delim != '{' {
			return nil
		}
		var order []string
		for dec.More() {
			assetKeyTok, err := dec.Token()
			if err != nil {
				return nil
			}
			assetKey, _ := assetKeyTok.(string)
			order = append(order, assetKey)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
		}
		return order
	}
	return nil
}

// Datetime parses the item acquisition timestamp from properties.
func (it *Item) Datetime() (time.Time, error) {
	raw, ok := it.Properties["datetime"]
	if !ok {
		return time.Time{}, fmt.Errorf("item %s has no datetime property", it.ID)
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("item %s datetime is not a string", it.ID)
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("item %s datetime: %w", it.ID, err)
	}
	return ts, nil
}

// RasterAssetKeys returns the keys of supported raster assets in document
// order. Non-raster assets are silently excluded.
func (it *Item) RasterAssetKeys() []string {
	keys := make([]string, 0, len(it.Assets))
	for _, key := range it.orderedKeys() {
		if asset := it.Assets[key]; asset != nil && asset.IsRaster() {
			keys = append(keys, key)
		}
	}
	return keys
}

func (it *Item) orderedKeys() []string {
	if len(it.assetOrder) == len(it.Assets) {
		return it.assetOrder
	}
	keys := make([]string, 0, len(it.Assets))
	for k := range it.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap round-trips the item through JSON into a detached generic
// document. Mutations of the result never touch the Item.
func (it *Item) ToMap() (map[string]any, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("serialize item %s: %w", it.ID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("deserialize item %s: %w", it.ID, err)
	}
	return doc, nil
}

// SortByDatetime orders items ascending by acquisition time. The sort is
// stable so equal timestamps keep their original order. Items without a
// parseable datetime sort first.
func SortByDatetime(items []*Item) []*Item {
	sorted := append([]*Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, erri := sorted[i].Datetime()
		tj, errj := sorted[j].Datetime()
		switch {
		case erri != nil && errj != nil:
			return false
		case erri != nil:
			return true
		case errj != nil:
			return false
		}
		return ti.Before(tj)
	})
	return sorted
}
