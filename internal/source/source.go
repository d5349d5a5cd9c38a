// Package source defines the data sources the pipeline can acquire from
// and the backend variant each one speaks: browsable STAC asset lists, or
// a render-on-demand process API.
package source

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog endpoints for the supported providers.
const (
	EODHCatalogEndpoint = "https://staging.eodatahub.org.uk/api/catalogue/stac"
	CEDACatalogEndpoint = "https://api.stac.ceda.ac.uk"
	SHCatalogEndpoint   = "https://creodias.sentinel-hub.com/api/v1/catalog/1.0.0"
)

// EPSG code for WGS84, the CRS of every AOI and of rendered outputs.
const WGS84 = 4326

// Kind tags the acquisition strategy of a DataSource.
type Kind int

const (
	// AssetList sources expose browsable per-asset files fetched directly.
	AssetList Kind = iota
	// RenderOnDemand sources composite one raster per item on request.
	RenderOnDemand
)

// Class is one entry of a classification legend attached to rendered
// outputs.
type Class struct {
	Value       int    `json:"value"`
	Description string `json:"description"`
	ColorHint   string `json:"color-hint,omitempty"`
}

// DataSource describes one acquirable dataset. Immutable; constructed
// once and looked up by name.
type DataSource struct {
	Name       string
	Catalog    string
	Collection string
	EPSG       int
	Kind       Kind

	// RequiresAuth marks catalogs that need a bearer token for search.
	RequiresAuth bool

	// Rendering details, set only for RenderOnDemand sources.
	Evalscript string
	Classes    []Class
}

var registry = map[string]DataSource{
	"sentinel-2-l1c": {
		Name:       "sentinel-2-l1c",
		Catalog:    EODHCatalogEndpoint + "/catalogs/supported-datasets/earth-search-aws",
		Collection: "sentinel-2-l1c",
		EPSG:       WGS84,
		Kind:       AssetList,
	},
	"sentinel-2-l2a": {
		Name:       "sentinel-2-l2a",
		Catalog:    EODHCatalogEndpoint + "/catalogs/supported-datasets/earth-search-aws",
		Collection: "sentinel-2-l2a",
		EPSG:       WGS84,
		Kind:       AssetList,
	},
	"sentinel-2-l2a-ard": {
		Name:       "sentinel-2-l2a-ard",
		Catalog:    EODHCatalogEndpoint + "/catalogs/supported-datasets/ceda-stac-catalogue",
		Collection: "sentinel2_ard",
		EPSG:       WGS84,
		Kind:       AssetList,
	},
	"esa-lccci-glcm": {
		Name:       "esa-lccci-glcm",
		Catalog:    CEDACatalogEndpoint,
		Collection: "land_cover",
		EPSG:       WGS84,
		Kind:       AssetList,
	},
	"clms-corine-lc": {
		Name:         "clms-corine-lc",
		Catalog:      SHCatalogEndpoint,
		Collection:   "byoc-cbdba844-f86d-41dc-95ad-b3f7f12535e9",
		EPSG:         WGS84,
		Kind:         RenderOnDemand,
		RequiresAuth: true,
		Evalscript:   EvalscriptCorineLC,
		Classes:      ClassesCorineLC,
	},
	"clms-water-bodies": {
		Name:         "clms-water-bodies",
		Catalog:      SHCatalogEndpoint,
		Collection:   "byoc-62bf6f6a-c584-48a8-a739-0bc60efee54a",
		EPSG:         WGS84,
		Kind:         RenderOnDemand,
		RequiresAuth: true,
		Evalscript:   EvalscriptWaterBodies,
		Classes:      ClassesWaterBodies,
	},
}

// Lookup resolves a DataSource by its local name. Unknown names are a
// hard configuration error.
func Lookup(name string) (DataSource, error) {
	ds, ok := registry[name]
	if !ok {
		return DataSource{}, fmt.Errorf("unknown data source %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return ds, nil
}

// Names lists the registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
