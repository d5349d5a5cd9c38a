// Package raster wraps GDAL (via godal) for the raster operations the
// pipeline needs: opening remote COGs with windowed reads, clipping to an
// AOI, and re-deriving projection metadata for mutated items.
package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var registerOnce sync.Once

// register loads GDAL drivers exactly once per process.
func register() {
	registerOnce.Do(godal.RegisterAll)
}

// Metadata captures the projection facts re-derived from a written raster.
type Metadata struct {
	Width     int
	Height    int
	Transform [6]float64
	EPSG      int
}

// Shape returns the (height, width) pair in STAC proj:shape order.
func (m Metadata) Shape() []int {
	return []int{m.Height, m.Width}
}

// TransformSlice returns the affine transform as a slice for JSON output.
func (m Metadata) TransformSlice() []float64 {
	return m.Transform[:]
}

// GDALPath maps an asset href to something GDAL can open. Remote http(s)
// hrefs go through /vsicurl/ so only the requested windows are read.
func GDALPath(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return "/vsicurl/" + href
	}
	return href
}

// Clip crops the raster at srcHref to the AOI and writes the result to
// dstPath as an LZW GeoTIFF. The AOI is given in WGS84 and is reprojected
// into the raster's CRS by the warper; pixels touched by the AOI at all
// are retained. A source nodata value is preserved; none is injected
// otherwise.
func Clip(srcHref, dstPath string, aoi orb.Polygon) (Metadata, error) {
	register()

	src, err := godal.Open(GDALPath(srcHref), godal.RasterOnly())
	if err != nil {
		return Metadata{}, fmt.Errorf("open raster %s: %w", srcHref, err)
	}
	defer src.Close() //nolint:errcheck // read-only dataset

	cutline, err := writeCutline(dstPath, aoi)
	if err != nil {
		return Metadata{}, err
	}
	defer os.Remove(cutline) //nolint:errcheck // scratch file

	switches := []string{
		"-of", "GTiff",
		"-cutline", cutline,
		"-crop_to_cutline",
		"-wo", "CUTLINE_ALL_TOUCHED=TRUE",
		"-co", "COMPRESS=LZW",
	}
	dst, err := src.Warp(dstPath, switches)
	if err != nil {
		return Metadata{}, fmt.Errorf("clip raster %s: %w", srcHref, err)
	}
	meta, metaErr := readMetadata(dst)
	if err := dst.Close(); err != nil {
		return Metadata{}, fmt.Errorf("close clipped raster %s: %w", dstPath, err)
	}
	if metaErr != nil {
		return Metadata{}, metaErr
	}
	return meta, nil
}

// ReadMetadata opens a raster just long enough to derive its metadata.
func ReadMetadata(path string) (Metadata, error) {
	register()

	ds, err := godal.Open(GDALPath(path), godal.RasterOnly())
	if err != nil {
		return Metadata{}, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer ds.Close() //nolint:errcheck // read-only dataset
	return readMetadata(ds)
}

// EnsureNoData assigns value as the nodata sentinel on every band that
// does not already declare one.
func EnsureNoData(path string, value float64) error {
	register()

	ds, err := godal.Open(path, godal.RasterOnly(), godal.Update())
	if err != nil {
		return fmt.Errorf("open raster %s for update: %w", path, err)
	}
	for _, band := range ds.Bands() {
		if _, ok := band.NoData(); ok {
			continue
		}
		if err := band.SetNoData(value); err != nil {
			ds.Close() //nolint:errcheck // already failing
			return fmt.Errorf("set nodata on %s: %w", path, err)
		}
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("close raster %s: %w", path, err)
	}
	return nil
}

func readMetadata(ds *godal.Dataset) (Metadata, error) {
	structure := ds.Structure()
	transform, err := ds.GeoTransform()
	if err != nil {
		return Metadata{}, fmt.Errorf("read geotransform: %w", err)
	}
	meta := Metadata{
		Width:     structure.SizeX,
		Height:    structure.SizeY,
		Transform: transform,
	}
	if sr := ds.SpatialRef(); sr != nil {
		meta.EPSG = epsgCode(sr)
	}
	return meta, nil
}

func epsgCode(sr *godal.SpatialRef) int {
	code, ok := sr.AttrValue("AUTHORITY", 1)
	if !ok {
		return 0
	}
	epsg, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return epsg
}

// writeCutline persists the AOI next to the destination raster so the
// warper can consume it. The caller removes the file.
func writeCutline(dstPath string, aoi orb.Polygon) (string, error) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(aoi))
	data, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode cutline: %w", err)
	}
	cutline := cutlinePath(dstPath)
	if err := os.WriteFile(cutline, data, 0o600); err != nil {
		return "", fmt.Errorf("write cutline %s: %w", cutline, err)
	}
	return cutline, nil
}

func cutlinePath(dstPath string) string {
	base := strings.TrimSuffix(filepath.Base(dstPath), filepath.Ext(dstPath))
	return filepath.Join(filepath.Dir(dstPath), base+".cutline.geojson")
}
