package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/metrics"
	"github.com/eodatalab/stacfetch/internal/raster"
	"github.com/eodatalab/stacfetch/internal/stac"
)

const (
	// boundsCRS is the only CRS the process API accepts for input bounds.
	boundsCRS = "http://www.opengis.net/def/crs/EPSG/0/4326"
	// renderNoData is assigned to rendered outputs lacking a nodata value
	// so downstream masking has a defined sentinel.
	renderNoData = 0
	// DataAssetKey names the single asset a rendered item produces.
	DataAssetKey = "data"
)

// ProcessAPIFetcher acquires imagery from a render-on-demand service: one
// request per catalog item, yielding one composited COG.
type ProcessAPIFetcher struct {
	endpoint string
	token    string
	client   *http.Client
	retry    *RetryPolicy
	logger   *zap.Logger
}

// NewProcessAPIFetcher builds a fetcher bound to one endpoint and one
// bearer token. The token is obtained once per pipeline run.
func NewProcessAPIFetcher(endpoint, token string, timeout time.Duration, retry *RetryPolicy, logger *zap.Logger) *ProcessAPIFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessAPIFetcher{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		logger:   logger,
	}
}

type processBounds struct {
	BBox       []float64 `json:"bbox"`
	Properties struct {
		CRS string `json:"crs"`
	} `json:"properties"`
}

type processTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processData struct {
	Type       string `json:"type"`
	DataFilter struct {
		TimeRange processTimeRange `json:"timeRange"`
	} `json:"dataFilter"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processResponseFormat struct {
	Type       string `json:"type"`
	Parameters struct {
		Compression string `json:"compression"`
		COG         bool   `json:"cog"`
	} `json:"parameters"`
}

type processResponseSpec struct {
	Identifier string                `json:"identifier"`
	Format     processResponseFormat `json:"format"`
}

type processRequest struct {
	Input      processInput `json:"input"`
	Evalscript string       `json:"evalscript"`
	Output     struct {
		Responses []processResponseSpec `json:"responses"`
	} `json:"output"`
}

// buildRequest synthesizes the wire payload for one item: the AOI bounding
// box as the spatial filter (the API only accepts rectangular bounds) and
// the exact item timestamp as both ends of the temporal filter.
func buildRequest(item *stac.Item, aoi orb.Polygon, collectionID, evalscript string) (*processRequest, error) {
	ts, err := item.Datetime()
	if err != nil {
		return nil, err
	}
	bound := aoi.Bound()

	req := &processRequest{Evalscript: evalscript}
	req.Input.Bounds.BBox = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	req.Input.Bounds.Properties.CRS = boundsCRS

	data := processData{Type: collectionID}
	stamp := ts.Format(time.RFC3339)
	data.DataFilter.TimeRange = processTimeRange{From: stamp, To: stamp}
	req.Input.Data = []processData{data}

	spec := processResponseSpec{Identifier: "default"}
	spec.Format.Type = "image/tiff"
	spec.Format.Parameters.Compression = "LZW"
	spec.Format.Parameters.COG = true
	req.Output.Responses = []processResponseSpec{spec}
	return req, nil
}

// FetchItem renders the item and writes the returned COG to
// destDir/data.tif. A non-200 response is terminal for the item; its
// status code and body text are embedded in the returned error, and no
// file is written.
func (f *ProcessAPIFetcher) FetchItem(ctx context.Context, item *stac.Item, aoi orb.Polygon, collectionID, evalscript, destDir string) (string, error) {
	payload, err := buildRequest(item, aoi, collectionID, evalscript)
	if err != nil {
		return "", fmt.Errorf("build process request for %s: %w", item.ID, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode process request for %s: %w", item.ID, err)
	}

	destPath := filepath.Join(destDir, DataAssetKey+".tif")
	err = f.retry.Do(ctx, func() error {
		return f.renderOnce(ctx, body, destPath)
	})
	if err != nil {
		metrics.AssetsFailed.Inc()
		return "", fmt.Errorf("render item %s: %w", item.ID, err)
	}
	metrics.AssetsFetched.Inc()
	f.logger.Debug("item rendered", zap.String("item_id", item.ID), zap.String("dest", destPath))
	return destPath, nil
}

func (f *ProcessAPIFetcher) renderOnce(ctx context.Context, body []byte, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return Terminal(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(text))))
	}

	// The COG is small enough to hold in memory; no temp file needed.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	metrics.BytesDownloaded.Add(float64(len(data)))
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	if err := raster.EnsureNoData(destPath, renderNoData); err != nil {
		return fmt.Errorf("assign nodata: %w", err)
	}
	return nil
}
