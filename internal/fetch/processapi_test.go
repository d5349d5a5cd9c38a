package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/stac"
)

func testAOI() orb.Polygon {
	return orb.Polygon{{
		{14.0, 45.0}, {14.5, 45.0}, {14.5, 45.5}, {14.0, 45.5}, {14.0, 45.0},
	}}
}

func renderItem(id string) *stac.Item {
	return &stac.Item{
		ID:         id,
		Collection: "byoc-test",
		Properties: map[string]any{"datetime": "2021-06-01T10:30:00Z"},
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req, err := buildRequest(renderItem("item-1"), testAOI(), "byoc-test", "//VERSION=3 ...")
	require.NoError(t, err)

	require.Equal(t, []float64{14.0, 45.0, 14.5, 45.5}, req.Input.Bounds.BBox)
	require.Equal(t, "http://www.opengis.net/def/crs/EPSG/0/4326", req.Input.Bounds.Properties.CRS)

	require.Len(t, req.Input.Data, 1)
	require.Equal(t, "byoc-test", req.Input.Data[0].Type)
	require.Equal(t, "2021-06-01T10:30:00Z", req.Input.Data[0].DataFilter.TimeRange.From)
	require.Equal(t, "2021-06-01T10:30:00Z", req.Input.Data[0].DataFilter.TimeRange.To)

	require.Len(t, req.Output.Responses, 1)
	spec := req.Output.Responses[0]
	require.Equal(t, "default", spec.Identifier)
	require.Equal(t, "image/tiff", spec.Format.Type)
	require.Equal(t, "LZW", spec.Format.Parameters.Compression)
	require.True(t, spec.Format.Parameters.COG)
}

func TestBuildRequest_MissingDatetime(t *testing.T) {
	t.Parallel()

	item := &stac.Item{ID: "item-1", Properties: map[string]any{}}
	_, err := buildRequest(item, testAOI(), "byoc-test", "script")
	require.Error(t, err)
	require.Contains(t, err.Error(), "datetime")
}

func TestProcessAPIFetcher_NonOKIsImmediatelyFatal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"insufficient permissions"}`))
	}))
	defer srv.Close()

	fetcher := NewProcessAPIFetcher(srv.URL, "tok-123", 5*time.Second, quietPolicy(3), zap.NewNop())
	destDir := t.TempDir()

	_, err := fetcher.FetchItem(context.Background(), renderItem("item-1"), testAOI(), "byoc-test", "script", destDir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 403")
	require.Contains(t, err.Error(), "insufficient permissions")
	require.NotContains(t, err.Error(), "attempts")

	// A denied request must not be replayed.
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, "Bearer tok-123", gotAuth)

	var payload processRequest
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, "byoc-test", payload.Input.Data[0].Type)
	require.Equal(t, "script", payload.Evalscript)

	// Nothing may be left on disk for the failed item.
	_, statErr := os.Stat(filepath.Join(destDir, "data.tif"))
	require.True(t, os.IsNotExist(statErr))
}
