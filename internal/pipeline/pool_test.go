package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/stac"
)

// fakeAssetFetcher localizes assets without touching the network. It can
// stagger completions and fail chosen keys.
type fakeAssetFetcher struct {
	mu         sync.Mutex
	failHrefs  map[string]error
	delays     map[string]time.Duration
	inFlight   atomic.Int32
	maxActive  atomic.Int32
	clipCalls  atomic.Int32
	fetchOrder []string
}

func (f *fakeAssetFetcher) localize(asset *stac.Asset, destPath string) (*stac.Asset, error) {
	active := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxActive.Load()
		if active <= prev || f.maxActive.CompareAndSwap(prev, active) {
			break
		}
	}

	f.mu.Lock()
	f.fetchOrder = append(f.fetchOrder, asset.Href)
	delay := f.delays[asset.Href]
	failure := f.failHrefs[asset.Href]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return nil, failure
	}
	out := asset.Clone()
	out.Href = destPath
	return out, nil
}

func (f *fakeAssetFetcher) Download(_ context.Context, asset *stac.Asset, destPath string) (*stac.Asset, error) {
	return f.localize(asset, destPath)
}

func (f *fakeAssetFetcher) DownloadAndClip(_ context.Context, asset *stac.Asset, destPath string, _ orb.Polygon) (*stac.Asset, error) {
	f.clipCalls.Add(1)
	return f.localize(asset, destPath)
}

func poolItem(t *testing.T, keys ...string) *stac.Item {
	t.Helper()
	doc := map[string]any{
		"type":       "Feature",
		"id":         "test-item",
		"geometry":   nil,
		"properties": map[string]any{"datetime": "2021-06-01T00:00:00Z"},
	}
	assets := make(map[string]any, len(keys))
	for _, key := range keys {
		assets[key] = map[string]any{
			"href": "https://data.example.com/" + key + ".tif",
			"type": "image/tiff; application=geotiff; profile=cloud-optimized",
		}
	}
	doc["assets"] = assets
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	item := &stac.Item{}
	require.NoError(t, json.Unmarshal(data, item))
	return item
}

func TestAssetListBackend_RejoinsUnorderedCompletions(t *testing.T) {
	t.Parallel()

	fetcher := &fakeAssetFetcher{
		delays: map[string]time.Duration{
			"https://data.example.com/a.tif": 30 * time.Millisecond,
			"https://data.example.com/b.tif": 5 * time.Millisecond,
		},
	}
	backend := NewAssetListBackend(fetcher, 2, nil, zap.NewNop())
	item := poolItem(t, "a", "b", "c", "d", "e")
	workDir := t.TempDir()

	acq, err := backend.Acquire(context.Background(), item, workDir, nil, false)
	require.NoError(t, err)
	require.Len(t, acq.Results, 5)

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		res, ok := acq.Results[key]
		require.True(t, ok, "missing result for %s", key)
		require.NoError(t, res.Err)
		require.Equal(t, filepath.Join(workDir, key+".tif"), res.Asset.Href)
	}
	// Width 2 with 5 assets: never more than 2 in flight.
	require.LessOrEqual(t, fetcher.maxActive.Load(), int32(2))
}

func TestAssetListBackend_SiblingsSurviveOneFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection reset")
	fetcher := &fakeAssetFetcher{
		failHrefs: map[string]error{"https://data.example.com/b.tif": wantErr},
	}
	backend := NewAssetListBackend(fetcher, 3, nil, zap.NewNop())
	item := poolItem(t, "a", "b", "c")

	acq, err := backend.Acquire(context.Background(), item, t.TempDir(), nil, false)
	require.NoError(t, err)

	require.NoError(t, acq.Results["a"].Err)
	require.NoError(t, acq.Results["c"].Err)
	require.ErrorIs(t, acq.Results["b"].Err, wantErr)
	require.NotNil(t, acq.Results["a"].Asset)
	require.NotNil(t, acq.Results["c"].Asset)
}

func TestAssetListBackend_ClipFlagSelectsClipPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeAssetFetcher{}
	backend := NewAssetListBackend(fetcher, 2, nil, zap.NewNop())
	item := poolItem(t, "a", "b")
	aoi := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	acq, err := backend.Acquire(context.Background(), item, t.TempDir(), aoi, true)
	require.NoError(t, err)
	require.Len(t, acq.Results, 2)
	require.Equal(t, int32(2), fetcher.clipCalls.Load())
}

func TestAssetListBackend_RenamesResultKeys(t *testing.T) {
	t.Parallel()

	fetcher := &fakeAssetFetcher{}
	renames := map[string]string{"cog": "data"}
	backend := NewAssetListBackend(fetcher, 1, renames, zap.NewNop())
	item := poolItem(t, "cog", "mask")

	acq, err := backend.Acquire(context.Background(), item, t.TempDir(), nil, false)
	require.NoError(t, err)
	require.Contains(t, acq.Results, "data")
	require.Contains(t, acq.Results, "mask")
	require.NotContains(t, acq.Results, "cog")
}

func TestAssetListBackend_RenameCollisionFailsItem(t *testing.T) {
	t.Parallel()

	fetcher := &fakeAssetFetcher{}
	// Both source keys map to "data"; one result would silently shadow
	// the other, so the whole item must fail instead.
	renames := map[string]string{"cog": "data", "tiff": "data"}
	backend := NewAssetListBackend(fetcher, 2, renames, zap.NewNop())
	item := poolItem(t, "cog", "tiff")

	_, err := backend.Acquire(context.Background(), item, t.TempDir(), nil, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "data")
}
