package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	ds, err := Lookup("sentinel-2-l2a")
	require.NoError(t, err)
	require.Equal(t, AssetList, ds.Kind)
	require.False(t, ds.RequiresAuth)
	require.Empty(t, ds.Evalscript)

	ds, err = Lookup("clms-corine-lc")
	require.NoError(t, err)
	require.Equal(t, RenderOnDemand, ds.Kind)
	require.True(t, ds.RequiresAuth)
	require.NotEmpty(t, ds.Evalscript)
	require.NotEmpty(t, ds.Classes)
	require.Contains(t, ds.Collection, "byoc-")
}

func TestLookup_UnknownListsSupported(t *testing.T) {
	t.Parallel()

	_, err := Lookup("landsat-9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "landsat-9")
	require.Contains(t, err.Error(), "sentinel-2-l2a")
}

func TestNamesSorted(t *testing.T) {
	t.Parallel()

	names := Names()
	require.Len(t, names, 6)
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}

func TestRenderSourcesCarryLegends(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		ds, err := Lookup(name)
		require.NoError(t, err)
		if ds.Kind != RenderOnDemand {
			continue
		}
		require.NotEmpty(t, ds.Evalscript, "source %s", name)
		require.NotEmpty(t, ds.Classes, "source %s", name)
		for _, class := range ds.Classes {
			require.NotEmpty(t, class.Description, "source %s value %d", name, class.Value)
		}
	}
}
