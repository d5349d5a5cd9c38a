package cmd

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eodatalab/stacfetch/internal/config"
	"github.com/eodatalab/stacfetch/internal/fetch"
	"github.com/eodatalab/stacfetch/internal/geometry"
	"github.com/eodatalab/stacfetch/internal/pipeline"
	"github.com/eodatalab/stacfetch/internal/source"
	"github.com/eodatalab/stacfetch/internal/stac"
)

type fetchOptions struct {
	source    string
	aoi       string
	dateStart string
	dateEnd   string
	clip      bool
	output    string
}

// newFetchCmd creates the 'fetch' subcommand: search a catalog for items
// intersecting the AOI and localize their rasters.
func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download (and optionally clip) catalog items for an AOI",
		Long: `Searches the selected data source for items intersecting the area of
interest within the date range, localizes every raster asset, and writes
one self-contained item definition per item under the output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "source dataset to use")
	cmd.Flags().StringVar(&opts.aoi, "aoi", "", "area of interest as GeoJSON in EPSG:4326")
	cmd.Flags().StringVar(&opts.dateStart, "date-start", "", "start date in ISO 8601 used to search input data")
	cmd.Flags().StringVar(&opts.dateEnd, "date-end", "", "end date in ISO 8601 used to search input data")
	cmd.Flags().BoolVar(&opts.clip, "clip", false, "clip rasters to the AOI")
	cmd.Flags().StringVar(&opts.output, "output", "", "output directory (overrides configuration)")
	for _, required := range []string{"source", "aoi", "date-start", "date-end"} {
		if err := cmd.MarkFlagRequired(required); err != nil {
			panic(fmt.Sprintf("mark flag %s required: %v", required, err))
		}
	}
	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if opts.output != "" {
		cfg.OutputDir = opts.output
	}
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx := cmd.Context()

	ds, err := source.Lookup(opts.source)
	if err != nil {
		return err
	}
	aoi, err := geometry.ParseAOI(opts.aoi)
	if err != nil {
		return err
	}

	logger.Info("running fetch",
		zap.String("source", ds.Name),
		zap.String("date_start", opts.dateStart),
		zap.String("date_end", opts.dateEnd),
		zap.Bool("clip", opts.clip),
	)

	var token string
	if ds.RequiresAuth {
		if err := cfg.ValidateProcessAPI(); err != nil {
			return err
		}
		token, err = fetch.Token(ctx, cfg.ProcessAPI.Auth)
		if err != nil {
			return err
		}
	}

	client := stac.NewClient(ds.Catalog, token, cfg.DownloadTimeout, logger)
	items, err := client.Search(ctx, stac.SearchParams{
		Collection: ds.Collection,
		DateStart:  opts.dateStart,
		DateEnd:    opts.dateEnd,
		Intersects: geojson.NewGeometry(aoi),
	})
	if err != nil {
		return err
	}
	logger.Info("search returned items", zap.Int("count", len(items)))

	backend, err := buildBackend(cfg, ds, token, logger)
	if err != nil {
		return err
	}
	driver := pipeline.NewDriver(backend, pipeline.NewMutator(logger), aoi, opts.clip, cfg.OutputDir, logger)
	paths, err := driver.Run(ctx, items)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

// buildBackend selects the acquisition strategy for the data source.
func buildBackend(cfg config.Config, ds source.DataSource, token string, logger *zap.Logger) (pipeline.Backend, error) {
	retry := fetch.NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay)
	switch ds.Kind {
	case source.RenderOnDemand:
		fetcher := fetch.NewProcessAPIFetcher(cfg.ProcessAPI.Endpoint, token, cfg.ProcessTimeout, retry, logger)
		return pipeline.NewRenderOnDemandBackend(fetcher, ds, logger), nil
	case source.AssetList:
		fetcher := fetch.NewAssetFetcher(cfg.DownloadTimeout, retry, logger)
		return pipeline.NewAssetListBackend(fetcher, cfg.PoolWidth, nil, logger), nil
	default:
		return nil, fmt.Errorf("data source %s has unsupported backend kind %d", ds.Name, ds.Kind)
	}
}
