package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/config"
	"github.com/i474232898/weather-history/internal/weather"
)

var (
	downloadStart   string
	downloadEnd     string
	downloadName    string
	downloadLat     float64
	downloadLon     float64
	downloadOut     string
	downloadNoCache bool
	downloadQuiet   bool
	downloadPreview int
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download history once, fill gaps and write CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyDownloadFlags(cmd, cfg); err != nil {
			return err
		}

		svc, err := buildService(cfg, !downloadNoCache)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		datasets, err := svc.RefreshAll(ctx)
		if !downloadQuiet {
			for _, ds := range datasets {
				if ds == nil {
					continue
				}
				if werr := weather.WriteReport(os.Stdout, ds, downloadPreview); werr != nil {
					common.GetLogger(ctx).Sugar().Warnf("failed to write report: %v", werr)
				}
			}
		}
		return err
	},
}

func init() {
	registerDownloadFlags(downloadCmd)
}

func registerDownloadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&downloadStart, "start", "", "first day to download (YYYY-MM-DD)")
	f.StringVar(&downloadEnd, "end", "", "last day to download (YYYY-MM-DD)")
	f.StringVar(&downloadName, "name", "", "name of the location given by --lat/--lon")
	f.Float64Var(&downloadLat, "lat", 0, "latitude; replaces configured locations")
	f.Float64Var(&downloadLon, "lon", 0, "longitude; replaces configured locations")
	f.StringVarP(&downloadOut, "out", "o", "", "directory for CSV files")
	f.BoolVar(&downloadNoCache, "no-cache", false, "bypass the response cache")
	f.BoolVarP(&downloadQuiet, "quiet", "q", false, "do not print the report")
	f.IntVar(&downloadPreview, "preview", 5, "rows shown at each end of a series in the report")
}

func applyDownloadFlags(cmd *cobra.Command, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.StartDate = downloadStart
	}
	if flags.Changed("end") {
		cfg.EndDate = downloadEnd
	}
	if flags.Changed("out") {
		cfg.OutputDir = downloadOut
	}
	if flags.Changed("lat") != flags.Changed("lon") {
		return errors.New("--lat and --lon must be given together")
	}
	if flags.Changed("lat") {
		name := downloadName
		if name == "" {
			name = "custom"
		}
		cfg.Locations = []weather.Location{weather.NewLocation(name, downloadLat, downloadLon)}
	}
	return cfg.Validate()
}
