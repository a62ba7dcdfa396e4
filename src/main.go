package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/mappichat/rasterh3/src/coverage"
	"github.com/mappichat/rasterh3/src/database"
	"github.com/mappichat/rasterh3/src/engine"
	"github.com/mappichat/rasterh3/src/fileio"
	"github.com/mappichat/rasterh3/src/logger"
	"github.com/mappichat/rasterh3/src/metrics"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/mappichat/rasterh3/src/raster"
	"github.com/mappichat/rasterh3/src/server"
	"github.com/mappichat/rasterh3/src/utils"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	workers    int

	options project_types.EngineOptions
	log     *zap.Logger
	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "rasterh3",
	Short:         "Convert rasters to h3 cells",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if options, err = fileio.LoadOptions(configPath); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			options.Log.Level = logLevel
		}
		if cmd.Flags().Changed("workers") {
			options.Workers = workers
		}
		log, logSink, err = logger.New(options.Log)
		return err
	},
}

// closeLog flushes the logger, also after a failed command.
func closeLog() {
	if log != nil {
		_ = log.Sync()
	}
	if logSink != nil {
		_ = logSink.Close()
	}
}

var (
	resolution int
	searchMode string
	noCompact  bool
	uncompact  bool
	outDir     string
	showBar    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [raster-json]",
	Short: "Convert a raster to h3 cells",
	Long:  "Convert a raster json file to a value to cells json file and a geojson file of the cell polygons",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		applyConvertFlags(cmd)

		log.Info("reading raster", zap.String("path", args[0]))
		r, err := fileio.ReadRaster(args[0])
		if err != nil {
			return err
		}
		mode, err := engine.ParseResolutionSearchMode(options.SearchMode)
		if err != nil {
			return err
		}

		opts := []engine.Option{
			engine.WithStrategy(engine.NewStrategy(options.Workers)),
			engine.WithLogger(log),
		}
		var bar *progressbar.ProgressBar
		if showBar {
			bar = progressbar.NewOptions(-1, progressbar.OptionShowCount(), progressbar.OptionSetDescription("converting"))
			opts = append(opts, engine.WithProgress(func(done int, total int) {
				bar.ChangeMax(total)
				_ = bar.Set(done)
			}))
		}

		conv := engine.NewConverter(r.Array, r.Nodata, r.Transform, r.AxisOrder, opts...)
		res, cells, err := engine.Convert(conv, engine.Params{
			Resolution: options.Resolution,
			SearchMode: mode,
			Compact:    options.Compact,
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}
		logSummary(res, cells)

		uncompactTo := -1
		if uncompact {
			uncompactTo = res
		}
		cellMap := fileio.ToCellMap(cells, uncompactTo)

		log.Info("writing output", zap.String("dir", outDir))
		if err := fileio.WriteCellMap(cellMap, path.Join(outDir, "cells.json")); err != nil {
			return err
		}
		if err := fileio.WriteGeoJson(cellMap, path.Join(outDir, "cells.geojson")); err != nil {
			return err
		}

		log.Info("done", zap.Duration("took", time.Since(startTime)))
		return nil
	},
}

func applyConvertFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("resolution") {
		options.Resolution = resolution
	}
	if cmd.Flags().Changed("search-mode") {
		options.SearchMode = searchMode
	}
	if cmd.Flags().Changed("no-compact") {
		options.Compact = !noCompact
	}
}

func logSummary(res int, cells map[raster.Float64Bits]*coverage.CellCoverage) {
	total := 0
	for value, cov := range cells {
		total += cov.Len()
		log.Debug("value converted", zap.Stringer("value", value), zap.Any("resolutions", cov.Resolutions()))
		metrics.ObserveCells(cov.Resolutions())
	}
	log.Info("converted", zap.Int("resolution", res), zap.Int("values", len(cells)), zap.Int("cells", total))
}

var resolutionCmd = &cobra.Command{
	Use:   "resolution [raster-json]",
	Short: "Print the h3 resolution matching the pixel size of a raster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConvertFlags(cmd)
		r, err := fileio.ReadRaster(args[0])
		if err != nil {
			return err
		}
		mode, err := engine.ParseResolutionSearchMode(options.SearchMode)
		if err != nil {
			return err
		}
		res, err := mode.NearestResolution(r.Array.Shape(), r.Transform, r.AxisOrder)
		if err != nil {
			return err
		}
		fmt.Println(res)
		return nil
	},
}

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over http",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			options.Server.Port = port
		}
		d := server.Deps{Options: options, Logger: log}

		if options.Server.RedisAddr != "" {
			rc := redis.NewClient(&redis.Options{Addr: options.Server.RedisAddr})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rc.Ping(ctx).Err(); err != nil {
				log.Warn("redis unavailable, caching disabled", zap.String("addr", options.Server.RedisAddr), zap.Error(err))
			} else {
				d.Cache = rc
			}
		}
		if options.Database.DSN != "" {
			db, err := database.SqlInitialize(options.Database.DSN)
			if err != nil {
				return err
			}
			d.DB = db
		}
		if options.Server.JwksURL != "" {
			jwks, err := utils.JwksCreatePublicKey(options.Server.JwksURL, time.Hour, log)
			if err != nil {
				return err
			}
			defer jwks.EndBackground()
			d.Keyfunc = jwks.Keyfunc
		}

		if options.Server.MetricsPort > 0 {
			go func() {
				addr := fmt.Sprintf(":%d", options.Server.MetricsPort)
				if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
					log.Error("metrics listener stopped", zap.Error(err))
				}
			}()
		}

		log.Info("serving", zap.Int("port", options.Server.Port))
		return server.RunServer(d)
	},
}

var dsn string

var dbwriteCmd = &cobra.Command{
	Use:   "dbwrite [cells-json] [dataset]",
	Short: "Write a cells json file to postgres",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		if cmd.Flags().Changed("dsn") {
			options.Database.DSN = dsn
		}
		if options.Database.DSN == "" {
			return errors.New("no database configured, set --dsn or RASTERH3_DSN")
		}

		db, err := database.SqlInitialize(options.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info("creating tables")
		if err := database.CreateTables(db); err != nil {
			return err
		}

		log.Info("reading cells", zap.String("path", args[0]))
		cellMap, err := fileio.ReadCellMap(args[0])
		if err != nil {
			return err
		}
		rows, err := database.CellRows(args[1], cellMap)
		if err != nil {
			return err
		}

		log.Info("populating cells", zap.Int("rows", len(rows)))
		if err := database.PopulateCells(db, rows, args[1], log); err != nil {
			return err
		}
		log.Info("done", zap.Duration("took", time.Since(startTime)))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to toml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of workers, 0 uses all cpus, 1 runs sequentially")

	for _, cmd := range []*cobra.Command{convertCmd, resolutionCmd} {
		cmd.Flags().StringVarP(&searchMode, "search-mode", "m", "smaller-than-pixel", "resolution search mode (min-diff, smaller-than-pixel)")
	}
	convertCmd.Flags().IntVarP(&resolution, "resolution", "r", -1, "h3 resolution, -1 selects it from the pixel size")
	convertCmd.Flags().BoolVar(&noCompact, "no-compact", false, "do not compact the cells")
	convertCmd.Flags().BoolVar(&uncompact, "uncompact", false, "write cells at the conversion resolution")
	convertCmd.Flags().StringVarP(&outDir, "out", "o", "./out/", "output directory")
	convertCmd.Flags().BoolVar(&showBar, "progress", false, "show a progress bar")

	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "serving port")
	dbwriteCmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")

	rootCmd.AddCommand(convertCmd, resolutionCmd, serveCmd, dbwriteCmd)
}

func run(args []string) error {
	defer closeLog()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
