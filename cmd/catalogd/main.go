// Command catalogd runs the catalog publishing service: the query API server
// and the publication pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/config"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/catalogsrv/mirror"
	"github.com/datapub/datapub/internal/catalogsrv/publish"
	"github.com/datapub/datapub/internal/catalogsrv/server"
	"github.com/datapub/datapub/internal/common/logtrace"
)

var (
	cfgFile string

	publishCatalogs []string
	publishFull     bool
	publishSince    string
	publishPretty   bool
)

var rootCmd = &cobra.Command{
	Use:     "catalogd",
	Short:   "Catalog publishing and search service",
	Version: catcommon.ServerVersion,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog query API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(cfgFile); err != nil {
			return err
		}
		logtrace.InitLogger(false)
		return server.Serve()
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run a publication pass over the configured catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(cfgFile); err != nil {
			return err
		}
		logtrace.InitLogger(publishPretty)

		var since *time.Time
		if publishSince != "" {
			t, err := time.Parse(time.RFC3339, publishSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			since = &t
		}

		catalogs := publishCatalogs
		if len(catalogs) == 0 {
			catalogs = config.Config().Publish.Catalogs
		}
		ids := make([]catcommon.CatalogId, 0, len(catalogs))
		for _, c := range catalogs {
			ids = append(ids, catcommon.CatalogId(c))
		}

		db.Init()
		ctx := log.Logger.WithContext(context.Background())
		ctx, err := db.ConnCtx(ctx)
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer db.DB(ctx).Close(context.Background())

		mcfg := &config.Config().Mirror
		target := mirror.NewDataCiteTarget(mcfg)
		sync := mirror.NewSynchronizer(target, mcfg.MaxAttempts, mcfg.GetRetryDelayOrDefault())

		p := &publish.Pipeline{
			Catalogs: ids,
			Full:     publishFull,
			Since:    since,
			Mirror:   sync,
		}
		stats := p.Run(ctx)

		failed := false
		for _, s := range stats {
			line := fmt.Sprintf("%s: evaluated %d, published %d, retracted %d, synced %d",
				s.Catalog, s.Evaluated, s.Published, s.Retracted, s.Synced)
			if s.Errors > 0 || s.SyncFailed > 0 {
				color.Red("%s, errors %d, sync failures %d", line, s.Errors, s.SyncFailed)
			} else {
				color.Green("%s", line)
			}
			if s.Errors > 0 {
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("publication run completed with errors")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "catalogd.toml", "path to the config file")

	publishCmd.Flags().StringSliceVar(&publishCatalogs, "catalog", nil, "catalog to run (repeatable, default all configured)")
	publishCmd.Flags().BoolVar(&publishFull, "full", false, "re-evaluate every record, not only stale ones")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "only evaluate records modified at or after this RFC 3339 time")
	publishCmd.Flags().BoolVar(&publishPretty, "pretty", false, "human-readable log output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
