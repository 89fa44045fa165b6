package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/api"
	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/indexer"
	"github.com/chatvault/chatvault/internal/query"
	"github.com/chatvault/chatvault/internal/scheduler"
	"github.com/chatvault/chatvault/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API with background index maintenance",
	Long: `serve starts the HTTP search API and keeps the index synchronized
in the background: a full catch-up runs at startup without blocking
the serving path, then an incremental pass runs on a fixed interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srcPath, err := requireSourceDB()
		if err != nil {
			return err
		}

		src, err := source.Open(srcPath)
		if err != nil {
			return err
		}
		defer src.Close()

		idx, err := index.Open(cfg.IndexDBPath())
		if err != nil {
			return err
		}
		defer idx.Close()

		ix := indexer.New(src, idx).WithLogger(logger)
		sched := scheduler.New(ix).
			WithInterval(cfg.TickInterval()).
			WithBatchSize(cfg.Index.BatchSize).
			WithLogger(logger)
		if err := sched.Start(); err != nil {
			return err
		}

		engine := query.NewEngine(idx, nil, nil).
			WithScanCap(cfg.Index.ScanCap).
			WithLogger(logger)
		server := api.NewServer(cfg.Server.APIPort, engine, idx, sched, logger)

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.Start()
		}()

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-cmd.Context().Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-sched.Stop().Done()
		return cmd.Context().Err()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
