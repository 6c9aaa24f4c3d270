package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"staytrack/internal/httpapi"
)

var httpAddr string

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Serve the JSON API and Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := httpAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-cmd.Context().Done():
		}

		log.Info().Msg("Shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		return <-errc
	},
}

func init() {
	httpCmd.Flags().StringVar(&httpAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(httpCmd)
}
