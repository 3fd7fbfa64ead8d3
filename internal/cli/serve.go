package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/intake/internal/version"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox worker",
		Long: `Run the HTTP API and the outbox worker until SIGINT or SIGTERM.

On shutdown the listener stops accepting requests, in-flight requests get
server.shutdown_timeout to finish, and the worker stops after its current task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := &http.Server{
				Addr:              a.Config.Server.Addr,
				Handler:           a.Server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			a.Logger.Info("intake starting",
				zap.String("version", version.String()),
				zap.String("addr", srv.Addr),
				zap.Bool("payments_disabled", a.Config.Payments.Disabled))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.Worker.Run(gctx)
			})
			g.Go(func() error {
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			a.Logger.Info("intake stopped", zap.Error(err))
			return err
		},
	}
}
