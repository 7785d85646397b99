package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/pkg/browser"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/fanout"
	"github.com/rendini/mashup/log"
	"github.com/rendini/mashup/metrics"
	"github.com/rendini/mashup/server"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		port        int
		openBrowser bool
		noMetrics   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GraphQL gateway",
		Long: `Start the HTTP gateway.

Routes:
  /graphql      GraphQL endpoint (GET and POST)
  /graphiql     interactive explorer
  /sitemap.xml  synthesized sitemap
  /metrics      Prometheus metrics
  /healthz      liveness probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *metrics.Metrics
			if !noMetrics {
				m = metrics.New()
			}

			var observer fanout.Observer
			if m != nil {
				observer = m
			}
			gw, cfg, err := o.gateway(observer)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			srv, err := server.NewServer(server.Options{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				Metrics:     m,
				Debug:       cfg.Debug,
			}, gw)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("Starting gateway",
				"port", cfg.Server.Port,
				"backends", lo.Map(gw.Backends(), func(b backend.Backend, _ int) string { return b.Name }),
			)

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(srv.Start)
			eg.Go(func() error {
				<-ctx.Done()
				log.Info("Shutting down gateway")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if openBrowser {
				u := fmt.Sprintf("http://localhost:%d/graphiql", cfg.Server.Port)
				if err := browser.OpenURL(u); err != nil {
					log.Warn("Failed to open browser", "url", u, "error", err)
				}
			}

			if err := eg.Wait(); err != nil {
				return failure.Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config, 3000)")
	cmd.Flags().BoolVar(&openBrowser, "open", false, "Open the GraphQL explorer in a browser")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Disable the /metrics endpoint")
	return cmd
}
