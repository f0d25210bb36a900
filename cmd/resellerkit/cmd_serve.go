package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benithors/resellerkit/internal/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(cfg *cliConfig) *cobra.Command {
	var addr string
	var noPromo bool
	var warm bool
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pricing and verification over HTTP for the order workflow",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.services(cmd); err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.env.ListenAddr
			}
			promo := cfg.env.PromoPricing && !noPromo

			if warm {
				// A failed warm-up is not fatal; the first request retries.
				if _, err := cfg.pricing.TLDPricing(cmd.Context(), nil, promo); err != nil {
					cfg.log.Warn("pricing warm-up failed", zap.Error(err))
				}
			}

			// The switch is fixed for the life of the process; restart to change it.
			h := handler.New(cfg.pricing, cfg.verifier, func() bool { return promo }, cfg.log)
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler.NewRouter(h, cfg.registry),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				cfg.log.Info("listening", zap.String("addr", addr), zap.Bool("promo_pricing", promo))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				cfg.log.Info("shutting down")
				return srv.Shutdown(sctx)
			})

			if err := g.Wait(); err != nil {
				return runtimeErr(cmd, fmt.Errorf("server: %w", err))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (overrides RESELLERKIT_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&noPromo, "no-promo", false, "Disable promotional pricing")
	cmd.Flags().BoolVar(&warm, "warm", true, "Fetch pricing tables before accepting requests")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")

	return cmd
}
