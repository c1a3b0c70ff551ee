package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/metrics"
	"github.com/lugondev/go-continuum/internal/relayer"
	"github.com/lugondev/go-continuum/internal/sequence"
)

var relayerCmd = &cobra.Command{
	Use:   "relayer",
	Short: "Run the relayer HTTP service",
	Long: `Serve /health, /swap, /pools and /metrics on relayer.listen. Swaps are
signed by the configured keypair and released in sequence order while a
monitor follows the ledger's sequence every relayer.poll_interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		w, err := rt.requireWallet()
		if err != nil {
			return err
		}

		svc, err := newServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		s, err := rt.submitter()
		if err != nil {
			return err
		}
		s.WithGuard(svc.guard).WithStore(svc.repo.Submissions()).WithMetrics(svc.metrics)

		tracker, err := sequence.NewTracker(ctx, svc.repo.Checkpoints(), s.Sequence().Address().String(), logger.Named("tracker"))
		if err != nil {
			return err
		}

		srv, err := relayer.NewServer(cfg.Relayer, relayer.Deps{
			Submitter:      s,
			Tracker:        tracker,
			Pools:          rt.pools,
			Lifecycle:      rt.lifecycle(),
			Owner:          w.PrivateKey(),
			Metrics:        svc.metrics,
			MetricsHandler: metrics.HandlerFor(svc.metrics),
			Logger:         logger.Named("relayer"),
		})
		if err != nil {
			return err
		}

		logger.Info("starting relayer",
			zap.String("listen", cfg.Relayer.Listen),
			zap.Stringer("relayer", w.PublicKey()),
			zap.Int("pools", rt.pools.Len()),
			zap.Bool("simulate", simulate))
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("relayer: %w", err)
		}
		logger.Info("relayer stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relayerCmd)
}
