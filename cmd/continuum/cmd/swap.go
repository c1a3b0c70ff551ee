package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-continuum/internal/submit"
)

var (
	swapPool        string
	swapSource      string
	swapDestination string
	swapAmountIn    uint64
	swapMinOut      uint64
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Submit one sequenced swap",
	Long: `Approve the delegate for exactly --amount-in and submit the swap through
the wrapper at the next sequence, retrying with a fresh sequence on
conflicts.

Example:
  continuum swap --pool FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ \
    --source <token account> --destination <token account> \
    --amount-in 100000000 --min-out 90000000
  continuum --simulate swap --amount-in 100000000 --min-out 90000000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		w, err := rt.requireWallet()
		if err != nil {
			return err
		}

		if swapPool == "" {
			pools := rt.pools.List()
			if len(pools) != 1 {
				return fmt.Errorf("--pool is required when %d pools are configured", len(pools))
			}
			swapPool = pools[0].ID.String()
		}
		p, err := rt.pool(swapPool)
		if err != nil {
			return err
		}

		req := submit.SwapRequest{
			PoolID:       p.ID,
			User:         w.PrivateKey(),
			AmountIn:     swapAmountIn,
			MinAmountOut: swapMinOut,
		}
		switch {
		case swapSource != "" && swapDestination != "":
			if req.Source, err = solana.PublicKeyFromBase58(swapSource); err != nil {
				return fmt.Errorf("invalid source: %w", err)
			}
			if req.Destination, err = solana.PublicKeyFromBase58(swapDestination); err != nil {
				return fmt.Errorf("invalid destination: %w", err)
			}
		case rt.sim != nil:
			req.Source = solana.NewWallet().PublicKey()
			req.Destination = solana.NewWallet().PublicKey()
			rt.sim.AddTokenAccount(req.Source, p.CoinMint, w.PublicKey(), swapAmountIn)
			rt.sim.AddTokenAccount(req.Destination, p.PcMint, w.PublicKey(), 0)
		default:
			return fmt.Errorf("--source and --destination are required")
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

		receipt, err := s.SubmitSwap(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Swap accepted")
		fmt.Fprintf(out, "  ID:        %s\n", receipt.ID)
		fmt.Fprintf(out, "  Sequence:  %d\n", receipt.Sequence)
		fmt.Fprintf(out, "  Signature: %s\n", receipt.Signature)
		fmt.Fprintf(out, "  Slot:      %d\n", receipt.Slot)
		fmt.Fprintf(out, "  Attempts:  %d\n", receipt.Attempts)
		if rt.sim != nil {
			if dst, ok := rt.sim.TokenAccount(req.Destination); ok {
				fmt.Fprintf(out, "  Received:  %d\n", dst.Amount)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&swapPool, "pool", "", "pool id (defaults to the only configured pool)")
	swapCmd.Flags().StringVar(&swapSource, "source", "", "source token account owned by the keypair")
	swapCmd.Flags().StringVar(&swapDestination, "destination", "", "destination token account")
	swapCmd.Flags().Uint64Var(&swapAmountIn, "amount-in", 0, "input amount in base units")
	swapCmd.Flags().Uint64Var(&swapMinOut, "min-out", 0, "minimum output amount in base units")

	if err := swapCmd.MarkFlagRequired("amount-in"); err != nil {
		panic(err)
	}
}
