package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-continuum/pkg/pda"
)

var (
	derivePool   string
	deriveSource string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive the wrapper's program addresses",
	Long: `Derive the sequence state address and, when given, the pool authority
addresses of a pool and the delegate address of a source token account.

Example:
  continuum derive --pool FWP3JA31eauPJA6RJftReaus3T75rUZc4xVCgGpz7CQQ`,
	RunE: func(cmd *cobra.Command, args []string) error {
		programID, err := solana.PublicKeyFromBase58(cfg.Program.WrapperID)
		if err != nil {
			return fmt.Errorf("invalid program.wrapper_id: %w", err)
		}
		d := pda.NewDeriver(programID)

		rows := []pda.Derivation{}
		fifo, err := d.FifoState()
		if err != nil {
			return err
		}
		rows = append(rows, fifo)

		if derivePool != "" {
			poolID, err := solana.PublicKeyFromBase58(derivePool)
			if err != nil {
				return fmt.Errorf("invalid pool: %w", err)
			}
			addrs, err := d.ForPool(poolID)
			if err != nil {
				return err
			}
			rows = append(rows, addrs.PoolAuthorityState, addrs.PoolAuthority)
		}
		if deriveSource != "" {
			source, err := solana.PublicKeyFromBase58(deriveSource)
			if err != nil {
				return fmt.Errorf("invalid source: %w", err)
			}
			del, err := d.Delegate(source)
			if err != nil {
				return err
			}
			rows = append(rows, del)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PURPOSE\tADDRESS\tBUMP")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Purpose, r.Address, r.Bump)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(deriveCmd)
	deriveCmd.Flags().StringVar(&derivePool, "pool", "", "pool id")
	deriveCmd.Flags().StringVar(&deriveSource, "source", "", "source token account")
}
