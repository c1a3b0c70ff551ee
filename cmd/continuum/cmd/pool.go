package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-continuum/internal/raydium"
	csolana "github.com/lugondev/go-continuum/internal/solana"
)

var poolCurrentAuthority string

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Pool authority commands",
	Long:  `Commands for putting a pool under wrapper control and inspecting it.`,
}

var poolInitCmd = &cobra.Command{
	Use:   "init [pool-id]",
	Short: "Create the pool authority record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := rt.requireWallet(); err != nil {
			return err
		}
		p, err := rt.pool(args[0])
		if err != nil {
			return err
		}
		sig, err := rt.lifecycle().Initialize(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pool authority initialized: %s\n", sig)
		return nil
	},
}

var poolTransferCmd = &cobra.Command{
	Use:   "transfer [pool-id]",
	Short: "Hand vault ownership to the pool authority",
	Long: `Transfer ownership of both pool vaults to the pool authority address.
The current vault owner signs; it defaults to the configured keypair.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		w, err := rt.requireWallet()
		if err != nil {
			return err
		}
		if poolCurrentAuthority != "" {
			if w, err = csolana.LoadWallet(poolCurrentAuthority); err != nil {
				return err
			}
		}
		p, err := rt.pool(args[0])
		if err != nil {
			return err
		}
		sig, err := rt.lifecycle().TransferAuthority(cmd.Context(), p, w.PrivateKey())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Vault authority transferred: %s\n", sig)
		return nil
	},
}

var poolStatusCmd = &cobra.Command{
	Use:   "status [pool-id]",
	Short: "Show the protection status of one pool or of every configured pool",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}

		pools := rt.pools.List()
		if len(args) == 1 {
			p, err := rt.pool(args[0])
			if err != nil {
				return err
			}
			pools = []*raydium.Pool{p}
		}

		lc := rt.lifecycle()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POOL\tNAME\tSTATE\tPROTECTED\tPOOL AUTHORITY")
		for _, p := range pools {
			status, err := lc.Status(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", p.ID, p.Name, status.State, status.ProtectionActive, status.PoolAuthority)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolInitCmd)
	poolCmd.AddCommand(poolStatusCmd)
	poolCmd.AddCommand(poolTransferCmd)

	poolTransferCmd.Flags().StringVar(&poolCurrentAuthority, "current-authority", "", "keypair of the current vault owner")
}
