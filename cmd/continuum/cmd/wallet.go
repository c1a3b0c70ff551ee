package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	csolana "github.com/lugondev/go-continuum/internal/solana"
)

var walletOut string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet management commands",
	Long:  `Commands for managing the keypair that signs swaps and pays fees.`,
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new wallet",
	Long:  `Generate a new Solana keypair, optionally saving it in Solana CLI format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := csolana.NewWallet()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "New wallet generated!")
		fmt.Fprintf(out, "  Public Key:  %s\n", w.PublicKey())
		if walletOut != "" {
			if err := w.SaveToFile(walletOut); err != nil {
				return err
			}
			fmt.Fprintf(out, "  Saved to:    %s\n", walletOut)
			return nil
		}
		fmt.Fprintf(out, "  Private Key: %s\n", w.PrivateKey())
		fmt.Fprintln(out, "\nWARNING: Save your private key securely. Never share it with anyone!")
		return nil
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Check wallet balance",
	Long:  `Check the SOL balance of an address, or of the configured keypair.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		if rt.rpc == nil {
			return fmt.Errorf("balance needs an RPC ledger")
		}

		var pubKey solana.PublicKey
		if len(args) == 1 {
			if pubKey, err = solana.PublicKeyFromBase58(args[0]); err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
		} else {
			w, err := rt.requireWallet()
			if err != nil {
				return err
			}
			pubKey = w.PublicKey()
		}

		lamports, err := rt.rpc.GetBalance(cmd.Context(), pubKey)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\nBalance: %.9f SOL\n",
			pubKey, float64(lamports)/float64(solana.LAMPORTS_PER_SOL))
		return nil
	},
}

var walletAirdropCmd = &cobra.Command{
	Use:   "airdrop [sol]",
	Short: "Request an airdrop to the configured keypair (devnet/testnet)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sol float64
		if _, err := fmt.Sscanf(args[0], "%g", &sol); err != nil || sol <= 0 {
			return fmt.Errorf("invalid amount %q", args[0])
		}
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		if rt.rpc == nil {
			return fmt.Errorf("airdrop needs an RPC ledger")
		}
		w, err := rt.requireWallet()
		if err != nil {
			return err
		}
		sig, err := rt.rpc.RequestAirdrop(cmd.Context(), w.PublicKey(), uint64(sol*float64(solana.LAMPORTS_PER_SOL)))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Airdrop requested: %s\n", sig)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletAirdropCmd)

	walletNewCmd.Flags().StringVarP(&walletOut, "out", "o", "", "write the keypair to this file instead of printing it")
}
