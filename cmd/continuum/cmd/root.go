package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lugondev/go-continuum/internal/common"
	"github.com/lugondev/go-continuum/internal/config"
)

var (
	cfgFile  string
	simulate bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "continuum",
	Short: "Continuum CLI - sequenced swaps through the continuum wrapper",
	Long: `Continuum submits AMM swaps through the on-chain sequencing wrapper.

It provides commands for:
- Inspecting discriminators and derived addresses
- Reading and proposing the global sequence
- Pool authority setup and status
- Submitting swaps and running the relayer service`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.continuum.yaml)")
	rootCmd.PersistentFlags().String("rpc", "", "Solana RPC endpoint (overrides solana.rpc)")
	rootCmd.PersistentFlags().String("network", "", "Solana network (mainnet, devnet, testnet, localnet)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().String("keypair", "", "keypair file or base58 private key (overrides relayer.keypair)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "run against an in-memory ledger instead of RPC")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("rpc") {
		loaded.Solana.RPC, _ = flags.GetString("rpc")
	}
	if flags.Changed("network") {
		loaded.Solana.Network, _ = flags.GetString("network")
		if !flags.Changed("rpc") {
			loaded.Solana.RPC = ""
		}
	}
	if flags.Changed("keypair") {
		loaded.Relayer.Keypair, _ = flags.GetString("keypair")
	}
	if flags.Changed("log-level") {
		loaded.Log.Level, _ = flags.GetString("log-level")
	}

	l, err := common.NewLogger(common.LogOptions{
		Level:     loaded.Log.Level,
		Format:    loaded.Log.Format,
		File:      loaded.Log.File,
		MaxSizeMB: loaded.Log.MaxSizeMB,
		Compress:  loaded.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg = loaded
	logger = l
	return nil
}

func keypairPath() string {
	return cfg.Relayer.Keypair
}
