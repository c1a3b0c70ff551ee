package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Read the global sequence and the next proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		s, err := rt.submitter()
		if err != nil {
			return err
		}

		current, err := s.Sequence().Read(cmd.Context())
		if err != nil {
			return err
		}
		next, err := s.Sequence().ProposeNext(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("sequence read", zap.Uint64("current", current))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sequence state: %s\n", s.Sequence().Address())
		fmt.Fprintf(out, "  Current:      %d\n", current)
		fmt.Fprintf(out, "  Next:         %d\n", next)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the global sequence state (once per deployment)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		w, err := rt.requireWallet()
		if err != nil {
			return err
		}
		s, err := rt.submitter()
		if err != nil {
			return err
		}

		sig, err := s.Initialize(cmd.Context(), w.PrivateKey())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sequence state initialized: %s\n", sig)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sequenceCmd)
	rootCmd.AddCommand(initCmd)
}
