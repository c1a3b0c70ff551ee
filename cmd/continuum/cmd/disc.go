package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-continuum/pkg/discriminator"
)

var discCmd = &cobra.Command{
	Use:   "disc",
	Short: "Print the discriminator registry",
	Long: `Print every registered discriminator with its canonical namespace and
name, recomputing each one to confirm the pinned value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tPREIMAGE\tHEX\tBASE58\tOK")
		for _, e := range discriminator.Entries() {
			ok := discriminator.Compute(e.Namespace, e.Name).Equals(e.Discriminator)
			fmt.Fprintf(tw, "%s\t%s:%s\t%s\t%s\t%t\n",
				e.Kind, e.Namespace, e.Name, e.Discriminator, base58.Encode(e.Discriminator.Bytes()), ok)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(discCmd)
}
