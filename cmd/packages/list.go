package packages

import (
	"os"

	"pkgsync/cmd/root"
	"pkgsync/internal/catalog"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [package]",
	Short: "List package targets and packages",
	Long:  "List the selected (target, package) pairs with their pinned revision and local cache state. If a package name is given, only its pairs are shown.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.NoStore)
		if err != nil {
			return err
		}
		pairs := engine.Options().Pairs
		if len(args) > 0 {
			if pairs, err = catalog.Match(args[0], pairs); err != nil {
				return err
			}
		}
		return engine.List(os.Stdout, pairs)
	},
}

func init() {
	listCmd.Example = packagesExample
	root.RootCmd.AddCommand(listCmd)
}
