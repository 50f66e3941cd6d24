package packages

import (
	"pkgsync/cmd/root"
	"pkgsync/internal/catalog"

	"github.com/spf13/cobra"
)

var optFillPackage string

var fillEmptyTarsCmd = &cobra.Command{
	Use:   "fillemptytars --fill-package NAME",
	Short: "Fill missing archives of a package with empty ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.NoStore)
		if err != nil {
			return err
		}
		pairs, err := catalog.Match(optFillPackage, engine.Options().Pairs)
		if err != nil {
			return err
		}
		return engine.FillEmptyTars(pairs)
	},
}

func init() {
	fillEmptyTarsCmd.Flags().StringVar(&optFillPackage, "fill-package", "", "Package name to fill empty archives of")
	_ = fillEmptyTarsCmd.MarkFlagRequired("fill-package")
	root.RootCmd.AddCommand(fillEmptyTarsCmd)
}
