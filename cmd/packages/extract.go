package packages

import (
	"pkgsync/cmd/root"

	"github.com/spf13/cobra"
)

var optExtractSkipMissing bool

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract packages from the tar directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.OptionalStore)
		if err != nil {
			return err
		}
		return engine.Extract(cmd.Context(), engine.Options().Pairs, optExtractSkipMissing)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&optExtractSkipMissing, "skip-missing", false,
		"Skip missing archive files when extracting rather than erroring out")
	root.RootCmd.AddCommand(extractCmd)
}
