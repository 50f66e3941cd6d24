package packages

import (
	"pkgsync/cmd/root"

	"github.com/spf13/cobra"
)

var (
	optSyncRevision    string
	optSyncIncludeLogs bool
	optSyncExtract     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download package archives to the tar directory",
	Long: `Download the archives of every selected package. Without --revision the
revision pinned in the revisions directory is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.RequireStore)
		if err != nil {
			return err
		}
		return engine.Sync(cmd.Context(), engine.Options().Pairs, optSyncRevision, optSyncIncludeLogs, optSyncExtract)
	},
}

func init() {
	syncCmd.Flags().SortFlags = false
	syncCmd.Flags().StringVar(&optSyncRevision, "revision", "", "Revision of the packages to download")
	syncCmd.Flags().BoolVar(&optSyncIncludeLogs, "include-logs", false, "Also download logs next to each archive if available")
	syncCmd.Flags().BoolVarP(&optSyncExtract, "extract", "x", false, "Extract package archives after they have been downloaded")
	root.RootCmd.AddCommand(syncCmd)
}
