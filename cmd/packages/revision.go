package packages

import (
	"fmt"

	"pkgsync/cmd/root"
	"pkgsync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	optSetRevisionPackage string
	optSetRevisionNumber  int
	optGetRevisionPackage string
)

var setRevisionCmd = &cobra.Command{
	Use:   "setrevision --revision-package NAME --revision NUM",
	Short: "Pin the revision of a package",
	Long:  "Snapshot the uploaded package of every target at the given revision into the revisions directory.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.RequireStore)
		if err != nil {
			return err
		}
		revFile, err := engine.SetRevision(cmd.Context(), optSetRevisionPackage, optSetRevisionNumber)
		if err != nil {
			return err
		}
		logger.Infof("Saved revision %d of %s to %s", optSetRevisionNumber, optSetRevisionPackage, revFile)
		return nil
	},
}

var getRevisionCmd = &cobra.Command{
	Use:   "getrevision --revision-package NAME",
	Short: "Print the pinned revision of a package",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.NoStore)
		if err != nil {
			return err
		}
		n, err := engine.GetRevision(optGetRevisionPackage)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var recalcRevisionsCmd = &cobra.Command{
	Use:   "recalcrevisions",
	Short: "Recalculate the hashes of the revision files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.NoStore)
		if err != nil {
			return err
		}
		files, err := engine.RecalcRevisions()
		if err != nil {
			return err
		}
		for _, f := range files {
			logger.Infof("Rewrote %s", f)
		}
		return nil
	},
}

func init() {
	setRevisionCmd.Flags().SortFlags = false
	setRevisionCmd.Flags().StringVar(&optSetRevisionPackage, "revision-package", "", "Package name to set the revision of")
	setRevisionCmd.Flags().IntVar(&optSetRevisionNumber, "revision", 0, "Revision of the package to set")
	_ = setRevisionCmd.MarkFlagRequired("revision-package")
	_ = setRevisionCmd.MarkFlagRequired("revision")

	getRevisionCmd.Flags().StringVar(&optGetRevisionPackage, "revision-package", "", "Package name to get the revision of")
	_ = getRevisionCmd.MarkFlagRequired("revision-package")

	root.RootCmd.AddCommand(setRevisionCmd, getRevisionCmd, recalcRevisionsCmd)
}
