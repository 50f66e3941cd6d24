package packages

import (
	"fmt"

	"pkgsync/cmd/root"
	"pkgsync/internal/catalog"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	optArchivePackage string
	optExtraArchives  []string
	optArchiveExtract bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive --archive-package NAME TAR[,SRCDIR[:EXTRACTDIR]][@URL[,LOGURL]]...",
	Short: "Archive package archives to the tar directory",
	Long: `Copy build outputs into the tar directory and record them in the package file.
SRCDIR is the directory inside the tar the files live in, EXTRACTDIR is where they
are extracted to relative to the package directory, URL is where the archive can be
downloaded from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.OptionalStore)
		if err != nil {
			return err
		}
		pairs, err := catalog.Match(optArchivePackage, engine.Options().Pairs)
		if err != nil {
			return err
		}
		for _, tp := range pairs {
			pkgFile, err := engine.Archive(tp, args, optExtraArchives)
			if err != nil {
				return err
			}
			if pkgFile == "" {
				logger.Infof("Package %s is already up to date", tp)
			} else {
				logger.Infof("Archived %s into %s", tp, pkgFile)
			}
			if optArchiveExtract {
				// extra archives may not be built yet
				if err := engine.Extract(cmd.Context(), []locations.TargetPackage{tp}, true); err != nil {
					return fmt.Errorf("extract %s: %w", tp, err)
				}
			}
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().SortFlags = false
	archiveCmd.Flags().StringVar(&optArchivePackage, "archive-package", "", "Package name the archives are packaged into")
	archiveCmd.Flags().StringArrayVar(&optExtraArchives, "extra-archive", nil, "Extra archive expected to be built elsewhere")
	archiveCmd.Flags().BoolVarP(&optArchiveExtract, "extract", "x", false, "Extract package archives after they have been archived")
	_ = archiveCmd.MarkFlagRequired("archive-package")
	root.RootCmd.AddCommand(archiveCmd)
}
