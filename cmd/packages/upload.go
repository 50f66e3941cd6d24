package packages

import (
	"pkgsync/cmd/root"
	"pkgsync/internal/catalog"
	"pkgsync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	optUploadPackage     string
	optUploadRevision    string
	optUploadFile        string
	optUploadSkipMissing bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload --upload-package NAME --revision NUM",
	Short: "Upload a package file and its archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := root.Engine(cmd.Context(), root.RequireStore)
		if err != nil {
			return err
		}
		pairs, err := catalog.Match(optUploadPackage, engine.Options().Pairs)
		if err != nil {
			return err
		}
		for _, tp := range pairs {
			key, err := engine.Upload(cmd.Context(), optUploadRevision, tp, optUploadSkipMissing, optUploadFile)
			if err != nil {
				return err
			}
			logger.Infof("Uploaded %s to %s", tp, key)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().SortFlags = false
	uploadCmd.Flags().StringVar(&optUploadPackage, "upload-package", "", "Package to upload")
	uploadCmd.Flags().StringVar(&optUploadRevision, "revision", "", "Revision of the package to upload")
	uploadCmd.Flags().StringVar(&optUploadFile, "package-file", "",
		"Use a custom package file instead of the one found in the tar directory")
	uploadCmd.Flags().BoolVar(&optUploadSkipMissing, "skip-missing", false,
		"Skip missing archive files when uploading package archives")
	_ = uploadCmd.MarkFlagRequired("upload-package")
	_ = uploadCmd.MarkFlagRequired("revision")
	root.RootCmd.AddCommand(uploadCmd)
}
