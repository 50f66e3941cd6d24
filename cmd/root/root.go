package root

import (
	"context"
	"strings"

	"pkgsync/internal/archive"
	"pkgsync/internal/catalog"
	"pkgsync/internal/config"
	"pkgsync/internal/logger"
	"pkgsync/internal/storage"
	"pkgsync/internal/syncerr"
	"pkgsync/services"

	"github.com/spf13/cobra"
)

const (
	defaultPackagesJSON = "packages.yaml"
	defaultRevisionsDir = "toolchain_revisions"
	defaultDestDir      = "toolchain"
)

var RootCmd = &cobra.Command{
	Use:   "pkgsync",
	Short: "Content-addressed toolchain package sync",
	Long: `pkgsync keeps a local tree of prebuilt toolchain packages in step with a remote blob store.
Packages are described by hashed archive lists, pinned per revision and only re-fetched or re-extracted when they change.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: pushMetrics,
}

/**
 * Global command line flags shared by every sub command
 */
type globalFlags struct {
	verbose        bool
	quiet          bool
	platform       string
	arch           string
	packageTargets []string
	packages       []string
	appendPackages []string
	exclude        []string
	packagesJSON   string
	revisionsDir   string
	destDir        string
	tarDir         string
	annotate       bool
	configFile     string
}

var (
	flags     globalFlags
	appConfig *config.AppConfig
	metrics   *services.SyncMetrics
)

/**
 * Load configuration and initialize logging before any sub command runs
 * @param {*cobra.Command} cmd - Command being executed
 * @param {[]string} args - Positional arguments (unused)
 * @returns {error} Returns error if the configuration file cannot be read
 */
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return syncerr.New(syncerr.InvalidInput, "load config", flags.configFile, err)
	}
	appConfig = cfg
	logger.InitLogger(&cfg.Log, flags.verbose, flags.quiet)
	metrics = services.NewSyncMetrics()
	return nil
}

// pushMetrics 命令结束后推送指标到pushgateway
func pushMetrics(cmd *cobra.Command, args []string) {
	if appConfig == nil || appConfig.Metrics.Pushgateway == "" {
		return
	}
	if err := metrics.Push(appConfig.Metrics.Pushgateway, appConfig.Metrics.Job); err != nil {
		logger.Warnf("Push metrics to %s failed: %v", appConfig.Metrics.Pushgateway, err)
	}
}

// Config returns the configuration loaded for this invocation.
func Config() *config.AppConfig {
	return appConfig
}

// Metrics returns the collector shared by the engine and the mirror server.
func Metrics() *services.SyncMetrics {
	return metrics
}

/**
 * Build the per-invocation options from flags, configuration and catalog
 * @returns {config.Options} Directories, hash algorithm and resolved (target, package) pairs
 * @returns {error} Returns error if the catalog cannot be loaded or a name does not resolve
 * @description
 * - --tar-dir defaults to {dest-dir}/.tars
 * - --platform and --arch are normalized before looking up package targets
 * - Packages not in the catalog must be written as TARGET/PACKAGE
 */
func Options() (config.Options, error) {
	algo, err := archive.ParseAlgorithm(appConfig.Hash.Algorithm)
	if err != nil {
		return config.Options{}, syncerr.New(syncerr.InvalidInput, "load config", "hash.algorithm", err)
	}
	cat, err := catalog.Load(flags.packagesJSON)
	if err != nil {
		return config.Options{}, err
	}
	hostOS, err := catalog.NormalizeOS(flags.platform)
	if err != nil {
		return config.Options{}, syncerr.New(syncerr.InvalidInput, "parse flags", "--platform", err)
	}
	hostArch, err := catalog.NormalizeArch(flags.arch)
	if err != nil {
		return config.Options{}, syncerr.New(syncerr.InvalidInput, "parse flags", "--arch", err)
	}
	pairs, err := cat.Resolve(catalog.Selection{
		HostOS:   hostOS,
		HostArch: hostArch,
		Targets:  trimAll(flags.packageTargets),
		Packages: trimAll(flags.packages),
		Append:   trimAll(flags.appendPackages),
		Exclude:  trimAll(flags.exclude),
	})
	if err != nil {
		return config.Options{}, err
	}

	tarDir := flags.tarDir
	if tarDir == "" {
		tarDir = config.DefaultTarDir(flags.destDir)
	}
	return config.Options{
		TarDir:       tarDir,
		DestDir:      flags.destDir,
		RevisionsDir: flags.revisionsDir,
		Annotate:     flags.annotate,
		Quiet:        flags.quiet,
		Algorithm:    algo,
		Catalog:      cat,
		Pairs:        pairs,
	}, nil
}

// StoreUse tells Engine how a command depends on the blob store.
type StoreUse int

const (
	NoStore StoreUse = iota
	// OptionalStore opens the store when configured; commands only reach it
	// to repair archives.
	OptionalStore
	RequireStore
)

/**
 * Create a sync engine for the current invocation
 * @param {context.Context} ctx - Context used to open the blob store
 * @param {StoreUse} use - Whether the command talks to the blob store
 * @returns {*services.SyncEngine} Engine bound to the resolved options
 * @returns {error} Returns error if options or a required blob store cannot be set up
 */
func Engine(ctx context.Context, use StoreUse) (*services.SyncEngine, error) {
	opts, err := Options()
	if err != nil {
		return nil, err
	}
	var store storage.BlobStore
	if use != NoStore {
		store, err = storage.New(ctx, appConfig.Storage)
		if err != nil {
			if use == RequireStore {
				return nil, err
			}
			logger.Debugf("Blob store unavailable: %v", err)
			store = nil
		}
	}
	return services.NewSyncEngine(opts, store, nil, metrics), nil
}

func trimAll(names []string) []string {
	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Quiet output")
	pf.StringVar(&flags.platform, "platform", catalog.HostOS(), "Custom platform other than the current one")
	pf.StringVar(&flags.arch, "arch", catalog.HostArch(), "Custom architecture other than the current one")
	pf.StringSliceVar(&flags.packageTargets, "package-targets", nil,
		"Comma separated package targets, defaults to the targets of the host platform")
	pf.StringSliceVar(&flags.packages, "packages", nil,
		"Comma separated packages, packages outside the catalog must be given as TARGET/PACKAGE")
	pf.StringArrayVar(&flags.appendPackages, "append", nil, "Append extra package to the current list of packages")
	pf.StringArrayVar(&flags.exclude, "exclude", nil, "Exclude package from the current list of packages")
	pf.StringVar(&flags.packagesJSON, "packages-json", defaultPackagesJSON, "Packages description file")
	pf.StringVar(&flags.revisionsDir, "revisions-dir", defaultRevisionsDir, "Directory holding the package revision files")
	pf.StringVar(&flags.destDir, "dest-dir", defaultDestDir, "Destination directory packages are extracted to")
	pf.StringVar(&flags.tarDir, "tar-dir", "", `Directory for package archive files (default "$DEST_DIR/.tars")`)
	pf.BoolVar(&flags.annotate, "annotate", false, "Print build bot annotations")
	pf.StringVar(&flags.configFile, "config", "", "Configuration file (default ./pkgsync.yaml or ~/.pkgsync/pkgsync.yaml)")
}
