// Package core provides the xtc command line and the build pipeline it drives.
package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/xtc/src/common/cli"
	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/common/output"
	"github.com/bitswalk/xtc/src/common/version"
	"github.com/bitswalk/xtc/src/xtc/build"
	"github.com/bitswalk/xtc/src/xtc/download"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/layout"
	"github.com/bitswalk/xtc/src/xtc/pkgmgr"
	"github.com/bitswalk/xtc/src/xtc/plan"
	"github.com/bitswalk/xtc/src/xtc/publish"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/sources"
	"github.com/bitswalk/xtc/src/xtc/storage"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log = logs.NewDefault()

	// Configuration file path
	cfgFile string

	// Output format (table or json)
	outputFormat string
)

// Linker variables - these are set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd builds the toolchain when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xtc",
	Short: "Cross toolchain builder",
	Long: `xtc builds binutils-gdb, GCC and, for Windows targets, mingw-w64 into a
cross or Canadian-cross compiler toolchain.

Sources are cloned (or fast-forwarded) under the source root, configured and
built under build/<host>/<target> and installed into <host>/<target>.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd)
	},
}

// Execute runs the root command and exits with the error's status on failure
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if outputFormat == string(output.FormatJSON) {
			_ = output.PrintJSON(os.Stderr, xerrors.ReportFor(err))
		} else {
			output.PrintError(err)
		}
		os.Exit(xerrors.GetExitCode(err))
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/xtc/xtc.yaml")
	cli.RegisterLogFlags(rootCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json")

	// Layout flags
	pf.String("cwd", "", "Base directory for the default layout (default: current directory)")
	pf.String("git-dir", "", "Source root holding the repository checkouts (default: <cwd>)")
	pf.String("build-dir", "", "Build root (default: <cwd>/build/<host>/<target>)")
	pf.String("install-dir", "", "Install root (default: <cwd>/<host>/<target>)")

	// Toolchain flags
	pf.String("host", string(toolchain.TripleLinux), "Host triple: "+toolchain.SupportedTripleNames())
	pf.String("target", string(toolchain.TripleLinux), "Target triple: "+toolchain.SupportedTripleNames())
	pf.Bool("with-lib32", false, "Build 32-bit multilib support")
	pf.Bool("with-python3", false, "Build gdb with Python 3 support on a Windows host")

	// Repository flags
	pf.String("binutils-gdb-git-repo-url", "", "binutils-gdb repository URL")
	pf.String("gcc-git-repo-url", "", "GCC repository URL")
	pf.String("mingw-w64-git-repo-url", "", "mingw-w64 repository URL")

	// Build-only flags
	f := rootCmd.Flags()
	f.Bool("clean-git", false, "Remove fetched sources after a successful build")
	f.Bool("clean-build", false, "Remove build directories after a successful build")
	f.Bool("update-env", false, "Persist PATH and LD_LIBRARY_PATH in the shell start-up file")
	f.String("shell-rc", "~/.bashrc", "Shell start-up file updated by --update-env")
	f.Bool("strict-pull", false, "Abort when fast-forwarding an existing checkout fails")
	f.Bool("skip-packages", false, "Do not install host packages through the system package manager")
	f.Int("max-retries", toolchain.DefaultRetryPolicy().MaxRetries, "Attempts per network operation")
	f.Duration("retry-delay", toolchain.DefaultRetryPolicy().Delay, "Delay between network attempts")
	f.IntP("jobs", "j", 0, "make parallelism (default: number of CPUs)")

	// Publish flags
	f.Bool("publish", false, "Publish the installed toolchain as an archive")
	f.String("publish-format", string(publish.FormatGzip), "Archive format: tar.gz, tar.xz")

	// Storage flags
	pf.String("storage-type", "local", "Storage backend type: 'local' or 's3'")
	pf.String("storage-path", storage.DefaultConfig().Local.BasePath, "Local storage path (for local backend)")
	pf.String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	pf.String("s3-region", "us-east-1", "S3 region")
	pf.String("s3-bucket", "xtc-toolchains", "S3 bucket for toolchain archives")
	pf.String("s3-access-key", "", "S3 access key ID")
	pf.String("s3-secret-key", "", "S3 secret access key")
	pf.Bool("s3-path-style", true, "Use path-style addressing for S3")

	// Bind flags to viper
	_ = viper.BindPFlag("layout.cwd", pf.Lookup("cwd"))
	_ = viper.BindPFlag("layout.git_dir", pf.Lookup("git-dir"))
	_ = viper.BindPFlag("layout.build_dir", pf.Lookup("build-dir"))
	_ = viper.BindPFlag("layout.install_dir", pf.Lookup("install-dir"))
	_ = viper.BindPFlag("toolchain.host", pf.Lookup("host"))
	_ = viper.BindPFlag("toolchain.target", pf.Lookup("target"))
	_ = viper.BindPFlag("build.with_lib32", pf.Lookup("with-lib32"))
	_ = viper.BindPFlag("build.with_python3", pf.Lookup("with-python3"))
	_ = viper.BindPFlag("repos.binutils_gdb", pf.Lookup("binutils-gdb-git-repo-url"))
	_ = viper.BindPFlag("repos.gcc", pf.Lookup("gcc-git-repo-url"))
	_ = viper.BindPFlag("repos.mingw_w64", pf.Lookup("mingw-w64-git-repo-url"))
	_ = viper.BindPFlag("clean.git", f.Lookup("clean-git"))
	_ = viper.BindPFlag("clean.build", f.Lookup("clean-build"))
	_ = viper.BindPFlag("env.update", f.Lookup("update-env"))
	_ = viper.BindPFlag("env.shell_rc", f.Lookup("shell-rc"))
	_ = viper.BindPFlag("sources.strict_pull", f.Lookup("strict-pull"))
	_ = viper.BindPFlag("host.skip_packages", f.Lookup("skip-packages"))
	_ = viper.BindPFlag("retry.max", f.Lookup("max-retries"))
	_ = viper.BindPFlag("retry.delay", f.Lookup("retry-delay"))
	_ = viper.BindPFlag("build.jobs", f.Lookup("jobs"))
	_ = viper.BindPFlag("publish.enabled", f.Lookup("publish"))
	_ = viper.BindPFlag("publish.format", f.Lookup("publish-format"))
	_ = viper.BindPFlag("storage.type", pf.Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local.path", pf.Lookup("storage-path"))
	_ = viper.BindPFlag("storage.s3.endpoint", pf.Lookup("s3-endpoint"))
	_ = viper.BindPFlag("storage.s3.region", pf.Lookup("s3-region"))
	_ = viper.BindPFlag("storage.s3.bucket", pf.Lookup("s3-bucket"))
	_ = viper.BindPFlag("storage.s3.access_key", pf.Lookup("s3-access-key"))
	_ = viper.BindPFlag("storage.s3.secret_key", pf.Lookup("s3-secret-key"))
	_ = viper.BindPFlag("storage.s3.path_style", pf.Lookup("s3-path-style"))

	// Set defaults
	viper.SetDefault("toolchain.host", string(toolchain.TripleLinux))
	viper.SetDefault("toolchain.target", string(toolchain.TripleLinux))
	viper.SetDefault("env.shell_rc", "~/.bashrc")
	viper.SetDefault("retry.max", toolchain.DefaultRetryPolicy().MaxRetries)
	viper.SetDefault("retry.delay", toolchain.DefaultRetryPolicy().Delay)
	viper.SetDefault("publish.format", string(publish.FormatGzip))
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.path", storage.DefaultConfig().Local.BasePath)
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "xtc-toolchains")
	viper.SetDefault("storage.s3.path_style", true)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(publishedCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.DefaultConfigOptions("xtc", "XTC")
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return xerrors.ErrInvalidConfig.WithCause(err)
	}
	if _, err := output.ParseFormat(outputFormat); err != nil {
		return xerrors.ErrInvalidConfig.WithMessage(err.Error())
	}

	log = cli.InitLogger("xtc")
	return nil
}

// setLoggers hands every package a logger tagged with the run ID
func setLoggers(base *logs.Logger) {
	build.SetLogger(base.With("component", "build"))
	download.SetLogger(base.With("component", "download"))
	environ.SetLogger(base.With("component", "environ"))
	layout.SetLogger(base.With("component", "layout"))
	pkgmgr.SetLogger(base.With("component", "pkgmgr"))
	publish.SetLogger(base.With("component", "publish"))
	runner.SetLogger(base.With("component", "runner"))
	sources.SetLogger(base.With("component", "sources"))
}

func runBuild(cmd *cobra.Command) error {
	cfg, registry, err := loadBuildConfig()
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	base := log.With("run_id", runID)
	setLoggers(base)
	base.Debug("xtc", "version", VersionInfo.Short())

	var publisher *publish.Publisher
	if viper.GetBool("publish.enabled") {
		if publisher, err = newPublisher(); err != nil {
			return xerrors.ErrPublishFailed.WithMessage("invalid publish configuration").WithCause(err)
		}
	}

	fetcher := download.NewFetcher(&http.Client{}, cfg.Retry(), nil)
	fetcher.SetProgressOutput(os.Stderr)

	out := cmd.OutOrStdout()
	o := &Orchestrator{
		Config:       cfg,
		Registry:     registry,
		Runner:       runner.NewExecRunner(nil, nil),
		Fetcher:      fetcher,
		Env:          environ.FromOS(),
		SkipPackages: viper.GetBool("host.skip_packages"),
		Jobs:         viper.GetInt("build.jobs"),
		Progress: func(index, total int, step plan.Step) {
			output.PrintHeading(out, fmt.Sprintf("[%d/%d] %s", index, total, step.Name))
		},
		Publisher: publisher,
		RunID:     runID,
		Logger:    base,
	}

	start := time.Now()
	summary, err := o.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printSummary(cmd, summary, time.Since(start))
}

func printSummary(cmd *cobra.Command, s *Summary, elapsed time.Duration) error {
	out := cmd.OutOrStdout()
	if outputFormat == string(output.FormatJSON) {
		return output.PrintJSON(out, s)
	}

	output.PrintSuccess(out, "Toolchain build complete")
	pairs := [][2]string{
		{"Run ID", s.RunID},
		{"Host", string(s.Plan.Host)},
		{"Target", string(s.Plan.Target)},
		{"Steps", fmt.Sprintf("%d", len(s.Plan.Steps))},
		{"Elapsed", elapsed.Round(time.Second).String()},
	}
	if s.Artifact != nil {
		pairs = append(pairs, [2]string{"Archive", s.Artifact.URI}, [2]string{"BLAKE3", s.Artifact.Digest})
	}
	output.PrintKeyValues(out, pairs)
	return nil
}
