package core

import (
	"github.com/spf13/viper"

	"github.com/bitswalk/xtc/src/common/cli"
	"github.com/bitswalk/xtc/src/xtc/layout"
	"github.com/bitswalk/xtc/src/xtc/publish"
	"github.com/bitswalk/xtc/src/xtc/storage"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// loadBuildConfig resolves the viper settings into a frozen BuildConfig and
// the module registry with any repository URL overrides applied
func loadBuildConfig() (*toolchain.BuildConfig, *toolchain.Registry, error) {
	host, err := toolchain.ParseTriple(viper.GetString("toolchain.host"))
	if err != nil {
		return nil, nil, err
	}
	target, err := toolchain.ParseTriple(viper.GetString("toolchain.target"))
	if err != nil {
		return nil, nil, err
	}

	roots, err := layout.Resolve(layout.Overrides{
		Cwd:        viper.GetString("layout.cwd"),
		GitDir:     viper.GetString("layout.git_dir"),
		BuildDir:   viper.GetString("layout.build_dir"),
		InstallDir: viper.GetString("layout.install_dir"),
	}, host, target)
	if err != nil {
		return nil, nil, err
	}

	registry, err := toolchain.DefaultRegistry().WithRepoURLs(map[toolchain.RepoName]string{
		toolchain.RepoBinutilsGDB: viper.GetString("repos.binutils_gdb"),
		toolchain.RepoGCC:         viper.GetString("repos.gcc"),
		toolchain.RepoMingw:       viper.GetString("repos.mingw_w64"),
	})
	if err != nil {
		return nil, nil, err
	}

	cfg, err := toolchain.NewBuildConfig(toolchain.Options{
		Build:       toolchain.TripleLinux,
		Host:        host,
		Target:      target,
		SourceRoot:  roots.Source,
		BuildRoot:   roots.Build,
		InstallRoot: roots.Install,
		WithLib32:   viper.GetBool("build.with_lib32"),
		WithPython3: viper.GetBool("build.with_python3"),
		CleanGit:    viper.GetBool("clean.git"),
		CleanBuild:  viper.GetBool("clean.build"),
		UpdateEnv:   viper.GetBool("env.update"),
		StrictPull:  viper.GetBool("sources.strict_pull"),
		Retry: toolchain.RetryPolicy{
			MaxRetries: viper.GetInt("retry.max"),
			Delay:      viper.GetDuration("retry.delay"),
		},
		ShellRC: cli.GetExpandedString("env.shell_rc"),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, registry, nil
}

// loadStorageConfig reads the publishing backend settings
func loadStorageConfig() storage.Config {
	return storage.Config{
		Type: viper.GetString("storage.type"),
		Local: storage.LocalConfig{
			BasePath: cli.GetExpandedString("storage.local.path"),
		},
		S3: storage.S3Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			UsePathStyle:    viper.GetBool("storage.s3.path_style"),
		},
	}
}

// newPublisher builds the publisher for the configured backend and format
func newPublisher() (*publish.Publisher, error) {
	format, err := publish.ParseFormat(viper.GetString("publish.format"))
	if err != nil {
		return nil, err
	}
	backend, err := storage.New(loadStorageConfig())
	if err != nil {
		return nil, err
	}
	return publish.NewPublisher(backend, format), nil
}
