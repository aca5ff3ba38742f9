package core

import (
	"context"

	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/build"
	"github.com/bitswalk/xtc/src/xtc/download"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/layout"
	"github.com/bitswalk/xtc/src/xtc/pkgmgr"
	"github.com/bitswalk/xtc/src/xtc/plan"
	"github.com/bitswalk/xtc/src/xtc/publish"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/sources"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// Orchestrator drives one invocation from directory setup to cleanup
type Orchestrator struct {
	Config   *toolchain.BuildConfig
	Registry *toolchain.Registry

	// Runner runs every external command; Retry wraps it for clones
	Runner   runner.Runner
	Sleep    runner.SleepFunc
	LookPath pkgmgr.LookPathFunc
	Fetcher  *download.Fetcher
	Env      *environ.Environment

	SkipPackages bool
	Jobs         int
	Progress     build.ProgressFunc

	// Publisher is nil unless the archive should be published
	Publisher *publish.Publisher
	RunID     string

	Logger *logs.Logger
}

// Summary is what a completed run reports
type Summary struct {
	RunID    string            `json:"run_id"`
	Plan     *plan.Plan        `json:"plan"`
	Created  []string          `json:"created,omitempty"`
	Artifact *publish.Artifact `json:"artifact,omitempty"`
}

// Run executes the whole pipeline. Fatal failures are returned as typed
// errors; environment persistence and cleanup failures are only logged.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	l := o.Logger
	if l == nil {
		l = logs.NewDefault()
	}
	cfg := o.Config

	l.Info("Starting toolchain build",
		"build", cfg.Build(),
		"host", cfg.Host(),
		"target", cfg.Target(),
		"cross", cfg.IsCrossCompiling(),
		"canadian", cfg.IsCanadianCompiling(),
	)

	// Layout conflicts surface before anything is installed with sudo
	ws := layout.NewWorkspace(cfg, o.Registry)
	if err := ws.Ensure(); err != nil {
		return nil, err
	}

	if o.SkipPackages {
		l.Info("Skipping host package installation")
	} else if err := pkgmgr.Bootstrap(ctx, o.Runner, o.LookPath, o.Env); err != nil {
		return nil, err
	}

	p, err := plan.Derive(cfg, o.Registry)
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunID: o.RunID, Plan: p, Created: ws.CreatedDirs()}

	repos := sources.NewManager(cfg, o.Runner, o.Sleep)
	repos.SetEnvironment(o.Env)
	if err := repos.EnsureAll(ctx, p.Repositories()); err != nil {
		return nil, err
	}
	if cfg.IsCanadianCompiling() {
		if err := o.Fetcher.PrepareAll(ctx, o.Registry.Prerequisites(), cfg.SourceRoot()); err != nil {
			return nil, err
		}
	}

	executor := build.NewExecutor(cfg, o.Runner, o.Env)
	executor.SetJobs(o.Jobs)
	executor.SetProgress(o.Progress)
	if err := executor.Execute(ctx, p); err != nil {
		return nil, err
	}
	l.Info("Toolchain installed", "root", cfg.InstallRoot())

	if cfg.UpdateEnv() {
		rc := environ.NewShellRC(cfg.ShellRC())
		if err := rc.UpdateToolchain(cfg.InstallBin(), cfg.LibDirs()); err != nil {
			l.Warn("Failed to update shell start-up file", "path", rc.Path(), "error", err)
		} else {
			l.Info("Updated shell start-up file", "path", rc.Path())
		}
	}

	if o.Publisher != nil {
		artifact, err := o.Publisher.Publish(ctx, cfg, o.RunID)
		if err != nil {
			return nil, err
		}
		summary.Artifact = artifact
	}

	if cfg.CleanGit() {
		if err := ws.CleanSources(o.Registry.Prerequisites()); err != nil {
			l.Warn("Failed to clean sources", "root", cfg.SourceRoot(), "error", err)
		}
	}
	if cfg.CleanBuild() {
		if err := ws.CleanBuild(); err != nil {
			l.Warn("Failed to clean build directories", "root", cfg.BuildRoot(), "error", err)
		}
	}

	return summary, nil
}
