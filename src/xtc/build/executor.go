// Package build runs a derived plan: it links prerequisites into source
// trees, then configures, builds and installs each module in order.
package build

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/plan"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	log = l
}

// ProgressFunc is called before each step with its 1-based index
type ProgressFunc func(index, total int, step plan.Step)

// Executor runs plan steps against the live environment. Configure, make
// and install run once; any failure aborts the run and leaves the build
// directories in place for a later re-run.
type Executor struct {
	cfg      *toolchain.BuildConfig
	runner   runner.Runner
	env      *environ.Environment
	jobs     int
	progress ProgressFunc
}

// NewExecutor creates an Executor. Parallelism defaults to the processor count.
func NewExecutor(cfg *toolchain.BuildConfig, r runner.Runner, env *environ.Environment) *Executor {
	return &Executor{
		cfg:    cfg,
		runner: r,
		env:    env,
		jobs:   runtime.NumCPU(),
	}
}

// SetJobs overrides the make parallelism
func (e *Executor) SetJobs(n int) {
	if n > 0 {
		e.jobs = n
	}
}

// SetProgress registers a callback invoked before each step
func (e *Executor) SetProgress(fn ProgressFunc) {
	e.progress = fn
}

// Environment returns the live environment the executor hands to subprocesses
func (e *Executor) Environment() *environ.Environment {
	return e.env
}

// Execute runs every step of p in order, stopping at the first failure
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) error {
	total := len(p.Steps)
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.progress != nil {
			e.progress(i+1, total, step)
		}
		log.Info("Running step", "step", describe(step), "progress", fmt.Sprintf("%d/%d", i+1, total))
		if err := e.RunStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// RunStep runs a single step: aliases, configure, make, install, then the
// optional PATH export
func (e *Executor) RunStep(ctx context.Context, step plan.Step) error {
	start := time.Now()
	buildDir := step.Module.BuildDir(e.cfg.BuildRoot())
	stepLog := log.With("step", step.Name)

	if len(step.Aliases) > 0 {
		if err := EstablishAliases(step.Aliases); err != nil {
			return err
		}
	}

	if step.Configures() {
		stepLog.Info("Configuring", "dir", buildDir)
		cmd := runner.Command{
			Name: step.Module.ConfigureScript(e.cfg.SourceRoot()),
			Args: step.ConfigureArgs,
			Dir:  buildDir,
			Env:  e.env.Environ(),
		}
		if err := e.runner.Run(ctx, cmd); err != nil {
			return xerrors.ErrConfigureFailed.
				WithMessagef("configure of %s failed (exit %d)", step.Name, runner.ExitCode(err)).
				WithCause(err)
		}
	}

	stepLog.Info("Building", "target", displayTarget(step.BuildTarget), "jobs", e.jobs)
	if err := e.runner.Run(ctx, e.makeCommand(buildDir, step.BuildTarget)); err != nil {
		return xerrors.ErrBuildFailed.
			WithMessagef("make %s of %s failed (exit %d)", displayTarget(step.BuildTarget), step.Name, runner.ExitCode(err)).
			WithCause(err)
	}

	stepLog.Info("Installing", "target", step.InstallTarget)
	if err := e.runner.Run(ctx, e.makeCommand(buildDir, step.InstallTarget)); err != nil {
		return xerrors.ErrInstallFailed.
			WithMessagef("make %s of %s failed (exit %d)", step.InstallTarget, step.Name, runner.ExitCode(err)).
			WithCause(err)
	}

	if step.ExportBin {
		if e.env.Prepend(environ.VarPath, e.cfg.InstallBin()) {
			stepLog.Info("Added toolchain to PATH", "dir", e.cfg.InstallBin())
		}
	}

	stepLog.Info("Step completed", "duration", time.Since(start).Round(time.Second))
	return nil
}

func (e *Executor) makeCommand(dir, target string) runner.Command {
	var args []string
	if target != "" {
		args = append(args, target)
	}
	args = append(args, "-j", strconv.Itoa(e.jobs))
	return runner.Command{
		Name: "make",
		Args: args,
		Dir:  dir,
		Env:  e.env.Environ(),
	}
}

func displayTarget(target string) string {
	if target == "" {
		return "all"
	}
	return target
}

// describe renders a step summary for logs
func describe(step plan.Step) string {
	return fmt.Sprintf("%s (%s)", step.Name, step.Module.Name)
}
