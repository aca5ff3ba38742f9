// Package pkgmgr installs the host packages a toolchain build needs through
// whichever supported system package manager is present.
package pkgmgr

import (
	"context"
	"os/exec"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the pkgmgr package
func SetLogger(l *logs.Logger) {
	log = l
}

// Manager is a system package manager and the packages xtc needs from it
type Manager struct {
	Name        string
	InstallArgs []string
	Packages    []string
}

// Command returns the non-interactive install command
func (m Manager) Command() runner.Command {
	args := append([]string{m.Name}, m.InstallArgs...)
	args = append(args, m.Packages...)
	return runner.Command{Name: "sudo", Args: args}
}

var rpmPackages = []string{
	"gcc", "g++", "make", "gmp-devel", "libmpc-devel", "mpfr-devel", "isl-devel",
	"git", "flex", "bison", "texinfo",
}

// Supported lists the package managers in detection order
var Supported = []Manager{
	{
		Name:        "apt",
		InstallArgs: []string{"install", "-y"},
		Packages: []string{
			"build-essential", "libgmp-dev", "libmpc-dev", "libmpfr-dev", "libisl-dev",
			"git", "flex", "bison", "texinfo",
		},
	},
	{
		Name:        "pacman",
		InstallArgs: []string{"-S", "--needed", "--noconfirm"},
		Packages:    []string{"base-devel", "gmp", "libmpc", "mpfr", "isl", "git"},
	},
	{
		Name:        "dnf",
		InstallArgs: []string{"install", "-y"},
		Packages:    rpmPackages,
	},
	{
		Name:        "yum",
		InstallArgs: []string{"install", "-y"},
		Packages:    rpmPackages,
	},
}

// LookPathFunc reports where an executable is on the search path
type LookPathFunc func(name string) (string, error)

// Detect returns the first supported package manager found by lookPath.
// A nil lookPath uses exec.LookPath.
func Detect(lookPath LookPathFunc) (Manager, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, m := range Supported {
		if path, err := lookPath(m.Name); err == nil {
			log.Debug("Found package manager", "name", m.Name, "path", path)
			return m, nil
		}
	}
	return Manager{}, xerrors.ErrPackageManagerNotFound
}

// Install runs the package manager's install command once, with env as its
// environment. A nil env inherits the process environment.
func Install(ctx context.Context, r runner.Runner, m Manager, env *environ.Environment) error {
	log.Info("Installing required packages", "manager", m.Name, "packages", len(m.Packages))
	cmd := m.Command()
	if env != nil {
		cmd.Env = env.Environ()
	}
	if err := r.Run(ctx, cmd); err != nil {
		return xerrors.ErrPackageInstallFailed.
			WithMessagef("%s failed to install required packages", m.Name).
			WithCause(err)
	}
	return nil
}

// Bootstrap detects the package manager and installs the required packages
func Bootstrap(ctx context.Context, r runner.Runner, lookPath LookPathFunc, env *environ.Environment) error {
	m, err := Detect(lookPath)
	if err != nil {
		return err
	}
	return Install(ctx, r, m, env)
}
