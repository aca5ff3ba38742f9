// Package plan derives the ordered stage list of a toolchain build from a
// BuildConfig. Derivation is a pure function: the same configuration always
// yields the same plan, and nothing here touches the filesystem or network.
package plan

import (
	"path/filepath"

	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// Make targets
const (
	TargetDefault         = ""
	TargetAllGCC          = "all-gcc"
	TargetInstallStripGCC = "install-strip-gcc"
	TargetInstallStrip    = "install-strip"
)

// Alias is a symbolic link established before a stage configures:
// Link is created pointing at Target
type Alias struct {
	Link   string `json:"link"`
	Target string `json:"target"`
}

// Step is one configure, build and install cycle of a module
type Step struct {
	// Name labels the step in logs and plan output
	Name string `json:"name"`

	Module toolchain.Module `json:"-"`

	// ConfigureArgs are passed to the module's configure script.
	// Nil means the module was configured by an earlier step.
	ConfigureArgs []string `json:"configure_args,omitempty"`

	BuildTarget   string `json:"build_target,omitempty"`
	InstallTarget string `json:"install_target"`

	// ExportBin prepends the install bin directory to PATH once the
	// step has installed, for the benefit of later steps
	ExportBin bool `json:"export_bin,omitempty"`

	Aliases []Alias `json:"aliases,omitempty"`
}

// Configures reports whether the step runs the configure script
func (s Step) Configures() bool {
	return s.ConfigureArgs != nil
}

// Plan is the ordered stage list of one invocation
type Plan struct {
	Build    toolchain.Triple `json:"build"`
	Host     toolchain.Triple `json:"host"`
	Target   toolchain.Triple `json:"target"`
	Cross    bool             `json:"cross"`
	Canadian bool             `json:"canadian"`
	Steps    []Step           `json:"steps"`

	repos []toolchain.Repository
}

// Modules returns the distinct modules of the plan in first-use order
func (p *Plan) Modules() []toolchain.ModuleName {
	seen := make(map[toolchain.ModuleName]bool)
	var out []toolchain.ModuleName
	for _, s := range p.Steps {
		if !seen[s.Module.Name] {
			seen[s.Module.Name] = true
			out = append(out, s.Module.Name)
		}
	}
	return out
}

// Repositories returns the repositories the plan's modules are built from
func (p *Plan) Repositories() []toolchain.Repository {
	return append([]toolchain.Repository(nil), p.repos...)
}

// Includes reports whether module takes part in the plan
func (p *Plan) Includes(module toolchain.ModuleName) bool {
	for _, s := range p.Steps {
		if s.Module.Name == module {
			return true
		}
	}
	return false
}

// Derive computes the plan for cfg.
//
// binutils-gdb and gcc are always built. The mingw-w64 headers and runtime
// are added for a cross or Canadian build targeting Windows. When cross
// compiling, gcc is built in two halves around the runtime: the driver is
// installed and put on PATH first, the headers and runtime are built with
// it, and only then is the full compiler completed.
func Derive(cfg *toolchain.BuildConfig, registry *toolchain.Registry) (*Plan, error) {
	binutils, err := registry.Module(toolchain.ModuleBinutilsGDB)
	if err != nil {
		return nil, err
	}
	gcc, err := registry.Module(toolchain.ModuleGCC)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Build:    cfg.Build(),
		Host:     cfg.Host(),
		Target:   cfg.Target(),
		Cross:    cfg.IsCrossCompiling(),
		Canadian: cfg.IsCanadianCompiling(),
	}

	binutilsStep := Step{
		Name:          string(binutils.Name),
		Module:        binutils,
		ConfigureArgs: BinutilsArgs(cfg),
		InstallTarget: TargetInstallStrip,
	}
	if cfg.IsCanadianCompiling() {
		binutilsStep.Aliases = PrerequisiteAliases(cfg, binutils, registry.Prerequisites())
	}
	p.Steps = append(p.Steps, binutilsStep)

	var runtime []Step
	if cfg.NeedsTargetRuntime() {
		headers, err := registry.Module(toolchain.ModuleMingwHeaders)
		if err != nil {
			return nil, err
		}
		crt, err := registry.Module(toolchain.ModuleMingwCRT)
		if err != nil {
			return nil, err
		}
		runtime = []Step{
			{
				Name:          string(headers.Name),
				Module:        headers,
				ConfigureArgs: MingwArgs(cfg),
				InstallTarget: TargetInstallStrip,
			},
			{
				Name:          string(crt.Name),
				Module:        crt,
				ConfigureArgs: MingwArgs(cfg),
				InstallTarget: TargetInstallStrip,
			},
		}
	}

	if cfg.IsCrossCompiling() {
		p.Steps = append(p.Steps, Step{
			Name:          "gcc-driver",
			Module:        gcc,
			ConfigureArgs: GCCArgs(cfg),
			BuildTarget:   TargetAllGCC,
			InstallTarget: TargetInstallStripGCC,
			ExportBin:     true,
		})
		p.Steps = append(p.Steps, runtime...)
		p.Steps = append(p.Steps, Step{
			Name:          string(gcc.Name),
			Module:        gcc,
			InstallTarget: TargetInstallStrip,
		})
	} else {
		p.Steps = append(p.Steps, Step{
			Name:          string(gcc.Name),
			Module:        gcc,
			ConfigureArgs: GCCArgs(cfg),
			InstallTarget: TargetInstallStrip,
		})
		p.Steps = append(p.Steps, runtime...)
	}

	p.repos = registry.RepositoriesFor(p.Modules())
	return p, nil
}

// MultilibArgs returns exactly one multilib setting
func MultilibArgs(cfg *toolchain.BuildConfig) []string {
	if cfg.WithLib32() {
		return []string{"--enable-multilib", "--with-multilib-list=m64,m32"}
	}
	return []string{"--disable-multilib"}
}

func baseArgs(cfg *toolchain.BuildConfig) []string {
	return []string{
		"--prefix=" + cfg.InstallRoot(),
		"--build=" + string(cfg.Build()),
		"--host=" + string(cfg.Host()),
		"--target=" + string(cfg.Target()),
	}
}

// BinutilsArgs returns the binutils-gdb configure arguments
func BinutilsArgs(cfg *toolchain.BuildConfig) []string {
	args := append(baseArgs(cfg), "--disable-nls", "--disable-werror")
	if cfg.Target().IsLinux() {
		args = append(args, "--enable-gold")
	}
	if cfg.Host().IsLinux() || (cfg.Host().IsWindows() && cfg.WithPython3()) {
		args = append(args, "--with-python3")
	}
	return append(args, MultilibArgs(cfg)...)
}

// GCCArgs returns the gcc configure arguments
func GCCArgs(cfg *toolchain.BuildConfig) []string {
	args := append(baseArgs(cfg),
		"--disable-nls",
		"--disable-werror",
		"--disable-libstdcxx-verbose",
		"--disable-bootstrap",
		"--enable-languages=c,c++",
	)
	if cfg.Target().IsWindows() {
		args = append(args, "--disable-sjlj-exceptions")
	}
	return append(args, MultilibArgs(cfg)...)
}

// MingwArgs returns the configure arguments shared by the mingw-w64 headers
// and runtime. Both install into the target sysroot under the install root.
func MingwArgs(cfg *toolchain.BuildConfig) []string {
	return []string{
		"--prefix=" + cfg.TargetPrefix(),
		"--build=" + string(cfg.Build()),
		"--host=" + string(toolchain.TripleWindows),
		"--target=" + string(toolchain.TripleWindows),
	}
}

// PrerequisiteAliases links each prerequisite's extracted source directory
// into module's source tree under the prerequisite's name, where the
// in-tree build picks it up
func PrerequisiteAliases(cfg *toolchain.BuildConfig, module toolchain.Module, prerequisites []toolchain.Prerequisite) []Alias {
	srcDir := module.SourceDir(cfg.SourceRoot())
	aliases := make([]Alias, 0, len(prerequisites))
	for _, p := range prerequisites {
		aliases = append(aliases, Alias{
			Link:   filepath.Join(srcDir, p.Name),
			Target: p.ExtractedDir(cfg.SourceRoot()),
		})
	}
	return aliases
}
