package toolchain

import (
	"path/filepath"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
)

// ModuleName is the canonical name of a buildable unit
type ModuleName string

const (
	ModuleBinutilsGDB  ModuleName = "binutils-gdb"
	ModuleGCC          ModuleName = "gcc"
	ModuleMingwHeaders ModuleName = "mingw-w64-headers"
	ModuleMingwCRT     ModuleName = "mingw-w64-crt"
)

// RepoName names a git checkout under the source root
type RepoName string

const (
	RepoBinutilsGDB RepoName = "binutils-gdb"
	RepoGCC         RepoName = "gcc"
	RepoMingw       RepoName = "mingw-w64"
)

// Repository is a git repository cloned into the source root
type Repository struct {
	Name RepoName
	URL  string
}

// Dir returns the checkout directory under sourceRoot
func (r Repository) Dir(sourceRoot string) string {
	return filepath.Join(sourceRoot, string(r.Name))
}

// Module is one buildable unit. SourcePath is relative to the source root;
// the same segments are used under the build root for its build directory.
type Module struct {
	Name       ModuleName
	Repo       RepoName
	SourcePath []string
}

// SourceDir returns the module's source directory
func (m Module) SourceDir(sourceRoot string) string {
	return filepath.Join(append([]string{sourceRoot}, m.SourcePath...)...)
}

// ConfigureScript returns the path of the module's configure script
func (m Module) ConfigureScript(sourceRoot string) string {
	return filepath.Join(m.SourceDir(sourceRoot), "configure")
}

// BuildDir returns the module's out-of-tree build directory
func (m Module) BuildDir(buildRoot string) string {
	return filepath.Join(append([]string{buildRoot}, m.SourcePath...)...)
}

// Default repository locations
var DefaultRepoURLs = map[RepoName]string{
	RepoBinutilsGDB: "git://sourceware.org/git/binutils-gdb.git",
	RepoGCC:         "git://gcc.gnu.org/git/gcc.git",
	RepoMingw:       "https://git.code.sf.net/p/mingw-w64/mingw-w64",
}

var defaultModules = []Module{
	{Name: ModuleBinutilsGDB, Repo: RepoBinutilsGDB, SourcePath: []string{"binutils-gdb"}},
	{Name: ModuleGCC, Repo: RepoGCC, SourcePath: []string{"gcc"}},
	{Name: ModuleMingwHeaders, Repo: RepoMingw, SourcePath: []string{"mingw-w64", "mingw-w64-headers"}},
	{Name: ModuleMingwCRT, Repo: RepoMingw, SourcePath: []string{"mingw-w64", "mingw-w64-crt"}},
}

var defaultRepoOrder = []RepoName{RepoBinutilsGDB, RepoGCC, RepoMingw}

// Registry maps module and repository names to their definitions.
// A Registry is not modified after construction; WithRepoURLs returns a copy.
type Registry struct {
	modules       []Module
	repos         []Repository
	prerequisites []Prerequisite
}

// DefaultRegistry returns the registry populated from the built-in defaults
func DefaultRegistry() *Registry {
	r := &Registry{
		modules: make([]Module, len(defaultModules)),
	}
	copy(r.modules, defaultModules)
	r.prerequisites = append([]Prerequisite(nil), DefaultPrerequisites...)
	for _, name := range defaultRepoOrder {
		r.repos = append(r.repos, Repository{Name: name, URL: DefaultRepoURLs[name]})
	}
	return r
}

// WithRepoURLs returns a copy of r with the given repository URLs replaced.
// Empty URLs are ignored so unset flags keep the defaults.
func (r *Registry) WithRepoURLs(overrides map[RepoName]string) (*Registry, error) {
	out := &Registry{
		modules:       make([]Module, len(r.modules)),
		repos:         make([]Repository, len(r.repos)),
		prerequisites: append([]Prerequisite(nil), r.prerequisites...),
	}
	copy(out.modules, r.modules)
	copy(out.repos, r.repos)

	for name, url := range overrides {
		if url == "" {
			continue
		}
		found := false
		for i := range out.repos {
			if out.repos[i].Name == name {
				out.repos[i].URL = url
				found = true
			}
		}
		if !found {
			return nil, xerrors.ErrUnknownModule.WithMessagef("unknown repository %q", name)
		}
	}
	return out, nil
}

// Module looks up a module by name
func (r *Registry) Module(name ModuleName) (Module, error) {
	for _, m := range r.modules {
		if m.Name == name {
			return m, nil
		}
	}
	return Module{}, xerrors.ErrUnknownModule.WithMessagef("unknown module %q", name)
}

// Modules returns every registered module in registry order
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Repository looks up a repository by name
func (r *Registry) Repository(name RepoName) (Repository, error) {
	for _, repo := range r.repos {
		if repo.Name == name {
			return repo, nil
		}
	}
	return Repository{}, xerrors.ErrUnknownModule.WithMessagef("unknown repository %q", name)
}

// Repositories returns every registered repository in registry order
func (r *Registry) Repositories() []Repository {
	out := make([]Repository, len(r.repos))
	copy(out, r.repos)
	return out
}

// RepositoriesFor returns the repositories backing the named modules,
// deduplicated, in registry order
func (r *Registry) RepositoriesFor(modules []ModuleName) []Repository {
	needed := make(map[RepoName]bool)
	for _, name := range modules {
		if m, err := r.Module(name); err == nil {
			needed[m.Repo] = true
		}
	}

	var out []Repository
	for _, repo := range r.repos {
		if needed[repo.Name] {
			out = append(out, repo)
		}
	}
	return out
}

// Prerequisites returns the Canadian-cross prerequisite archives
func (r *Registry) Prerequisites() []Prerequisite {
	return append([]Prerequisite(nil), r.prerequisites...)
}
