package toolchain

import (
	"path"
	"path/filepath"
	"strings"
)

// Prerequisite is a support library fetched as a release archive and
// linked into the binutils-gdb tree for Canadian-cross builds
type Prerequisite struct {
	Name string
	URL  string
}

// archiveSuffixes are matched longest first so ".tar.gz" wins over ".gz"
var archiveSuffixes = []string{".tar.bz2", ".tar.gz", ".tar.xz", ".tar.zst", ".tbz2", ".tgz", ".txz", ".tar"}

// ArchiveName returns the file name of the downloaded archive
func (p Prerequisite) ArchiveName() string {
	return path.Base(p.URL)
}

// DirName returns the name of the directory the archive unpacks to,
// e.g. "gmp-6.2.1" for gmp-6.2.1.tar.bz2
func (p Prerequisite) DirName() string {
	name := p.ArchiveName()
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// ArchivePath returns where the archive is stored under sourceRoot
func (p Prerequisite) ArchivePath(sourceRoot string) string {
	return filepath.Join(sourceRoot, p.ArchiveName())
}

// ExtractedDir returns where the archive is unpacked under sourceRoot
func (p Prerequisite) ExtractedDir(sourceRoot string) string {
	return filepath.Join(sourceRoot, p.DirName())
}

// DefaultPrerequisites are the pinned Canadian-cross prerequisite releases
var DefaultPrerequisites = []Prerequisite{
	{Name: "gmp", URL: "https://ftp.gnu.org/gnu/gmp/gmp-6.2.1.tar.bz2"},
	{Name: "mpfr", URL: "https://ftp.gnu.org/gnu/mpfr/mpfr-4.1.0.tar.bz2"},
	{Name: "mpc", URL: "https://ftp.gnu.org/gnu/mpc/mpc-1.2.1.tar.gz"},
	{Name: "isl", URL: "https://gcc.gnu.org/pub/gcc/infrastructure/isl-0.24.tar.bz2"},
	{Name: "gettext", URL: "https://ftp.gnu.org/gnu/gettext/gettext-0.22.tar.gz"},
}
