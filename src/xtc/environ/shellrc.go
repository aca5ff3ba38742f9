package environ

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ShellRC rewrites export lines of a shell start-up file such as ~/.bashrc
type ShellRC struct {
	path string
}

// NewShellRC returns a ShellRC for the file at path
func NewShellRC(path string) *ShellRC {
	return &ShellRC{path: path}
}

// Path returns the start-up file location
func (s *ShellRC) Path() string {
	return s.path
}

// Update prepends entries to the exported value of name. The first
// "export NAME=" statement whose value can be parsed, including any backslash
// continuation lines, is replaced by a single line carrying the merged value
// and whatever followed the value, such as a trailing comment. When no such
// statement exists, a new one extending $NAME is appended. A missing file is
// created. A symlinked file is updated through the link.
func (s *ShellRC) Update(name string, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}

	path, err := resolveLink(s.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	mode := os.FileMode(0644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	lines := splitLines(string(data))
	prefix := "export " + name + "="

	start, end, stmt := findExport(lines, prefix)
	if start < 0 {
		value := PrependAll("$"+name, entries...)
		lines = append(lines, prefix+`"`+value+`"`)
	} else {
		value := PrependAll(stmt.value, entries...)
		if value == stmt.value {
			log.Debug("Shell start-up file already up to date", "file", s.path, "var", name)
			return nil
		}
		replaced := append([]string{}, lines[:start]...)
		replaced = append(replaced, prefix+stmt.quote+value+stmt.quote+stmt.trailer)
		lines = append(replaced, lines[end+1:]...)
	}

	if err := writeFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"), mode); err != nil {
		return err
	}
	log.Info("Updated shell start-up file", "file", s.path, "var", name)
	return nil
}

// UpdateToolchain persists the toolchain bin directory into PATH and the
// library directories into LD_LIBRARY_PATH
func (s *ShellRC) UpdateToolchain(binDir string, libDirs []string) error {
	if err := s.Update(VarPath, binDir); err != nil {
		return err
	}
	return s.Update(VarLDLibraryPath, libDirs...)
}

// exportStmt is the parsed right-hand side of an export statement
type exportStmt struct {
	value   string
	quote   string
	trailer string
}

// findExport returns the line span and parsed value of the first statement
// starting with prefix whose value parses, or -1, -1
func findExport(lines []string, prefix string) (int, int, exportStmt) {
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), prefix) {
			continue
		}
		end := len(lines) - 1
		for j := i; j < len(lines); j++ {
			if !strings.HasSuffix(strings.TrimSpace(lines[j]), `\`) {
				end = j
				break
			}
		}
		if stmt, ok := parseExport(joinContinued(lines[i:end+1]), prefix); ok {
			return i, end, stmt
		}
		i = end
	}
	return -1, -1, exportStmt{}
}

func joinContinued(block []string) string {
	var b strings.Builder
	for _, line := range block {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimSuffix(line, `\`))
		b.WriteString(line)
	}
	return b.String()
}

// parseExport splits "export NAME=value rest" into the value, its quote
// character and the rest of the statement. Values that are not a single
// quoted or bare word are rejected.
func parseExport(stmt, prefix string) (exportStmt, bool) {
	rhs := strings.TrimPrefix(stmt, prefix)
	if rhs == "" {
		return exportStmt{quote: `"`}, true
	}

	var value, rest, quote string
	switch q := rhs[0]; q {
	case '"', '\'':
		end := -1
		for i := 1; i < len(rhs); i++ {
			if q == '"' && rhs[i] == '\\' {
				i++
				continue
			}
			if rhs[i] == q {
				end = i
				break
			}
		}
		if end < 0 {
			return exportStmt{}, false
		}
		value, rest, quote = rhs[1:end], rhs[end+1:], string(q)
	default:
		end := strings.IndexAny(rhs, " \t;")
		if end < 0 {
			end = len(rhs)
		}
		value, rest, quote = rhs[:end], rhs[end:], `"`
		if strings.ContainsAny(value, "\"'`\\") {
			return exportStmt{}, false
		}
	}

	if rest != "" && !strings.ContainsRune(" \t;", rune(rest[0])) {
		return exportStmt{}, false
	}
	return exportStmt{value: value, quote: quote, trailer: rest}, true
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// resolveLink follows path through any chain of symlinks and returns the file
// that should be read and replaced. A dangling link resolves to its target.
func resolveLink(path string) (string, error) {
	const maxLinks = 40
	current := path
	for i := 0; i < maxLinks; i++ {
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			return current, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}
		target, err := os.Readlink(current)
		if err != nil {
			return "", fmt.Errorf("failed to read link %s: %w", current, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = target
	}
	return "", fmt.Errorf("too many levels of symbolic links in %s", path)
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
