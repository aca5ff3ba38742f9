// Package environ maintains the environment handed to build subprocesses and
// optionally persists toolchain search paths into a shell start-up file.
package environ

import (
	"os"
	"sort"
	"strings"

	"github.com/bitswalk/xtc/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the environ package
func SetLogger(l *logs.Logger) {
	log = l
}

// Well-known search path variables
const (
	VarPath          = "PATH"
	VarLDLibraryPath = "LD_LIBRARY_PATH"
	listSeparator    = ":"
)

// Contains reports whether entry is one of the colon-separated segments of list.
// Segments are compared exactly, so /opt/x does not match /opt/xtc/bin.
func Contains(list, entry string) bool {
	if list == "" || entry == "" {
		return false
	}
	for _, seg := range strings.Split(list, listSeparator) {
		if seg == entry {
			return true
		}
	}
	return false
}

// PrependUnique puts entry in front of current unless it is already a segment
// of it. Applying it twice with the same entry is the same as applying it once.
func PrependUnique(current, entry string) string {
	if entry == "" || Contains(current, entry) {
		return current
	}
	if current == "" {
		return entry
	}
	return entry + listSeparator + current
}

// PrependAll prepends every entry not yet present. The result lists the new
// entries in the order given, ahead of current.
func PrependAll(current string, entries ...string) string {
	for i := len(entries) - 1; i >= 0; i-- {
		current = PrependUnique(current, entries[i])
	}
	return current
}

// Environment is the live variable mapping used for every spawned subprocess.
// It is owned by a single executor and is not safe for concurrent use.
type Environment struct {
	vars map[string]string
}

// New builds an Environment from KEY=VALUE pairs
func New(pairs []string) *Environment {
	e := &Environment{vars: make(map[string]string, len(pairs))}
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		e.vars[key] = value
	}
	return e
}

// FromOS builds an Environment seeded from the current process
func FromOS() *Environment {
	return New(os.Environ())
}

// Get returns the value of key, or "" when unset
func (e *Environment) Get(key string) string {
	return e.vars[key]
}

// Lookup returns the value of key and whether it is set
func (e *Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Set assigns key
func (e *Environment) Set(key, value string) {
	e.vars[key] = value
}

// Prepend adds entries to the front of the search path variable key,
// skipping segments already present. It reports whether the value changed.
func (e *Environment) Prepend(key string, entries ...string) bool {
	before := e.vars[key]
	after := PrependAll(before, entries...)
	if after == before {
		return false
	}
	e.vars[key] = after
	log.Debug("Updated search path", "var", key, "value", after)
	return true
}

// Environ returns the mapping as sorted KEY=VALUE pairs
func (e *Environment) Environ() []string {
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
