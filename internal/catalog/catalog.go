package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrDiscovery marks an unusable base directory. Callers treat it as
// non-fatal and degrade to an empty catalog.
var ErrDiscovery = errors.New("base directory unavailable")

// Profile is one isolated application instance, identified by its folder.
// Key is stable for the lifetime of one catalog; a rescan of an unchanged
// directory yields the same Key, which external stores (aliases) rely on.
type Profile struct {
	Key  string // normalized absolute folder path; identity
	Name string // directory base name, used for display
	Dir  string // absolute folder path as discovered
	Exe  string // resolved executable path

	// PID is the pid confirmed by the most recently applied snapshot,
	// 0 when stopped. Written only by the state store consumer.
	PID int
}

// Options controls executable resolution inside a profile folder.
// Candidates are exact filenames checked first; when none exists the folder
// itself is searched one level deep for files whose name starts with Prefix
// and ends with Suffix, case-insensitively. An empty Suffix matches any name.
type Options struct {
	Candidates []string
	Prefix     string
	Suffix     string
}

// NormKey normalizes a folder path into a profile key: absolute, cleaned,
// and lowercased so matching against OS-reported paths is case-insensitive.
func NormKey(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	return strings.ToLower(abs)
}

var trailingNum = regexp.MustCompile(`(\d+)$`)

// sortRank extracts the numeric suffix of a directory name so that
// "Instance 2" orders before "Instance 10". Names without a suffix sort
// after all numbered ones, lexicographically among themselves.
func sortRank(name string) int {
	m := trailingNum.FindStringSubmatch(name)
	if m == nil {
		return 1 << 30
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1 << 30
	}
	return n
}

// Discover enumerates subdirectories of baseDir and resolves each to a
// Profile. Folders yielding no executable are skipped, not an error. The
// returned error wraps ErrDiscovery when baseDir is missing or unreadable;
// the profile list is empty in that case.
func Discover(baseDir string, opts Options) ([]*Profile, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDiscovery, baseDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := sortRank(names[i]), sortRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(baseDir, name)
		exe := findExecutable(dir, opts)
		if exe == "" {
			continue
		}
		profiles = append(profiles, &Profile{
			Key:  NormKey(dir),
			Name: name,
			Dir:  dir,
			Exe:  exe,
		})
	}
	return profiles, nil
}

// findExecutable resolves the executable for one profile folder: exact
// candidates first, then a shallow prefix/suffix scan of the folder itself.
func findExecutable(dir string, opts Options) string {
	for _, cand := range opts.Candidates {
		p := filepath.Join(dir, cand)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	if opts.Prefix == "" && opts.Suffix == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	prefix := strings.ToLower(opts.Prefix)
	suffix := strings.ToLower(opts.Suffix)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		low := strings.ToLower(e.Name())
		if strings.HasPrefix(low, prefix) && strings.HasSuffix(low, suffix) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
