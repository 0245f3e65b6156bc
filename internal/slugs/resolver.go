// Package slugs resolves on-disk project directories to canonical slugs
// and tracks slug renames across daemon restarts.
package slugs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// markerDir is the opt-in subdirectory that, if present, marks a
// directory as a tracked project.
const markerDir = ".facility"

// markerFile is the externally-owned frontmatter file this system reads,
// never writes, to learn a project's canonical slug.
const markerFile = "project.md"

type frontmatter struct {
	ContentSlug string `yaml:"content_slug"`
	Slug        string `yaml:"slug"`
}

// parseFrontmatter extracts the YAML block delimited by "---" lines at the
// top of a project.md file. A file with no closed frontmatter block yields
// a zero-value frontmatter rather than an error.
func parseFrontmatter(data []byte) frontmatter {
	var fm frontmatter

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return fm
	}

	block := strings.Join(lines[1:end], "\n")
	_ = yaml.Unmarshal([]byte(block), &fm)
	return fm
}

// Resolver maps on-disk project directories to canonical slugs, caching
// lookups for the lifetime of the process.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]*string // dir path -> slug, nil means "not tracked"
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*string)}
}

// Resolve returns the canonical slug for dir, or "" and false if dir has
// no opt-in marker directory (not a tracked project). A process-wide
// cache accelerates repeated lookups.
func (r *Resolver) Resolve(dir string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[dir]; ok {
		if cached == nil {
			return "", false
		}
		return *cached, true
	}

	slug, ok := resolveUncached(dir)
	if !ok {
		r.cache[dir] = nil
		return "", false
	}
	r.cache[dir] = &slug
	return slug, true
}

// ClearCache empties the resolver's lookup cache.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*string)
}

func resolveUncached(dir string) (string, bool) {
	markerPath := filepath.Join(dir, markerDir)
	if info, err := os.Stat(markerPath); err != nil || !info.IsDir() {
		return "", false
	}

	fmPath := filepath.Join(markerPath, markerFile)
	var fm frontmatter
	if data, err := os.ReadFile(fmPath); err == nil {
		fm = parseFrontmatter(data)
	}

	if fm.ContentSlug != "" {
		return fm.ContentSlug, true
	}
	if fm.Slug != "" {
		return fm.Slug, true
	}
	return filepath.Base(dir), true
}

// BuildMap scans every immediate subdirectory of root and resolves each
// to a slug, skipping directories with no opt-in marker. The resulting
// map is keyed by directory basename.
func (r *Resolver) BuildMap(root string) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if slug, ok := resolveUncached(dir); ok {
			out[e.Name()] = slug
		}
	}
	return out, nil
}

// ResolveSessionDir matches an encoded session directory name against the
// canonical organization root's actual on-disk project directories,
// sorted longest-first so "repo-x" wins over "repo". The canonical root,
// with slashes replaced by dashes, followed by a dash separator, must
// prefix encoded; otherwise there is no match. Returns the matched
// directory's basename.
func ResolveSessionDir(orgRoot, encoded string) (string, bool) {
	entries, err := os.ReadDir(orgRoot)
	if err != nil {
		return "", false
	}

	prefix := dashEncode(orgRoot) + "-"
	if len(encoded) <= len(prefix) || encoded[:len(prefix)] != prefix {
		return "", false
	}
	remainder := encoded[len(prefix):]

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		if len(remainder) >= len(name) && remainder[:len(name)] == name {
			return name, true
		}
	}
	return "", false
}

func dashEncode(path string) string {
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out[i] = '-'
		} else {
			out[i] = path[i]
		}
	}
	return string(out)
}

// Rename records one directory whose slug changed between two slug maps.
type Rename struct {
	Dir string
	Old string
	New string
}

// Diff compares a freshly built slug map against a previously persisted
// one and returns the set of directory names whose slug changed,
// old -> new.
func Diff(previous, current map[string]string) []Rename {
	var renames []Rename
	for dir, newSlug := range current {
		if oldSlug, ok := previous[dir]; ok && oldSlug != newSlug {
			renames = append(renames, Rename{Dir: dir, Old: oldSlug, New: newSlug})
		}
	}
	return renames
}

// LoadMap reads a persisted slug map from path. A missing file yields an
// empty map, not an error.
func LoadMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	var wrapper struct {
		Slugs map[string]string `toml:"slugs"`
	}
	if err := toml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Slugs == nil {
		wrapper.Slugs = map[string]string{}
	}
	return wrapper.Slugs, nil
}

// SaveMap persists the slug map to path as TOML.
func SaveMap(path string, m map[string]string) error {
	wrapper := struct {
		Slugs map[string]string `toml:"slugs"`
	}{Slugs: m}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(wrapper)
}
