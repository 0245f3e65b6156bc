// Package visibility classifies projects as publicly visible or not,
// backed by a persistent cache and a one-shot remote enumeration.
package visibility

import (
	"os"
	"sync"

	"github.com/BurntSushi/toml"
)

// RepoRecord describes one remote repository record used for the
// one-shot enumeration.
type RepoRecord struct {
	Name      string
	IsPrivate bool
}

// Enumerator fetches the full set of remote repository records. It is
// called at most once per process.
type Enumerator func() ([]RepoRecord, error)

// Resolver answers public/private for a project name, backed by a
// persistent cache on disk and a one-shot remote enumeration.
type Resolver struct {
	mu         sync.Mutex
	path       string
	cache      map[string]bool // name -> isPublic
	enumerate  Enumerator
	enumerated bool
}

// NewResolver loads the cache from path (empty if absent) and wires the
// enumerator used on first unknown name.
func NewResolver(path string, enumerate Enumerator) (*Resolver, error) {
	cache, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Resolver{path: path, cache: cache, enumerate: enumerate}, nil
}

// IsPublic answers public/private for name. On first unknown name, it
// consults the one-shot remote enumeration; answers public only when an
// entry exists and is-private is false, otherwise private (conservative
// default). All answers are cached and flushed to disk after each write.
func (r *Resolver) IsPublic(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[name]; ok {
		return v, nil
	}

	if !r.enumerated {
		r.enumerated = true
		if records, err := r.enumerate(); err == nil {
			for _, rec := range records {
				r.cache[rec.Name] = !rec.IsPrivate
			}
		}
	}

	v, ok := r.cache[name]
	if !ok {
		v = false
		r.cache[name] = v
	}

	if err := r.flush(); err != nil {
		return v, err
	}
	return v, nil
}

func (r *Resolver) flush() error {
	wrapper := struct {
		Visibility map[string]bool `toml:"visibility"`
	}{Visibility: r.cache}

	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(wrapper)
}

func load(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	var wrapper struct {
		Visibility map[string]bool `toml:"visibility"`
	}
	if err := toml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Visibility == nil {
		wrapper.Visibility = map[string]bool{}
	}
	return wrapper.Visibility, nil
}
