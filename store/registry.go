package store

import (
	"os"

	"github.com/autumndb/autumndb/cmn"
)

// Registry holds the name->collection map and creates/destroys
// collections. It is deliberately not thread-safe on its own - all
// mutating access is serialized through the operation engine, which owns
// the registry exclusively.
type Registry struct {
	dataDir     string
	collections map[string]*Collection
}

// NewRegistry returns a registry rooted at dataDir, laid out as
// <dataDir>/<collection>/data|metadata/<doc_id>.
func NewRegistry(dataDir string) *Registry {
	return &Registry{
		dataDir:     dataDir,
		collections: make(map[string]*Collection),
	}
}

// CreateCollection creates collection name on disk and registers it. It is
// idempotent: an already registered name returns the existing Collection,
// and a directory already on disk is adopted, since Collection.Create's
// underlying fs.EnsureDir tolerates a pre-existing directory.
func (r *Registry) CreateCollection(name string) (*Collection, error) {
	if len(name) == 0 || len(name) > cmn.MaxCollectionNameBytes {
		return nil, &cmn.ProtocolError{Msg: "collection name length out of range"}
	}
	if c, ok := r.collections[name]; ok {
		return c, nil
	}
	c := newCollection(name, r.dataDir+"/"+name)
	if err := c.Create(); err != nil {
		return nil, err
	}
	r.collections[name] = c
	return c, nil
}

// DeleteCollection recursively removes name's directory and drops it from
// the registry.
func (r *Registry) DeleteCollection(name string) error {
	c, ok := r.collections[name]
	if !ok {
		return &cmn.NotFoundError{Kind: "collection", Name: name}
	}
	if err := c.Destroy(); err != nil {
		return err
	}
	delete(r.collections, name)
	return nil
}

// Get returns the named collection, or NotFoundError.
func (r *Registry) Get(name string) (*Collection, error) {
	c, ok := r.collections[name]
	if !ok {
		return nil, &cmn.NotFoundError{Kind: "collection", Name: name}
	}
	return c, nil
}

// GetOrOpen returns the named collection, registering a Collection for it
// if it is not yet registered in memory. It does not check whether the
// collection exists on disk and creates no directories; callers that need
// them call Collection.Create.
func (r *Registry) GetOrOpen(name string) (*Collection, error) {
	if c, ok := r.collections[name]; ok {
		return c, nil
	}
	c := newCollection(name, r.dataDir+"/"+name)
	r.collections[name] = c
	return c, nil
}

// Reopen discovers collections left on disk by a prior process run and
// registers them in memory, the startup counterpart to GetOrOpen's
// lazy, on-demand discovery. Errors reading dataDir (including it simply
// not existing yet on a first run) are tolerated - an empty registry is the
// correct result.
func (r *Registry) Reopen() {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := r.collections[e.Name()]; ok {
			continue
		}
		r.collections[e.Name()] = newCollection(e.Name(), r.dataDir+"/"+e.Name())
	}
}

// Names returns every registered collection name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collections))
	for n := range r.collections {
		names = append(names, n)
	}
	return names
}
