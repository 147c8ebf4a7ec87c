package store

import (
	"sync"

	"github.com/karrick/godirwalk"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/fs"
)

// Collection is a directory-backed document store: name, root path, and a
// single mutex serializing every mutating call. It owns the document
// lifecycle (create/update/read/delete) and the paired data/metadata
// sub-directories.
type Collection struct {
	Name string
	root string

	mu   sync.Mutex
	data documentOps
	meta metadataOps
}

const (
	dataSubdir = "data"
	metaSubdir = "metadata"
)

func newCollection(name, root string) *Collection {
	return &Collection{
		Name: name,
		root: root,
		data: documentOps{dir: root + "/" + dataSubdir},
		meta: metadataOps{dir: root + "/" + metaSubdir},
	}
}

// Create lays out the collection's two sub-directories.
func (c *Collection) Create() error {
	if err := fs.EnsureDir(c.data.dir); err != nil {
		return err
	}
	return fs.EnsureDir(c.meta.dir)
}

// Destroy recursively removes the collection's root directory.
func (c *Collection) Destroy() error {
	return fs.RemoveAll(c.root)
}

// CreateDocument writes data and metadata for a new document, with
// is_frozen=false. updated_at defaults to the current UTC time unless
// updatedAt is supplied non-empty (used by AAE apply, which supplies the
// remote timestamp). The two writes are kept paired: if the metadata write
// fails, the payload write is rolled back.
func (c *Collection) CreateDocument(id string, payload []byte, updatedAt string) error {
	if err := ValidateJSON(payload); err != nil {
		return err
	}
	if updatedAt == "" {
		updatedAt = cmn.NowUTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.data.create(id, payload); err != nil {
		return err
	}
	md := Metadata{UpdatedAt: updatedAt, IsFrozen: false}
	if err := c.meta.create(id, md); err != nil {
		// Roll back the payload write so data/ and metadata/ stay paired.
		_ = c.data.delete(id)
		return err
	}
	return nil
}

// UpdateDocument overwrites payload then sets metadata.updated_at, under the
// collection mutex.
func (c *Collection) UpdateDocument(id string, payload []byte, updatedAt string) error {
	if err := ValidateJSON(payload); err != nil {
		return err
	}
	if updatedAt == "" {
		updatedAt = cmn.NowUTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.data.exists(id) {
		return &cmn.NotFoundError{Kind: "document", Name: id}
	}
	md, err := c.meta.read(id)
	if err != nil {
		return err
	}
	if md.IsFrozen {
		return &cmn.FrozenConflictError{Collection: c.Name, DocID: id}
	}
	if err := c.data.update(id, payload); err != nil {
		return err
	}
	md.UpdatedAt = updatedAt
	return c.meta.write(id, md)
}

// OverwritePayload replaces a document's payload without the frozen-flag
// guard UpdateDocument enforces. It exists for the AAE apply step, which
// sets is_frozen=true itself as a write guard against a concurrent local
// client write and must be able to write through it.
func (c *Collection) OverwritePayload(id string, payload []byte) error {
	if err := ValidateJSON(payload); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.data.exists(id) {
		return &cmn.NotFoundError{Kind: "document", Name: id}
	}
	return c.data.update(id, payload)
}

// ReadDocument returns the document payload, under the collection mutex.
func (c *Collection) ReadDocument(id string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.read(id)
}

// ReadDocumentWithUpdatedAt returns an atomic (payload, updated_at)
// snapshot, taken under the single collection mutex so the two never
// straddle a concurrent write.
func (c *Collection) ReadDocumentWithUpdatedAt(id string) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, err := c.data.read(id)
	if err != nil {
		return nil, "", err
	}
	ts, err := c.meta.getUpdatedAt(id)
	if err != nil {
		return nil, "", err
	}
	return payload, ts, nil
}

// DeleteDocument removes both files under the collection mutex.
func (c *Collection) DeleteDocument(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.data.exists(id) {
		return &cmn.NotFoundError{Kind: "document", Name: id}
	}
	if err := c.data.delete(id); err != nil {
		return err
	}
	return c.meta.delete(id)
}

// SetUpdatedAt sets a document's logical version directly - used by the AAE
// apply step once it decides the remote write wins.
func (c *Collection) SetUpdatedAt(id, ts string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.setUpdatedAt(id, ts)
}

// GetUpdatedAt reads a document's logical version.
func (c *Collection) GetUpdatedAt(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.getUpdatedAt(id)
}

// SetFrozen flips the write-guard flag the AAE apply step uses to block a
// concurrent local write while it resolves a remote push.
func (c *Collection) SetFrozen(id string, frozen bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.setFrozen(id, frozen)
}

// DocExists reports whether id is present, under the collection mutex.
func (c *Collection) DocExists(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.exists(id)
}

// DocIDs enumerates every document id in the collection's data/
// sub-directory using godirwalk instead of os.ReadDir.
func (c *Collection) DocIDs() (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := godirwalk.Walk(c.data.dir, &godirwalk.Options{
		Callback: func(_ string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			ids[de.Name()] = struct{}{}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, cmn.NewIoError("doc_ids", c.data.dir, err)
	}
	return ids, nil
}
