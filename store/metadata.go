package store

import (
	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/fs"
)

// Metadata is the per-document sidecar record: updated_at in UTCLayout and
// is_frozen. updated_at is the logical last-writer-wins version; is_frozen
// is the AAE apply-step write guard.
type Metadata struct {
	UpdatedAt string `json:"updated_at"`
	IsFrozen  bool   `json:"is_frozen"`
}

// metadataOps additionally JSON-encodes/decodes the sidecar record on top
// of the same fs-backed pathname binding documentOps uses.
type metadataOps struct{ dir string }

func (m metadataOps) path(id string) string { return m.dir + "/" + id }

func (m metadataOps) create(id string, md Metadata) error {
	b, err := json.Marshal(md)
	cmn.AssertNoErr(err)
	return fs.Create(m.path(id), b)
}

func (m metadataOps) read(id string) (Metadata, error) {
	var md Metadata
	b, err := fs.Read(m.path(id))
	if err != nil {
		return md, err
	}
	if err := json.Unmarshal(b, &md); err != nil {
		return md, &cmn.InvalidPayloadError{Reason: err.Error()}
	}
	return md, nil
}

func (m metadataOps) write(id string, md Metadata) error {
	b, err := json.Marshal(md)
	cmn.AssertNoErr(err)
	return fs.Update(m.path(id), b)
}

func (m metadataOps) delete(id string) error {
	return fs.Delete(m.path(id))
}

func (m metadataOps) setUpdatedAt(id, ts string) error {
	md, err := m.read(id)
	if err != nil {
		return err
	}
	md.UpdatedAt = ts
	return m.write(id, md)
}

func (m metadataOps) getUpdatedAt(id string) (string, error) {
	md, err := m.read(id)
	if err != nil {
		return "", err
	}
	return md.UpdatedAt, nil
}

func (m metadataOps) setFrozen(id string, frozen bool) error {
	md, err := m.read(id)
	if err != nil {
		return err
	}
	md.IsFrozen = frozen
	return m.write(id, md)
}
