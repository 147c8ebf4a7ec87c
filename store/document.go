// Package store implements the document/metadata storage engine: the
// per-document payload and sidecar operators, the collection operator that
// owns their directory layout and mutex, and the registry mapping
// collection names to collection operators.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/fs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// documentOps is a thin wrapper binding a pathname to fs.
type documentOps struct{ dir string }

func (d documentOps) path(id string) string { return d.dir + "/" + id }

func (d documentOps) create(id string, payload []byte) error {
	return fs.Create(d.path(id), payload)
}

func (d documentOps) update(id string, payload []byte) error {
	return fs.Update(d.path(id), payload)
}

func (d documentOps) read(id string) ([]byte, error) {
	return fs.Read(d.path(id))
}

func (d documentOps) delete(id string) error {
	return fs.Delete(d.path(id))
}

func (d documentOps) exists(id string) bool {
	return fs.Exists(d.path(id))
}

// ValidateJSON confirms payload parses as a single JSON value. The engine
// does not inspect structure beyond JSON validity.
func ValidateJSON(payload []byte) error {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return &cmn.InvalidPayloadError{Reason: err.Error()}
	}
	return nil
}
