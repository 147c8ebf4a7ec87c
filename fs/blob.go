// Package fs implements the filesystem access primitive: atomic
// create/update/read/delete of a named byte blob. It is the lowest layer of
// the storage engine: store binds a pathname and calls into fs for every
// blob read or write and for directory creation and removal. Directory
// enumeration (store's Registry.Reopen and Collection.DocIDs) reads the
// filesystem directly rather than through fs.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/autumndb/autumndb/cmn"
)

// tempSuffix marks the staging file used by Update's write-then-rename.
const tempSuffix = ".tmp"

// Create writes a brand-new blob at path. It fails with AlreadyExistsError
// if a file is already there.
func Create(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return &cmn.AlreadyExistsError{Path: path}
		}
		return cmn.NewIoError("create", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cmn.NewIoError("create", path, err)
	}
	if err := f.Close(); err != nil {
		return cmn.NewIoError("create", path, err)
	}
	return nil
}

// Update overwrites path with data, truncating any previous content. It is
// atomic from readers' perspective: the new content is written to a temp
// file in the same directory and then renamed over path, so a concurrent
// Read never observes a partial write.
func Update(path string, data []byte) (err error) {
	tmp := path + tempSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return cmn.NewIoError("update", path, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				glog.Errorf("nested (%v): failed to remove %s: %v", err, tmp, rmErr)
			}
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return cmn.NewIoError("update", path, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return cmn.NewIoError("update", path, err)
	}
	if err = f.Close(); err != nil {
		return cmn.NewIoError("update", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return cmn.NewIoError("update", path, err)
	}
	return nil
}

// Read returns the full contents of path.
func Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cmn.NotFoundError{Kind: "file", Name: path}
		}
		return nil, cmn.NewIoError("read", path, err)
	}
	return b, nil
}

// Delete removes path.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &cmn.NotFoundError{Kind: "file", Name: path}
		}
		return cmn.NewIoError("delete", path, err)
	}
	return nil
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDir creates dir (and any missing parents) if it does not exist yet.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

// RemoveAll recursively removes dir - used by collection deletion.
func RemoveAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return cmn.NewIoError("remove_all", dir, err)
	}
	return nil
}
