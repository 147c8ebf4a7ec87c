// Package cmn provides common constants, configuration, metrics, and the
// error taxonomy shared by AutumnDB's storage, wire, and replication layers.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy shared across the request path.
type (
	// ProtocolError covers malformed frames, unknown opcodes, and length overruns.
	ProtocolError struct{ Msg string }

	// NotFoundError covers a missing collection or document.
	NotFoundError struct{ Kind, Name string }

	// AlreadyExistsError covers a filesystem create collision.
	AlreadyExistsError struct{ Path string }

	// InvalidPayloadError covers a document body that does not parse as JSON.
	InvalidPayloadError struct{ Reason string }

	// FrozenConflictError covers a write attempted against a frozen document.
	FrozenConflictError struct{ Collection, DocID string }

	// IoError wraps a filesystem failure.
	IoError struct {
		Op   string
		Path string
		Err  error
	}

	// PeerUnavailableError covers a UDP/TCP timeout talking to a neighbor.
	PeerUnavailableError struct {
		Neighbor string
		Err      error
	}
)

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("already exists: %s", e.Path)
}

func (e *InvalidPayloadError) Error() string {
	return "invalid payload: " + e.Reason
}

func (e *FrozenConflictError) Error() string {
	return fmt.Sprintf("document %s/%s is frozen", e.Collection, e.DocID)
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

func (e *PeerUnavailableError) Error() string {
	return fmt.Sprintf("peer %s unavailable: %v", e.Neighbor, e.Err)
}

func (e *PeerUnavailableError) Unwrap() error { return e.Err }

// NewIoError wraps a raw filesystem error before logging and propagating it
// up to the caller.
func NewIoError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Path: path, Err: errors.Wrapf(err, "%s %s", op, path)}
}

// IsNotFound reports whether err (or its cause chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsFrozenConflict reports whether err (or its cause chain) is a FrozenConflictError.
func IsFrozenConflict(err error) bool {
	var fc *FrozenConflictError
	return errors.As(err, &fc)
}

// IsAlreadyExists reports whether err (or its cause chain) is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}
