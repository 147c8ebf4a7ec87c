// Package sbf implements the spectral Bloom filter and rolling digest: the
// probabilistic content summary AAE uses to short-circuit no-op pushes.
// Both summaries are computed over the same byte sequence: the
// concatenation of a document's JSON leaf values in JSON iteration order.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package sbf

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/autumndb/autumndb/cmn"
)

// frame tracks one nesting level of the token stream so LeafBytes can tell
// an object key from an object/array value apart - both arrive as the same
// json.Token shapes, so the only way to distinguish them is to track
// position the way a recursive-descent parser would.
type frame struct {
	inObject  bool
	expectKey bool // only meaningful when inObject
}

// LeafBytes recurses into payload's objects/arrays and appends the UTF-8
// encoding of each primitive leaf in JSON iteration order, excluding
// structural tokens and object keys. It walks encoding/json's streaming
// Decoder token by token rather than unmarshaling into
// map[string]interface{}, because only the token stream preserves the
// document's original key order - a map round trip would randomize it.
func LeafBytes(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var (
		out   bytes.Buffer
		stack []frame
	)

	// atValuePosition reports whether the next primitive token is a leaf
	// value (true) or an object key (false), and advances the top frame's
	// key/value alternation.
	atValuePosition := func() bool {
		if len(stack) == 0 {
			return true // top-level scalar document
		}
		top := &stack[len(stack)-1]
		if !top.inObject {
			return true // array elements are always values
		}
		if top.expectKey {
			top.expectKey = false
			return false
		}
		top.expectKey = true
		return true
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &cmn.InvalidPayloadError{Reason: err.Error()}
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				atValuePosition()
				stack = append(stack, frame{inObject: true, expectKey: true})
			case '[':
				atValuePosition()
				stack = append(stack, frame{inObject: false})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		case string:
			if atValuePosition() {
				out.WriteString(v)
			}
		case json.Number:
			atValuePosition()
			out.WriteString(v.String())
		case bool:
			atValuePosition()
			out.WriteString(strconv.FormatBool(v))
		case nil:
			atValuePosition()
			out.WriteString("null")
		}
	}
	return out.Bytes(), nil
}
