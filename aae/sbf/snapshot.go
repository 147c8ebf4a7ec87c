package sbf

import "github.com/autumndb/autumndb/cmn"

// Snapshot is the filter bytes followed by the digest bytes: the content
// summary AAE exchanges over UDP. Two documents are identical iff their
// snapshots are byte-equal - no false negatives for byte-equal content, a
// probabilistic (false-positive-possible) equality test in general, guarded
// by the timestamp handshake that follows it.
type Snapshot struct {
	Filter *Filter
	Digest Digest
}

// Compute builds a Snapshot over payload: the filter and digest are both
// computed over the same leaf-byte sequence.
func Compute(payload []byte, m, k int) (Snapshot, error) {
	leaves, err := LeafBytes(payload)
	if err != nil {
		return Snapshot{}, err
	}
	f := New(m, k)
	f.Add(leaves)
	return Snapshot{Filter: f, Digest: NewDigestFromBytes(leaves)}, nil
}

// ComputeDefault builds a Snapshot using the default SBF parameters.
func ComputeDefault(payload []byte) (Snapshot, error) {
	return Compute(payload, DefaultM, DefaultK)
}

// Encode serializes the snapshot as filter bytes followed by digest bytes.
func (s Snapshot) Encode() []byte {
	return append(s.Filter.Encode(), s.Digest.Encode()...)
}

// DecodeSnapshot parses an Encode'd snapshot. k must be supplied out of
// band, the same parameter both peers have agreed on - m, k, cell-width and
// hash family are part of the on-wire contract and must be identical
// across peers.
func DecodeSnapshot(b []byte, k int) (Snapshot, error) {
	if len(b) < DigestSize {
		return Snapshot{}, &cmn.ProtocolError{Msg: "snapshot payload shorter than digest size"}
	}
	filterBytes := b[:len(b)-DigestSize]
	digestBytes := b[len(b)-DigestSize:]

	f, err := DecodeFilter(filterBytes, k)
	if err != nil {
		return Snapshot{}, err
	}
	d, err := DecodeDigest(digestBytes)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Filter: f, Digest: d}, nil
}

// Equal reports byte-equality of the two snapshots' wire encodings.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Filter.Equal(other.Filter) && s.Digest.Equal(other.Digest)
}
