package sbf

import (
	"encoding/binary"

	"github.com/autumndb/autumndb/cmn"
)

// DigestSize is PH2's fixed digest length.
const DigestSize = 16

// lanes splits the digest into independent 64-bit polynomial accumulators
// so the whole thing is DigestSize bytes without reusing a single 64-bit
// hash padded with zeroes - PH2 exists specifically to catch cases where
// the spectral Bloom filter's cell counts match but content differs, so it
// needs independent entropy from the filter's own hash family.
const lanes = DigestSize / 8

// primes are the polynomial bases for each lane, distinct odd primes so the
// two lanes diverge on inputs that happen to collide under one of them.
var primes = [lanes]uint64{1000000007, 31}

// Digest is a rolling polynomial hash (PH2): an append-only polynomial hash
// over a byte sequence producing a fixed-length fingerprint.
type Digest struct {
	acc [lanes]uint64
}

// NewDigestFromBytes computes PH2 over b in one pass.
func NewDigestFromBytes(b []byte) Digest {
	var d Digest
	d.Append(b)
	return d
}

// Append folds b into the rolling hash - "append-only": each call only ever
// extends the accumulator, it never re-reads earlier bytes.
func (d *Digest) Append(b []byte) {
	for lane := 0; lane < lanes; lane++ {
		acc := d.acc[lane]
		base := primes[lane]
		for _, c := range b {
			acc = acc*base + uint64(c) + 1
		}
		d.acc[lane] = acc
	}
}

// Encode serializes the digest as DigestSize big-endian bytes.
func (d Digest) Encode() []byte {
	out := make([]byte, DigestSize)
	for lane := 0; lane < lanes; lane++ {
		binary.BigEndian.PutUint64(out[lane*8:], d.acc[lane])
	}
	return out
}

// DecodeDigest parses an Encode'd digest.
func DecodeDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, &cmn.ProtocolError{Msg: "rolling digest payload must be exactly 16 bytes"}
	}
	for lane := 0; lane < lanes; lane++ {
		d.acc[lane] = binary.BigEndian.Uint64(b[lane*8:])
	}
	return d, nil
}

// Equal reports byte-for-byte equality of two digests.
func (d Digest) Equal(other Digest) bool { return d.acc == other.acc }
