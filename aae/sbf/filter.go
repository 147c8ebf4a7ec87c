package sbf

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"

	"github.com/autumndb/autumndb/cmn"
)

// Default filter parameters: a fixed-size integer array of m cells and k
// hash functions. These are part of the on-wire contract and must be
// identical across peers.
const (
	DefaultM = 256
	DefaultK = 4

	cellWidth = 4 // bytes per cell, big-endian fixed-width
)

// Filter is a spectral (counting) Bloom filter: Add increments cells at the
// k hash positions, Query returns the minimum cell value across them. The k
// hash functions are realized as xxhash with k distinct seeds.
type Filter struct {
	m, k  int
	cells []uint32
}

// New returns an empty filter with m cells and k hash functions.
func New(m, k int) *Filter {
	return &Filter{m: m, k: k, cells: make([]uint32, m)}
}

// NewDefault returns a filter using the default parameters (m=256, k=4).
func NewDefault() *Filter { return New(DefaultM, DefaultK) }

// positions returns the k cell indices b hashes to.
func (f *Filter) positions(b []byte) []int {
	pos := make([]int, f.k)
	for i := 0; i < f.k; i++ {
		h := xxhash.NewS64(uint64(i))
		_, _ = h.Write(b)
		pos[i] = int(h.Sum64() % uint64(f.m))
	}
	return pos
}

// Add increments the cells at b's k hash positions.
func (f *Filter) Add(b []byte) {
	for _, p := range f.positions(b) {
		f.cells[p]++
	}
}

// Query returns the minimum cell value across b's k hash positions - the
// filter's approximate membership frequency for b.
func (f *Filter) Query(b []byte) uint32 {
	min := uint32(0)
	for i, p := range f.positions(b) {
		if i == 0 || f.cells[p] < min {
			min = f.cells[p]
		}
	}
	return min
}

// M returns the cell count.
func (f *Filter) M() int { return f.m }

// K returns the hash function count.
func (f *Filter) K() int { return f.k }

// Encode serializes the filter as m big-endian 4-byte cells.
func (f *Filter) Encode() []byte {
	out := make([]byte, len(f.cells)*cellWidth)
	for i, c := range f.cells {
		binary.BigEndian.PutUint32(out[i*cellWidth:], c)
	}
	return out
}

// DecodeFilter parses an Encode'd filter. k must be supplied out of band (it
// is not itself part of the cell array) by whatever protocol version both
// peers have agreed on.
func DecodeFilter(b []byte, k int) (*Filter, error) {
	if len(b)%cellWidth != 0 {
		return nil, &cmn.ProtocolError{Msg: "spectral bloom filter payload not a multiple of cell width"}
	}
	m := len(b) / cellWidth
	f := New(m, k)
	for i := range f.cells {
		f.cells[i] = binary.BigEndian.Uint32(b[i*cellWidth:])
	}
	return f, nil
}

// Equal reports whether f and other have byte-identical cell arrays.
func (f *Filter) Equal(other *Filter) bool {
	if f.m != other.m || len(f.cells) != len(other.cells) {
		return false
	}
	for i := range f.cells {
		if f.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}
