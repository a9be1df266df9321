package bitset

import (
	"math/bits"
	"sync/atomic"
)

// BitSet is a thread-safe, lock-free bitset of fixed length.
type BitSet struct {
	words []atomic.Uint64
	size  uint64
}

// New creates a new BitSet holding size bits, all clear.
func New(size uint64) *BitSet {
	return &BitSet{
		words: make([]atomic.Uint64, (size+63)/64),
		size:  size,
	}
}

// Test returns true if the bit at the given index is set.
func (b *BitSet) Test(i uint64) bool {
	if i >= b.size {
		return false
	}
	return b.words[i>>6].Load()&(uint64(1)<<(i&63)) != 0
}

// SetRange sets every bit in [lo, hi).
func (b *BitSet) SetRange(lo, hi uint64) {
	hi = min(hi, b.size)
	for lo < hi {
		w := lo >> 6
		mask := rangeMask(lo, hi)
		b.words[w].Or(mask)
		lo = (w + 1) << 6
	}
}

// AllSet reports whether every bit in [lo, hi) is set.
// An empty range is trivially set.
func (b *BitSet) AllSet(lo, hi uint64) bool {
	hi = min(hi, b.size)
	for lo < hi {
		w := lo >> 6
		mask := rangeMask(lo, hi)
		if b.words[w].Load()&mask != mask {
			return false
		}
		lo = (w + 1) << 6
	}
	return true
}

// NextClear returns the index of the first clear bit in [from, to), or -1.
func (b *BitSet) NextClear(from, to uint64) int64 {
	to = min(to, b.size)
	for from < to {
		w := from >> 6
		mask := rangeMask(from, to)
		clear := ^b.words[w].Load() & mask
		if clear != 0 {
			return int64(w<<6 + uint64(bits.TrailingZeros64(clear)))
		}
		from = (w + 1) << 6
	}
	return -1
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	return b.CountRange(0, b.size)
}

// CountRange returns the number of set bits in [lo, hi).
func (b *BitSet) CountRange(lo, hi uint64) int {
	hi = min(hi, b.size)
	count := 0
	for lo < hi {
		w := lo >> 6
		count += bits.OnesCount64(b.words[w].Load() & rangeMask(lo, hi))
		lo = (w + 1) << 6
	}
	return count
}

// rangeMask returns the mask of bits in the word containing lo that fall into [lo, hi).
func rangeMask(lo, hi uint64) uint64 {
	w := lo >> 6
	start := lo & 63
	end := uint64(64)
	if hi < (w+1)<<6 {
		end = hi & 63
	}
	m := ^uint64(0) << start
	if end < 64 {
		m &= (uint64(1) << end) - 1
	}
	return m
}
