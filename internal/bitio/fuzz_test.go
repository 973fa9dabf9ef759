package bitio

import "testing"

// FuzzReader drives a Reader over arbitrary bytes with an arbitrary
// sequence of read widths, the way a corrupted OBU or box payload would
// be walked; the only property under test is that a malformed or
// truncated input never panics, only ever returns an error once the
// cursor runs out of bits.
func FuzzReader(f *testing.F) {
	f.Add([]byte{0x8f, 0xe3}, uint8(4))
	f.Add([]byte{}, uint8(0))
	f.Add([]byte{0xff, 0xff, 0xff, 0xff}, uint8(31))

	f.Fuzz(func(t *testing.T, buf []byte, width uint8) {
		r := NewReader(buf)
		n := int(width%32) + 1
		for i := 0; i < 64; i++ {
			if _, err := r.ReadBits(n); err != nil {
				break
			}
		}
	})
}

// FuzzReadLEB128 checks that decoding a LEB128 value at an arbitrary
// offset into arbitrary bytes never panics, regardless of how the
// continuation bits are set.
func FuzzReadLEB128(f *testing.F) {
	f.Add([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, 0)
	f.Add([]byte{0x01}, 0)

	f.Fuzz(func(t *testing.T, buf []byte, off int) {
		if off < 0 || off > len(buf) {
			off = 0
		}
		ReadLEB128(buf, off)
	})
}
