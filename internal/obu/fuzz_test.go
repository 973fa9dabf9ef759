package obu

import "testing"

// FuzzScanOBUs checks that ScanOBUs never panics on arbitrary input,
// whether that's a truncated header, a forbidden bit set, a size field
// overrunning the buffer, or any other malformed byte sequence.
func FuzzScanOBUs(f *testing.F) {
	f.Add([]byte{0x0a, 0x00})             // sequence header, size 0
	f.Add([]byte{})                       // empty
	f.Add([]byte{0x82, 0xff, 0xff, 0xff}) // forbidden bit set, then an unterminated leb128 size

	f.Fuzz(func(t *testing.T, buf []byte) {
		obus, err := ScanOBUs(buf)
		if err == nil {
			RequireExactlyOneSequenceHeader(obus)
		}
	})
}
