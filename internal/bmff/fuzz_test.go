package bmff

import "testing"

// FuzzExtractPrimary checks that walking an arbitrary byte sequence as
// an ISOBMFF/HEIF container never panics, whatever box sizes, nesting,
// or iloc/iinf/pitm contents it claims to have.
func FuzzExtractPrimary(f *testing.F) {
	av01 := []byte{0x01, 0x02, 0x03, 0x04}
	ftyp := box32("ftyp", []byte("avifmif1miaf"))
	meta := buildMeta(1, "av01", 0, uint32(len(av01)))
	mdatOffset := uint32(len(ftyp) + len(meta) + 8)
	meta = buildMeta(1, "av01", mdatOffset, uint32(len(av01)))
	mdat := box32("mdat", av01)
	seed := append(append(append([]byte{}, ftyp...), meta...), mdat...)

	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 8, 'f', 't', 'y', 'p'})

	f.Fuzz(func(t *testing.T, file []byte) {
		ExtractPrimary(file)
	})
}
