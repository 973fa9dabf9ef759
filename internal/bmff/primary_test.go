package bmff

import "testing"

// buildFile assembles ftyp + meta + mdat into a single file buffer, where
// meta's iloc extent points at the av01 bytes' absolute offset inside mdat.
func buildFile(t *testing.T, itemType string, av01 []byte) []byte {
	t.Helper()
	ftyp := box32("ftyp", []byte("avifmif1miaf"))
	mdatHeader := []byte{0, 0, 0, 0, 'm', 'd', 'a', 't'} // placeholder, fixed below

	// mdat payload starts right after ftyp + meta + mdat's own 8-byte
	// header, but meta's size depends on nothing mdat-related, so compute
	// in two passes: build meta first with a placeholder offset, measure,
	// then rebuild with the real offset.
	placeholderOffset := uint32(0)
	meta := buildMeta(1, itemType, placeholderOffset, uint32(len(av01)))
	mdatPayloadOffset := uint32(len(ftyp) + len(meta) + len(mdatHeader))
	meta = buildMeta(1, itemType, mdatPayloadOffset, uint32(len(av01)))

	mdat := box32("mdat", av01)
	_ = mdatHeader

	out := append([]byte{}, ftyp...)
	out = append(out, meta...)
	out = append(out, mdat...)
	return out
}

func TestExtractPrimarySuccess(t *testing.T) {
	av01 := []byte{0x12, 0x34, 0x56, 0x78, 0x9a}
	file := buildFile(t, "av01", av01)
	p, err := ExtractPrimary(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Payload) != string(av01) {
		t.Fatalf("got payload %x, want %x", p.Payload, av01)
	}
	if p.ItemID != 1 {
		t.Fatalf("got item id %d, want 1", p.ItemID)
	}
}

func TestExtractPrimaryRejectsNonAv01(t *testing.T) {
	file := buildFile(t, "hvc1", []byte{0x01, 0x02})
	_, err := ExtractPrimary(file)
	if err == nil {
		t.Fatal("expected error for non-av01 primary item")
	}
	bmffErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", err)
	}
	if bmffErr.Kind != KindUnsupportedItem || bmffErr.Reason != ReasonNotAv01 {
		t.Fatalf("unexpected error: %+v", bmffErr)
	}
}

func TestExtractPrimaryNoMeta(t *testing.T) {
	file := box32("ftyp", []byte("isom"))
	_, err := ExtractPrimary(file)
	if err == nil {
		t.Fatal("expected error when no meta box present")
	}
}

func TestExtractPrimaryWithIspeDimensions(t *testing.T) {
	av01 := []byte{0xde, 0xad, 0xbe, 0xef}
	// Build a meta with an ispe property associated to item 1, nested
	// inside iprp/ipco + ipma.
	pitm := fullBox("pitm", 0, 0, be16(1))
	infeBody := append(be16(1), 0, 0)
	infeBody = append(infeBody, []byte("av01")...)
	infe := fullBox("infe", 2, 0, infeBody)
	iinf := fullBox("iinf", 0, 0, append(be16(1), infe...))

	ispe := fullBox("ispe", 0, 0, append(be32(64), be32(48)...))
	ipco := box32("ipco", ispe)
	ipmaBody := append([]byte{}, be32(1)...) // entry_count
	ipmaBody = append(ipmaBody, be16(1)...)  // item_id
	ipmaBody = append(ipmaBody, 1, 1)        // assoc_count=1, [essential=0|index=1]
	ipma := fullBox("ipma", 0, 0, ipmaBody)
	iprp := box32("iprp", append(ipco, ipma...))

	ilocHeader := []byte{0x44, 0x00}
	var entry []byte
	entry = append(entry, be16(1)...)
	entry = append(entry, be16(0)...)
	entry = append(entry, be16(1)...)
	// Offset patched below once total layout is known.
	entry = append(entry, be32(0)...)
	entry = append(entry, be32(uint32(len(av01)))...)
	ilocBody := append(ilocHeader, be16(1)...)
	ilocBody = append(ilocBody, entry...)
	iloc := fullBox("iloc", 0, 0, ilocBody)

	metaBody := append(pitm, iinf...)
	metaBody = append(metaBody, iprp...)
	metaBody = append(metaBody, iloc...)
	meta := fullBox("meta", 0, 0, metaBody)

	ftyp := box32("ftyp", []byte("avifmif1miaf"))
	mdatOffset := uint32(len(ftyp) + len(meta) + 8)

	// Patch the extent offset in-place: it's the last 8 bytes before the
	// length field inside iloc's entry (offset then length, each 4 bytes).
	offsetFieldPos := len(meta) - 4 /*length*/ - 4 /*offset*/
	be := be32(mdatOffset)
	copy(meta[offsetFieldPos:offsetFieldPos+4], be)

	mdat := box32("mdat", av01)
	file := append([]byte{}, ftyp...)
	file = append(file, meta...)
	file = append(file, mdat...)

	p, err := ExtractPrimary(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Payload) != string(av01) {
		t.Fatalf("got payload %x, want %x", p.Payload, av01)
	}
	if !p.HasIspe || p.Width != 64 || p.Height != 48 {
		t.Fatalf("unexpected ispe result: %+v", p)
	}
}
