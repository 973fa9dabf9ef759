package bmff

import (
	"encoding/binary"
	"testing"
)

func fullBox(typ string, version uint8, flags uint32, body []byte) []byte {
	header := make([]byte, 4)
	v := (uint32(version) << 24) | (flags & 0x00ffffff)
	binary.BigEndian.PutUint32(header, v)
	return box32(typ, append(header, body...))
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// buildMeta assembles a minimal meta box containing pitm (item 1), an
// iinf with one av01 infe entry, and an iloc locating one file-relative
// extent at (offset, length).
func buildMeta(itemID uint16, itemType string, offset, length uint32) []byte {
	pitm := fullBox("pitm", 0, 0, be16(itemID))

	infeBody := append(be16(itemID), 0, 0) // item_id, item_protection_index
	infeBody = append(infeBody, []byte(itemType)...)
	infe := fullBox("infe", 2, 0, infeBody)
	iinf := fullBox("iinf", 0, 0, append(be16(1), infe...))

	ilocHeader := []byte{0x44, 0x00} // offset_size=4, length_size=4, base_offset_size=0, index_size=0
	var entry []byte
	entry = append(entry, be16(itemID)...)  // item_id
	entry = append(entry, be16(0)...)       // data_reference_index
	entry = append(entry, be16(1)...)       // extent_count
	entry = append(entry, be32(offset)...)  // extent offset
	entry = append(entry, be32(length)...)  // extent length
	ilocBody := append(ilocHeader, be16(1)...) // item_count=1
	ilocBody = append(ilocBody, entry...)
	iloc := fullBox("iloc", 0, 0, ilocBody)

	metaBody := append(pitm, iinf...)
	metaBody = append(metaBody, iloc...)
	return fullBox("meta", 0, 0, metaBody)
}

func TestParseMetaResolvesPrimaryItem(t *testing.T) {
	metaBytes := buildMeta(1, "av01", 1000, 4)
	metaBox, err := readBoxHeader(metaBytes, 0, int64(len(metaBytes)))
	if err != nil {
		t.Fatal(err)
	}
	m, err := ParseMeta(metaBytes, metaBox)
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasPrimary || m.PrimaryItemID != 1 {
		t.Fatalf("unexpected primary: %+v", m)
	}
	info, ok := m.Items[1]
	if !ok || info.ItemType.String() != "av01" {
		t.Fatalf("unexpected item info: %+v", info)
	}
	loc, ok := m.Locs[1]
	if !ok || len(loc.Extents) != 1 {
		t.Fatalf("unexpected loc: %+v", loc)
	}
	if loc.Extents[0].Offset != 1000 || loc.Extents[0].Length != 4 {
		t.Fatalf("unexpected extent: %+v", loc.Extents[0])
	}
}

func TestParseMetaRejectsTruncatedMeta(t *testing.T) {
	metaBytes := buildMeta(1, "av01", 1000, 4)
	// Truncate the buffer itself (not just a sub-box): the outer meta box's
	// size field still declares the original length, so re-reading its
	// header against the shorter buffer must fail rather than let a later
	// field read run past the slice.
	truncated := metaBytes[:len(metaBytes)-2]
	if _, err := readBoxHeader(truncated, 0, int64(len(truncated))); err == nil {
		t.Fatal("expected truncated meta box to fail header validation")
	}
}
