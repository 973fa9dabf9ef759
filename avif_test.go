package avifcore

import (
	"encoding/binary"
	"testing"

	"github.com/coral-imaging/avifcore/internal/tile"
)

// --- minimal ISOBMFF box builders, mirroring internal/bmff's test helpers
// (unexported there, so duplicated here for this package's integration
// test) ---

func box32(typ string, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], []byte(typ))
	copy(out[8:], payload)
	return out
}

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

func buildMeta(itemID uint16, itemType string, offset, length uint32) []byte {
	pitm := fullBox("pitm", 0, 0, be16(itemID))

	infeBody := append(be16(itemID), 0, 0)
	infeBody = append(infeBody, []byte(itemType)...)
	infe := fullBox("infe", 2, 0, infeBody)
	iinf := fullBox("iinf", 0, 0, append(be16(1), infe...))

	ilocHeader := []byte{0x44, 0x00}
	var entry []byte
	entry = append(entry, be16(itemID)...)
	entry = append(entry, be16(0)...)
	entry = append(entry, be16(1)...)
	entry = append(entry, be32(offset)...)
	entry = append(entry, be32(length)...)
	ilocBody := append(ilocHeader, be16(1)...)
	ilocBody = append(ilocBody, entry...)
	iloc := fullBox("iloc", 0, 0, ilocBody)

	metaBody := append(pitm, iinf...)
	metaBody = append(metaBody, iloc...)
	return fullBox("meta", 0, 0, metaBody)
}

// buildAvifFile assembles ftyp + meta + mdat so av01Payload lands at the
// iloc extent meta records, mirroring internal/bmff/primary_test.go's
// buildFile.
func buildAvifFile(av01Payload []byte) []byte {
	ftyp := box32("ftyp", []byte("avifmif1miaf"))
	mdatHeaderLen := 8
	meta := buildMeta(1, "av01", 0, uint32(len(av01Payload)))
	mdatOffset := uint32(len(ftyp) + len(meta) + mdatHeaderLen)
	meta = buildMeta(1, "av01", mdatOffset, uint32(len(av01Payload)))
	mdat := box32("mdat", av01Payload)

	out := append([]byte{}, ftyp...)
	out = append(out, meta...)
	out = append(out, mdat...)
	return out
}

// --- minimal OBU wrapping, mirroring internal/obu/obu_test.go's helpers ---

func obuBytes(obuType byte, payload []byte) []byte {
	h := obuType<<3 | 0x02 // has_size_field set, extension off
	size := encodeLEB128(uint64(len(payload)))
	out := append([]byte{h}, size...)
	out = append(out, payload...)
	return out
}

func encodeLEB128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

const (
	obuTypeSequenceHeader = 1
	obuTypeFrameHeader    = 3
	obuTypeTileGroup      = 4
)

// bitWriter mirrors internal/av1's test-only MSB-first bit writer.
type bitWriter struct {
	bits []int
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, int((v>>uint(i))&1))
	}
}

func (w *bitWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, b := range w.bits {
		if b != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// reducedSeqHdrPayload builds a sequence header payload matching
// internal/av1/sequence_header_test.go's buildReducedSeqHdr(15, 15, 4, 4):
// profile 0, still_picture reduced header, 16x16 max frame size, 8-bit
// 4:2:0.
func reducedSeqHdrPayload() []byte {
	w := &bitWriter{}
	w.writeBits(0, 3) // seq_profile
	w.writeBits(1, 1) // still_picture
	w.writeBits(1, 1) // reduced_still_picture_header
	w.writeBits(0, 5) // seq_level_idx[0]
	w.writeBits(3, 4) // frame_width_bits_minus_1 = 3 -> 4 bits
	w.writeBits(3, 4) // frame_height_bits_minus_1 = 3 -> 4 bits
	w.writeBits(15, 4) // max_frame_width_minus_1
	w.writeBits(15, 4) // max_frame_height_minus_1
	w.writeBits(0, 1) // use_128x128_superblock
	w.writeBits(0, 1) // enable_filter_intra
	w.writeBits(0, 1) // enable_intra_edge_filter
	w.writeBits(0, 1) // enable_superres
	w.writeBits(0, 1) // enable_cdef
	w.writeBits(0, 1) // enable_restoration
	w.writeBits(0, 1) // high_bitdepth
	w.writeBits(0, 1) // mono_chrome
	w.writeBits(0, 1) // color_description_present_flag
	w.writeBits(0, 1) // color_range
	w.writeBits(0, 2) // chroma_sample_position
	w.writeBits(0, 1) // separate_uv_delta_q
	w.writeBits(0, 1) // film_grain_params_present
	return w.bytes()
}

// losslessFrameHdrPayload builds a frame header payload matching
// internal/av1/frame_header_test.go's
// TestParseFrameHeaderReducedStillPictureDimensions: base_q_idx=0, a
// single tile, coded_lossless=true, tx_mode=ONLY_4X4, against a sequence
// header built by reducedSeqHdrPayload.
func losslessFrameHdrPayload() []byte {
	w := &bitWriter{}
	w.writeBits(0, 1) // disable_cdf_update
	w.writeBits(0, 1) // allow_screen_content_tools
	w.writeBits(0, 1) // render_and_frame_size_different
	w.writeBits(1, 1) // uniform_tile_spacing_flag
	w.writeBits(0, 8) // base_q_idx = 0
	w.writeBits(0, 1) // delta_q_y_dc: delta_coded
	w.writeBits(0, 1) // delta_q_u_dc: delta_coded
	w.writeBits(0, 1) // delta_q_u_ac: delta_coded
	w.writeBits(0, 1) // using_qmatrix
	w.writeBits(0, 1) // segmentation_enabled
	w.writeBits(0, 1) // reduced_tx_set
	return w.bytes()
}

func repeatingBytes(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(0x53 + i*37)
	}
	return buf
}

func TestDecodeEndToEndSingleTileStillPicture(t *testing.T) {
	var av01 []byte
	av01 = append(av01, obuBytes(obuTypeSequenceHeader, reducedSeqHdrPayload())...)
	av01 = append(av01, obuBytes(obuTypeFrameHeader, losslessFrameHdrPayload())...)
	av01 = append(av01, obuBytes(obuTypeTileGroup, repeatingBytes(256))...)

	file := buildAvifFile(av01)

	img, err := Decode(file, Options{})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if img.Width != 16 || img.Height != 16 {
		t.Fatalf("got dimensions (%d,%d), want (16,16)", img.Width, img.Height)
	}
	if img.Frame.MiCols != 4 || img.Frame.MiRows != 4 {
		t.Fatalf("got mi grid (%d,%d), want (4,4)", img.Frame.MiCols, img.Frame.MiRows)
	}
	if !img.Frame.CodedLossless {
		t.Fatal("expected coded_lossless=true")
	}
	stats, ok := img.TileStats[[2]int{0, 0}]
	if !ok {
		t.Fatal("expected a result for tile (0,0)")
	}
	if stats.BlocksDecoded == 0 {
		t.Fatal("expected at least one block decoded")
	}
	if !stats.ReachedMilestones[tile.MilestonePartitionDone] {
		t.Fatal("expected MilestonePartitionDone to be reached")
	}
}

func TestDecodeRejectsMissingFrameHeader(t *testing.T) {
	var av01 []byte
	av01 = append(av01, obuBytes(obuTypeSequenceHeader, reducedSeqHdrPayload())...)
	file := buildAvifFile(av01)

	if _, err := Decode(file, Options{}); err == nil {
		t.Fatal("expected an error when no frame header obu is present")
	}
}

func TestDecodeRejectsTileGroupBeforeFrameHeader(t *testing.T) {
	var av01 []byte
	av01 = append(av01, obuBytes(obuTypeSequenceHeader, reducedSeqHdrPayload())...)
	av01 = append(av01, obuBytes(obuTypeTileGroup, repeatingBytes(64))...)
	av01 = append(av01, obuBytes(obuTypeFrameHeader, losslessFrameHdrPayload())...)
	file := buildAvifFile(av01)

	if _, err := Decode(file, Options{}); err == nil {
		t.Fatal("expected an error when a tile_group obu precedes its frame header")
	}
}

func TestDecodeRejectsNonAv01Primary(t *testing.T) {
	file := buildAvifFileWithItemType("hvc1", []byte{0x01, 0x02, 0x03})
	if _, err := Decode(file, Options{}); err == nil {
		t.Fatal("expected an error for a non-av01 primary item")
	}
}

func buildAvifFileWithItemType(itemType string, payload []byte) []byte {
	ftyp := box32("ftyp", []byte("avifmif1miaf"))
	mdatHeaderLen := 8
	meta := buildMeta(1, itemType, 0, uint32(len(payload)))
	mdatOffset := uint32(len(ftyp) + len(meta) + mdatHeaderLen)
	meta = buildMeta(1, itemType, mdatOffset, uint32(len(payload)))
	mdat := box32("mdat", payload)

	out := append([]byte{}, ftyp...)
	out = append(out, meta...)
	out = append(out, mdat...)
	return out
}
