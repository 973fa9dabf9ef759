package av1

import (
	"testing"

	"github.com/coral-imaging/avifcore/internal/bitio"
)

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

// buildReducedSeqHdr encodes a minimal reduced_still_picture_header
// sequence header: profile 0, still_picture=1, reduced=1, seq_level_idx=0,
// frame_width_bits_minus_1=widthBits-1, frame_height_bits_minus_1=heightBits-1,
// max_frame_width_minus_1=maxWidthMinus1, max_frame_height_minus_1=maxHeightMinus1,
// then the remaining toggle bits and color_config for an 8-bit 4:2:0 frame.
func buildReducedSeqHdr(maxWidthMinus1, maxHeightMinus1 uint32, widthBits, heightBits int) []byte {
	w := &bitWriter{}
	w.writeBits(0, 3) // seq_profile
	w.writeBits(1, 1) // still_picture
	w.writeBits(1, 1) // reduced_still_picture_header
	w.writeBits(0, 5) // seq_level_idx[0]
	w.writeBits(uint32(widthBits-1), 4)
	w.writeBits(uint32(heightBits-1), 4)
	w.writeBits(maxWidthMinus1, widthBits)
	w.writeBits(maxHeightMinus1, heightBits)
	w.writeBits(0, 1) // use_128x128_superblock
	w.writeBits(0, 1) // enable_filter_intra
	w.writeBits(0, 1) // enable_intra_edge_filter
	// reduced path forces screen_content_tools/integer_mv/order_hint_bits, not coded
	w.writeBits(0, 1) // enable_superres
	w.writeBits(0, 1) // enable_cdef
	w.writeBits(0, 1) // enable_restoration
	// color_config: high_bitdepth=0 (profile 0 -> 8bit), mono_chrome=0
	w.writeBits(0, 1) // high_bitdepth
	w.writeBits(0, 1) // mono_chrome
	w.writeBits(0, 1) // color_description_present_flag
	// not BT709/sRGB/Identity (defaults are 2/2/2) -> color_range coded
	w.writeBits(0, 1) // color_range
	// profile 0 forces subsampling 1,1 -> chroma_sample_position coded
	w.writeBits(0, 2) // chroma_sample_position
	w.writeBits(0, 1) // separate_uv_delta_q
	w.writeBits(0, 1) // film_grain_params_present
	return w.bytes()
}

func TestParseSequenceHeaderReducedStillPicture(t *testing.T) {
	payload := buildReducedSeqHdr(15, 15, 4, 4)
	s, err := ParseSequenceHeader(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !s.ReducedStillPictureHeader {
		t.Fatal("expected reduced_still_picture_header=true")
	}
	if s.MaxFrameWidthMinus1 != 15 || s.MaxFrameHeightMinus1 != 15 {
		t.Fatalf("got max dims (%d,%d), want (15,15)", s.MaxFrameWidthMinus1, s.MaxFrameHeightMinus1)
	}
	if s.BitDepth != 8 {
		t.Errorf("got bit depth %d, want 8", s.BitDepth)
	}
	if s.NumPlanes != 3 {
		t.Errorf("got num planes %d, want 3", s.NumPlanes)
	}
	if s.SubsamplingX != 1 || s.SubsamplingY != 1 {
		t.Errorf("got subsampling (%d,%d), want (1,1)", s.SubsamplingX, s.SubsamplingY)
	}
	if s.SeqForceScreenContentTools != selectScreenContentTools {
		t.Errorf("got seq_force_screen_content_tools %d, want SELECT", s.SeqForceScreenContentTools)
	}
	if s.OrderHintBits != 0 {
		t.Errorf("got order_hint_bits %d, want 0", s.OrderHintBits)
	}
}

func TestParseSequenceHeaderMonoChromeForcesFullSubsampling(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0, 3) // seq_profile
	w.writeBits(1, 1) // still_picture
	w.writeBits(1, 1) // reduced_still_picture_header
	w.writeBits(0, 5)
	w.writeBits(3, 4) // frame_width_bits_minus_1=3 -> 4 bits
	w.writeBits(3, 4)
	w.writeBits(7, 4) // max_frame_width_minus_1
	w.writeBits(7, 4)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1) // high_bitdepth
	w.writeBits(1, 1) // mono_chrome
	w.writeBits(0, 1) // color_description_present_flag
	w.writeBits(0, 1) // color_range (mono_chrome path reads this directly)
	w.writeBits(0, 1) // film_grain_params_present (mono_chrome path does not code separate_uv_delta_q)
	w.writeBits(0, 1) // unused trailing bit
	payload := w.bytes()

	s, err := ParseSequenceHeader(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !s.MonoChrome {
		t.Fatal("expected mono_chrome=true")
	}
	if s.NumPlanes != 1 {
		t.Errorf("got num planes %d, want 1", s.NumPlanes)
	}
	if s.SubsamplingX != 1 || s.SubsamplingY != 1 {
		t.Errorf("mono_chrome must force subsampling (1,1), got (%d,%d)", s.SubsamplingX, s.SubsamplingY)
	}
}

func TestParseSequenceHeaderTruncatedReturnsSeqHdrError(t *testing.T) {
	_, err := ParseSequenceHeader([]byte{0x00})
	if err == nil {
		t.Fatal("expected error on truncated payload")
	}
	if _, ok := err.(*SeqHdrError); !ok {
		t.Fatalf("got %T, want *SeqHdrError", err)
	}
}

func TestReadUvlcMatchesExpGolombShape(t *testing.T) {
	// 3 leading zeros, then 1, then 3 value bits "101" -> value = 0b101 + (1<<3) - 1 = 5+7=12
	w := &bitWriter{}
	w.writeBits(0, 3)
	w.writeBits(1, 1)
	w.writeBits(0b101, 3)
	r := bitio.NewReader(w.bytes())
	v, err := readUvlc(r)
	if err != nil {
		t.Fatal(err)
	}
	if v != 12 {
		t.Fatalf("got %d, want 12", v)
	}
}

func TestReadUvlcZeroLeadingZeros(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(1, 1)
	r := bitio.NewReader(w.bytes())
	v, err := readUvlc(r)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("got %d, want 0", v)
	}
}
