package av1

import "testing"

func reducedSeq() *SeqHdr {
	return &SeqHdr{
		ReducedStillPictureHeader: true,
		SeqForceScreenContentTools: selectScreenContentTools,
		SeqForceIntegerMv:          selectIntegerMv,
		OrderHintBits:              0,
		FrameWidthBitsMinus1:       3,
		FrameHeightBitsMinus1:      3,
		MaxFrameWidthMinus1:        15,
		MaxFrameHeightMinus1:       15,
		NumPlanes:                  3,
		SubsamplingX:               1,
		SubsamplingY:               1,
	}
}

// TestParseFrameHeaderReducedStillPictureDimensions covers spec.md's
// concrete scenario: max_frame_width_minus_1=15, max_frame_height_minus_1=15
// with a reduced_still_picture_header sequence yields a 16x16 frame and a
// 4x4 mode-info grid.
func TestParseFrameHeaderReducedStillPictureDimensions(t *testing.T) {
	seq := reducedSeq()

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
	payload := w.bytes()

	fh, _, err := ParseFrameHeader(payload, seq)
	if err != nil {
		t.Fatal(err)
	}
	if fh.FrameWidth != 16 || fh.FrameHeight != 16 {
		t.Fatalf("got (%d,%d), want (16,16)", fh.FrameWidth, fh.FrameHeight)
	}
	if fh.MiCols != 4 || fh.MiRows != 4 {
		t.Fatalf("got mi grid (%d,%d), want (4,4)", fh.MiCols, fh.MiRows)
	}
	if !fh.CodedLossless {
		t.Fatal("expected coded_lossless=true for base_q_idx=0")
	}
	if fh.TxMode != TxModeOnly4x4 {
		t.Fatalf("got tx_mode %d, want ONLY_4X4", fh.TxMode)
	}
	if fh.Tile.TileCols != 1 || fh.Tile.TileRows != 1 {
		t.Fatalf("got tile grid (%d,%d), want (1,1)", fh.Tile.TileCols, fh.Tile.TileRows)
	}
	if fh.Tile.TileSizeBytes != 0 {
		t.Fatalf("got tile_size_bytes %d, want 0 for a single tile", fh.Tile.TileSizeBytes)
	}
}

// TestParseFrameHeaderNonZeroQIdxIsNotLossless exercises the non-lossless
// path: loop_filter_params and read_tx_mode's coded tx_mode_select branch.
func TestParseFrameHeaderNonZeroQIdxIsNotLossless(t *testing.T) {
	seq := reducedSeq()

	w := &bitWriter{}
	w.writeBits(0, 1)  // disable_cdf_update
	w.writeBits(0, 1)  // allow_screen_content_tools
	w.writeBits(0, 1)  // render_and_frame_size_different
	w.writeBits(1, 1)  // uniform_tile_spacing_flag
	w.writeBits(10, 8) // base_q_idx = 10
	w.writeBits(0, 1)  // delta_q_y_dc: delta_coded
	w.writeBits(0, 1)  // delta_q_u_dc: delta_coded
	w.writeBits(0, 1)  // delta_q_u_ac: delta_coded
	w.writeBits(0, 1)  // using_qmatrix
	w.writeBits(0, 1)  // segmentation_enabled
	w.writeBits(0, 1)  // delta_q_present
	w.writeBits(0, 6)  // loop_filter_level[0]
	w.writeBits(0, 6)  // loop_filter_level[1]
	w.writeBits(0, 3)  // loop_filter_sharpness
	w.writeBits(0, 1)  // loop_filter_delta_enabled
	w.writeBits(1, 1)  // tx_mode_select
	w.writeBits(0, 1)  // reduced_tx_set
	payload := w.bytes()

	fh, _, err := ParseFrameHeader(payload, seq)
	if err != nil {
		t.Fatal(err)
	}
	if fh.CodedLossless {
		t.Fatal("expected coded_lossless=false for base_q_idx=10")
	}
	if fh.TxMode != TxModeSelect {
		t.Fatalf("got tx_mode %d, want TX_MODE_SELECT", fh.TxMode)
	}
}

func TestParseFrameHeaderRejectsInterFrameType(t *testing.T) {
	seq := reducedSeq()
	seq.ReducedStillPictureHeader = false

	w := &bitWriter{}
	w.writeBits(0, 1) // show_existing_frame
	w.writeBits(1, 2) // frame_type = INTER_FRAME (not KEY_FRAME)
	payload := w.bytes()

	_, _, err := ParseFrameHeader(payload, seq)
	if err == nil {
		t.Fatal("expected UnsupportedFeature error for non-KEY_FRAME frame_type")
	}
	ferr, ok := err.(*FrameHdrError)
	if !ok {
		t.Fatalf("got %T, want *FrameHdrError", err)
	}
	if ferr.Kind != KindUnsupportedFeature {
		t.Fatalf("got kind %v, want UnsupportedFeature", ferr.Kind)
	}
}

func TestParseFrameHeaderRejectsShowExistingFrame(t *testing.T) {
	seq := reducedSeq()
	seq.ReducedStillPictureHeader = false

	w := &bitWriter{}
	w.writeBits(1, 1) // show_existing_frame = 1
	payload := w.bytes()

	_, _, err := ParseFrameHeader(payload, seq)
	if err == nil {
		t.Fatal("expected UnsupportedFeature error for show_existing_frame")
	}
}
