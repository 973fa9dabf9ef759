/*
DESCRIPTION
  frame_header.go implements spec.md §4.6: the restricted Frame Header
  parser for the still-image KEY_FRAME/show_frame=1 path — tile_info,
  quantization_params, segmentation_params, delta_q/delta_lf,
  loop_filter/cdef/lr skipping, tx_mode, and film_grain_params skipping,
  plus the derived coded_lossless used by the tile decoder.

  show_existing_frame, a non-KEY_FRAME frame_type, show_frame=0 and
  frame-id numbering are rejected with an explicit UnsupportedFeature
  error at the point they are first read, per spec.md §9's
  open-question guidance, rather than silently parsed and discarded.
  The decoder-model timing fields (temporal_point_info,
  buffer_removal_time) are neither read nor rejected.
*/

package av1

import "github.com/coral-imaging/avifcore/internal/bitio"

const (
	primaryRefNone = 7

	maxSegments  = 8
	segLvlMax    = 8
	segLvlAltQ   = 0

	maxTileWidth    = 4096
	maxTileAreaSb2  = 4096 * 2304
	maxTileCols     = 64
	maxTileRows     = 64

	restorationTilesizeMax = 256
)

var segmentationFeatureBits = [segLvlMax]int{8, 6, 6, 6, 6, 3, 0, 0}
var segmentationFeatureSigned = [segLvlMax]bool{true, true, true, true, true, false, false, false}
var segmentationFeatureMax = [segLvlMax]int32{255, 63, 63, 63, 63, 7, 0, 0}

// TxMode values (spec.md §3).
const (
	TxModeOnly4x4 uint8 = iota
	TxModeLargest
	TxModeSelect
)

// TileInfo is the parsed tile_info() state (spec.md §3).
type TileInfo struct {
	TileCols, TileRows         int
	TileColsLog2, TileRowsLog2 int
	TileSizeBytes              int // 0 when exactly one tile
	ContextUpdateTileID        int
	MiColStarts, MiRowStarts   []int
}

// Segmentation holds the kept and skipped segmentation feature state.
// Only SEG_LVL_ALT_Q is retained for later qindex derivation; the other
// seven per-segment features are still parsed bit-exactly but discarded.
type Segmentation struct {
	Enabled       bool
	AltQEnabled   [maxSegments]bool
	AltQValue     [maxSegments]int32
}

// FrameHdr is the parsed Frame Header state (spec.md §3).
type FrameHdr struct {
	FrameType     uint8 // always KeyFrame in this restricted parser
	ShowFrame     bool
	ErrorResilientMode bool
	DisableCdfUpdate   bool
	AllowScreenContentTools bool
	ForceIntegerMv     bool
	AllowIntrabc       bool

	FrameSizeOverrideFlag bool
	CodedWidth, CodedHeight     uint32
	UpscaledWidth               uint32
	FrameWidth, FrameHeight      uint32
	RenderWidth, RenderHeight   uint32
	MiCols, MiRows              int

	Tile TileInfo

	BaseQIdx                            uint8
	DeltaQYDc                           int32
	DeltaQUDc, DeltaQUAc                int32
	DeltaQVDc, DeltaQVAc                int32
	UsingQMatrix                        bool
	QmY, QmU, QmV                       uint8

	Seg Segmentation

	DeltaQPresent bool
	DeltaQRes     uint8
	DeltaLfPresent bool
	DeltaLfRes     uint8
	DeltaLfMulti   bool

	CodedLossless bool
	AllLossless   bool

	DisableFrameEndUpdateCdf bool

	TxMode uint8
	ReducedTxSet bool

	CdefBits uint32
}

const keyFrame = 0

// ParseFrameHeader parses payload (a Frame Header or Frame OBU payload,
// stripped of its obu_header/size field) against seq. It returns the
// parsed header and the number of bits consumed, so a caller parsing an
// OBU_FRAME can byte-align and continue into tile_group_obu().
func ParseFrameHeader(payload []byte, seq *SeqHdr) (*FrameHdr, int, error) {
	r := bitio.NewReader(payload)
	f := &FrameHdr{}

	if !seq.ReducedStillPictureHeader {
		showExisting, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "show_existing_frame")
		}
		if showExisting != 0 {
			return nil, 0, newFrameErr(KindUnsupportedFeature, "show_existing_frame", "repeating a prior frame is out of scope")
		}

		frameType, err := r.ReadBits(2)
		if err != nil {
			return nil, 0, wrapFrame(err, "frame_type")
		}
		if frameType != keyFrame {
			return nil, 0, newFrameErr(KindUnsupportedFeature, "frame_type", "only KEY_FRAME is supported, got %d", frameType)
		}
		f.FrameType = keyFrame

		show, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "show_frame")
		}
		if show != 1 {
			return nil, 0, newFrameErr(KindUnsupportedFeature, "show_frame", "only show_frame=1 is supported")
		}
		f.ShowFrame = true
		f.ErrorResilientMode = true // forced: frame_type==KEY_FRAME && show_frame
	} else {
		f.FrameType = keyFrame
		f.ShowFrame = true
		f.ErrorResilientMode = true
	}

	disableCdf, err := r.ReadBit()
	if err != nil {
		return nil, 0, wrapFrame(err, "disable_cdf_update")
	}
	f.DisableCdfUpdate = disableCdf != 0

	if seq.SeqForceScreenContentTools == selectScreenContentTools {
		v, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "allow_screen_content_tools")
		}
		f.AllowScreenContentTools = v != 0
	} else {
		f.AllowScreenContentTools = seq.SeqForceScreenContentTools != 0
	}

	if f.AllowScreenContentTools {
		if seq.SeqForceIntegerMv == selectIntegerMv {
			v, err := r.ReadBit()
			if err != nil {
				return nil, 0, wrapFrame(err, "force_integer_mv")
			}
			f.ForceIntegerMv = v != 0
		} else {
			f.ForceIntegerMv = seq.SeqForceIntegerMv != 0
		}
	}
	f.ForceIntegerMv = true // FrameIsIntra is always true in this parser

	if seq.FrameIDNumbersPresentFlag {
		return nil, 0, newFrameErr(KindUnsupportedFeature, "frame_id_numbers_present_flag", "frame id numbering is out of scope")
	}

	if seq.ReducedStillPictureHeader {
		f.FrameSizeOverrideFlag = false
	} else {
		v, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "frame_size_override_flag")
		}
		f.FrameSizeOverrideFlag = v != 0
	}

	if _, err := r.ReadBits(int(seq.OrderHintBits)); err != nil { // order_hint
		return nil, 0, wrapFrame(err, "order_hint")
	}

	// primary_ref_frame = PRIMARY_REF_NONE, not coded (FrameIsIntra always true)
	// refresh_frame_flags = allFrames, not coded (KEY_FRAME && show_frame)

	if err := parseFrameSize(r, seq, f); err != nil {
		return nil, 0, err
	}
	if err := parseRenderSize(r, f); err != nil {
		return nil, 0, err
	}
	if f.AllowScreenContentTools && f.UpscaledWidth == f.FrameWidth {
		v, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "allow_intrabc")
		}
		f.AllowIntrabc = v != 0
	}

	if seq.ReducedStillPictureHeader || f.DisableCdfUpdate {
		f.DisableFrameEndUpdateCdf = true
	} else {
		v, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "disable_frame_end_update_cdf")
		}
		f.DisableFrameEndUpdateCdf = v != 0
	}

	if err := parseTileInfo(r, seq, f); err != nil {
		return nil, 0, err
	}
	if err := parseQuantizationParams(r, seq, f); err != nil {
		return nil, 0, err
	}
	if err := parseSegmentationParams(r, f); err != nil {
		return nil, 0, err
	}
	if err := parseDeltaQParams(r, f); err != nil {
		return nil, 0, err
	}
	if err := parseDeltaLfParams(r, f); err != nil {
		return nil, 0, err
	}

	computeLossless(f)

	if err := parseLoopFilterParams(r, seq, f); err != nil {
		return nil, 0, err
	}
	if err := parseCdefParams(r, seq, f); err != nil {
		return nil, 0, err
	}
	if err := parseLrParams(r, seq, f); err != nil {
		return nil, 0, err
	}

	if f.CodedLossless {
		f.TxMode = TxModeOnly4x4
	} else {
		v, err := r.ReadBit()
		if err != nil {
			return nil, 0, wrapFrame(err, "tx_mode_select")
		}
		if v != 0 {
			f.TxMode = TxModeSelect
		} else {
			f.TxMode = TxModeLargest
		}
	}

	// frame_reference_mode(): reference_select only read when !FrameIsIntra; not reached.
	// skip_mode_params(): skip_mode_present only read when skipModeAllowed, which
	// requires !FrameIsIntra; not reached.
	// allow_warped_motion: only read when !FrameIsIntra; not reached.

	rts, err := r.ReadBit()
	if err != nil {
		return nil, 0, wrapFrame(err, "reduced_tx_set")
	}
	f.ReducedTxSet = rts != 0

	// global_motion_params(): only iterates refs when !FrameIsIntra; not reached.

	if err := skipFilmGrainParams(r, seq, f); err != nil {
		return nil, 0, err
	}

	return f, r.BitPosition(), nil
}

func parseFrameSize(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	if f.FrameSizeOverrideFlag {
		w, err := r.ReadBits(int(seq.FrameWidthBitsMinus1) + 1)
		if err != nil {
			return wrapFrame(err, "frame_width_minus_1")
		}
		h, err := r.ReadBits(int(seq.FrameHeightBitsMinus1) + 1)
		if err != nil {
			return wrapFrame(err, "frame_height_minus_1")
		}
		f.FrameWidth = w + 1
		f.FrameHeight = h + 1
	} else {
		f.FrameWidth = seq.MaxFrameWidthMinus1 + 1
		f.FrameHeight = seq.MaxFrameHeightMinus1 + 1
	}

	// superres_params()
	useSuperres := false
	if seq.EnableSuperres {
		v, err := r.ReadBit()
		if err != nil {
			return wrapFrame(err, "use_superres")
		}
		useSuperres = v != 0
	}
	superresDenom := uint32(8) // SUPERRES_NUM
	if useSuperres {
		v, err := r.ReadBits(3)
		if err != nil {
			return wrapFrame(err, "coded_denom")
		}
		superresDenom = v + 9
	}
	f.UpscaledWidth = f.FrameWidth
	f.FrameWidth = (f.UpscaledWidth*8 + superresDenom/2) / superresDenom

	f.MiCols = 2 * int((f.FrameWidth+7)>>3)
	f.MiRows = 2 * int((f.FrameHeight+7)>>3)
	f.CodedWidth, f.CodedHeight = f.FrameWidth, f.FrameHeight
	return nil
}

func parseRenderSize(r *bitio.Reader, f *FrameHdr) error {
	diff, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "render_and_frame_size_different")
	}
	if diff != 0 {
		w, err := r.ReadBits(16)
		if err != nil {
			return wrapFrame(err, "render_width_minus_1")
		}
		h, err := r.ReadBits(16)
		if err != nil {
			return wrapFrame(err, "render_height_minus_1")
		}
		f.RenderWidth = w + 1
		f.RenderHeight = h + 1
	} else {
		f.RenderWidth = f.UpscaledWidth
		f.RenderHeight = f.FrameHeight
	}
	return nil
}

func tileLog2(blkSize, target int) int {
	k := 0
	for (blkSize << uint(k)) < target {
		k++
	}
	return k
}

func parseTileInfo(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	sbShift := 4
	if seq.Use128x128Superblock {
		sbShift = 5
	}
	sbSize := sbShift + 2
	sbCols := (f.MiCols + (1 << sbShift) - 1) >> sbShift
	sbRows := (f.MiRows + (1 << sbShift) - 1) >> sbShift

	maxTileWidthSb := maxTileWidth >> sbSize
	maxTileAreaSb := maxTileAreaSb2 >> (2 * sbSize)

	minLog2TileCols := tileLog2(maxTileWidthSb, sbCols)
	maxLog2TileCols := tileLog2(1, min(sbCols, maxTileCols))
	maxLog2TileRows := tileLog2(1, min(sbRows, maxTileRows))
	minLog2Tiles := max(minLog2TileCols, tileLog2(maxTileAreaSb, sbRows*sbCols))

	ti := &f.Tile

	uniform, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "uniform_tile_spacing_flag")
	}

	if uniform != 0 {
		log2cols := minLog2TileCols
		for log2cols < maxLog2TileCols {
			inc, err := r.ReadBit()
			if err != nil {
				return wrapFrame(err, "increment_tile_cols_log2")
			}
			if inc == 0 {
				break
			}
			log2cols++
		}
		ti.TileColsLog2 = log2cols
		tileWidthSb := (sbCols + (1 << uint(log2cols)) - 1) >> uint(log2cols)
		var colStarts []int
		for startSb := 0; startSb < sbCols; startSb += tileWidthSb {
			colStarts = append(colStarts, startSb<<sbShift)
		}
		colStarts = append(colStarts, f.MiCols)
		ti.MiColStarts = colStarts
		ti.TileCols = len(colStarts) - 1

		minLog2TileRows := max(minLog2Tiles-log2cols, 0)
		log2rows := minLog2TileRows
		for log2rows < maxLog2TileRows {
			inc, err := r.ReadBit()
			if err != nil {
				return wrapFrame(err, "increment_tile_rows_log2")
			}
			if inc == 0 {
				break
			}
			log2rows++
		}
		ti.TileRowsLog2 = log2rows
		tileHeightSb := (sbRows + (1 << uint(log2rows)) - 1) >> uint(log2rows)
		var rowStarts []int
		for startSb := 0; startSb < sbRows; startSb += tileHeightSb {
			rowStarts = append(rowStarts, startSb<<sbShift)
		}
		rowStarts = append(rowStarts, f.MiRows)
		ti.MiRowStarts = rowStarts
		ti.TileRows = len(rowStarts) - 1
	} else {
		widestTileSb := 0
		var colStarts []int
		startSb := 0
		for startSb < sbCols {
			colStarts = append(colStarts, startSb<<sbShift)
			maxWidth := min(sbCols-startSb, maxTileWidthSb)
			wMinus1, err := r.ReadNS(uint32(maxWidth))
			if err != nil {
				return wrapFrame(err, "width_in_sbs_minus_1")
			}
			sizeSb := int(wMinus1) + 1
			if sizeSb > widestTileSb {
				widestTileSb = sizeSb
			}
			startSb += sizeSb
		}
		colStarts = append(colStarts, f.MiCols)
		ti.MiColStarts = colStarts
		ti.TileCols = len(colStarts) - 1
		ti.TileColsLog2 = tileLog2(1, ti.TileCols)

		tileAreaSb := sbRows * sbCols
		if minLog2Tiles > 0 {
			tileAreaSb >>= uint(minLog2Tiles + 1)
		}
		maxTileHeightSb := max(tileAreaSb/widestTileSb, 1)

		var rowStarts []int
		startSb = 0
		for startSb < sbRows {
			rowStarts = append(rowStarts, startSb<<sbShift)
			maxHeight := min(sbRows-startSb, maxTileHeightSb)
			hMinus1, err := r.ReadNS(uint32(maxHeight))
			if err != nil {
				return wrapFrame(err, "height_in_sbs_minus_1")
			}
			startSb += int(hMinus1) + 1
		}
		rowStarts = append(rowStarts, f.MiRows)
		ti.MiRowStarts = rowStarts
		ti.TileRows = len(rowStarts) - 1
		ti.TileRowsLog2 = tileLog2(1, ti.TileRows)
	}

	if ti.TileColsLog2 > 0 || ti.TileRowsLog2 > 0 {
		v, err := r.ReadBits(ti.TileRowsLog2 + ti.TileColsLog2)
		if err != nil {
			return wrapFrame(err, "context_update_tile_id")
		}
		ti.ContextUpdateTileID = int(v)
		sizeMinus1, err := r.ReadBits(2)
		if err != nil {
			return wrapFrame(err, "tile_size_bytes_minus_1")
		}
		ti.TileSizeBytes = int(sizeMinus1) + 1
	} else {
		ti.ContextUpdateTileID = 0
		ti.TileSizeBytes = 0
	}
	return nil
}

func readDeltaQ(r *bitio.Reader) (int32, error) {
	coded, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if coded == 0 {
		return 0, nil
	}
	v, err := r.ReadSU(7)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseQuantizationParams(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	baseQ, err := r.ReadBits(8)
	if err != nil {
		return wrapFrame(err, "base_q_idx")
	}
	f.BaseQIdx = uint8(baseQ)

	dqydc, err := readDeltaQ(r)
	if err != nil {
		return wrapFrame(err, "delta_q_y_dc")
	}
	f.DeltaQYDc = dqydc

	if seq.NumPlanes > 1 {
		diffUV := false
		if seq.SeparateUVDeltaQ {
			v, err := r.ReadBit()
			if err != nil {
				return wrapFrame(err, "diff_uv_delta")
			}
			diffUV = v != 0
		}
		udc, err := readDeltaQ(r)
		if err != nil {
			return wrapFrame(err, "delta_q_u_dc")
		}
		uac, err := readDeltaQ(r)
		if err != nil {
			return wrapFrame(err, "delta_q_u_ac")
		}
		f.DeltaQUDc, f.DeltaQUAc = udc, uac
		if diffUV {
			vdc, err := readDeltaQ(r)
			if err != nil {
				return wrapFrame(err, "delta_q_v_dc")
			}
			vac, err := readDeltaQ(r)
			if err != nil {
				return wrapFrame(err, "delta_q_v_ac")
			}
			f.DeltaQVDc, f.DeltaQVAc = vdc, vac
		} else {
			f.DeltaQVDc, f.DeltaQVAc = udc, uac
		}
	}

	usingQm, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "using_qmatrix")
	}
	f.UsingQMatrix = usingQm != 0
	if f.UsingQMatrix {
		qy, err := r.ReadBits(4)
		if err != nil {
			return wrapFrame(err, "qm_y")
		}
		f.QmY = uint8(qy)
		qu, err := r.ReadBits(4)
		if err != nil {
			return wrapFrame(err, "qm_u")
		}
		f.QmU = uint8(qu)
		if !seq.SeparateUVDeltaQ {
			f.QmV = f.QmU
		} else {
			qv, err := r.ReadBits(4)
			if err != nil {
				return wrapFrame(err, "qm_v")
			}
			f.QmV = uint8(qv)
		}
	}
	return nil
}

func parseSegmentationParams(r *bitio.Reader, f *FrameHdr) error {
	enabled, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "segmentation_enabled")
	}
	f.Seg.Enabled = enabled != 0
	if !f.Seg.Enabled {
		return nil
	}

	// primary_ref_frame is always PRIMARY_REF_NONE in this parser, so
	// segmentation_update_data is forced true and not coded.
	for i := 0; i < maxSegments; i++ {
		for j := 0; j < segLvlMax; j++ {
			featureEnabled, err := r.ReadBit()
			if err != nil {
				return wrapFrame(err, "feature_enabled")
			}
			var clipped int32
			if featureEnabled != 0 {
				bits := segmentationFeatureBits[j]
				if segmentationFeatureSigned[j] {
					v, err := r.ReadSU(1 + bits)
					if err != nil {
						return wrapFrame(err, "feature_value")
					}
					clipped = clip3(-segmentationFeatureMax[j], segmentationFeatureMax[j], v)
				} else if bits > 0 {
					v, err := r.ReadBits(bits)
					if err != nil {
						return wrapFrame(err, "feature_value")
					}
					clipped = clip3(0, segmentationFeatureMax[j], int32(v))
				}
			}
			if j == segLvlAltQ {
				f.Seg.AltQEnabled[i] = featureEnabled != 0
				f.Seg.AltQValue[i] = clipped
			}
		}
	}
	return nil
}

func parseDeltaQParams(r *bitio.Reader, f *FrameHdr) error {
	if f.BaseQIdx == 0 {
		return nil
	}
	present, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "delta_q_present")
	}
	f.DeltaQPresent = present != 0
	if f.DeltaQPresent {
		v, err := r.ReadBits(2)
		if err != nil {
			return wrapFrame(err, "delta_q_res")
		}
		f.DeltaQRes = uint8(v)
	}
	return nil
}

func parseDeltaLfParams(r *bitio.Reader, f *FrameHdr) error {
	if !f.DeltaQPresent {
		return nil
	}
	if f.AllowIntrabc {
		return nil
	}
	present, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "delta_lf_present")
	}
	f.DeltaLfPresent = present != 0
	if f.DeltaLfPresent {
		v, err := r.ReadBits(2)
		if err != nil {
			return wrapFrame(err, "delta_lf_res")
		}
		f.DeltaLfRes = uint8(v)
		multi, err := r.ReadBit()
		if err != nil {
			return wrapFrame(err, "delta_lf_multi")
		}
		f.DeltaLfMulti = multi != 0
	}
	return nil
}

// computeLossless derives CodedLossless/AllLossless per spec.md §4.6:
// every segment's effective qindex clipped to [0,255] is 0 and all
// per-plane delta_q values are 0.
func computeLossless(f *FrameHdr) {
	allPlaneDeltasZero := f.DeltaQYDc == 0 && f.DeltaQUAc == 0 && f.DeltaQUDc == 0 && f.DeltaQVAc == 0 && f.DeltaQVDc == 0
	f.CodedLossless = true
	maxSeg := 1
	if f.Seg.Enabled {
		maxSeg = maxSegments
	}
	for i := 0; i < maxSeg; i++ {
		qindex := int32(f.BaseQIdx)
		if f.Seg.Enabled && f.Seg.AltQEnabled[i] {
			qindex = clip3(0, 255, qindex+f.Seg.AltQValue[i])
		}
		if qindex != 0 || !allPlaneDeltasZero {
			f.CodedLossless = false
		}
	}
	f.AllLossless = f.CodedLossless && f.FrameWidth == f.UpscaledWidth
}

func parseLoopFilterParams(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	if f.CodedLossless || f.AllowIntrabc {
		return nil
	}
	level0, err := r.ReadBits(6) // loop_filter_level[0]
	if err != nil {
		return wrapFrame(err, "loop_filter_level[0]")
	}
	level1, err := r.ReadBits(6) // loop_filter_level[1]
	if err != nil {
		return wrapFrame(err, "loop_filter_level[1]")
	}
	if seq.NumPlanes > 1 && (level0 > 0 || level1 > 0) {
		if _, err := r.ReadBits(6); err != nil {
			return wrapFrame(err, "loop_filter_level[2]")
		}
		if _, err := r.ReadBits(6); err != nil {
			return wrapFrame(err, "loop_filter_level[3]")
		}
	}
	if _, err := r.ReadBits(3); err != nil {
		return wrapFrame(err, "loop_filter_sharpness")
	}
	deltaEnabled, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "loop_filter_delta_enabled")
	}
	if deltaEnabled != 0 {
		deltaUpdate, err := r.ReadBit()
		if err != nil {
			return wrapFrame(err, "loop_filter_delta_update")
		}
		if deltaUpdate != 0 {
			for i := 0; i < 8; i++ {
				updateRefDelta, err := r.ReadBit()
				if err != nil {
					return wrapFrame(err, "update_ref_delta")
				}
				if updateRefDelta != 0 {
					if _, err := r.ReadSU(7); err != nil {
						return wrapFrame(err, "loop_filter_ref_deltas")
					}
				}
			}
			for i := 0; i < 2; i++ {
				updateModeDelta, err := r.ReadBit()
				if err != nil {
					return wrapFrame(err, "update_mode_delta")
				}
				if updateModeDelta != 0 {
					if _, err := r.ReadSU(7); err != nil {
						return wrapFrame(err, "loop_filter_mode_deltas")
					}
				}
			}
		}
	}
	return nil
}

func parseCdefParams(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	if f.CodedLossless || f.AllowIntrabc || !seq.EnableCdef {
		return nil
	}
	if _, err := r.ReadBits(2); err != nil { // cdef_damping_minus_3
		return wrapFrame(err, "cdef_damping_minus_3")
	}
	bits, err := r.ReadBits(2) // cdef_bits
	if err != nil {
		return wrapFrame(err, "cdef_bits")
	}
	f.CdefBits = bits
	for i := 0; i < 1<<bits; i++ {
		if _, err := r.ReadBits(4); err != nil {
			return wrapFrame(err, "cdef_y_pri_strength")
		}
		if _, err := r.ReadBits(2); err != nil {
			return wrapFrame(err, "cdef_y_sec_strength")
		}
		if seq.NumPlanes > 1 {
			if _, err := r.ReadBits(4); err != nil {
				return wrapFrame(err, "cdef_uv_pri_strength")
			}
			if _, err := r.ReadBits(2); err != nil {
				return wrapFrame(err, "cdef_uv_sec_strength")
			}
		}
	}
	return nil
}

func parseLrParams(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	if f.AllLossless || f.AllowIntrabc || !seq.EnableRestoration {
		return nil
	}
	usesLr := false
	usesChromaLr := false
	for i := 0; i < seq.NumPlanes; i++ {
		lrType, err := r.ReadBits(2)
		if err != nil {
			return wrapFrame(err, "lr_type")
		}
		if lrType != 0 { // RESTORE_NONE
			usesLr = true
			if i > 0 {
				usesChromaLr = true
			}
		}
	}
	if !usesLr {
		return nil
	}
	if seq.Use128x128Superblock {
		if _, err := r.ReadBit(); err != nil {
			return wrapFrame(err, "lr_unit_shift")
		}
	} else {
		shift, err := r.ReadBit()
		if err != nil {
			return wrapFrame(err, "lr_unit_shift")
		}
		if shift != 0 {
			if _, err := r.ReadBit(); err != nil {
				return wrapFrame(err, "lr_unit_extra_shift")
			}
		}
	}
	if seq.SubsamplingX == 1 && seq.SubsamplingY == 1 && usesChromaLr {
		if _, err := r.ReadBit(); err != nil {
			return wrapFrame(err, "lr_uv_shift")
		}
	}
	return nil
}

func skipFilmGrainParams(r *bitio.Reader, seq *SeqHdr, f *FrameHdr) error {
	if !seq.FilmGrainParamsPresent || !f.ShowFrame {
		return nil
	}
	applyGrain, err := r.ReadBit()
	if err != nil {
		return wrapFrame(err, "apply_grain")
	}
	if applyGrain == 0 {
		return nil
	}
	if _, err := r.ReadBits(16); err != nil { // grain_seed
		return wrapFrame(err, "grain_seed")
	}
	// update_grain is forced 1 for KEY_FRAME, not coded.
	numY, err := r.ReadBits(4)
	if err != nil {
		return wrapFrame(err, "num_y_points")
	}
	for i := uint32(0); i < numY; i++ {
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "point_y_value")
		}
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "point_y_scaling")
		}
	}
	chromaScalingFromLuma := false
	if !seq.MonoChrome {
		v, err := r.ReadBit()
		if err != nil {
			return wrapFrame(err, "chroma_scaling_from_luma")
		}
		chromaScalingFromLuma = v != 0
	}
	var numCb, numCr uint32
	if seq.MonoChrome || chromaScalingFromLuma || (seq.SubsamplingX == 1 && seq.SubsamplingY == 1 && numY == 0) {
		numCb, numCr = 0, 0
	} else {
		numCb, err = r.ReadBits(4)
		if err != nil {
			return wrapFrame(err, "num_cb_points")
		}
		for i := uint32(0); i < numCb; i++ {
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "point_cb_value")
			}
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "point_cb_scaling")
			}
		}
		numCr, err = r.ReadBits(4)
		if err != nil {
			return wrapFrame(err, "num_cr_points")
		}
		for i := uint32(0); i < numCr; i++ {
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "point_cr_value")
			}
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "point_cr_scaling")
			}
		}
	}
	if _, err := r.ReadBits(2); err != nil { // grain_scaling_minus_8
		return wrapFrame(err, "grain_scaling_minus_8")
	}
	arCoeffLag, err := r.ReadBits(2)
	if err != nil {
		return wrapFrame(err, "ar_coeff_lag")
	}
	numPosLuma := 2 * int(arCoeffLag) * (int(arCoeffLag) + 1)
	numPosChroma := numPosLuma
	if numY > 0 {
		numPosChroma = numPosLuma + 1
		for i := 0; i < numPosLuma; i++ {
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "ar_coeffs_y_plus_128")
			}
		}
	}
	if chromaScalingFromLuma || numCb > 0 {
		for i := 0; i < numPosChroma; i++ {
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "ar_coeffs_cb_plus_128")
			}
		}
	}
	if chromaScalingFromLuma || numCr > 0 {
		for i := 0; i < numPosChroma; i++ {
			if _, err := r.ReadBits(8); err != nil {
				return wrapFrame(err, "ar_coeffs_cr_plus_128")
			}
		}
	}
	if _, err := r.ReadBits(2); err != nil { // ar_coeff_shift_minus_6
		return wrapFrame(err, "ar_coeff_shift_minus_6")
	}
	if _, err := r.ReadBits(2); err != nil { // grain_scale_shift
		return wrapFrame(err, "grain_scale_shift")
	}
	if numCb > 0 {
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "cb_mult")
		}
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "cb_luma_mult")
		}
		if _, err := r.ReadBits(9); err != nil {
			return wrapFrame(err, "cb_offset")
		}
	}
	if numCr > 0 {
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "cr_mult")
		}
		if _, err := r.ReadBits(8); err != nil {
			return wrapFrame(err, "cr_luma_mult")
		}
		if _, err := r.ReadBits(9); err != nil {
			return wrapFrame(err, "cr_offset")
		}
	}
	if _, err := r.ReadBit(); err != nil { // overlap_flag
		return wrapFrame(err, "overlap_flag")
	}
	if _, err := r.ReadBit(); err != nil { // clip_to_restricted_range
		return wrapFrame(err, "clip_to_restricted_range")
	}
	return nil
}

func clip3(lo, hi, v int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func wrapFrame(err error, element string) error {
	return newFrameErr(KindTruncated, element, "%v", err)
}
