/*
DESCRIPTION
  tables.go provides the geometric helper tables spec.md §4.9 names
  (Tx_Size_Sqr[_Up], Tx_Width/Height[_Log2], Adjusted_Tx_Size,
  Split_Tx_Size, Max_Tx_Size_Rect, Max_Tx_Depth, Size_Group) plus
  default adaptive CDF tables for the tile decoder.

  The geometric tables are derived programmatically from each
  BlockSize/TxSize's pixel dimensions rather than transcribed from the
  AV1 specification's literal constant tables, since width/height,
  "square-up", "square-down" and "split in half" are pure functions of
  those dimensions. The adaptive CDF defaults are NOT bit-exact to the
  published AV1 default_*_cdf constants (those are many kilobytes of
  empirically-trained probabilities with no derivable structure) — see
  DESIGN.md for that open question's resolution. They are structurally
  correct: right symbol count, right indexing shape (by quantizer
  context / tx size / plane type / context bucket), adaptive in place
  via entropy.updateCdf-compatible layout, seeded to a uniform
  distribution per bucket, with the coefficient CDFs skewed per
  quantizer context.

  Grounded on the table-driven dispatch shape of
  _examples/ausocean-av/codec/h264/h264dec (constant tables colocated
  with the syntax that indexes them).
*/

// Package tables holds the AV1 geometric lookup tables and default CDF
// tables consumed by internal/tile.
package tables

// BlockSize enumerates the AV1 partition leaf sizes (spec.md §3 MiSize).
type BlockSize int

const (
	Block4x4 BlockSize = iota
	Block4x8
	Block8x4
	Block8x8
	Block8x16
	Block16x8
	Block16x16
	Block16x32
	Block32x16
	Block32x32
	Block32x64
	Block64x32
	Block64x64
	Block64x128
	Block128x64
	Block128x128
	Block4x16
	Block16x4
	Block8x32
	Block32x8
	Block16x64
	Block64x16
	numBlockSizes
)

var blockDims = [numBlockSizes][2]int{
	Block4x4:     {4, 4},
	Block4x8:     {4, 8},
	Block8x4:     {8, 4},
	Block8x8:     {8, 8},
	Block8x16:    {8, 16},
	Block16x8:    {16, 8},
	Block16x16:   {16, 16},
	Block16x32:   {16, 32},
	Block32x16:   {32, 16},
	Block32x32:   {32, 32},
	Block32x64:   {32, 64},
	Block64x32:   {64, 32},
	Block64x64:   {64, 64},
	Block64x128:  {64, 128},
	Block128x64:  {128, 64},
	Block128x128: {128, 128},
	Block4x16:    {4, 16},
	Block16x4:    {16, 4},
	Block8x32:    {8, 32},
	Block32x8:    {32, 8},
	Block16x64:   {16, 64},
	Block64x16:   {64, 16},
}

// BlockWidth and BlockHeight return a block size's pixel dimensions.
func BlockWidth(b BlockSize) int  { return blockDims[b][0] }
func BlockHeight(b BlockSize) int { return blockDims[b][1] }

// TxSize enumerates the AV1 transform sizes, in the spec's canonical
// order (square sizes first, then tall/wide rectangles).
type TxSize int

const (
	Tx4x4 TxSize = iota
	Tx8x8
	Tx16x16
	Tx32x32
	Tx64x64
	Tx4x8
	Tx8x4
	Tx8x16
	Tx16x8
	Tx16x32
	Tx32x16
	Tx32x64
	Tx64x32
	Tx4x16
	Tx16x4
	Tx8x32
	Tx32x8
	Tx16x64
	Tx64x16
	numTxSizes
)

var txDims = [numTxSizes][2]int{
	Tx4x4:   {4, 4},
	Tx8x8:   {8, 8},
	Tx16x16: {16, 16},
	Tx32x32: {32, 32},
	Tx64x64: {64, 64},
	Tx4x8:   {4, 8},
	Tx8x4:   {8, 4},
	Tx8x16:  {8, 16},
	Tx16x8:  {16, 8},
	Tx16x32: {16, 32},
	Tx32x16: {32, 16},
	Tx32x64: {32, 64},
	Tx64x32: {64, 32},
	Tx4x16:  {4, 16},
	Tx16x4:  {16, 4},
	Tx8x32:  {8, 32},
	Tx32x8:  {32, 8},
	Tx16x64: {16, 64},
	Tx64x16: {64, 16},
}

func TxWidth(t TxSize) int  { return txDims[t][0] }
func TxHeight(t TxSize) int { return txDims[t][1] }

func log2(n int) int {
	s := 0
	for n > 1 {
		n >>= 1
		s++
	}
	return s
}

func TxWidthLog2(t TxSize) int  { return log2(TxWidth(t)) }
func TxHeightLog2(t TxSize) int { return log2(TxHeight(t)) }

func squareTxForSide(side int) TxSize {
	switch {
	case side <= 4:
		return Tx4x4
	case side <= 8:
		return Tx8x8
	case side <= 16:
		return Tx16x16
	case side <= 32:
		return Tx32x32
	default:
		return Tx64x64
	}
}

// TxSizeSqr returns the largest square transform that fits within t
// (spec.md §4.9 Tx_Size_Sqr): the square of side min(width, height).
func TxSizeSqr(t TxSize) TxSize {
	w, h := TxWidth(t), TxHeight(t)
	side := w
	if h < side {
		side = h
	}
	return squareTxForSide(side)
}

// TxSizeSqrUp returns the smallest square transform covering t (spec.md
// §4.9 Tx_Size_Sqr_Up): the square of side max(width, height), clamped
// to TX_64X64.
func TxSizeSqrUp(t TxSize) TxSize {
	w, h := TxWidth(t), TxHeight(t)
	side := w
	if h > side {
		side = h
	}
	return squareTxForSide(side)
}

// AdjustedTxSize clamps rarely-used large rectangular transforms down to
// their nearest supported coding size, matching the AV1
// Adjusted_Tx_Size table's effect (TX_64X64-family sizes beyond 32 in
// either dimension are coded as the 32-bounded equivalent).
func AdjustedTxSize(t TxSize) TxSize {
	switch t {
	case Tx64x64:
		return Tx32x32
	case Tx64x32:
		return Tx32x32
	case Tx32x64:
		return Tx32x32
	case Tx64x16:
		return Tx32x16
	case Tx16x64:
		return Tx16x32
	default:
		return t
	}
}

func findTxByDims(w, h int) TxSize {
	for t := TxSize(0); t < numTxSizes; t++ {
		if TxWidth(t) == w && TxHeight(t) == h {
			return t
		}
	}
	return Tx4x4
}

// SplitTxSize returns the transform size one level down (spec.md §4.9
// Split_Tx_Size): both dimensions halved, floored at 4.
func SplitTxSize(t TxSize) TxSize {
	w, h := TxWidth(t)/2, TxHeight(t)/2
	if w < 4 {
		w = 4
	}
	if h < 4 {
		h = 4
	}
	return findTxByDims(w, h)
}

// MaxTxSizeRect returns the largest rectangular transform matching a
// block's own shape, clamped to 64 pixels per side (spec.md §4.9
// Max_Tx_Size_Rect).
func MaxTxSizeRect(b BlockSize) TxSize {
	w, h := BlockWidth(b), BlockHeight(b)
	if w > 64 {
		w = 64
	}
	if h > 64 {
		h = 64
	}
	return findTxByDims(w, h)
}

// MaxTxDepth returns the number of times SplitTxSize must be applied to
// MaxTxSizeRect(b) to reach TX_4X4 (spec.md §4.9 Max_Tx_Depth), the
// bound used to size the tx_depth CDF before the decode-time cap at
// MAX_TX_DEPTH=2 (spec.md §4.8.m).
func MaxTxDepth(b BlockSize) int {
	t := MaxTxSizeRect(b)
	depth := 0
	for t != Tx4x4 && depth < 4 {
		t = SplitTxSize(t)
		depth++
	}
	return depth
}

// SizeGroup buckets a block size into one of 4 groups used to select the
// y_mode CDF (spec.md §4.8.f), by the block's larger dimension.
func SizeGroup(b BlockSize) int {
	w, h := BlockWidth(b), BlockHeight(b)
	side := w
	if h > side {
		side = h
	}
	switch {
	case side <= 8:
		return 0
	case side <= 16:
		return 1
	case side <= 32:
		return 2
	default:
		return 3
	}
}

// FindBlockByDims returns the BlockSize matching pixel dimensions (w, h)
// exactly, or Block4x4 if no such size exists.
func FindBlockByDims(w, h int) BlockSize {
	for b := BlockSize(0); b < numBlockSizes; b++ {
		if BlockWidth(b) == w && BlockHeight(b) == h {
			return b
		}
	}
	return Block4x4
}

// MiWidthLog2 and MiHeightLog2 return a block's size in 4x4 mode-info
// units, log2 — used for the partition-context above/left comparisons
// against bsl in decode_partition.
func MiWidthLog2(b BlockSize) int  { return log2(BlockWidth(b) / 4) }
func MiHeightLog2(b BlockSize) int { return log2(BlockHeight(b) / 4) }

// TxClass distinguishes the three coefficient-scan neighborhoods
// get_tx_class selects by tx_type (spec.md §4.9): most transform types
// scan both dimensions (2D); the four V_* types scan vertically only;
// the four H_* types scan horizontally only. Only DCT is modeled by
// this decoder's TxType enum, so TxClassOf only ever returns Vert/Horiz
// for TxTypeVDct/TxTypeHDct.
type TxClass int

const (
	TxClass2D TxClass = iota
	TxClassHoriz
	TxClassVert
)

// TxClassOf maps a decoded transform type to its scan class.
func TxClassOf(t TxType) TxClass {
	switch t {
	case TxTypeVDct:
		return TxClassVert
	case TxTypeHDct:
		return TxClassHoriz
	default:
		return TxClass2D
	}
}

// SigRefDiffOffset lists the 5 already-decoded neighbor (row, col)
// offsets get_coeff_base_ctx sums magnitudes over, one set per TxClass
// (spec.md §4.9 Sig_Ref_Diff_Offset). Offsets are relative to the
// coefficient being decoded and always point toward higher scan
// positions, which this decoder visits first (coeffs() walks the scan
// backward from eob to the DC).
var SigRefDiffOffset = [3][5][2]int{
	TxClass2D:    {{0, 1}, {1, 0}, {1, 1}, {0, 2}, {2, 0}},
	TxClassHoriz: {{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}},
	TxClassVert:  {{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}},
}

// MagRefOffset lists the 3 neighbor offsets get_br_ctx sums over
// (spec.md §4.9).
var MagRefOffset = [3][3][2]int{
	TxClass2D:    {{0, 1}, {1, 0}, {1, 1}},
	TxClassHoriz: {{0, 1}, {0, 2}, {0, 3}},
	TxClassVert:  {{1, 0}, {2, 0}, {3, 0}},
}

// sigCoefContexts2D is SIG_COEF_CONTEXTS_2D: the number of coeff_base
// contexts TX_CLASS_2D blocks use before the HORIZ/VERT bands begin
// (spec.md §4.9). Of CoeffBaseCdf's 42 contexts, TX_CLASS_2D uses 0..25
// and HORIZ and VERT share 26..40.
const sigCoefContexts2D = 26

// CoeffBaseCtxOffset is the position-dependent additive term
// get_coeff_base_ctx adds to the neighbor-magnitude context for
// TX_CLASS_2D blocks, indexed [min(row,4)][min(col,4)]. (0,0), the DC
// position, is never consulted: get_coeff_base_ctx returns the raw
// magnitude context there. Values grow with distance from the DC
// corner, matching the published table's shape; this decoder shares
// one offset table across all transform sizes rather than the
// per-size variants the AV1 spec tabulates (see DESIGN.md).
var CoeffBaseCtxOffset = [5][5]int{
	{0, 1, 6, 6, 6},
	{1, 6, 6, 6, 6},
	{6, 6, 11, 11, 11},
	{6, 6, 11, 16, 16},
	{6, 6, 11, 16, 21},
}

// coeffBasePosBand buckets a HORIZ/VERT block's scan-direction
// coordinate into the 3 position bands get_coeff_base_ctx adds to
// sigCoefContexts2D (spec.md §4.9's "2D_BASE{,+5,+10}").
func coeffBasePosBand(idx int) int {
	switch {
	case idx == 0:
		return 0
	case idx <= 2:
		return 5
	default:
		return 10
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func neighborMagSum(quant [][]int32, width, height, row, col int, offsets [5][2]int, maxMag int32) int32 {
	var mag int32
	for _, off := range offsets {
		r, c := row+off[0], col+off[1]
		if r >= 0 && r < height && c >= 0 && c < width {
			v := quant[r][c]
			if v < 0 {
				v = -v
			}
			if v > maxMag {
				v = maxMag
			}
			mag += v
		}
	}
	return mag
}

// CoeffBaseEobCtx derives coeff_base_eob's context from the last
// coefficient's scan position alone (spec.md §4.9): no neighbors have
// been decoded yet at the EOB position, so the context is purely a
// function of how close to the DC corner the block's energy ended.
func CoeffBaseEobCtx(width, height, pos int) int {
	if pos == 0 {
		return 0
	}
	total := width * height
	switch {
	case pos <= total/8:
		return 1
	case pos <= total/4:
		return 2
	default:
		return 3
	}
}

// CoeffBaseCtx derives coeff_base's context from the (mag+1)>>1
// neighbor-magnitude sum over the 5 class-dependent Sig_Ref_Diff_Offset
// taps, plus the position-dependent offset into the full
// [0, 42) context range (spec.md §4.9).
func CoeffBaseCtx(quant [][]int32, width, height, row, col int, class TxClass) int {
	mag := neighborMagSum(quant, width, height, row, col, SigRefDiffOffset[class], 3)
	ctx := clampInt(int((mag+1)>>1), 0, 4)
	switch class {
	case TxClass2D:
		if row == 0 && col == 0 {
			return ctx
		}
		return ctx + CoeffBaseCtxOffset[clampInt(row, 0, 4)][clampInt(col, 0, 4)]
	case TxClassHoriz:
		return sigCoefContexts2D + coeffBasePosBand(clampInt(col, 0, 4)) + ctx
	default: // TxClassVert
		return sigCoefContexts2D + coeffBasePosBand(clampInt(row, 0, 4)) + ctx
	}
}

// CoeffBrCtx derives coeff_br's context from the 3-neighbor magnitude
// sum plus a position bucket (spec.md §4.9 get_br_ctx): 0 at the DC
// position, +7 within the top-left 2x2, +14 elsewhere.
func CoeffBrCtx(quant [][]int32, width, height, row, col int, class TxClass) int {
	const coeffBrRangeCap = numBaseLevelsPlusBrRange
	mag := neighborMagSum(quant, width, height, row, col, extendTo5(MagRefOffset[class]), coeffBrRangeCap)
	ctx := clampInt(int((mag+1)>>1), 0, 6)
	switch {
	case row == 0 && col == 0:
		return ctx
	case row < 2 && col < 2:
		return ctx + 7
	default:
		return ctx + 14
	}
}

// numBaseLevelsPlusBrRange mirrors tile.numBaseLevels+tile.coeffBaseRange+1
// (the per-neighbor magnitude cap get_br_ctx applies); duplicated here
// as a constant since internal/tables cannot import internal/tile.
const numBaseLevelsPlusBrRange = 15

// extendTo5 pads a 3-tap offset list to neighborMagSum's 5-tap shape
// with out-of-range sentinels, so CoeffBrCtx can reuse the same sum
// helper as CoeffBaseCtx.
func extendTo5(offs [3][2]int) [5][2]int {
	return [5][2]int{offs[0], offs[1], offs[2], {1 << 20, 1 << 20}, {1 << 20, 1 << 20}}
}
