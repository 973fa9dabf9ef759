package tables

// Partition enumerates decode_partition's ten outcomes (spec.md §4.8.3).
type Partition int

const (
	PartitionNone Partition = iota
	PartitionHorz
	PartitionVert
	PartitionSplit
	PartitionHorzA
	PartitionHorzB
	PartitionVertA
	PartitionVertB
	PartitionHorz4
	PartitionVert4
)

func cdfMass(full []uint16, symbol int) int {
	if symbol == 0 {
		return int(full[0])
	}
	return int(full[symbol]) - int(full[symbol-1])
}

// SplitOrHorzCdf and SplitOrVertCdf derive the 2-symbol CDF used when
// only one of has_rows/has_cols holds (spec.md §4.8 step 3), from the
// current bsl/ctx partition CDF's probability masses rather than a
// fresh uniform prior. A symbol of 1 means SPLIT; 0 means the
// HORZ/VERT leaf pair.
//
// split_or_horz sums the masses of every partition outcome whose split
// is "vertical-alike" (VERT, SPLIT, HORZ_A, VERT_A, VERT_B, and VERT_4
// when the block supports a 4-way split); split_or_vert sums the
// "horizontal-alike" set (HORZ, SPLIT, HORZ_A, HORZ_B, VERT_A, and
// HORZ_4). The complementary mass becomes the probability of the
// HORZ/VERT outcome, capped within (0, 1<<15) (spec.md §9's open
// question: "cap p_sum at 1<<15").
func SplitOrHorzCdf(full []uint16) []uint16 {
	n := len(full) - 1
	psum := cdfMass(full, int(PartitionVert)) +
		cdfMass(full, int(PartitionSplit)) +
		cdfMass(full, int(PartitionHorzA)) +
		cdfMass(full, int(PartitionVertA)) +
		cdfMass(full, int(PartitionVertB))
	if n == 10 {
		psum += cdfMass(full, int(PartitionVert4))
	}
	return derivedTwoSymbolCdf(psum)
}

func SplitOrVertCdf(full []uint16) []uint16 {
	n := len(full) - 1
	psum := cdfMass(full, int(PartitionHorz)) +
		cdfMass(full, int(PartitionSplit)) +
		cdfMass(full, int(PartitionHorzA)) +
		cdfMass(full, int(PartitionHorzB)) +
		cdfMass(full, int(PartitionVertA))
	if n == 10 {
		psum += cdfMass(full, int(PartitionHorz4))
	}
	return derivedTwoSymbolCdf(psum)
}

func derivedTwoSymbolCdf(psum int) []uint16 {
	const precision = 1 << 15
	p0 := clampInt(precision-psum, 1, precision-1)
	return []uint16{uint16(p0), precision, 0}
}

// TxType enumerates the 7 transform-type symbols used by the INTRA_1 set;
// INTRA_2 uses 5 of them, all but V_DCT and H_DCT (spec.md §4.8.n).
type TxType int

const (
	TxTypeIdtx TxType = iota
	TxTypeDctDct
	TxTypeVDct
	TxTypeHDct
	TxTypeAdstAdst
	TxTypeAdstDct
	TxTypeDctAdst
)

// QuantContext buckets base_q_idx into one of 4 default-CDF sets:
// base_q_idx 0, 1..19, 20..59, and 60..255. Values at and above 120
// share the 60..255 bucket.
type QuantContext int

const (
	QCtxLossless QuantContext = iota
	QCtxLowQ
	QCtxMidQ
	QCtxHighQ
)

// ClassifyQuantContext buckets base_q_idx at thresholds 20 and 60; no
// bucket boundary is drawn at 120. qidx==0 (lossless) gets its own bucket since intra
// mode/coefficient statistics differ sharply from even very-low-QP
// lossy coding.
func ClassifyQuantContext(baseQIdx uint8) QuantContext {
	switch {
	case baseQIdx == 0:
		return QCtxLossless
	case baseQIdx < 20:
		return QCtxLowQ
	case baseQIdx < 60:
		return QCtxMidQ
	case baseQIdx < 120:
		return QCtxHighQ
	default:
		return QCtxHighQ
	}
}

// NewCdf returns a freshly seeded n-symbol adaptive CDF: n-1 ascending
// cumulative entries spaced uniformly across [0, 1<<15), a terminal
// 1<<15, and a zeroed adaptation counter — the layout
// internal/entropy.Decoder.ReadSymbol expects.
//
// The AV1 specification's actual default_*_cdf tables are large,
// empirically-trained constants with no derivable structure; this
// module seeds contexts with this uniform prior instead (NewCdfSet
// skews the coefficient CDFs per quantizer context) and lets the
// decoder's own adaptation statistics shape it from there within a
// single tile. See DESIGN.md's CDF-fidelity open question.
func NewCdf(n int) []uint16 {
	cdf := make([]uint16, n+1)
	const precision = 1 << 15
	for i := 0; i < n-1; i++ {
		cdf[i] = uint16(precision * (i + 1) / n)
	}
	cdf[n-1] = precision
	cdf[n] = 0
	return cdf
}

// CdfSet holds one quantizer-context bucket's full complement of
// adaptive CDFs for a tile, allocated fresh per spec.md §4.8.1 ("init
// symbol decoder and CDF tables... defaults selected by quantizer
// context").
type CdfSet struct {
	// Partition[bsl][ctx] is a 10-symbol CDF for bsl in {2,3,4} and an
	// 8-symbol CDF (no HORZ_4/VERT_4) for every other bsl.
	// ctx (0..3) is the above/left partition context spec.md §4.8 step 3
	// derives from the neighboring MI block sizes (tile.partitionCtx).
	Partition [6][4][]uint16

	SkipCdf [3][]uint16 // indexed by skip context 0..2

	YModeCdf [4][]uint16 // indexed by Size_Group, 13 intra modes
	UVModeCFLCdf    [2][]uint16 // [cflNotAllowed, cflAllowed], 13/14 symbols
	AngleDeltaCdf   [8][]uint16 // per directional mode bucket, 7 symbols (-3..3)
	CflSignsCdf     []uint16    // 8 symbols
	CflAlphaCdf     [8][]uint16 // per joint-sign context, 16 symbols

	TxDepthCdf [4][]uint16 // indexed by max_tx_depth bucket 1..4, up to 3 symbols

	IntraTxCdfLarge [13][]uint16 // INTRA_1 set, indexed by direction, 7 symbols
	IntraTxCdfSmall [13][]uint16 // INTRA_2 set, indexed by direction, 5 symbols

	TxbSkipCdf [5][5][]uint16 // [qctx unused here, txSzCtx][ctx], 2 symbols

	EobPtCdf   [2][11][]uint16 // [ptype][eobMultisize], variable symbols
	EobExtraCdf [5][2][11][]uint16 // [txSzCtx][ptype][eobPt-3], 2 symbols

	CoeffBaseEobCdf [5][2][4][]uint16 // [txSzCtx][ptype][ctx], 3 symbols
	CoeffBaseCdf    [5][2][42][]uint16 // [txSzCtx][ptype][ctx], 4 symbols
	CoeffBrCdf      [4][2][21][]uint16 // [min(txSzCtx,TX_32X32)][ptype][brctx], 4 symbols

	DcSignCdf [2][3][]uint16 // [ptype][dcctx], 2 symbols

	FilterIntraPresenceCdf []uint16 // 2 symbols
	FilterIntraModeCdf     []uint16 // 5 symbols
	PaletteYPresenceCdf    []uint16 // 2 symbols
}

func fillArr1(dst [][]uint16, n int) {
	for i := range dst {
		dst[i] = NewCdf(n)
	}
}

// quantContextDelta returns a signed bias, in cdf-precision units,
// applied to the coefficient-related CDFs' seed distributions per
// quantizer-context bucket (spec.md §4.8 step 1: "defaults selected by
// quantizer context"). Lower quantizer contexts get a positive delta,
// which biasedCdf turns into more mass on low symbol indices (for
// txb_skip, symbol 0 is "has coefficients"; for eob_pt, the small eob
// classes); the highest context gets a negative delta and the opposite
// skew. Mode-related CDFs (partition, y_mode, tx_depth,
// ...) are not selected by quantizer context in the AV1 spec, so
// NewCdfSet leaves those uniformly seeded regardless of qctx.
func quantContextDelta(qctx QuantContext) int {
	switch qctx {
	case QCtxLossless:
		return 6000
	case QCtxLowQ:
		return 3000
	case QCtxMidQ:
		return 0
	default: // QCtxHighQ
		return -3000
	}
}

// biasedCdf seeds an n-symbol CDF like NewCdf, then skews the interior
// entries toward lower symbol indices (delta>0) or higher symbol
// indices (delta<0), clamped to stay a valid monotonic CDF.
func biasedCdf(n, delta int) []uint16 {
	cdf := NewCdf(n)
	const precision = 1 << 15
	for i := 0; i < n-1; i++ {
		shifted := int(cdf[i]) + delta*(n-1-i)/n
		cdf[i] = uint16(clampInt(shifted, 1, precision-1))
	}
	for i := 1; i < n-1; i++ {
		if cdf[i] < cdf[i-1] {
			cdf[i] = cdf[i-1]
		}
	}
	return cdf
}

func fillArrBiased(dst [][]uint16, n, delta int) {
	for i := range dst {
		dst[i] = biasedCdf(n, delta)
	}
}

// NewCdfSet allocates a complete, freshly seeded CdfSet for one tile.
// Coefficient-decoding CDFs (txb_skip, eob family, coeff_base[_eob],
// coeff_br, dc_sign) are seeded with a qctx-dependent bias
// (quantContextDelta); every other CDF seeds the same uniform-prior
// shape regardless of qctx, matching the AV1 spec's own restriction of
// quantizer-context-selected defaults to the coefficient syntax
// elements (spec.md §4.8 step 1).
func NewCdfSet(qctx QuantContext) *CdfSet {
	s := &CdfSet{}
	delta := quantContextDelta(qctx)
	for i := range s.Partition {
		// HORZ_4/VERT_4 exist only for bsl in {2,3,4} (16x16..64x64
		// blocks); bsl=1 (8x8) and bsl=5 (128x128) use the 8-symbol set.
		n := 8
		if i == 2 || i == 3 || i == 4 {
			n = 10
		}
		for c := range s.Partition[i] {
			s.Partition[i][c] = NewCdf(n)
		}
	}
	fillArr1(s.SkipCdf[:], 2)
	fillArr1(s.YModeCdf[:], 13)
	s.UVModeCFLCdf[0] = NewCdf(13)
	s.UVModeCFLCdf[1] = NewCdf(14)
	fillArr1(s.AngleDeltaCdf[:], 7)
	s.CflSignsCdf = NewCdf(8)
	fillArr1(s.CflAlphaCdf[:], 16)
	fillArr1(s.TxDepthCdf[:], 3)
	fillArr1(s.IntraTxCdfLarge[:], 7)
	fillArr1(s.IntraTxCdfSmall[:], 5)
	for i := range s.TxbSkipCdf {
		fillArrBiased(s.TxbSkipCdf[i][:], 2, delta)
	}
	for p := range s.EobPtCdf {
		for m := range s.EobPtCdf[p] {
			// eob_pt_16 (m=0) has 5 classes, growing by one class per
			// doubling of the transform's coefficient count, capped at
			// eob_pt_1024's 11 classes (spec.md §4.8 coeffs()).
			n := m + 5
			if n > 11 {
				n = 11
			}
			s.EobPtCdf[p][m] = biasedCdf(n, delta)
		}
	}
	for t := range s.EobExtraCdf {
		for p := range s.EobExtraCdf[t] {
			fillArrBiased(s.EobExtraCdf[t][p][:], 2, delta)
		}
	}
	for t := range s.CoeffBaseEobCdf {
		for p := range s.CoeffBaseEobCdf[t] {
			fillArrBiased(s.CoeffBaseEobCdf[t][p][:], 3, delta)
		}
	}
	for t := range s.CoeffBaseCdf {
		for p := range s.CoeffBaseCdf[t] {
			fillArrBiased(s.CoeffBaseCdf[t][p][:], 4, delta)
		}
	}
	for t := range s.CoeffBrCdf {
		for p := range s.CoeffBrCdf[t] {
			fillArrBiased(s.CoeffBrCdf[t][p][:], 4, delta)
		}
	}
	for p := range s.DcSignCdf {
		fillArrBiased(s.DcSignCdf[p][:], 2, delta)
	}
	s.FilterIntraPresenceCdf = NewCdf(2)
	s.FilterIntraModeCdf = NewCdf(5)
	s.PaletteYPresenceCdf = NewCdf(2)
	return s
}
