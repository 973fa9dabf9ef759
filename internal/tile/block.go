package tile

import (
	"github.com/coral-imaging/avifcore/internal/av1"
	"github.com/coral-imaging/avifcore/internal/tables"
)

// intraMode is decode_block's y_mode / uv_mode result: one of the 13
// AV1 intra prediction modes.
type intraMode int

const (
	dcPred intraMode = iota
	vPred
	hPred
	d45Pred
	d135Pred
	d113Pred
	d157Pred
	d203Pred
	d67Pred
	smoothPred
	smoothVPred
	smoothHPred
	paethPred
	uvCflPred // only valid as a uv_mode value, when cflAllowed
)

// isDirectional reports whether a mode reads an angle_delta (spec.md
// §4.8.f/g): the 8 non-smooth, non-DC, non-Paeth directional modes.
func isDirectional(m intraMode) bool {
	return m >= vPred && m <= d67Pred
}

// decodeLeaf implements spec.md §4.8 decode_block steps a-o for one
// partition-tree leaf of size bs at mi position (row, col).
func (ds *decodeState) decodeLeaf(row, col int, partition tables.Partition, bs tables.BlockSize) error {
	if bs < 0 {
		return newErr(KindUnsupportedPartition, row, col, "invalid leaf block size for partition %d", partition)
	}
	bw4 := tables.BlockWidth(bs) / 4
	bh4 := tables.BlockHeight(bs) / 4
	if bw4 < 1 {
		bw4 = 1
	}
	if bh4 < 1 {
		bh4 = 1
	}

	// step a/b: segment_id is not read (single-segment restricted
	// path; Segmentation.Enabled still gates the ALT_Q lookup used for
	// quantizer/lossless state, but segment_id itself is always 0).
	blockLossless := ds.fh.CodedLossless

	// skip context from above/left neighbors, clipped to SKIP_CONTEXTS=3.
	above := ds.aboveMi(row, col)
	left := ds.leftMiOf(row, col)
	skipCtx := 0
	if above.assigned && above.skip {
		skipCtx++
	}
	if left.assigned && left.skip {
		skipCtx++
	}
	if skipCtx > 2 {
		skipCtx = 2
	}
	skipSym, err := ds.dec.ReadSymbol(ds.cdfs.SkipCdf[skipCtx])
	if err != nil {
		return wrapEntropy(err, row, col)
	}
	skip := skipSym != 0

	// step d: cdef_idx, once per 64x64 region, when applicable.
	if !skip && !blockLossless && ds.seq.EnableCdef {
		if err := ds.maybeReadCdefIdx(row, col); err != nil {
			return err
		}
	}

	// step e: delta_q / delta_lf, only for the first block of a
	// superblock when the frame carries per-block deltas.
	if ds.readDeltas {
		if err := ds.readBlockDeltas(row, col, skip); err != nil {
			return err
		}
		ds.readDeltas = false
	}

	// use_intrabc: intra block copy is not reconstructed, so a block
	// that uses it halts the tile.
	if ds.fh.AllowIntrabc {
		useIntrabc, err := ds.dec.ReadSymbol(tables.NewCdf(2))
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		if useIntrabc != 0 {
			return newErr(KindIntrabcUsed, row, col, "use_intrabc set, unsupported")
		}
	}

	// step f: y_mode.
	sizeGroup := tables.SizeGroup(bs)
	yModeSym, err := ds.dec.ReadSymbol(ds.cdfs.YModeCdf[sizeGroup])
	if err != nil {
		return wrapEntropy(err, row, col)
	}
	yMode := intraMode(yModeSym)

	var angleDeltaY int
	if isDirectional(yMode) && tables.BlockWidth(bs) >= 8 && tables.BlockHeight(bs) >= 8 {
		bucket := int(yMode) - int(vPred)
		if bucket < 0 {
			bucket = 0
		}
		if bucket > 7 {
			bucket = 7
		}
		sym, err := ds.dec.ReadSymbol(ds.cdfs.AngleDeltaCdf[bucket])
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		angleDeltaY = sym - 3
	}
	_ = angleDeltaY

	// step g: uv_mode, angle_delta_uv, CFL parameters (only when the
	// frame actually has chroma planes).
	if ds.seq.NumPlanes > 1 {
		cflAllowed := tables.BlockWidth(bs) <= 32 && tables.BlockHeight(bs) <= 32
		bucket := 0
		if cflAllowed {
			bucket = 1
		}
		uvSym, err := ds.dec.ReadSymbol(ds.cdfs.UVModeCFLCdf[bucket])
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		uvMode := intraMode(uvSym)

		if cflAllowed && uvSym == int(uvCflPred) {
			if _, err := ds.dec.ReadSymbol(ds.cdfs.CflSignsCdf); err != nil {
				return wrapEntropy(err, row, col)
			}
			if _, err := ds.dec.ReadSymbol(ds.cdfs.CflAlphaCdf[0]); err != nil {
				return wrapEntropy(err, row, col)
			}
			if _, err := ds.dec.ReadSymbol(ds.cdfs.CflAlphaCdf[0]); err != nil {
				return wrapEntropy(err, row, col)
			}
		} else if isDirectional(uvMode) && tables.BlockWidth(bs) >= 8 && tables.BlockHeight(bs) >= 8 {
			bucket := int(uvMode) - int(vPred)
			if bucket < 0 {
				bucket = 0
			}
			if bucket > 7 {
				bucket = 7
			}
			if _, err := ds.dec.ReadSymbol(ds.cdfs.AngleDeltaCdf[bucket]); err != nil {
				return wrapEntropy(err, row, col)
			}
		}
	}

	// step h: palette_mode_info. This decoder does not reconstruct
	// palette-coded blocks, so presence halts the tile (spec.md §5
	// Non-goal).
	if ds.fh.AllowScreenContentTools {
		w, h := tables.BlockWidth(bs), tables.BlockHeight(bs)
		if w >= 8 && h >= 8 && w <= 64 && h <= 64 {
			present, err := ds.dec.ReadSymbol(ds.cdfs.PaletteYPresenceCdf)
			if err != nil {
				return wrapEntropy(err, row, col)
			}
			if present != 0 {
				return newErr(KindPaletteUsed, row, col, "palette_mode_info present, unsupported")
			}
		}
	}

	// step i: filter_intra.
	if ds.seq.EnableFilterIntra && yMode == dcPred {
		w, h := tables.BlockWidth(bs), tables.BlockHeight(bs)
		maxSide := w
		if h > maxSide {
			maxSide = h
		}
		if maxSide <= 32 {
			present, err := ds.dec.ReadSymbol(ds.cdfs.FilterIntraPresenceCdf)
			if err != nil {
				return wrapEntropy(err, row, col)
			}
			if present != 0 {
				if _, err := ds.dec.ReadSymbol(ds.cdfs.FilterIntraModeCdf); err != nil {
					return wrapEntropy(err, row, col)
				}
			}
		}
	}

	ds.stats.reach(MilestoneModesDone)

	// step j/k: read_tx_size, applied once per leaf (this decoder does
	// not subdivide a leaf into multiple explicit transform blocks; a
	// single coeffs() call per plane covers the leaf's residual, a
	// documented simplification of the true var_tx_size raster loop).
	txSize := ds.readTxSize(bs, blockLossless, skip)
	ds.stats.reach(MilestoneTxDone)

	if !skip {
		txType, err := ds.readTransformType(row, col, txSize, yMode)
		if err != nil {
			return err
		}
		if _, err := ds.coeffs(row, col, 0, txSize, tables.TxClassOf(txType)); err != nil {
			return err
		}
		if ds.seq.NumPlanes > 1 {
			chromaTx := chromaTxSize(txSize, ds.seq.SubsamplingX, ds.seq.SubsamplingY)
			// Chroma's transform type is derived from uv_mode rather
			// than coded directly; this decoder does not track uv_mode
			// far enough to classify it, so chroma always uses the 2D
			// neighbor-context class (the common case: chroma rarely
			// carries a directional V_*/H_* transform).
			if _, err := ds.coeffs(row, col, 1, chromaTx, tables.TxClass2D); err != nil {
				return err
			}
			if _, err := ds.coeffs(row, col, 2, chromaTx, tables.TxClass2D); err != nil {
				return err
			}
		}
	}
	ds.stats.reach(MilestoneCoeffsDone)

	ds.assignGrid(row, col, bw4, bh4, bs, skip, txSize, blockLossless)
	ds.stats.BlocksDecoded++
	return nil
}

// readTxSize implements spec.md §4.8.j/k: a skipped or lossless block is
// forced to its minimal/implied size; TX_MODE_SELECT reads an adaptive
// tx_depth and applies Split_Tx_Size that many times, capped at
// MAX_TX_DEPTH=2.
func (ds *decodeState) readTxSize(bs tables.BlockSize, blockLossless, skip bool) tables.TxSize {
	if blockLossless {
		return tables.Tx4x4
	}
	maxRectTx := tables.MaxTxSizeRect(bs)
	if ds.fh.TxMode != av1.TxModeSelect || skip {
		return maxRectTx
	}
	maxDepth := tables.MaxTxDepth(bs)
	if maxDepth == 0 {
		return maxRectTx
	}
	bucket := maxDepth - 1
	if bucket > 3 {
		bucket = 3
	}
	depthSym, err := ds.dec.ReadSymbol(ds.cdfs.TxDepthCdf[bucket])
	if err != nil {
		return maxRectTx
	}
	depth := depthSym
	if depth > 2 {
		depth = 2
	}
	tx := maxRectTx
	for i := 0; i < depth; i++ {
		tx = tables.SplitTxSize(tx)
	}
	return tx
}

// intraTxSetLarge/Small map the INTRA_1 (7-symbol) and INTRA_2
// (5-symbol) decoded index to a TxType, per spec.md §4.8.n. readTransformType
// resolves the TxType so coeffs() can pick the matching neighbor-context
// scan class (TxClassOf).
var intraTxSetLarge = [7]tables.TxType{
	tables.TxTypeIdtx, tables.TxTypeDctDct, tables.TxTypeVDct, tables.TxTypeHDct,
	tables.TxTypeAdstAdst, tables.TxTypeAdstDct, tables.TxTypeDctAdst,
}
var intraTxSetSmall = [5]tables.TxType{
	tables.TxTypeIdtx, tables.TxTypeDctDct, tables.TxTypeAdstAdst, tables.TxTypeAdstDct, tables.TxTypeDctAdst,
}

// readTransformType implements spec.md §4.8.n: DCT-only for large or
// reduced_tx_set transforms, else an intra-direction-indexed CDF pick
// from the large (4x4) or small (others) symbol set, resolved to the
// TxType the symbol names so coeffs() can select the right
// neighbor-context scan class.
func (ds *decodeState) readTransformType(row, col int, tx tables.TxSize, yMode intraMode) (tables.TxType, error) {
	sqrUp := tables.TxSizeSqrUp(tx)
	if ds.fh.ReducedTxSet || sqrUp > tables.Tx16x16 {
		return tables.TxTypeDctDct, nil // forced, not coded
	}
	direction := int(yMode)
	if direction < 0 {
		direction = 0
	}
	if direction > 12 {
		direction = 12
	}
	sqr := tables.TxSizeSqr(tx)
	if sqr == tables.Tx4x4 {
		sym, err := ds.dec.ReadSymbol(ds.cdfs.IntraTxCdfLarge[direction])
		if err != nil {
			return tables.TxTypeDctDct, wrapEntropy(err, row, col)
		}
		return intraTxSetLarge[sym], nil
	}
	sym, err := ds.dec.ReadSymbol(ds.cdfs.IntraTxCdfSmall[direction])
	if err != nil {
		return tables.TxTypeDctDct, wrapEntropy(err, row, col)
	}
	return intraTxSetSmall[sym], nil
}

// chromaTxSize approximates get_tx_size(plane, tx) for a subsampled
// chroma plane: halve each subsampled dimension, floored at TX_4X4.
func chromaTxSize(luma tables.TxSize, subX, subY uint8) tables.TxSize {
	w, h := tables.TxWidth(luma), tables.TxHeight(luma)
	if subX != 0 {
		w /= 2
	}
	if subY != 0 {
		h /= 2
	}
	if w < 4 {
		w = 4
	}
	if h < 4 {
		h = 4
	}
	return tables.AdjustedTxSize(squareOrRectForDims(w, h))
}

func squareOrRectForDims(w, h int) tables.TxSize {
	best := tables.Tx4x4
	bestDiff := 1 << 30
	for t := tables.TxSize(0); int(t) < 19; t++ {
		tw, th := tables.TxWidth(t), tables.TxHeight(t)
		if tw == w && th == h {
			return t
		}
		diff := abs(tw-w) + abs(th-h)
		if diff < bestDiff {
			bestDiff = diff
			best = t
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// maybeReadCdefIdx reads cdef_idx once per 64x64 region inside the
// current superblock (spec.md §4.8.d), tracked by region origin.
func (ds *decodeState) maybeReadCdefIdx(row, col int) error {
	regionRow := row &^ 15
	regionCol := col &^ 15
	key := [2]int{regionRow, regionCol}
	if ds.cdefSeen[key] {
		return nil
	}
	ds.cdefSeen[key] = true
	if ds.fh.CdefBits == 0 {
		return nil
	}
	if _, err := ds.dec.ReadLiteral(int(ds.fh.CdefBits)); err != nil {
		return wrapEntropy(err, row, col)
	}
	return nil
}

// readBlockDeltas reads delta_q (and, when enabled, delta_lf) for the
// first block of a superblock (spec.md §4.8.e), whether or not that
// block is skipped; skip is not consulted.
func (ds *decodeState) readBlockDeltas(row, col int, skip bool) error {
	if ds.fh.DeltaQPresent {
		sym, err := ds.dec.ReadSymbol(tables.NewCdf(4))
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		if sym == 3 {
			extraBits, err := ds.dec.ReadLiteral(3)
			if err != nil {
				return wrapEntropy(err, row, col)
			}
			nbits := int(extraBits) + 1
			if _, err := ds.dec.ReadLiteral(nbits); err != nil {
				return wrapEntropy(err, row, col)
			}
			if _, err := ds.dec.ReadBool(); err != nil {
				return wrapEntropy(err, row, col)
			}
		} else if sym != 0 {
			if _, err := ds.dec.ReadBool(); err != nil {
				return wrapEntropy(err, row, col)
			}
		}
	}
	if ds.fh.DeltaLfPresent {
		count := 1
		if ds.fh.DeltaLfMulti {
			count = 4
		}
		for i := 0; i < count; i++ {
			sym, err := ds.dec.ReadSymbol(tables.NewCdf(4))
			if err != nil {
				return wrapEntropy(err, row, col)
			}
			if sym == 3 {
				extraBits, err := ds.dec.ReadLiteral(3)
				if err != nil {
					return wrapEntropy(err, row, col)
				}
				nbits := int(extraBits) + 1
				if _, err := ds.dec.ReadLiteral(nbits); err != nil {
					return wrapEntropy(err, row, col)
				}
				if _, err := ds.dec.ReadBool(); err != nil {
					return wrapEntropy(err, row, col)
				}
			} else if sym != 0 {
				if _, err := ds.dec.ReadBool(); err != nil {
					return wrapEntropy(err, row, col)
				}
			}
		}
	}
	return nil
}

// assignGrid writes the leaf's decoded state across its mode-info
// footprint, clipped to the frame's mi grid, so later neighbor lookups
// (skip context, above/left levels, partition context) observe it.
func (ds *decodeState) assignGrid(row, col int, bw4, bh4 int, bs tables.BlockSize, skip bool, tx tables.TxSize, blockLossless bool) {
	wLog2 := tables.TxWidthLog2(tx)
	hLog2 := tables.TxHeightLog2(tx)
	bwLog2 := tables.MiWidthLog2(bs)
	bhLog2 := tables.MiHeightLog2(bs)
	for r := row; r < row+bh4 && r < len(ds.grid); r++ {
		for c := col; c < col+bw4 && c < len(ds.grid[r]); c++ {
			ds.grid[r][c] = mi{
				assigned: true, skip: skip,
				wLog2: wLog2, hLog2: hLog2,
				bwLog2: bwLog2, bhLog2: bhLog2,
				blockLossless: blockLossless,
			}
		}
	}
}
