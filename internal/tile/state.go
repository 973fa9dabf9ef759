package tile

import (
	"github.com/coral-imaging/avifcore/internal/av1"
	"github.com/coral-imaging/avifcore/internal/entropy"
	"github.com/coral-imaging/avifcore/internal/tables"
)

// Options controls a single DecodeTile call (spec.md §6's "recognized
// decode options").
type Options struct {
	// ProbeTryExitSymbol, when true, traverses the full partition tree
	// and requires ExitSymbol() to succeed at end of tile. When false
	// (probe mode), decoding stops once the coefficient prefix for at
	// least the first two blocks has been exercised.
	ProbeTryExitSymbol bool
	// DisableCdfUpdate freezes every CDF in this tile when true.
	DisableCdfUpdate bool
}

// mi is one mode-info grid cell's decoded state, used for neighbor
// context derivation (above/left) during partition and mode decoding.
type mi struct {
	assigned bool
	skip     bool
	wLog2    int // transform width, log2 (tables.TxWidthLog2)
	hLog2    int // transform height, log2 (tables.TxHeightLog2)
	bwLog2   int // block width in mi units, log2 (tables.MiWidthLog2)
	bhLog2   int // block height in mi units, log2 (tables.MiHeightLog2)
	blockLossless bool
}

// decodeState carries one tile's mutable decode context through the
// partition/block/coeffs recursion.
type decodeState struct {
	seq *av1.SeqHdr
	fh  *av1.FrameHdr
	ti  *av1.TileInfo

	dec  *entropy.Decoder
	cdfs *tables.CdfSet
	opts Options

	tileRowStart, tileColStart int
	tileRowEnd, tileColEnd     int

	grid [][]mi // [row][col], sized to the whole frame's mi grid so neighbor lookups stay in absolute coordinates

	// above/left per-plane coefficient levels and DC sign categories,
	// reset per tile row (above) / per superblock row (left), sized in
	// 4x4 units across the tile's mi column span.
	aboveLevel [3][]uint8
	leftLevel  [3][]uint8
	aboveDC    [3][]uint8
	leftDC     [3][]uint8

	readDeltas bool
	cdefSeen   map[[2]int]bool

	stats *TileStats
}

func newDecodeState(tileBytes []byte, seq *av1.SeqHdr, fh *av1.FrameHdr, ti *av1.TileInfo, tileRow, tileCol int, opts Options) *decodeState {
	rowStart, rowEnd := ti.MiRowStarts[tileRow], ti.MiRowStarts[tileRow+1]
	colStart, colEnd := ti.MiColStarts[tileCol], ti.MiColStarts[tileCol+1]

	grid := make([][]mi, fh.MiRows)
	for r := range grid {
		grid[r] = make([]mi, fh.MiCols)
	}

	width := colEnd - colStart
	ds := &decodeState{
		seq:          seq,
		fh:           fh,
		ti:           ti,
		dec:          entropy.NewDecoder(tileBytes, opts.DisableCdfUpdate),
		cdfs:         tables.NewCdfSet(tables.ClassifyQuantContext(fh.BaseQIdx)),
		opts:         opts,
		tileRowStart: rowStart,
		tileColStart: colStart,
		tileRowEnd:   rowEnd,
		tileColEnd:   colEnd,
		grid:         grid,
		cdefSeen:     make(map[[2]int]bool),
		stats:        newTileStats(tileRow, tileCol, rowStart, colStart, rowEnd, colEnd),
	}
	for p := 0; p < 3; p++ {
		ds.aboveLevel[p] = make([]uint8, width)
		ds.leftLevel[p] = make([]uint8, fh.MiRows-rowStart)
		ds.aboveDC[p] = make([]uint8, width)
		ds.leftDC[p] = make([]uint8, fh.MiRows-rowStart)
	}
	return ds
}

// aboveMi and leftMi return the neighboring grid cell, or a zero-value
// (unassigned, treated as size 0 / not-skip) when the neighbor is
// outside the tile or the frame.
func (ds *decodeState) aboveMi(row, col int) mi {
	if row-1 < ds.tileRowStart {
		return mi{}
	}
	return ds.grid[row-1][col]
}

func (ds *decodeState) leftMiOf(row, col int) mi {
	if col-1 < 0 || col-1 < ds.tileColStart {
		return mi{}
	}
	return ds.grid[row][col-1]
}
