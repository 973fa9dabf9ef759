package tile

import (
	"github.com/coral-imaging/avifcore/internal/entropy"
	"github.com/coral-imaging/avifcore/internal/tables"
)

var squareForBsl = [6]tables.BlockSize{
	tables.Block4x4,
	tables.Block8x8,
	tables.Block16x16,
	tables.Block32x32,
	tables.Block64x64,
	tables.Block128x128,
}

var horzForBsl = [6]tables.BlockSize{
	-1,
	tables.Block8x4,
	tables.Block16x8,
	tables.Block32x16,
	tables.Block64x32,
	tables.Block128x64,
}

var vertForBsl = [6]tables.BlockSize{
	-1,
	tables.Block4x8,
	tables.Block8x16,
	tables.Block16x32,
	tables.Block32x64,
	tables.Block64x128,
}

// horz4ForBsl/vert4ForBsl are only populated for bsl in {2,3,4}, matching
// the AV1 restriction that HORZ_4/VERT_4 exist only for 16x16..64x64.
var horz4ForBsl = [6]tables.BlockSize{-1, -1, tables.Block16x4, tables.Block32x8, tables.Block64x16, -1}
var vert4ForBsl = [6]tables.BlockSize{-1, -1, tables.Block4x16, tables.Block8x32, tables.Block16x64, -1}

// decodePartition implements spec.md §4.8 step 3: recurse the partition
// tree for a bsl-sized block rooted at mi position (row, col), decoding
// leaf blocks along the way.
func (ds *decodeState) decodePartition(row, col, bsl int) error {
	if row >= ds.tileRowEnd || col >= ds.tileColEnd {
		return nil
	}
	if !ds.opts.ProbeTryExitSymbol && ds.stats.BlocksDecoded >= 2 {
		// probe mode: the first two blocks' coefficients are decoded.
		return nil
	}
	miSize := 1 << uint(bsl)
	halfSize := miSize >> 1

	if bsl == 0 {
		return ds.decodeLeaf(row, col, tables.PartitionNone, squareForBsl[0])
	}

	hasRows := row+halfSize < ds.tileRowEnd
	hasCols := col+halfSize < ds.tileColEnd
	ctx := ds.partitionCtx(row, col, bsl)

	switch {
	case !hasRows && !hasCols:
		return ds.splitFour(row, col, bsl, halfSize)
	case hasRows && hasCols:
		partition, err := ds.readPartitionSymbol(row, col, bsl, ctx)
		if err != nil {
			return err
		}
		return ds.applyPartition(row, col, bsl, halfSize, partition)
	case hasCols && !hasRows:
		// split_or_horz: only the right half fits; choose between a
		// full SPLIT and a HORZ leaf pair (whose bottom leaf is then
		// discarded by the out-of-tile check on recursion/leaf decode).
		derived := tables.SplitOrHorzCdf(ds.cdfs.Partition[bsl][ctx])
		choice, err := ds.dec.ReadSymbol(derived)
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		if choice == 1 {
			return ds.splitFour(row, col, bsl, halfSize)
		}
		return ds.applyPartition(row, col, bsl, halfSize, tables.PartitionHorz)
	default: // hasRows && !hasCols
		derived := tables.SplitOrVertCdf(ds.cdfs.Partition[bsl][ctx])
		choice, err := ds.dec.ReadSymbol(derived)
		if err != nil {
			return wrapEntropy(err, row, col)
		}
		if choice == 1 {
			return ds.splitFour(row, col, bsl, halfSize)
		}
		return ds.applyPartition(row, col, bsl, halfSize, tables.PartitionVert)
	}
}

// partitionCtx derives decode_partition's above/left context (spec.md
// §4.8 step 3): 2*left + above, where above/left are 1 when the
// respective neighboring MI cell's block size (in mi units, log2) is
// smaller than bsl — i.e. that neighbor was itself partitioned down
// further than the current block.
func (ds *decodeState) partitionCtx(row, col, bsl int) int {
	above := ds.aboveMi(row, col)
	left := ds.leftMiOf(row, col)
	ctx := 0
	if above.assigned && above.bwLog2 < bsl {
		ctx++
	}
	if left.assigned && left.bhLog2 < bsl {
		ctx += 2
	}
	return ctx
}

func (ds *decodeState) readPartitionSymbol(row, col, bsl, ctx int) (tables.Partition, error) {
	symbol, err := ds.dec.ReadSymbol(ds.cdfs.Partition[bsl][ctx])
	if err != nil {
		return 0, wrapEntropy(err, row, col)
	}
	return tables.Partition(symbol), nil
}

func (ds *decodeState) splitFour(row, col, bsl, halfSize int) error {
	if bsl == 0 {
		return newErr(KindUnsupportedPartition, row, col, "SPLIT requested below bsl=0")
	}
	if err := ds.decodePartition(row, col, bsl-1); err != nil {
		return err
	}
	if err := ds.decodePartition(row, col+halfSize, bsl-1); err != nil {
		return err
	}
	if err := ds.decodePartition(row+halfSize, col, bsl-1); err != nil {
		return err
	}
	return ds.decodePartition(row+halfSize, col+halfSize, bsl-1)
}

func (ds *decodeState) applyPartition(row, col, bsl, halfSize int, partition tables.Partition) error {
	switch partition {
	case tables.PartitionNone:
		return ds.decodeLeaf(row, col, partition, squareForBsl[bsl])
	case tables.PartitionSplit:
		return ds.splitFour(row, col, bsl, halfSize)
	case tables.PartitionHorz, tables.PartitionHorzA, tables.PartitionHorzB:
		bs := horzForBsl[bsl]
		if err := ds.decodeLeaf(row, col, partition, bs); err != nil {
			return err
		}
		if row+halfSize >= ds.tileRowEnd {
			return nil
		}
		return ds.decodeLeaf(row+halfSize, col, partition, bs)
	case tables.PartitionVert, tables.PartitionVertA, tables.PartitionVertB:
		bs := vertForBsl[bsl]
		if err := ds.decodeLeaf(row, col, partition, bs); err != nil {
			return err
		}
		if col+halfSize >= ds.tileColEnd {
			return nil
		}
		return ds.decodeLeaf(row, col+halfSize, partition, bs)
	case tables.PartitionHorz4:
		bs := horz4ForBsl[bsl]
		if bs < 0 {
			return newErr(KindUnsupportedPartition, row, col, "HORZ_4 unavailable at bsl=%d", bsl)
		}
		quarter := halfSize / 2
		for i := 0; i < 4; i++ {
			if err := ds.decodeLeaf(row+i*quarter, col, partition, bs); err != nil {
				return err
			}
		}
		return nil
	case tables.PartitionVert4:
		bs := vert4ForBsl[bsl]
		if bs < 0 {
			return newErr(KindUnsupportedPartition, row, col, "VERT_4 unavailable at bsl=%d", bsl)
		}
		quarter := halfSize / 2
		for i := 0; i < 4; i++ {
			if err := ds.decodeLeaf(row, col+i*quarter, partition, bs); err != nil {
				return err
			}
		}
		return nil
	default:
		return newErr(KindUnsupportedPartition, row, col, "unrecognized partition symbol %d", partition)
	}
}

// wrapEntropy maps an internal/entropy error into the tile package's own
// taxonomy, preserving its Kind where one corresponds.
func wrapEntropy(err error, row, col int) error {
	if eerr, ok := err.(*entropy.Error); ok {
		switch eerr.Kind {
		case entropy.KindInvalidCdf:
			return newErr(KindInvalidCdf, row, col, "%v", err)
		case entropy.KindTrailingBitsViolation:
			return newErr(KindTrailingBitsViolation, row, col, "%v", err)
		}
	}
	return newErr(KindSymbolRangeUnderflow, row, col, "%v", err)
}
