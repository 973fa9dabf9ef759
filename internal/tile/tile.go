/*
DESCRIPTION
  tile.go wires decodeState + decodePartition into the public entry
  points spec.md §6 names: DecodeTile for a single tile's payload, and
  DecodeAll for fanning a tile group's payloads out across goroutines
  (spec.md's concurrency section), aggregating errors with
  go.uber.org/multierr the way ausocean-av's revid pipeline fans work
  out across its own worker goroutines.
*/

package tile

import (
	"fmt"

	"github.com/coral-imaging/avifcore/internal/av1"
	"go.uber.org/multierr"
)

// DecodeTile traverses one tile's entropy-coded payload: the
// superblock-grid partition recursion, per-leaf mode/transform/
// coefficient decoding, and (outside probe mode) the trailing
// exit_symbol check (spec.md §4.8 step 4, §6).
func DecodeTile(tileBytes []byte, seq *av1.SeqHdr, fh *av1.FrameHdr, ti *av1.TileInfo, tileRow, tileCol int, opts Options) (*TileStats, error) {
	if tileRow < 0 || tileRow >= ti.TileRows || tileCol < 0 || tileCol >= ti.TileCols {
		return nil, newErr(KindTruncatedBitstream, 0, 0, "tile index (%d,%d) out of range", tileRow, tileCol)
	}
	ds := newDecodeState(tileBytes, seq, fh, ti, tileRow, tileCol, opts)

	sbSizeLog2 := 4 // 16 mi units = 64x64
	if seq.Use128x128Superblock {
		sbSizeLog2 = 5
	}

	for r := ds.tileRowStart; r < ds.tileRowEnd; r += 1 << uint(sbSizeLog2) {
		for c := ds.tileColStart; c < ds.tileColEnd; c += 1 << uint(sbSizeLog2) {
			ds.readDeltas = fh.DeltaQPresent || fh.DeltaLfPresent
			if err := ds.decodePartition(r, c, sbSizeLog2); err != nil {
				return ds.stats, err
			}
		}
	}
	ds.stats.reach(MilestonePartitionDone)

	if opts.ProbeTryExitSymbol {
		if err := ds.dec.ExitSymbol(); err != nil {
			return ds.stats, newErr(KindTrailingBitsViolation, 0, 0, "%v", err)
		}
		ds.stats.reach(MilestoneExitSymbolOK)
	}

	return ds.stats, nil
}

// tileResult pairs one tile's outcome with its grid position, so
// DecodeAll can report which tile produced which error or stats.
type tileResult struct {
	row, col int
	stats    *TileStats
	err      error
}

// DecodeAll fans a tile group's payloads out across one goroutine per
// tile and aggregates every tile's error (if any) with multierr,
// matching spec.md's concurrency section: tiles are independent
// entropy-coded streams and may be decoded in parallel.
func DecodeAll(tilePayloads map[[2]int][]byte, seq *av1.SeqHdr, fh *av1.FrameHdr, ti *av1.TileInfo, opts Options) (map[[2]int]*TileStats, error) {
	results := make(chan tileResult, len(tilePayloads))

	for key, payload := range tilePayloads {
		row, col, data := key[0], key[1], payload
		go func() {
			stats, err := DecodeTile(data, seq, fh, ti, row, col, opts)
			if err != nil {
				err = fmt.Errorf("tile(%d,%d): %w", row, col, err)
			}
			results <- tileResult{row: row, col: col, stats: stats, err: err}
		}()
	}

	out := make(map[[2]int]*TileStats, len(tilePayloads))
	var errs error
	for i := 0; i < len(tilePayloads); i++ {
		res := <-results
		if res.stats != nil {
			out[[2]int{res.row, res.col}] = res.stats
		}
		if res.err != nil {
			errs = multierr.Append(errs, res.err)
		}
	}
	return out, errs
}
