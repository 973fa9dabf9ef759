/*
DESCRIPTION
  avif.go composes this module's container, OBU, AV1 header, and tile
  packages into the single public entry point a driver calls: Decode
  walks an AVIF file down to its primary item's sequence header, frame
  header, and tile data, and runs the per-tile entropy/syntax decoder
  over every tile. Composition order follows spec.md §5's pipeline
  diagram; the returned Image reports what decoding reached, not pixel
  data, since reconstruction and color conversion are out of scope.

  Grounded on ausocean-av/revid/revid.go's style of threading one
  pipeline's stage outputs into the next stage's inputs through plain
  function calls rather than a framework, with github.com/pkg/errors
  wrapping every stage boundary so a failure's message names which
  stage produced it.
*/

// Package avifcore is a standalone decoder for the structural and
// entropy-coded layers of a still AVIF image: container traversal, AV1
// OBU scanning, sequence/frame header parsing, and per-tile symbol and
// syntax decoding. It stops short of pixel reconstruction and color
// conversion.
package avifcore

import (
	"github.com/pkg/errors"

	"github.com/coral-imaging/avifcore/internal/av1"
	"github.com/coral-imaging/avifcore/internal/bmff"
	"github.com/coral-imaging/avifcore/internal/obu"
	"github.com/coral-imaging/avifcore/internal/tile"
)

// Image is Decode's result: everything this module's core recovers
// about a still AVIF image short of reconstructed pixels.
type Image struct {
	// Width/Height are the presentation dimensions, preferring the
	// container's ispe property (spec.md §8's cross-check target) and
	// falling back to the coded Frame Header dimensions when the item
	// carries no ispe.
	Width, Height uint32

	Seq   *av1.SeqHdr
	Frame *av1.FrameHdr

	// TileStats reports, per [tileRow, tileCol], how far the tile
	// decoder progressed and what it found.
	TileStats map[[2]int]*tile.TileStats
}

// Options configures Decode's tile traversal. The zero value runs in
// probe mode (each tile stops after its first two blocks' coefficients,
// with no exit_symbol check) with CDF adaptation enabled.
type Options = tile.Options

// Decode runs this module's core decode pipeline over file, an
// entire AVIF file's bytes.
func Decode(file []byte, opts Options) (*Image, error) {
	primary, err := bmff.ExtractPrimary(file)
	if err != nil {
		return nil, errors.Wrap(err, "avifcore: extracting primary item")
	}

	obus, err := obu.ScanOBUs(primary.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "avifcore: scanning obus")
	}

	seqPayload, err := obu.RequireExactlyOneSequenceHeader(obus)
	if err != nil {
		return nil, errors.Wrap(err, "avifcore: locating sequence header")
	}
	seq, err := av1.ParseSequenceHeader(seqPayload)
	if err != nil {
		return nil, errors.Wrap(err, "avifcore: parsing sequence header")
	}

	frame, ti, tilePayloads, err := collectFrameAndTiles(obus, seq)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, errors.New("avifcore: no frame header obu found")
	}
	if len(tilePayloads) == 0 {
		return nil, errors.New("avifcore: no tile group data found")
	}

	stats, err := tile.DecodeAll(tilePayloads, seq, frame, ti, opts)
	if err != nil {
		return nil, errors.Wrap(err, "avifcore: decoding tiles")
	}

	width, height := frame.FrameWidth, frame.FrameHeight
	if primary.HasIspe {
		width, height = primary.Width, primary.Height
	}

	return &Image{
		Width:     width,
		Height:    height,
		Seq:       seq,
		Frame:     frame,
		TileStats: stats,
	}, nil
}

// collectFrameAndTiles walks obus once, parsing the first Frame Header
// (from either a standalone FRAME_HEADER obu followed by TILE_GROUP
// obus, or a combined FRAME obu carrying both) and gathering every
// tile's coded bytes keyed by [tileRow, tileCol]. Once a header is in
// hand, later FRAME_HEADER and REDUNDANT_FRAME_HEADER obus (spec.md's
// still-picture streams may repeat one for error resilience) are
// skipped without being parsed.
func collectFrameAndTiles(obus []obu.OBU, seq *av1.SeqHdr) (*av1.FrameHdr, *av1.TileInfo, map[[2]int][]byte, error) {
	var frame *av1.FrameHdr
	var ti *av1.TileInfo
	tilePayloads := make(map[[2]int][]byte)

	for _, o := range obus {
		switch o.Header.Type {
		case obu.TypeFrameHeader, obu.TypeRedundantFrameHeader:
			if frame != nil {
				continue
			}
			fh, _, err := av1.ParseFrameHeader(o.Payload, seq)
			if err != nil {
				return nil, nil, nil, errors.Wrap(err, "avifcore: parsing frame header")
			}
			frame = fh
			ti = &frame.Tile

		case obu.TypeTileGroup:
			if frame == nil {
				return nil, nil, nil, errors.New("avifcore: tile_group obu appeared before its frame header")
			}
			tiles, _, err := av1.ParseTileGroup(o.Payload, ti)
			if err != nil {
				return nil, nil, nil, errors.Wrap(err, "avifcore: parsing tile group")
			}
			mergeTiles(tilePayloads, tiles)

		case obu.TypeFrame:
			fh, bitsConsumed, err := av1.ParseFrameHeader(o.Payload, seq)
			if err != nil {
				return nil, nil, nil, errors.Wrap(err, "avifcore: parsing frame header")
			}
			frame = fh
			ti = &frame.Tile

			byteOff := (bitsConsumed + 7) / 8
			if byteOff > len(o.Payload) {
				return nil, nil, nil, errors.New("avifcore: frame obu shorter than its frame header")
			}
			tiles, _, err := av1.ParseTileGroup(o.Payload[byteOff:], ti)
			if err != nil {
				return nil, nil, nil, errors.Wrap(err, "avifcore: parsing tile group")
			}
			mergeTiles(tilePayloads, tiles)
		}
	}

	return frame, ti, tilePayloads, nil
}

func mergeTiles(dst, src map[[2]int][]byte) {
	for k, v := range src {
		dst[k] = v
	}
}
