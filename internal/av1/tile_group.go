/*
DESCRIPTION
  tile_group.go splits one tile_group_obu() payload into its per-tile
  byte slices, the missing link between obu.ScanOBUs's raw OBU payload
  and tile.DecodeAll's map[[2]int][]byte input. Grounded on
  frame_header.go's parseTileInfo (which already computes TileCols,
  TileRows, TileSizeBytes and the Mi{Row,Col}Starts grids this
  function keys its tile numbering against) and the AV1 specification's
  tile_group_obu() syntax: an optional tile_start_and_end_present_flag,
  byte alignment, then TileSizeBytes-wide little-endian length prefixes
  for every tile but the last, which takes the remainder of the
  payload.
*/

package av1

import (
	"github.com/pkg/errors"

	"github.com/coral-imaging/avifcore/internal/bitio"
)

// TileGroupRange reports which tiles a single tile_group_obu() payload
// covers, in case a bitstream splits its tiles across more than one
// tile_group OBU (not exercised by this module's still-picture focus,
// but recorded for callers that want to validate full coverage).
type TileGroupRange struct {
	TgStart int
	TgEnd   int
}

// ParseTileGroup splits payload (one tile_group_obu()'s contents, sized
// exactly to the OBU's declared size) into a map keyed by [tileRow,
// tileCol] of each tile's coded bytes, per ti. ti must be the TileInfo
// already parsed from this frame's Frame Header.
func ParseTileGroup(payload []byte, ti *TileInfo) (map[[2]int][]byte, TileGroupRange, error) {
	numTiles := ti.TileCols * ti.TileRows
	if numTiles <= 0 {
		return nil, TileGroupRange{}, errors.Errorf("tile_group: invalid tile grid %dx%d", ti.TileCols, ti.TileRows)
	}

	r := bitio.NewReader(payload)
	tgStart, tgEnd := 0, numTiles-1
	if numTiles > 1 {
		present, err := r.ReadBit()
		if err != nil {
			return nil, TileGroupRange{}, errors.Wrap(err, "tile_group: tile_start_and_end_present_flag")
		}
		if present != 0 {
			tileBits := ti.TileRowsLog2 + ti.TileColsLog2
			start, err := r.ReadBits(tileBits)
			if err != nil {
				return nil, TileGroupRange{}, errors.Wrap(err, "tile_group: tg_start")
			}
			end, err := r.ReadBits(tileBits)
			if err != nil {
				return nil, TileGroupRange{}, errors.Wrap(err, "tile_group: tg_end")
			}
			tgStart, tgEnd = int(start), int(end)
		}
	}
	if tgStart < 0 || tgEnd < tgStart || tgEnd >= numTiles {
		return nil, TileGroupRange{}, errors.Errorf("tile_group: tg_start=%d tg_end=%d out of range for %d tiles", tgStart, tgEnd, numTiles)
	}
	r.ByteAlign()

	headerBytes := r.BytePosition()
	remaining := len(payload) - headerBytes
	if remaining < 0 {
		return nil, TileGroupRange{}, errors.New("tile_group: header longer than payload")
	}

	tiles := make(map[[2]int][]byte, tgEnd-tgStart+1)
	off := headerBytes
	for tileNum := tgStart; tileNum <= tgEnd; tileNum++ {
		tileRow := tileNum / ti.TileCols
		tileCol := tileNum % ti.TileCols
		lastTile := tileNum == tgEnd

		var tileSize int
		if lastTile {
			tileSize = len(payload) - off
		} else {
			if ti.TileSizeBytes <= 0 {
				return nil, TileGroupRange{}, errors.Errorf("tile_group: tile %d needs a size prefix but tile_size_bytes=0", tileNum)
			}
			n, err := readLE(payload, off, ti.TileSizeBytes)
			if err != nil {
				return nil, TileGroupRange{}, errors.Wrapf(err, "tile_group: tile_size_minus_1 for tile %d", tileNum)
			}
			off += ti.TileSizeBytes
			tileSize = int(n) + 1
		}
		if tileSize < 0 || off+tileSize > len(payload) {
			return nil, TileGroupRange{}, errors.Errorf("tile_group: tile %d size %d overruns payload (off=%d len=%d)", tileNum, tileSize, off, len(payload))
		}
		tiles[[2]int{tileRow, tileCol}] = payload[off : off+tileSize]
		off += tileSize
	}

	if off != len(payload) {
		return nil, TileGroupRange{}, errors.Errorf("tile_group: %d trailing bytes after the last tile", len(payload)-off)
	}

	return tiles, TileGroupRange{TgStart: tgStart, TgEnd: tgEnd}, nil
}

// readLE reads an n-byte (1..4) little-endian unsigned value from buf
// starting at off, per the AV1 spec's le(n) syntax descriptor.
func readLE(buf []byte, off, n int) (uint32, error) {
	if off+n > len(buf) {
		return 0, errors.Errorf("le(%d): only %d bytes remain at offset %d", n, len(buf)-off, off)
	}
	var v uint32
	for i := 0; i < n; i++ {
		v |= uint32(buf[off+i]) << uint(8*i)
	}
	return v, nil
}
