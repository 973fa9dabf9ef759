/*
DESCRIPTION
  errors.go defines the TileDecodeError taxonomy (spec.md §7) returned
  by DecodeTile, and the Milestone/TileStats types a test or caller uses
  to see how far a tile traversal progressed before failing.
*/

// Package tile implements spec.md §4.8: intra still-picture tile syntax
// traversal — partition recursion, block mode info, transform
// selection, and coefficient decoding — over one tile's entropy-coded
// payload.
package tile

import "fmt"

// Kind identifies the category of a tile-decode failure.
type Kind int

const (
	KindSymbolRangeUnderflow Kind = iota
	KindInvalidCdf
	KindEobOutOfRange
	KindUnsupportedTxTiling
	KindUnsupportedPartition
	KindPaletteUsed
	KindIntrabcUsed
	KindTrailingBitsViolation
	KindTruncatedBitstream
)

func (k Kind) String() string {
	switch k {
	case KindSymbolRangeUnderflow:
		return "SymbolRangeUnderflow"
	case KindInvalidCdf:
		return "InvalidCdf"
	case KindEobOutOfRange:
		return "EobOutOfRange"
	case KindUnsupportedTxTiling:
		return "UnsupportedTxTiling"
	case KindUnsupportedPartition:
		return "UnsupportedPartition"
	case KindPaletteUsed:
		return "PaletteUsed"
	case KindIntrabcUsed:
		return "IntrabcUsed"
	case KindTrailingBitsViolation:
		return "TrailingBitsViolation"
	case KindTruncatedBitstream:
		return "TruncatedBitstream"
	default:
		return "Unknown"
	}
}

// DecodeError is returned by DecodeTile.
type DecodeError struct {
	Kind      Kind
	MiRow     int
	MiCol     int
	Msg       string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tile: %s: %s (mi_row=%d mi_col=%d)", e.Kind, e.Msg, e.MiRow, e.MiCol)
}

func newErr(k Kind, miRow, miCol int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: k, MiRow: miRow, MiCol: miCol, Msg: fmt.Sprintf(format, args...)}
}

// Milestone is an ordered progress marker within one tile's decode.
type Milestone int

const (
	MilestonePartitionDone Milestone = iota
	MilestoneModesDone
	MilestoneTxDone
	MilestoneCoeffsDone
	MilestoneExitSymbolOK
)

func (m Milestone) String() string {
	switch m {
	case MilestonePartitionDone:
		return "PartitionDone"
	case MilestoneModesDone:
		return "ModesDone"
	case MilestoneTxDone:
		return "TxDone"
	case MilestoneCoeffsDone:
		return "CoeffsDone"
	case MilestoneExitSymbolOK:
		return "ExitSymbolOK"
	default:
		return "Unknown"
	}
}

// TileStats surfaces how far decoding progressed, for tests and probe
// mode (spec.md §6).
type TileStats struct {
	TileRow, TileCol   int
	MiRowStart, MiColStart int
	MiRowEnd, MiColEnd     int
	BlocksDecoded      int
	HighestMilestone   Milestone
	ReachedMilestones  map[Milestone]bool
}

func newTileStats(tileRow, tileCol, miRowStart, miColStart, miRowEnd, miColEnd int) *TileStats {
	return &TileStats{
		TileRow:    tileRow,
		TileCol:    tileCol,
		MiRowStart: miRowStart,
		MiColStart: miColStart,
		MiRowEnd:   miRowEnd,
		MiColEnd:   miColEnd,
		ReachedMilestones: make(map[Milestone]bool),
	}
}

func (s *TileStats) reach(m Milestone) {
	s.ReachedMilestones[m] = true
	if m > s.HighestMilestone {
		s.HighestMilestone = m
	}
}
