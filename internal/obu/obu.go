/*
DESCRIPTION
  obu.go implements spec.md §4.4: scanning an AV1 "low overhead bitstream
  format" byte stream (as produced by extract_primary) into a sequence of
  Open Bitstream Units, each size-delimited by an explicit LEB128 size
  field as required inside an ISOBMFF av01 item.

  Grounded on the OBU header layout used throughout the pack's AV1
  references (e.g. bluenviron/mediacommon's av1 package, read in full
  during teacher selection), adapted to this module's byte-buffer
  bitio.Reader instead of a streaming reader.
*/

// Package obu scans AV1 Open Bitstream Units from an in-memory byte
// buffer.
package obu

import (
	"fmt"

	"github.com/coral-imaging/avifcore/internal/bitio"
)

// Type identifies the obu_type field of an OBU header.
type Type uint8

const (
	TypeReserved0            Type = 0
	TypeSequenceHeader       Type = 1
	TypeTemporalDelimiter    Type = 2
	TypeFrameHeader          Type = 3
	TypeTileGroup            Type = 4
	TypeMetadata             Type = 5
	TypeFrame                Type = 6
	TypeRedundantFrameHeader Type = 7
	TypeTileList             Type = 8
	TypePadding              Type = 15
)

func (t Type) String() string {
	switch t {
	case TypeSequenceHeader:
		return "SEQUENCE_HEADER"
	case TypeTemporalDelimiter:
		return "TEMPORAL_DELIMITER"
	case TypeFrameHeader:
		return "FRAME_HEADER"
	case TypeTileGroup:
		return "TILE_GROUP"
	case TypeMetadata:
		return "METADATA"
	case TypeFrame:
		return "FRAME"
	case TypeRedundantFrameHeader:
		return "REDUNDANT_FRAME_HEADER"
	case TypeTileList:
		return "TILE_LIST"
	case TypePadding:
		return "PADDING"
	default:
		return "RESERVED"
	}
}

// Header is a parsed obu_header(), plus the derived extension fields.
type Header struct {
	Type              Type
	ExtensionFlag     bool
	HasSizeField      bool
	TemporalID        uint8
	SpatialID         uint8
	HeaderSizeInBytes int // 1, or 2 if ExtensionFlag
}

// OBU is one scanned unit: its header, and its payload bytes (excluding
// the header and the size field itself).
type OBU struct {
	Header  Header
	Payload []byte
	// Offset is the byte offset of this OBU's header within the scanned
	// buffer, used in diagnostics.
	Offset int
}

// Kind identifies the category of an OBU scanning failure.
type Kind int

const (
	KindForbiddenBit Kind = iota
	KindNoSizeField
	KindTruncatedObu
	KindBadLeb128
)

func (k Kind) String() string {
	switch k {
	case KindForbiddenBit:
		return "ForbiddenBit"
	case KindNoSizeField:
		return "NoSizeField"
	case KindTruncatedObu:
		return "TruncatedObu"
	case KindBadLeb128:
		return "BadLeb128"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned by this package.
type Error struct {
	Kind   Kind
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("obu: %s: %s (offset=%d)", e.Kind, e.Msg, e.Offset)
}

func newErr(k Kind, off int, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// ScanOBUs splits buf into a sequence of OBUs. Every OBU in an av01
// item's payload is required to carry an explicit size field (spec.md
// §4.4); an OBU without one is a KindNoSizeField error. Trailing
// all-zero padding bytes after the last well-formed OBU are tolerated
// and silently dropped, matching writers that pad item payloads to a
// word boundary.
func ScanOBUs(buf []byte) ([]OBU, error) {
	var obus []OBU
	pos := 0
	for pos < len(buf) {
		if isZeroPad(buf[pos:]) {
			break
		}
		o, n, err := scanOne(buf, pos)
		if err != nil {
			return nil, err
		}
		obus = append(obus, o)
		pos += n
	}
	return obus, nil
}

func isZeroPad(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

func scanOne(buf []byte, off int) (OBU, int, error) {
	if off >= len(buf) {
		return OBU{}, 0, newErr(KindTruncatedObu, off, "no bytes remaining for obu_header")
	}
	h0 := buf[off]
	forbidden := h0 >> 7
	obuType := Type((h0 >> 3) & 0x0f)
	extFlag := (h0>>2)&1 != 0
	hasSize := (h0>>1)&1 != 0

	if forbidden != 0 {
		return OBU{}, 0, newErr(KindForbiddenBit, off, "obu_forbidden_bit set")
	}
	if !hasSize {
		return OBU{}, 0, newErr(KindNoSizeField, off, "obu %s missing obu_size field", obuType)
	}

	hdr := Header{Type: obuType, ExtensionFlag: extFlag, HasSizeField: hasSize, HeaderSizeInBytes: 1}
	cursor := off + 1
	if extFlag {
		if cursor >= len(buf) {
			return OBU{}, 0, newErr(KindTruncatedObu, off, "truncated obu_extension_header")
		}
		ext := buf[cursor]
		hdr.TemporalID = ext >> 5
		hdr.SpatialID = (ext >> 3) & 0x3
		hdr.HeaderSizeInBytes = 2
		cursor++
	}

	size, n, err := bitio.ReadLEB128(buf, cursor)
	if err != nil {
		return OBU{}, 0, newErr(KindBadLeb128, cursor, "obu_size leb128: %v", err)
	}
	cursor += n

	if cursor+int(size) > len(buf) {
		return OBU{}, 0, newErr(KindTruncatedObu, off, "obu payload of size %d runs past end of buffer", size)
	}

	o := OBU{
		Header:  hdr,
		Payload: buf[cursor : cursor+int(size)],
		Offset:  off,
	}
	total := (cursor + int(size)) - off
	return o, total, nil
}

// RequireExactlyOneSequenceHeader validates the spec.md §4.4 static
// requirement that the OBU stream contains exactly one sequence header,
// returning its payload.
func RequireExactlyOneSequenceHeader(obus []OBU) ([]byte, error) {
	var found []byte
	count := 0
	for _, o := range obus {
		if o.Header.Type == TypeSequenceHeader {
			count++
			found = o.Payload
		}
	}
	if count == 0 {
		return nil, newErr(KindTruncatedObu, 0, "no sequence header obu found")
	}
	if count > 1 {
		return nil, newErr(KindTruncatedObu, 0, "expected exactly one sequence header obu, found %d", count)
	}
	return found, nil
}
