/*
DESCRIPTION
  box.go implements the ISOBMFF/HEIF box traversal described in spec.md
  §4.2: a byte-buffer-based box scanner that locates `meta`, `mdat` and
  `idat` boxes well enough to hand their extents to the meta parser.

  Grounded on _examples/other_examples/jdeng-goheif's bmff.go box reader
  (size==0/size==1 handling, FullBox version+flags, known-container
  recursion), adapted from its io.Reader design to operate directly over
  a byte slice so the whole walk is a pure function of the input buffer.
*/

// Package bmff walks ISOBMFF/HEIF boxes and extracts the primary AV01
// item's byte-exact payload.
package bmff

import "encoding/binary"

// Type is a four-character box type code.
type Type [4]byte

func (t Type) String() string { return string(t[:]) }

func typeOf(s string) Type {
	var t Type
	copy(t[:], s)
	return t
}

var (
	typeFtyp = typeOf("ftyp")
	typeMeta = typeOf("meta")
	typeMdat = typeOf("mdat")
	typeUUID = typeOf("uuid")
	typeIdat = typeOf("idat")
	typeHdlr = typeOf("hdlr")
	typePitm = typeOf("pitm")
	typeIinf = typeOf("iinf")
	typeInfe = typeOf("infe")
	typeIloc = typeOf("iloc")
	typeIprp = typeOf("iprp")
	typeIpco = typeOf("ipco")
	typeIpma = typeOf("ipma")
	typeIspe = typeOf("ispe")
)

// containerTypes are boxes whose payload is itself a sequence of boxes
// that the top-level walker recurses into while searching for `meta` and
// `mdat`.
var containerTypes = map[Type]bool{
	typeOf("moov"): true,
	typeOf("trak"): true,
	typeOf("mdia"): true,
	typeOf("minf"): true,
	typeOf("stbl"): true,
	typeOf("edts"): true,
	typeOf("udta"): true,
	typeOf("moof"): true,
	typeOf("traf"): true,
	typeMeta:       true,
	typeIprp:       true,
	typeIpco:       true,
}

// Box describes one parsed box header.
type Box struct {
	Offset     int64 // file offset of the first header byte
	HeaderSize int64 // size of the header (8, 16, +16 uuid); a FullBox's version+flags count as payload
	Size       int64 // total size (header + payload)
	Type       Type
	UUID       [16]byte // valid only when Type == "uuid"
	HasUUID    bool
}

// PayloadStart returns the file offset of the first payload byte.
func (b Box) PayloadStart() int64 { return b.Offset + b.HeaderSize }

// PayloadEnd returns the file offset one past the last payload byte.
func (b Box) PayloadEnd() int64 { return b.Offset + b.Size }

// readBoxHeader parses one box header starting at off, requiring the box
// to end at or before parentEnd. The returned box's PayloadStart gives the
// offset of its payload.
func readBoxHeader(data []byte, off, parentEnd int64) (Box, error) {
	if off+8 > parentEnd || off+8 > int64(len(data)) {
		return Box{}, newErr(KindTruncatedBox, off, "not enough bytes for box header")
	}
	size32 := int64(binary.BigEndian.Uint32(data[off : off+4]))
	var t Type
	copy(t[:], data[off+4:off+8])

	b := Box{Offset: off, Type: t, HeaderSize: 8}

	switch size32 {
	case 0:
		// Extends to the end of the parent (or file, at top level).
		b.Size = parentEnd - off
	case 1:
		if off+16 > parentEnd {
			return Box{}, newErr(KindTruncatedBox, off, "not enough bytes for largesize")
		}
		b.Size = int64(binary.BigEndian.Uint64(data[off+8 : off+16]))
		b.HeaderSize = 16
	default:
		b.Size = size32
	}

	if t == typeUUID {
		if off+b.HeaderSize+16 > parentEnd {
			return Box{}, newErr(KindTruncatedBox, off, "not enough bytes for uuid")
		}
		copy(b.UUID[:], data[off+b.HeaderSize:off+b.HeaderSize+16])
		b.HasUUID = true
		b.HeaderSize += 16
	}

	if b.Size < b.HeaderSize {
		return Box{}, newErr(KindInvalidBoxSize, off, "box size %d smaller than header size %d", b.Size, b.HeaderSize)
	}
	if off+b.Size > parentEnd {
		return Box{}, newErr(KindOverrunParent, off, "box end %d exceeds parent end %d", off+b.Size, parentEnd)
	}
	return b, nil
}

// FullBoxHeader holds the version+flags prefix shared by every "full box".
type FullBoxHeader struct {
	Version uint8
	Flags   uint32 // low 24 bits
}

// readFullBoxHeader reads the 4-byte version+flags field at off, which
// must lie within [off, end).
func readFullBoxHeader(data []byte, off, end int64) (FullBoxHeader, int64, error) {
	if off+4 > end {
		return FullBoxHeader{}, off, newErr(KindTruncatedBox, off, "not enough bytes for fullbox header")
	}
	v := binary.BigEndian.Uint32(data[off : off+4])
	return FullBoxHeader{
		Version: uint8(v >> 24),
		Flags:   v & 0x00ffffff,
	}, off + 4, nil
}

// VisitFunc is called once per immediate child box found by Walk. It
// receives the box header and must return whether Walk should recurse
// into the box's payload as a nested box sequence (only honored for
// known container types; Walk silently refuses to recurse into anything
// else, protecting against user-requested infinite recursion into box
// types with non-box payloads).
type VisitFunc func(b Box) (recurse bool, err error)

// Walk iterates the sibling boxes in data[start:end), calling visit for
// each. When visit requests recursion and the box type is a known
// container, Walk recurses depth-first before continuing to the next
// sibling.
func Walk(data []byte, start, end int64, visit VisitFunc) error {
	off := start
	for off < end {
		b, err := readBoxHeader(data, off, end)
		if err != nil {
			return err
		}
		recurse, err := visit(b)
		if err != nil {
			return err
		}
		if recurse && containerTypes[b.Type] {
			childStart := b.PayloadStart()
			// `meta` carries a FullBox version+flags prefix before its
			// child box sequence begins (spec.md §4.2).
			if b.Type == typeMeta {
				_, afterFull, err := readFullBoxHeader(data, childStart, b.PayloadEnd())
				if err != nil {
					return err
				}
				childStart = afterFull
			}
			if err := Walk(data, childStart, b.PayloadEnd(), visit); err != nil {
				return err
			}
		}
		off = b.PayloadEnd()
	}
	if off != end {
		return newErr(KindOverrunParent, off, "box sequence ended at %d, expected %d", off, end)
	}
	return nil
}

// ChildBoxes returns the flat list of sibling box headers in data[start:end)
// without recursing into any of them. Callers that need to descend into a
// specific child (e.g. the meta parser descending into `iprp`) do so
// explicitly with a further ChildBoxes call over that child's payload
// range.
func ChildBoxes(data []byte, start, end int64) ([]Box, error) {
	var boxes []Box
	off := start
	for off < end {
		b, err := readBoxHeader(data, off, end)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
		off = b.PayloadEnd()
	}
	return boxes, nil
}

// FindTopLevel locates the first top-level box of type t in data, scanning
// (and recursing into known containers) from file offset 0.
func FindTopLevel(data []byte, t Type) (Box, bool, error) {
	var found Box
	var ok bool
	err := Walk(data, 0, int64(len(data)), func(b Box) (bool, error) {
		if ok {
			return false, nil
		}
		if b.Type == t {
			found = b
			ok = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return Box{}, false, err
	}
	return found, ok, nil
}
