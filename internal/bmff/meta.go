/*
DESCRIPTION
  meta.go implements spec.md §4.3: parsing inside a `meta` box far enough
  to resolve the primary item's extents — `pitm`, `iinf`/`infe`, `iloc`,
  and the `iprp`/`ipco`/`ipma` chain down to `ispe` (used only by the
  cross-check in spec.md §8 that ispe dimensions match the decoded frame
  dimensions).

  Grounded on _examples/other_examples/jdeng-goheif's bmff.go
  (parseItemInfoEntry, parseItemLocationBox, parseItemPropertyAssociation),
  adapted to the byte-buffer ChildBoxes primitive in box.go instead of a
  bufio.Reader.
*/

package bmff

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Extent is one (offset, length) range of a located item, in the
// coordinate space named by InIdat (file offsets, or offsets into the
// `idat` payload).
type Extent struct {
	Offset   uint64
	Length   uint64
	InIdat   bool // true if Offset is relative to the idat payload start
}

// ItemLocation is the `iloc` entry for a single item.
type ItemLocation struct {
	ItemID             uint32
	ConstructionMethod uint8 // 0=FILE, 1=IDAT, 2=ITEM
	DataReferenceIndex uint16
	BaseOffset         uint64
	Extents            []Extent
}

// ItemInfo is the `infe` entry for a single item.
type ItemInfo struct {
	ItemID   uint32
	ItemType Type
}

// Meta holds everything extracted from one `meta` box that the primary
// item extraction path needs.
type Meta struct {
	PrimaryItemID uint32
	HasPrimary    bool

	Items map[uint32]ItemInfo
	Locs  map[uint32]ItemLocation

	// IdatStart/IdatEnd are absolute file offsets of the `idat` box's
	// payload, used to resolve extents with InIdat == true. HasIdat is
	// false when no idat box was present.
	IdatStart, IdatEnd int64
	HasIdat            bool

	// Ispe maps item id to (width, height) decoded from an associated
	// ispe property, when present.
	Ispe map[uint32][2]uint32
}

// ParseMeta reads the given `meta` box's own FullBox version+flags and
// then parses its children from data, returning the fields spec.md §4.3
// requires.
func ParseMeta(data []byte, metaBox Box) (*Meta, error) {
	// meta is itself a FullBox: version+flags precede its child boxes.
	_, childStart, err := readFullBoxHeader(data, metaBox.PayloadStart(), metaBox.PayloadEnd())
	if err != nil {
		return nil, errors.Wrap(err, "meta: reading fullbox header")
	}

	children, err := ChildBoxes(data, childStart, metaBox.PayloadEnd())
	if err != nil {
		return nil, errors.Wrap(err, "meta: listing children")
	}

	m := &Meta{
		Items: make(map[uint32]ItemInfo),
		Locs:  make(map[uint32]ItemLocation),
		Ispe:  make(map[uint32][2]uint32),
	}

	var ipco []Box
	var associations []itemPropertyAssociationEntry

	for _, b := range children {
		switch b.Type {
		case typeHdlr:
			// Not interpreted; spec.md §4.3 says "skipping hdlr".
		case typePitm:
			id, err := parsePitm(data, b)
			if err != nil {
				return nil, errors.Wrap(err, "meta: pitm")
			}
			m.PrimaryItemID = id
			m.HasPrimary = true
		case typeIinf:
			items, err := parseIinf(data, b)
			if err != nil {
				return nil, errors.Wrap(err, "meta: iinf")
			}
			for _, it := range items {
				m.Items[it.ItemID] = it
			}
		case typeIloc:
			locs, err := parseIloc(data, b)
			if err != nil {
				return nil, errors.Wrap(err, "meta: iloc")
			}
			for _, l := range locs {
				m.Locs[l.ItemID] = l
			}
		case typeIdat:
			m.IdatStart = b.PayloadStart()
			m.IdatEnd = b.PayloadEnd()
			m.HasIdat = true
		case typeIprp:
			ipcoBoxes, assoc, err := parseIprp(data, b)
			if err != nil {
				return nil, errors.Wrap(err, "meta: iprp")
			}
			ipco = ipcoBoxes
			associations = assoc
		}
	}

	resolveIspe(data, ipco, associations, m)

	return m, nil
}

func parsePitm(data []byte, b Box) (uint32, error) {
	fb, pos, err := readFullBoxHeader(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return 0, err
	}
	if fb.Version == 0 {
		if pos+2 > b.PayloadEnd() {
			return 0, newErr(KindTruncatedBox, pos, "pitm v0 truncated")
		}
		return uint32(binary.BigEndian.Uint16(data[pos : pos+2])), nil
	}
	if pos+4 > b.PayloadEnd() {
		return 0, newErr(KindTruncatedBox, pos, "pitm v1 truncated")
	}
	return binary.BigEndian.Uint32(data[pos : pos+4]), nil
}

func parseIinf(data []byte, b Box) ([]ItemInfo, error) {
	fb, pos, err := readFullBoxHeader(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return nil, err
	}
	var count uint32
	if fb.Version == 0 {
		if pos+2 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iinf count truncated")
		}
		count = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
	} else {
		if pos+4 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iinf count truncated")
		}
		count = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	children, err := ChildBoxes(data, pos, b.PayloadEnd())
	if err != nil {
		return nil, err
	}
	if uint32(len(children)) < count {
		return nil, newErr(KindTruncatedBox, pos, "iinf declares %d infe boxes, found %d", count, len(children))
	}

	var items []ItemInfo
	for _, c := range children {
		if c.Type != typeInfe {
			continue
		}
		it, err := parseInfe(data, c)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func parseInfe(data []byte, b Box) (ItemInfo, error) {
	fb, pos, err := readFullBoxHeader(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return ItemInfo{}, err
	}
	var it ItemInfo
	switch {
	case fb.Version == 0 || fb.Version == 1:
		if pos+4 > b.PayloadEnd() {
			return ItemInfo{}, newErr(KindTruncatedBox, pos, "infe v0/v1 truncated")
		}
		it.ItemID = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
		// item_protection_index at pos+2:pos+4, unused.
	default: // v2 and v3
		idSize := 2
		if fb.Version == 3 {
			idSize = 4
		}
		if pos+int64(idSize)+2+4 > b.PayloadEnd() {
			return ItemInfo{}, newErr(KindTruncatedBox, pos, "infe v2/v3 truncated")
		}
		if idSize == 2 {
			it.ItemID = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
		} else {
			it.ItemID = binary.BigEndian.Uint32(data[pos : pos+4])
		}
		pos += int64(idSize)
		pos += 2 // item_protection_index
		copy(it.ItemType[:], data[pos:pos+4])
	}
	return it, nil
}

func parseIloc(data []byte, b Box) ([]ItemLocation, error) {
	fb, pos, err := readFullBoxHeader(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return nil, err
	}
	if pos+2 > b.PayloadEnd() {
		return nil, newErr(KindTruncatedBox, pos, "iloc nibble header truncated")
	}
	offsetSize := data[pos] >> 4
	lengthSize := data[pos] & 0x0f
	baseOffsetSize := data[pos+1] >> 4
	indexSize := uint8(0)
	if fb.Version == 1 || fb.Version == 2 {
		indexSize = data[pos+1] & 0x0f
	}
	pos += 2

	var itemCount uint32
	if fb.Version < 2 {
		if pos+2 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iloc item_count truncated")
		}
		itemCount = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
	} else {
		if pos+4 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iloc item_count truncated")
		}
		itemCount = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	var locs []ItemLocation
	for i := uint32(0); i < itemCount; i++ {
		var l ItemLocation
		if fb.Version < 2 {
			if pos+2 > b.PayloadEnd() {
				return nil, newErr(KindTruncatedBox, pos, "iloc item_id truncated")
			}
			l.ItemID = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
		} else {
			if pos+4 > b.PayloadEnd() {
				return nil, newErr(KindTruncatedBox, pos, "iloc item_id truncated")
			}
			l.ItemID = binary.BigEndian.Uint32(data[pos : pos+4])
			pos += 4
		}

		if fb.Version == 1 || fb.Version == 2 {
			if pos+2 > b.PayloadEnd() {
				return nil, newErr(KindTruncatedBox, pos, "iloc construction_method truncated")
			}
			l.ConstructionMethod = uint8(binary.BigEndian.Uint16(data[pos:pos+2]) & 0x0f)
			pos += 2
		}

		if pos+2 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iloc data_reference_index truncated")
		}
		l.DataReferenceIndex = binary.BigEndian.Uint16(data[pos : pos+2])
		pos += 2

		var err error
		l.BaseOffset, pos, err = readUintN(data, pos, b.PayloadEnd(), baseOffsetSize)
		if err != nil {
			return nil, errors.Wrap(err, "iloc base_offset")
		}

		if pos+2 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "iloc extent_count truncated")
		}
		extentCount := binary.BigEndian.Uint16(data[pos : pos+2])
		pos += 2

		for e := uint16(0); e < extentCount; e++ {
			if (fb.Version == 1 || fb.Version == 2) && indexSize > 0 {
				_, next, err := readUintN(data, pos, b.PayloadEnd(), indexSize)
				if err != nil {
					return nil, errors.Wrap(err, "iloc extent_index")
				}
				pos = next
			}
			var off, length uint64
			off, pos, err = readUintN(data, pos, b.PayloadEnd(), offsetSize)
			if err != nil {
				return nil, errors.Wrap(err, "iloc extent_offset")
			}
			length, pos, err = readUintN(data, pos, b.PayloadEnd(), lengthSize)
			if err != nil {
				return nil, errors.Wrap(err, "iloc extent_length")
			}
			l.Extents = append(l.Extents, Extent{
				Offset: l.BaseOffset + off,
				Length: length,
				InIdat: l.ConstructionMethod == 1,
			})
		}
		locs = append(locs, l)
	}
	return locs, nil
}

// readUintN reads an n-byte (n in {0,4,8}, or arbitrary per the iloc
// nibble encoding) big-endian unsigned integer at pos. n==0 reads
// nothing and returns 0.
func readUintN(data []byte, pos, end int64, n uint8) (uint64, int64, error) {
	if n == 0 {
		return 0, pos, nil
	}
	if pos+int64(n) > end {
		return 0, pos, newErr(KindTruncatedBox, pos, "not enough bytes for %d-byte field", n)
	}
	var v uint64
	for i := uint8(0); i < n; i++ {
		v = (v << 8) | uint64(data[pos+int64(i)])
	}
	return v, pos + int64(n), nil
}

type itemPropertyAssociationEntry struct {
	ItemID    uint32
	Essential bool
	Index     uint16 // 1-based index into the ipco property container
}

// parseIprp parses the `iprp` box's two children: `ipco` (a flat list of
// property boxes, returned unparsed beyond their headers) and one or more
// `ipma` boxes (flattened into entries).
func parseIprp(data []byte, b Box) ([]Box, []itemPropertyAssociationEntry, error) {
	children, err := ChildBoxes(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return nil, nil, err
	}
	var ipco []Box
	var assoc []itemPropertyAssociationEntry
	for _, c := range children {
		switch c.Type {
		case typeIpco:
			ipco, err = ChildBoxes(data, c.PayloadStart(), c.PayloadEnd())
			if err != nil {
				return nil, nil, err
			}
		case typeIpma:
			entries, err := parseIpma(data, c)
			if err != nil {
				return nil, nil, err
			}
			assoc = append(assoc, entries...)
		}
	}
	return ipco, assoc, nil
}

func parseIpma(data []byte, b Box) ([]itemPropertyAssociationEntry, error) {
	fb, pos, err := readFullBoxHeader(data, b.PayloadStart(), b.PayloadEnd())
	if err != nil {
		return nil, err
	}
	if pos+4 > b.PayloadEnd() {
		return nil, newErr(KindTruncatedBox, pos, "ipma entry_count truncated")
	}
	count := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	var out []itemPropertyAssociationEntry
	for i := uint32(0); i < count; i++ {
		var itemID uint32
		if fb.Version < 1 {
			if pos+2 > b.PayloadEnd() {
				return nil, newErr(KindTruncatedBox, pos, "ipma item_id truncated")
			}
			itemID = uint32(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
		} else {
			if pos+4 > b.PayloadEnd() {
				return nil, newErr(KindTruncatedBox, pos, "ipma item_id truncated")
			}
			itemID = binary.BigEndian.Uint32(data[pos : pos+4])
			pos += 4
		}
		if pos+1 > b.PayloadEnd() {
			return nil, newErr(KindTruncatedBox, pos, "ipma assoc_count truncated")
		}
		assocCount := data[pos]
		pos++
		for j := uint8(0); j < assocCount; j++ {
			var index uint16
			var essential bool
			if fb.Flags&1 != 0 {
				if pos+2 > b.PayloadEnd() {
					return nil, newErr(KindTruncatedBox, pos, "ipma 2-byte index truncated")
				}
				raw := binary.BigEndian.Uint16(data[pos : pos+2])
				essential = raw&0x8000 != 0
				index = raw & 0x7fff
				pos += 2
			} else {
				if pos+1 > b.PayloadEnd() {
					return nil, newErr(KindTruncatedBox, pos, "ipma 1-byte index truncated")
				}
				raw := data[pos]
				essential = raw&0x80 != 0
				index = uint16(raw & 0x7f)
				pos++
			}
			out = append(out, itemPropertyAssociationEntry{ItemID: itemID, Essential: essential, Index: index})
		}
	}
	return out, nil
}

// resolveIspe fills m.Ispe by walking the ipma associations, looking up
// 1-based indices into ipco, and decoding any `ispe` box found.
func resolveIspe(data []byte, ipco []Box, assoc []itemPropertyAssociationEntry, m *Meta) {
	for _, a := range assoc {
		if a.Index == 0 || int(a.Index) > len(ipco) {
			continue
		}
		prop := ipco[a.Index-1]
		if prop.Type != typeIspe {
			continue
		}
		fb, pos, err := readFullBoxHeader(data, prop.PayloadStart(), prop.PayloadEnd())
		_ = fb
		if err != nil || pos+8 > prop.PayloadEnd() {
			continue
		}
		w := binary.BigEndian.Uint32(data[pos : pos+4])
		h := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		m.Ispe[a.ItemID] = [2]uint32{w, h}
	}
}
