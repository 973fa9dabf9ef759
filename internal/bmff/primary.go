/*
DESCRIPTION
  primary.go implements spec.md §4.3's extract_primary operation: given a
  whole file buffer, locate `meta`, resolve the primary item, and return
  its byte-exact AV1 OBU stream payload, or a typed UnsupportedItem error
  naming why the item cannot be safely extracted.
*/

package bmff

import "github.com/pkg/errors"

// Primary is the result of a successful ExtractPrimary call.
type Primary struct {
	ItemID  uint32
	Payload []byte
	// Width/Height come from the associated ispe property, when present,
	// for the cross-check in spec.md §8 against the decoded frame size.
	Width, Height uint32
	HasIspe       bool
}

// ExtractPrimary locates the primary AV01 item in file and returns its
// concatenated extent payload.
func ExtractPrimary(file []byte) (*Primary, error) {
	metaBox, ok, err := FindTopLevel(file, typeMeta)
	if err != nil {
		return nil, errors.Wrap(err, "extract_primary: locating meta")
	}
	if !ok {
		return nil, newErr(KindUnsupportedBox, 0, "no meta box found")
	}

	meta, err := ParseMeta(file, metaBox)
	if err != nil {
		return nil, errors.Wrap(err, "extract_primary: parsing meta")
	}
	if !meta.HasPrimary {
		return nil, newErr(KindUnsupportedBox, metaBox.Offset, "meta has no pitm box")
	}

	info, ok := meta.Items[meta.PrimaryItemID]
	if !ok {
		return nil, newItemErr(ReasonDerivedPrimary, metaBox.Offset,
			"primary item id %d has no infe entry", meta.PrimaryItemID)
	}
	if info.ItemType != typeOf("av01") {
		return nil, newItemErr(ReasonNotAv01, metaBox.Offset,
			"primary item %d has type %q, want av01", meta.PrimaryItemID, info.ItemType.String())
	}

	loc, ok := meta.Locs[meta.PrimaryItemID]
	if !ok {
		return nil, newItemErr(ReasonImplicitExtent, metaBox.Offset,
			"primary item %d has no iloc entry", meta.PrimaryItemID)
	}
	if loc.DataReferenceIndex != 0 {
		return nil, newItemErr(ReasonExternalDataRef, metaBox.Offset,
			"primary item %d references external data (data_reference_index=%d)",
			meta.PrimaryItemID, loc.DataReferenceIndex)
	}
	if loc.ConstructionMethod == 2 {
		return nil, newItemErr(ReasonConstructionMethod2, metaBox.Offset,
			"primary item %d uses item-offset construction (unsupported)", meta.PrimaryItemID)
	}
	if len(loc.Extents) == 0 {
		return nil, newItemErr(ReasonImplicitExtent, metaBox.Offset,
			"primary item %d has no extents", meta.PrimaryItemID)
	}

	var payload []byte
	for _, e := range loc.Extents {
		if e.Length == 0 {
			return nil, newItemErr(ReasonImplicitExtent, metaBox.Offset,
				"primary item %d has a zero-length extent", meta.PrimaryItemID)
		}
		var start, end int64
		if e.InIdat {
			if !meta.HasIdat {
				return nil, newItemErr(ReasonImplicitExtent, metaBox.Offset,
					"primary item %d extent is idat-relative but meta has no idat box", meta.PrimaryItemID)
			}
			start = meta.IdatStart + int64(e.Offset)
			end = start + int64(e.Length)
			if end > meta.IdatEnd {
				return nil, newErr(KindOverrunParent, start, "idat extent runs past idat end")
			}
		} else {
			start = int64(e.Offset)
			end = start + int64(e.Length)
			if end > int64(len(file)) {
				return nil, newErr(KindTruncatedBox, start, "file extent runs past end of file")
			}
		}
		payload = append(payload, file[start:end]...)
	}

	p := &Primary{ItemID: meta.PrimaryItemID, Payload: payload}
	if wh, ok := meta.Ispe[meta.PrimaryItemID]; ok {
		p.Width, p.Height = wh[0], wh[1]
		p.HasIspe = true
	}
	return p, nil
}
