package obu

import "testing"

// obuBytes builds one OBU: header byte + leb128 size + payload, always
// with obu_has_size_field set and no extension.
func obuBytes(t Type, payload []byte) []byte {
	h := byte(t)<<3 | 0x02 // has_size_field bit set, extension off
	size := encodeLEB128(uint64(len(payload)))
	out := append([]byte{h}, size...)
	out = append(out, payload...)
	return out
}

func encodeLEB128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func TestScanOBUsSingleSequenceHeader(t *testing.T) {
	buf := obuBytes(TypeSequenceHeader, []byte{0xde, 0xad})
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(obus) != 1 || obus[0].Header.Type != TypeSequenceHeader {
		t.Fatalf("unexpected obus: %+v", obus)
	}
	if string(obus[0].Payload) != "\xde\xad" {
		t.Fatalf("unexpected payload: %x", obus[0].Payload)
	}
}

func TestScanOBUsMultiple(t *testing.T) {
	var buf []byte
	buf = append(buf, obuBytes(TypeTemporalDelimiter, nil)...)
	buf = append(buf, obuBytes(TypeSequenceHeader, []byte{0x01})...)
	buf = append(buf, obuBytes(TypeFrame, []byte{0x02, 0x03, 0x04})...)
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(obus) != 3 {
		t.Fatalf("got %d obus, want 3", len(obus))
	}
	if obus[2].Header.Type != TypeFrame || len(obus[2].Payload) != 3 {
		t.Fatalf("unexpected third obu: %+v", obus[2])
	}
}

func TestScanOBUsForbiddenBit(t *testing.T) {
	buf := obuBytes(TypeSequenceHeader, []byte{0x01})
	buf[0] |= 0x80
	_, err := ScanOBUs(buf)
	if err == nil {
		t.Fatal("expected forbidden bit error")
	}
	oerr := err.(*Error)
	if oerr.Kind != KindForbiddenBit {
		t.Fatalf("got kind %v, want ForbiddenBit", oerr.Kind)
	}
}

func TestScanOBUsNoSizeField(t *testing.T) {
	h := byte(TypeSequenceHeader) << 3 // has_size_field bit clear
	_, err := ScanOBUs([]byte{h, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected no-size-field error")
	}
	oerr := err.(*Error)
	if oerr.Kind != KindNoSizeField {
		t.Fatalf("got kind %v, want NoSizeField", oerr.Kind)
	}
}

func TestScanOBUsTruncatedPayload(t *testing.T) {
	full := obuBytes(TypeFrame, []byte{0x01, 0x02, 0x03})
	truncated := full[:len(full)-1]
	_, err := ScanOBUs(truncated)
	if err == nil {
		t.Fatal("expected truncated obu error")
	}
	oerr := err.(*Error)
	if oerr.Kind != KindTruncatedObu {
		t.Fatalf("got kind %v, want TruncatedObu", oerr.Kind)
	}
}

func TestScanOBUsTrailingZeroPadTolerated(t *testing.T) {
	buf := obuBytes(TypeSequenceHeader, []byte{0x01})
	buf = append(buf, 0, 0, 0, 0)
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(obus) != 1 {
		t.Fatalf("got %d obus, want 1", len(obus))
	}
}

func TestScanOBUsExtensionHeader(t *testing.T) {
	h := byte(TypeFrame)<<3 | 0x04 | 0x02 // extension_flag | has_size_field
	ext := byte(2<<5) | byte(1<<3)        // temporal_id=2, spatial_id=1
	payload := []byte{0xaa, 0xbb}
	buf := append([]byte{h, ext}, encodeLEB128(uint64(len(payload)))...)
	buf = append(buf, payload...)
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(obus) != 1 {
		t.Fatalf("got %d obus, want 1", len(obus))
	}
	o := obus[0]
	if !o.Header.ExtensionFlag || o.Header.TemporalID != 2 || o.Header.SpatialID != 1 {
		t.Fatalf("unexpected header: %+v", o.Header)
	}
	if o.Header.HeaderSizeInBytes != 2 {
		t.Fatalf("got header size %d, want 2", o.Header.HeaderSizeInBytes)
	}
}

func TestRequireExactlyOneSequenceHeader(t *testing.T) {
	var buf []byte
	buf = append(buf, obuBytes(TypeTemporalDelimiter, nil)...)
	buf = append(buf, obuBytes(TypeSequenceHeader, []byte{0x42})...)
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := RequireExactlyOneSequenceHeader(obus)
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "\x42" {
		t.Fatalf("unexpected payload: %x", payload)
	}
}

func TestRequireExactlyOneSequenceHeaderMissing(t *testing.T) {
	buf := obuBytes(TypeFrame, []byte{0x01})
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RequireExactlyOneSequenceHeader(obus); err == nil {
		t.Fatal("expected error for missing sequence header")
	}
}

func TestRequireExactlyOneSequenceHeaderDuplicate(t *testing.T) {
	var buf []byte
	buf = append(buf, obuBytes(TypeSequenceHeader, []byte{0x01})...)
	buf = append(buf, obuBytes(TypeSequenceHeader, []byte{0x02})...)
	obus, err := ScanOBUs(buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RequireExactlyOneSequenceHeader(obus); err == nil {
		t.Fatal("expected error for duplicate sequence header")
	}
}
