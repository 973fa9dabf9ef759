package bmff

import (
	"encoding/binary"
	"testing"
)

// box32 builds a standard 32-bit-size box: [size(4)][type(4)][payload].
func box32(typ string, payload []byte) []byte {
	var t Type
	copy(t[:], typ)
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], t[:])
	copy(out[8:], payload)
	return out
}

func TestReadBoxHeaderBasic(t *testing.T) {
	data := box32("ftyp", []byte("avifmif1miaf"))
	b, err := readBoxHeader(data, 0, int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if b.Type.String() != "ftyp" || b.Size != int64(len(data)) || b.HeaderSize != 8 {
		t.Fatalf("unexpected box: %+v", b)
	}
}

func TestReadBoxHeaderSize0ExtendsToParent(t *testing.T) {
	data := make([]byte, 20)
	binary.BigEndian.PutUint32(data[0:4], 0)
	copy(data[4:8], "mdat")
	b, err := readBoxHeader(data, 0, 20)
	if err != nil {
		t.Fatal(err)
	}
	if b.Size != 20 {
		t.Fatalf("got size %d, want 20", b.Size)
	}
}

func TestReadBoxHeaderLargesize(t *testing.T) {
	data := make([]byte, 16+4)
	binary.BigEndian.PutUint32(data[0:4], 1)
	copy(data[4:8], "mdat")
	binary.BigEndian.PutUint64(data[8:16], 20)
	b, err := readBoxHeader(data, 0, 20)
	if err != nil {
		t.Fatal(err)
	}
	if b.Size != 20 || b.HeaderSize != 16 {
		t.Fatalf("unexpected box: %+v", b)
	}
}

func TestReadBoxHeaderTruncated(t *testing.T) {
	data := []byte{0, 0, 0, 20, 'm', 'd'}
	if _, err := readBoxHeader(data, 0, int64(len(data))); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadBoxHeaderOverrunParent(t *testing.T) {
	data := box32("mdat", []byte("0123456789"))
	if _, err := readBoxHeader(data, 0, 10); err == nil {
		t.Fatal("expected overrun error")
	}
}

func TestChildBoxesFlatList(t *testing.T) {
	a := box32("pitm", []byte{0, 0, 0, 0, 0, 1})
	b := box32("iinf", []byte{0, 0, 0, 0, 0, 0})
	data := append(append([]byte{}, a...), b...)
	boxes, err := ChildBoxes(data, 0, int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 2 || boxes[0].Type.String() != "pitm" || boxes[1].Type.String() != "iinf" {
		t.Fatalf("unexpected boxes: %+v", boxes)
	}
}

func TestFindTopLevelRecursesIntoContainers(t *testing.T) {
	inner := box32("mdia", box32("pitm", []byte{0, 0, 0, 0, 0, 9}))
	outer := box32("moov", inner)
	data := append(append([]byte{}, box32("ftyp", []byte("isom"))...), outer...)
	b, ok, err := FindTopLevel(data, typeOf("pitm"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected to find pitm nested inside moov/mdia")
	}
	if b.Type.String() != "pitm" {
		t.Fatalf("got %q", b.Type.String())
	}
}

func TestFindTopLevelNotFound(t *testing.T) {
	data := box32("ftyp", []byte("isom"))
	_, ok, err := FindTopLevel(data, typeOf("meta"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}
