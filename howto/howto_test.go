package howto

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

func TestApplyBranch(t *testing.T) {
	buf := make([]byte, 8)
	isa.Write32(buf, 4, isa.Jal(0))
	h := Lookup(reloctype.R_NDS32_25_PCREL_RELA)
	if err := Relocate(h, buf, 4, 0x1054, 0x1004, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if got, want := isa.Read32(buf, 4), isa.Jal(0x28); got != want {
		t.Errorf("jal = 0x%08x, want 0x%08x", got, want)
	}
	if v := h.Extract(buf, 4, binary.LittleEndian); v != 0x50 {
		t.Errorf("Extract = 0x%x, want 0x50", v)
	}
	if err := Relocate(h, buf, 4, 0x1004-0x20, 0x1004, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if v := h.Extract(buf, 4, binary.LittleEndian); v != -0x20 {
		t.Errorf("Extract backward = %d, want -32", v)
	}
}

func TestCheckOverflow(t *testing.T) {
	tests := []struct {
		name     string
		t        int
		value    int64
		overflow bool
	}{
		{"17 pcrel top", reloctype.R_NDS32_17_PCREL_RELA, 1<<16 - 2, false},
		{"17 pcrel past top", reloctype.R_NDS32_17_PCREL_RELA, 1 << 16, true},
		{"17 pcrel bottom", reloctype.R_NDS32_17_PCREL_RELA, -1 << 16, false},
		{"17 pcrel past bottom", reloctype.R_NDS32_17_PCREL_RELA, -1<<16 - 2, true},
		{"20 top", reloctype.R_NDS32_20_RELA, 1<<19 - 1, false},
		{"20 past top", reloctype.R_NDS32_20_RELA, 1 << 19, true},
		{"ifc unsigned", reloctype.R_NDS32_10IFCU_PCREL_RELA, 1022, false},
		{"ifc past top", reloctype.R_NDS32_10IFCU_PCREL_RELA, 1024, true},
		{"ifc negative", reloctype.R_NDS32_10IFCU_PCREL_RELA, -2, true},
		{"hi20 never", reloctype.R_NDS32_HI20_RELA, 1 << 40, false},
		{"32 bit", reloctype.R_NDS32_32_RELA, 1 << 40, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Lookup(test.t).CheckOverflow(test.value)
			if test.overflow && !errors.Is(err, diag.ErrOverflow) {
				t.Errorf("CheckOverflow(%d) = %v, want overflow", test.value, err)
			}
			if !test.overflow && err != nil {
				t.Errorf("CheckOverflow(%d) = %v", test.value, err)
			}
		})
	}
}

func TestApplyWritesOnOverflow(t *testing.T) {
	buf := make([]byte, 4)
	isa.Write32(buf, 0, isa.Movi(1, 0))
	err := Lookup(reloctype.R_NDS32_20_RELA).Apply(buf, 0, 1<<19, binary.LittleEndian)
	if !errors.Is(err, diag.ErrOverflow) {
		t.Fatalf("Apply = %v, want overflow", err)
	}
	if got := isa.Read32(buf, 0); got != isa.Movi(1, -1<<19) {
		t.Errorf("field = 0x%08x, want truncated value", got)
	}
}

func TestPartialInplace(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 0x10)
	if err := Lookup(reloctype.R_NDS32_32).Apply(buf, 0, 0x20, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(buf); got != 0x30 {
		t.Errorf("word = 0x%x, want 0x30", got)
	}
	if err := Lookup(reloctype.R_NDS32_32_RELA).Apply(buf, 0, 0x44, binary.BigEndian); err != nil {
		t.Fatal(err)
	}
	if got := binary.BigEndian.Uint32(buf); got != 0x44 {
		t.Errorf("rela word = 0x%x, want 0x44", got)
	}
}

func TestOutOfRange(t *testing.T) {
	buf := make([]byte, 6)
	err := Lookup(reloctype.R_NDS32_32_RELA).Apply(buf, 4, 1, binary.LittleEndian)
	if !errors.Is(err, diag.ErrOutOfRange) {
		t.Errorf("Apply past the end = %v", err)
	}
}

func TestULEB128(t *testing.T) {
	buf := []byte{0x80, 0x00, 0xff, 0xff}
	h := Lookup(reloctype.R_NDS32_DWARF2_LEB_RELA)
	if err := h.Apply(buf, 0, 300, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xac || buf[1] != 0x02 || buf[2] != 0xff {
		t.Errorf("uleb128 = % x", buf)
	}
	if v, n := ReadULEB128(buf, 0); v != 300 || n != 2 {
		t.Errorf("ReadULEB128 = %d, %d", v, n)
	}
	if err := h.Apply(buf, 0, 20000, binary.LittleEndian); !errors.Is(err, diag.ErrOverflow) {
		t.Errorf("Apply of a wide value = %v, want overflow", err)
	}
	if _, n := ReadULEB128([]byte{0x80}, 0); n != 0 {
		t.Errorf("truncated uleb128 decoded %d bytes", n)
	}
}

func TestMarkers(t *testing.T) {
	for t2 := reloctype.R_NDS32_RELAX_ENTRY; t2 < reloctype.R_NDS32_max; t2++ {
		h := Lookup(t2)
		if h == nil || !h.Marker {
			t.Errorf("%s is not a marker", reloctype.RelocTypeString(t2))
		}
	}
	buf := []byte{1, 2, 3, 4}
	if err := Lookup(reloctype.R_NDS32_LONGCALL1).Apply(buf, 0, 0x1234, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 1 || buf[3] != 4 {
		t.Errorf("marker changed contents: % x", buf)
	}
}

func TestTableOrdered(t *testing.T) {
	hs := Table()
	if len(hs) == 0 {
		t.Fatal("empty table")
	}
	for i := 1; i < len(hs); i++ {
		if hs[i-1].Type >= hs[i].Type {
			t.Fatalf("table out of order at %s", hs[i].Name)
		}
	}
	if Lookup(reloctype.R_NDS32_max) != nil {
		t.Error("lookup past the last kind succeeded")
	}
}
