package obj

import (
	"encoding/binary"
	"testing"

	"github.com/NetBSD/src-sub063/objabi/symkind"
)

func TestAddSymbolKeepsLocalsFirst(t *testing.T) {
	o := &Object{Name: "a.o"}
	text := o.AddSection(&Section{Name: ".text", Flags: SHF_ALLOC | SHF_EXECINSTR, Type: SHT_PROGBITS})
	foo := o.AddSymbol(&Symbol{Name: "foo", Bind: symkind.STB_GLOBAL, Shndx: uint32(text.Index)})
	text.Relocs = append(text.Relocs, Reloc{Offset: 0, Sym: foo, Type: 1})

	sec := o.AddSectionSymbol(text)
	if sec != 1 || o.FirstGlobal != 2 {
		t.Fatalf("section symbol %d, FirstGlobal %d", sec, o.FirstGlobal)
	}
	if got := text.Relocs[0].Sym; o.Symbols[got].Name != "foo" {
		t.Errorf("relocation renumbered to %d (%q)", got, o.Symbols[got].Name)
	}
	if again := o.AddSectionSymbol(text); again != sec {
		t.Errorf("second AddSectionSymbol = %d, want %d", again, sec)
	}
	if i, s := o.SymbolByName("foo"); s == nil || i != 2 || o.IsLocal(i) {
		t.Errorf("SymbolByName(foo) = %d, %v", i, s)
	}
	if o.SectionByName(".text") != text || o.Section(0) != nil || o.Section(9) != nil {
		t.Error("section lookup")
	}
}

func TestRela(t *testing.T) {
	r := Rela{Offset: 0x1234, Info: RelaInfo(7, 20), Addend: -4}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		b := make([]byte, RelaSize)
		r.Put(b, order)
		got, err := DecodeRela(b, order)
		if err != nil {
			t.Fatal(err)
		}
		if got != r || got.Sym() != 7 || got.Type() != 20 {
			t.Errorf("%v: decoded %+v", order, got)
		}
	}
	if _, err := DecodeRela(make([]byte, 8), binary.LittleEndian); err == nil {
		t.Error("short record decoded")
	}
}

func TestSortAndFindRelocs(t *testing.T) {
	relocs := []Reloc{
		{Offset: 8, Type: 3},
		{Offset: 0, Type: 1},
		{Offset: 8, Type: 2},
		{Offset: 4, Type: 5},
	}
	SortRelocs(relocs)
	if relocs[0].Offset != 0 || relocs[2].Type != 3 || relocs[3].Type != 2 {
		t.Fatalf("sorted %+v", relocs)
	}
	if i := FindReloc(relocs, 8, 2); i != 3 {
		t.Errorf("FindReloc(8, 2) = %d", i)
	}
	if i := FindReloc(relocs, 4, 2); i != -1 {
		t.Errorf("FindReloc(4, 2) = %d", i)
	}
	if i := FindRelocFunc(relocs, 8, func(typ int) bool { return typ > 1 }); i != 2 {
		t.Errorf("FindRelocFunc = %d", i)
	}
}

func TestSectionGrow(t *testing.T) {
	s := &Section{Type: SHT_PROGBITS, Contents: []byte{1, 2}, Size: 2, AlignPower: 2}
	s.Grow(6)
	if s.Size != 6 || len(s.Contents) != 6 || s.Contents[1] != 2 {
		t.Errorf("Grow: size %d contents % x", s.Size, s.Contents)
	}
	bss := &Section{Type: SHT_NOBITS}
	bss.Grow(16)
	if bss.Size != 16 || len(bss.Contents) != 0 {
		t.Errorf("Grow of nobits allocated contents")
	}
	if s.Align() != 4 {
		t.Errorf("Align() = %d", s.Align())
	}
}

func TestGotSlotAssign(t *testing.T) {
	var g GotSlot
	if !g.Assign(12) || g.Assign(16) || g.Offset != 12 {
		t.Errorf("Assign: %+v", g)
	}
}
