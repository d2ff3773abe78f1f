package link

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

var (
	ex9Addi = isa.Addi(1, 1, 100)
	ex9Movi = isa.Movi(2, 1000)
)

func ex9Object() *testObject {
	o := newTestObject("ex9.o")
	text := o.text(20)
	put32(text, 0, ex9Addi, ex9Movi, ex9Addi, ex9Movi, ex9Addi)
	relaxEntryAt(text, reloctype.RelaxEntryEx9)
	return o
}

func TestEx9(t *testing.T) {
	o := ex9Object()
	opts := testOptions()
	opts.Ex9 = true
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)

	table := linker.Ex9Table()
	if len(table) != 1 || table[0] != ex9Addi {
		t.Fatalf("table %x", table)
	}
	text := o.Sections[1]
	if text.Size != 16 {
		t.Fatalf("size %d, want 16", text.Size)
	}
	it := isa.Ex9It(0)
	for _, off := range []uint32{0, 6, 12} {
		if got := isa.Read16(text.Contents, off); got != it {
			t.Errorf("0x%x: 0x%04x, want ex9.it 0", off, got)
		}
	}
	for _, off := range []uint32{2, 8} {
		if got := isa.Read32(text.Contents, off); got != ex9Movi {
			t.Errorf("0x%x: 0x%08x, want movi", off, got)
		}
	}
	if got := isa.Read16(text.Contents, 14); got != isa.Insn16NOP {
		t.Errorf("padding 0x%04x", got)
	}
	if linker.Round() != RoundDone {
		t.Errorf("round %v", linker.Round())
	}

	var out bytes.Buffer
	if err := linker.ExportEx9(&out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 4 {
		t.Errorf("exported %d bytes", out.Len())
	}
}

func TestEx9Import(t *testing.T) {
	o := ex9Object()
	opts := testOptions()
	opts.Ex9 = true
	linker := newTestLinker(t, opts, o)
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], ex9Movi)
	if err := linker.ImportEx9(bytes.NewReader(word[:])); err != nil {
		t.Fatal(err)
	}
	mustLink(t, linker)

	table := linker.Ex9Table()
	if len(table) != 2 || table[0] != ex9Movi || table[1] != ex9Addi {
		t.Fatalf("table %x", table)
	}
	text := o.Sections[1]
	want := []uint16{isa.Ex9It(1), isa.Ex9It(0), isa.Ex9It(1), isa.Ex9It(0), isa.Ex9It(1), isa.Insn16NOP}
	if text.Size != uint32(2*len(want)) {
		t.Fatalf("size %d", text.Size)
	}
	for i, w := range want {
		if got := isa.Read16(text.Contents, uint32(2*i)); got != w {
			t.Errorf("halfword %d = 0x%04x, want 0x%04x", i, got, w)
		}
	}
}

func TestEx9ImportTruncated(t *testing.T) {
	linker := NewLinker(testOptions())
	if err := linker.ImportEx9(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error for a partial word")
	}
}

func TestEx9SkipsNoEx9Region(t *testing.T) {
	o := ex9Object()
	text := o.Sections[1]
	reloc(text, 0, 0, reloctype.R_NDS32_RELAX_REGION_BEGIN, reloctype.RegionNoEx9)
	opts := testOptions()
	opts.Ex9 = true
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)
	if len(linker.Ex9Table()) != 0 || text.Size != 20 {
		t.Errorf("table %x, size %d", linker.Ex9Table(), text.Size)
	}
}

func TestEx9LeavesSkippedBodies(t *testing.T) {
	o := newTestObject("lj3.o")
	text := o.text(48)
	far := o.abs("far", 0x7000000)
	relaxEntryAt(text, reloctype.RelaxEntryEx9)
	for off := uint32(0); off < 48; off += 16 {
		put32(text, off, isa.BR2(isa.BR2BNEZ, 1, 8), isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jr(isa.RegTA))
		reloc(text, off, 0, reloctype.R_NDS32_LONGJUMP3, 0)
		reloc(text, off+4, far, reloctype.R_NDS32_HI20_RELA, 0)
		reloc(text, off+8, far, reloctype.R_NDS32_LO12S0_ORI_RELA, 0)
	}
	opts := testOptions()
	opts.Ex9 = true
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)

	if table := linker.Ex9Table(); len(table) != 0 {
		t.Errorf("table %x", table)
	}
	if text.Size != 48 {
		t.Fatalf("size %d, want 48", text.Size)
	}
	for off := uint32(0); off < 48; off += 16 {
		want := code(isa.BR2(isa.BR2BNEZ, 1, 8), isa.Sethi(isa.RegTA, 0x7000), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jr(isa.RegTA))
		if got := text.Contents[off : off+16]; !bytes.Equal(got, want) {
			t.Errorf("at %d: got % x, want % x", off, got, want)
		}
	}
}
