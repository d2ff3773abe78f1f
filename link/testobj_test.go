package link

import (
	"testing"

	"github.com/NetBSD/src-sub063/config"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// testObject builds little relocatable objects for the link tests.
// Sections get their section symbol when they are added, so symbol
// indexes returned afterwards stay valid.
type testObject struct {
	*obj.Object
}

func newTestObject(name string) *testObject {
	return &testObject{&obj.Object{Name: name}}
}

func (o *testObject) section(name string, typ, flags uint32, alignPower uint8, size uint32) *obj.Section {
	sec := o.AddSection(&obj.Section{Name: name, Type: typ, Flags: flags, AlignPower: alignPower})
	sec.Grow(size)
	o.AddSectionSymbol(sec)
	return sec
}

func (o *testObject) text(size uint32) *obj.Section {
	return o.section(".text", obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_EXECINSTR, 2, size)
}

func (o *testObject) data(name string, size uint32) *obj.Section {
	return o.section(name, obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_WRITE, 2, size)
}

func (o *testObject) global(name string, sec *obj.Section, value, size uint32, typ uint8) uint32 {
	shndx := uint32(symkind.SHN_UNDEF)
	if sec != nil {
		shndx = uint32(sec.Index)
	}
	return o.AddSymbol(&obj.Symbol{Name: name, Value: value, Size: size, Shndx: shndx, Bind: symkind.STB_GLOBAL, Type: typ})
}

func (o *testObject) undef(name string) uint32 {
	return o.global(name, nil, 0, 0, symkind.STT_NOTYPE)
}

func (o *testObject) secsym(sec *obj.Section) uint32 {
	return o.SectionSymbol(sec.Index)
}

func reloc(sec *obj.Section, off uint32, sym uint32, t int, addend int64) {
	sec.Relocs = append(sec.Relocs, obj.Reloc{Offset: off, Sym: sym, Type: t, Addend: addend})
}

func relaxEntryAt(sec *obj.Section, flags int64) {
	reloc(sec, 0, 0, reloctype.R_NDS32_RELAX_ENTRY, flags)
}

func put32(sec *obj.Section, off uint32, insns ...uint32) {
	for i, insn := range insns {
		isa.Write32(sec.Contents, off+uint32(i)*4, insn)
	}
}

func testOptions() *config.Options {
	return config.Default()
}

func newTestLinker(t *testing.T, opts *config.Options, objects ...*testObject) *Linker {
	t.Helper()
	linker := NewLinker(opts)
	for _, o := range objects {
		if err := linker.AddObject(o.Object); err != nil {
			t.Fatal(err)
		}
	}
	return linker
}

func mustLink(t *testing.T, linker *Linker) {
	t.Helper()
	if err := linker.Link(); err != nil {
		for _, e := range linker.Diagnostics().Entries() {
			t.Log(e.String())
		}
		t.Fatal(err)
	}
}

func addrOf(t *testing.T, linker *Linker, name string) uint32 {
	t.Helper()
	addr, ok := linker.Symbol(name)
	if !ok {
		t.Fatalf("%s has no address", name)
	}
	return addr
}

func (o *testObject) abs(name string, value uint32) uint32 {
	return o.AddSymbol(&obj.Symbol{Name: name, Value: value, Shndx: symkind.SHN_ABS, Bind: symkind.STB_GLOBAL})
}

// code lays out instructions the way they sit in a section: uint32 values
// take four bytes, uint16 values two.
func code(insns ...interface{}) []byte {
	var b []byte
	for _, insn := range insns {
		switch v := insn.(type) {
		case uint32:
			b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		case uint16:
			b = append(b, byte(v>>8), byte(v))
		}
	}
	return b
}
