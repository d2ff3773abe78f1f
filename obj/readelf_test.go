package obj

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

const (
	testShstrtab = "\x00.text\x00.rela.text\x00.symtab\x00.strtab\x00.shstrtab\x00"
	testStrtab   = "\x00foo\x00bar\x00"
)

type testSectionHeader struct {
	name                       string
	typ, flags                 uint32
	link, info, align, entsize uint32
	data                       []byte
}

// buildELF assembles a little-endian ELF32 relocatable object: a .text
// with one RELA record against an undefined global.
func buildELF(machine uint16) []byte {
	le := binary.LittleEndian
	sym := func(name, value, size uint32, info uint8, shndx uint16) []byte {
		b := make([]byte, 16)
		le.PutUint32(b[0:], name)
		le.PutUint32(b[4:], value)
		le.PutUint32(b[8:], size)
		b[12] = info
		le.PutUint16(b[14:], shndx)
		return b
	}
	var symtab []byte
	symtab = append(symtab, sym(0, 0, 0, 0, 0)...)
	symtab = append(symtab, sym(0, 0, 0, symkind.STT_SECTION, 1)...)
	symtab = append(symtab, sym(uint32(strings.Index(testStrtab, "foo")), 4, 4, symkind.STB_GLOBAL<<4|symkind.STT_FUNC, 1)...)
	symtab = append(symtab, sym(uint32(strings.Index(testStrtab, "bar")), 0, 0, symkind.STB_GLOBAL<<4, 0)...)

	rela := make([]byte, RelaSize)
	Rela{Offset: 0, Info: RelaInfo(3, reloctype.R_NDS32_25_PCREL_RELA), Addend: 8}.Put(rela, le)

	sections := []testSectionHeader{
		{},
		{name: ".text", typ: SHT_PROGBITS, flags: SHF_ALLOC | SHF_EXECINSTR, align: 4, data: []byte{0x49, 0, 0, 0, 0x40, 0, 0, 0x09}},
		{name: ".rela.text", typ: SHT_RELA, link: 3, info: 1, align: 4, entsize: RelaSize, data: rela},
		{name: ".symtab", typ: SHT_SYMTAB, link: 4, info: 2, align: 4, entsize: 16, data: symtab},
		{name: ".strtab", typ: SHT_STRTAB, align: 1, data: []byte(testStrtab)},
		{name: ".shstrtab", typ: SHT_STRTAB, align: 1, data: []byte(testShstrtab)},
	}

	var body bytes.Buffer
	body.Write(make([]byte, 52))
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
		offsets[i] = uint32(body.Len())
		body.Write(s.data)
	}
	for body.Len()%4 != 0 {
		body.WriteByte(0)
	}
	shoff := uint32(body.Len())
	for i, s := range sections {
		h := make([]byte, 40)
		if s.name != "" {
			le.PutUint32(h[0:], uint32(strings.Index(testShstrtab, "\x00"+s.name+"\x00")+1))
		}
		le.PutUint32(h[4:], s.typ)
		le.PutUint32(h[8:], s.flags)
		if i > 0 {
			le.PutUint32(h[16:], offsets[i])
		}
		le.PutUint32(h[20:], uint32(len(s.data)))
		le.PutUint32(h[24:], s.link)
		le.PutUint32(h[28:], s.info)
		le.PutUint32(h[32:], s.align)
		le.PutUint32(h[36:], s.entsize)
		body.Write(h)
	}

	b := body.Bytes()
	copy(b, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	le.PutUint16(b[16:], 1) // ET_REL
	le.PutUint16(b[18:], machine)
	le.PutUint32(b[20:], 1)
	le.PutUint32(b[32:], shoff)
	le.PutUint16(b[40:], 52)
	le.PutUint16(b[46:], 40)
	le.PutUint16(b[48:], uint16(len(sections)))
	le.PutUint16(b[50:], uint16(len(sections)-1))
	return b
}

func TestReadELF(t *testing.T) {
	o, err := ReadELF("a.o", bytes.NewReader(buildELF(EM_NDS32)))
	if err != nil {
		t.Fatal(err)
	}
	if o.Shared || o.BigEndian || len(o.Sections) != 6 {
		t.Fatalf("shared %v, big endian %v, %d sections", o.Shared, o.BigEndian, len(o.Sections))
	}
	text := o.SectionByName(".text")
	if text == nil || text.Index != 1 || text.Size != 8 || text.Align() != 4 || !text.IsExec() {
		t.Fatalf(".text %+v", text)
	}
	if !bytes.Equal(text.Contents, []byte{0x49, 0, 0, 0, 0x40, 0, 0, 0x09}) {
		t.Errorf("contents % x", text.Contents)
	}
	if len(o.Symbols) != 4 || o.FirstGlobal != 2 {
		t.Fatalf("%d symbols, first global %d", len(o.Symbols), o.FirstGlobal)
	}
	if i, foo := o.SymbolByName("foo"); foo == nil || i != 2 || foo.Value != 4 || foo.Type != symkind.STT_FUNC || foo.Shndx != 1 {
		t.Errorf("foo = %d %+v", i, foo)
	}
	if o.SectionSymbol(1) != 1 {
		t.Errorf("section symbol of .text is %d", o.SectionSymbol(1))
	}
	if len(text.Relocs) != 1 {
		t.Fatalf("%d relocations", len(text.Relocs))
	}
	r := text.Relocs[0]
	if r.Offset != 0 || r.Sym != 3 || r.Type != reloctype.R_NDS32_25_PCREL_RELA || r.Addend != 8 {
		t.Errorf("relocation %+v", r)
	}
	if o.Symbols[r.Sym].Name != "bar" || o.Symbols[r.Sym].Shndx != symkind.SHN_UNDEF {
		t.Errorf("relocation symbol %+v", o.Symbols[r.Sym])
	}
}

func TestReadELFRejectsOtherMachines(t *testing.T) {
	if _, err := ReadELF("x.o", bytes.NewReader(buildELF(3))); err == nil {
		t.Fatal("expected an error for a non-NDS32 object")
	}
	if _, err := ReadELF("junk", bytes.NewReader([]byte("not an elf file"))); err == nil {
		t.Fatal("expected an error for garbage")
	}
}
