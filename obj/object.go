// Package obj is the in-memory form of the relocatable objects handed to
// the linker: sections with their contents and relocations, and the
// symbol table.
package obj

import (
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// ELF section types and flags
const (
	SHT_NULL     = 0
	SHT_PROGBITS = 1
	SHT_SYMTAB   = 2
	SHT_STRTAB   = 3
	SHT_RELA     = 4
	SHT_NOBITS   = 8
	SHT_REL      = 9

	SHF_WRITE     = 0x1
	SHF_ALLOC     = 0x2
	SHF_EXECINSTR = 0x4
	SHF_MERGE     = 0x10
	SHF_STRINGS   = 0x20
)

const EM_NDS32 = 167

type Object struct {
	Name string
	// a shared library: its global definitions resolve at run time
	Shared    bool
	BigEndian bool
	// index 0 is the null section
	Sections []*Section
	// index 0 is the null symbol, locals precede FirstGlobal
	Symbols     []*Symbol
	FirstGlobal int
}

type Section struct {
	Name       string
	Index      int
	Type       uint32
	Flags      uint32
	AlignPower uint8
	EntSize    uint32
	Contents   []byte
	Size       uint32
	Relocs     []Reloc

	// assigned by layout
	Addr         uint32
	OutputName   string
	OutputOffset uint32
}

type Reloc struct {
	Offset uint32
	Sym    uint32
	Type   int
	Addend int64
}

type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
	Shndx uint32
	Bind  uint8
	Type  uint8
	Other uint8
	// Link names the target of an indirect symbol
	Link string
}

// DynReloc counts the dynamic relocations one symbol needs copied into
// the output for references from one section.
type DynReloc struct {
	Section *Section
	Count   uint32
	PCCount uint32
}

// GotSlot is the GOT entry of one symbol. Set is true once Offset has been
// assigned; Initialized once the entry's contents have been written.
type GotSlot struct {
	Refs        int
	Offset      uint32
	Set         bool
	Initialized bool
}

func (g *GotSlot) Assign(offset uint32) bool {
	if g.Set {
		return false
	}
	g.Offset = offset
	g.Set = true
	return true
}

func (s *Section) Align() uint32 {
	return uint32(1) << s.AlignPower
}

//go:inline
func (s *Section) IsAlloc() bool {
	return s.Flags&SHF_ALLOC != 0
}

//go:inline
func (s *Section) IsExec() bool {
	return s.Flags&SHF_EXECINSTR != 0
}

//go:inline
func (s *Section) IsWrite() bool {
	return s.Flags&SHF_WRITE != 0
}

//go:inline
func (s *Section) IsNoBits() bool {
	return s.Type == SHT_NOBITS
}

func (s *Section) IsMergeStrings() bool {
	return s.Flags&(SHF_MERGE|SHF_STRINGS) == SHF_MERGE|SHF_STRINGS && s.EntSize <= 1
}

// IsLoadable reports sections that occupy address space in the output.
func (s *Section) IsLoadable() bool {
	return s.IsAlloc() && (s.Type == SHT_PROGBITS || s.Type == SHT_NOBITS || s.Type == SHT_RELA)
}

// Grow extends the contents to size bytes.
func (s *Section) Grow(size uint32) {
	if !s.IsNoBits() && uint32(len(s.Contents)) < size {
		s.Contents = append(s.Contents, make([]byte, int(size)-len(s.Contents))...)
	}
	if s.Size < size {
		s.Size = size
	}
}

func (o *Object) Section(i uint32) *Section {
	if int(i) >= len(o.Sections) || i == symkind.SHN_UNDEF {
		return nil
	}
	return o.Sections[i]
}

func (o *Object) Symbol(i uint32) *Symbol {
	if int(i) >= len(o.Symbols) {
		return nil
	}
	return o.Symbols[i]
}

//go:inline
func (o *Object) IsLocal(i uint32) bool {
	return int(i) < o.FirstGlobal
}

// SectionSymbol returns the index of the STT_SECTION symbol of section
// shndx, or 0.
func (o *Object) SectionSymbol(shndx int) uint32 {
	for i := 1; i < o.FirstGlobal && i < len(o.Symbols); i++ {
		s := o.Symbols[i]
		if s.Type == symkind.STT_SECTION && int(s.Shndx) == shndx {
			return uint32(i)
		}
	}
	return 0
}

// AddSectionSymbol appends a local STT_SECTION symbol for sec, keeping the
// local/global partition, and returns its index. Relocations of the
// object are renumbered.
func (o *Object) AddSectionSymbol(sec *Section) uint32 {
	if i := o.SectionSymbol(sec.Index); i != 0 {
		return i
	}
	return o.AddSymbol(&Symbol{Shndx: uint32(sec.Index), Type: symkind.STT_SECTION, Bind: symkind.STB_LOCAL})
}

// AddSection appends sec and sets its index.
func (o *Object) AddSection(sec *Section) *Section {
	if len(o.Sections) == 0 {
		o.Sections = append(o.Sections, &Section{})
	}
	sec.Index = len(o.Sections)
	o.Sections = append(o.Sections, sec)
	return sec
}

// AddSymbol appends sym, as a global when its binding is not local.
func (o *Object) AddSymbol(sym *Symbol) uint32 {
	if len(o.Symbols) == 0 {
		o.Symbols = append(o.Symbols, &Symbol{})
		o.FirstGlobal = 1
	}
	if sym.Bind != symkind.STB_LOCAL {
		o.Symbols = append(o.Symbols, sym)
		return uint32(len(o.Symbols) - 1)
	}
	at := o.FirstGlobal
	o.Symbols = append(o.Symbols, nil)
	copy(o.Symbols[at+1:], o.Symbols[at:])
	o.Symbols[at] = sym
	o.FirstGlobal++
	for _, s := range o.Sections {
		if s == nil {
			continue
		}
		for i := range s.Relocs {
			if int(s.Relocs[i].Sym) >= at {
				s.Relocs[i].Sym++
			}
		}
	}
	return uint32(at)
}

func (o *Object) SectionByName(name string) *Section {
	for _, s := range o.Sections {
		if s != nil && s.Name == name {
			return s
		}
	}
	return nil
}

func (o *Object) SymbolByName(name string) (uint32, *Symbol) {
	for i, s := range o.Symbols {
		if i > 0 && s.Name == name {
			return uint32(i), s
		}
	}
	return 0, nil
}
