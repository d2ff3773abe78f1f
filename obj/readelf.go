package obj

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ReadELF loads an NDS32 ELF32 relocatable object or shared library.
func ReadELF(name string, r io.ReaderAt) (*Object, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("read elf %s failed: %w", name, err)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.Machine(EM_NDS32) {
		return nil, fmt.Errorf("%s: not an NDS32 ELF32 file (%s, %s)", name, f.Class, f.Machine)
	}
	o := &Object{
		Name:      name,
		Shared:    f.Type == elf.ET_DYN,
		BigEndian: f.ByteOrder == binary.BigEndian,
	}

	symtab := -1
	for i, es := range f.Sections {
		sec := &Section{
			Name:    es.Name,
			Index:   i,
			Type:    uint32(es.Type),
			Flags:   uint32(es.Flags),
			EntSize: uint32(es.Entsize),
			Size:    uint32(es.Size),
		}
		for a := es.Addralign; a > 1; a >>= 1 {
			sec.AlignPower++
		}
		if es.Type == elf.SHT_PROGBITS {
			if sec.Contents, err = es.Data(); err != nil {
				return nil, fmt.Errorf("%s: read section %s failed: %w", name, es.Name, err)
			}
		}
		if es.Type == elf.SHT_SYMTAB || (o.Shared && es.Type == elf.SHT_DYNSYM && symtab < 0) {
			symtab = i
		}
		o.Sections = append(o.Sections, sec)
	}

	var syms []elf.Symbol
	if symtab >= 0 {
		if f.Sections[symtab].Type == elf.SHT_SYMTAB {
			syms, err = f.Symbols()
		} else {
			syms, err = f.DynamicSymbols()
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read symbols failed: %w", name, err)
		}
		o.FirstGlobal = int(f.Sections[symtab].Info)
	}
	o.Symbols = append(o.Symbols, &Symbol{})
	for _, s := range syms {
		o.Symbols = append(o.Symbols, &Symbol{
			Name:  s.Name,
			Value: uint32(s.Value),
			Size:  uint32(s.Size),
			Shndx: uint32(s.Section),
			Bind:  uint8(elf.ST_BIND(s.Info)),
			Type:  uint8(elf.ST_TYPE(s.Info)),
			Other: s.Other,
		})
	}
	if o.FirstGlobal == 0 || o.FirstGlobal > len(o.Symbols) {
		o.FirstGlobal = 1
	}

	for _, es := range f.Sections {
		if es.Type != elf.SHT_RELA && es.Type != elf.SHT_REL {
			continue
		}
		if int(es.Info) >= len(o.Sections) {
			return nil, fmt.Errorf("%s: relocation section %s targets section %d", name, es.Name, es.Info)
		}
		target := o.Sections[es.Info]
		b, err := es.Data()
		if err != nil {
			return nil, fmt.Errorf("%s: read section %s failed: %w", name, es.Name, err)
		}
		entsize := RelaSize
		if es.Type == elf.SHT_REL {
			entsize = 8
		}
		for off := 0; off+entsize <= len(b); off += entsize {
			info := f.ByteOrder.Uint32(b[off+4:])
			r := Reloc{
				Offset: f.ByteOrder.Uint32(b[off:]),
				Sym:    info >> 8,
				Type:   int(info & 0xff),
			}
			if es.Type == elf.SHT_RELA {
				r.Addend = int64(int32(f.ByteOrder.Uint32(b[off+8:])))
			}
			if int(r.Sym) >= len(o.Symbols) {
				return nil, fmt.Errorf("%s: relocation at %s+0x%x uses symbol %d", name, target.Name, r.Offset, r.Sym)
			}
			target.Relocs = append(target.Relocs, r)
		}
		SortRelocs(target.Relocs)
	}
	return o, nil
}

func ReadELFFile(path string) (*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadELF(path, f)
}
