package obj

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const RelaSize = 12

// Rela is one Elf32_Rela record.
type Rela struct {
	Offset uint32
	Info   uint32
	Addend int32
}

func RelaInfo(sym uint32, relocType int) uint32 {
	return sym<<8 | uint32(relocType)&0xff
}

func (r Rela) Sym() uint32 {
	return r.Info >> 8
}

func (r Rela) Type() int {
	return int(r.Info & 0xff)
}

func (r Rela) Put(b []byte, order binary.ByteOrder) {
	_ = b[RelaSize-1] // early bounds check to guarantee safety of writes below
	order.PutUint32(b[0:], r.Offset)
	order.PutUint32(b[4:], r.Info)
	order.PutUint32(b[8:], uint32(r.Addend))
}

func DecodeRela(b []byte, order binary.ByteOrder) (Rela, error) {
	if len(b) < RelaSize {
		return Rela{}, fmt.Errorf("short rela record: %d bytes", len(b))
	}
	return Rela{
		Offset: order.Uint32(b[0:]),
		Info:   order.Uint32(b[4:]),
		Addend: int32(order.Uint32(b[8:])),
	}, nil
}

// SortRelocs orders relocations by offset. Relocations at the same offset
// keep their relative order, so a region-begin marker stays in front of
// the markers that share its offset.
func SortRelocs(relocs []Reloc) {
	sort.SliceStable(relocs, func(i, j int) bool {
		return relocs[i].Offset < relocs[j].Offset
	})
}

// FindReloc returns the index of the first relocation of kind relocType at
// offset, or -1. relocs must be sorted.
func FindReloc(relocs []Reloc, offset uint32, relocType int) int {
	i := sort.Search(len(relocs), func(i int) bool {
		return relocs[i].Offset >= offset
	})
	for ; i < len(relocs) && relocs[i].Offset == offset; i++ {
		if relocs[i].Type == relocType {
			return i
		}
	}
	return -1
}

// FindRelocFunc is FindReloc with a predicate on the kind.
func FindRelocFunc(relocs []Reloc, offset uint32, match func(relocType int) bool) int {
	i := sort.Search(len(relocs), func(i int) bool {
		return relocs[i].Offset >= offset
	})
	for ; i < len(relocs) && relocs[i].Offset == offset; i++ {
		if match(relocs[i].Type) {
			return i
		}
	}
	return -1
}
