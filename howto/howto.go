// Package howto describes how each NDS32 relocation kind patches its
// field, and applies relocation values to section contents.
package howto

import (
	"encoding/binary"

	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

type Overflow int

const (
	OverflowNone Overflow = iota
	OverflowSigned
	OverflowUnsigned
	OverflowBitfield
)

func (o Overflow) String() string {
	switch o {
	case OverflowSigned:
		return "signed"
	case OverflowUnsigned:
		return "unsigned"
	case OverflowBitfield:
		return "bitfield"
	}
	return "none"
}

// Howto is the immutable descriptor of one relocation kind.
type Howto struct {
	Type           int
	Name           string
	RightShift     uint
	Size           int // bytes patched: 0, 1, 2 or 4
	BitSize        uint
	PCRel          bool
	BitPos         uint
	Overflow       Overflow
	PartialInplace bool
	SrcMask        uint32
	DstMask        uint32
	PCRelOffset    bool
	// instruction kinds are big-endian whatever the data byte order is
	Insn bool
	// Marker kinds steer relaxation and never touch contents.
	Marker bool
	// Special replaces the generic field insertion.
	Special func(h *Howto, buf []byte, off uint32, value int64, order binary.ByteOrder) error
}

var table = map[int]*Howto{}

func def(t int, rs uint, size int, bits uint, pcrel bool, pos uint, ov Overflow, partial bool, src, dst uint32, pcoff bool) *Howto {
	h := &Howto{
		Type:           t,
		Name:           reloctype.RelocTypeString(t),
		RightShift:     rs,
		Size:           size,
		BitSize:        bits,
		PCRel:          pcrel,
		BitPos:         pos,
		Overflow:       ov,
		PartialInplace: partial,
		SrcMask:        src,
		DstMask:        dst,
		PCRelOffset:    pcoff,
		Insn:           true,
	}
	table[t] = h
	return h
}

func data(h *Howto) {
	h.Insn = false
}

func marker(t int) {
	table[t] = &Howto{Type: t, Name: reloctype.RelocTypeString(t), Size: 0, Marker: true}
}

func init() {
	const (
		none = OverflowNone
		sgn  = OverflowSigned
		uns  = OverflowUnsigned
		bf   = OverflowBitfield
	)
	def(reloctype.R_NDS32_NONE, 0, 0, 0, false, 0, bf, false, 0, 0, false)
	data(def(reloctype.R_NDS32_16, 0, 2, 16, false, 0, bf, true, 0xffff, 0xffff, false))
	data(def(reloctype.R_NDS32_32, 0, 4, 32, false, 0, bf, true, 0xffffffff, 0xffffffff, false))
	def(reloctype.R_NDS32_20, 0, 4, 20, false, 0, uns, true, 0xfffff, 0xfffff, false)
	def(reloctype.R_NDS32_9_PCREL, 1, 2, 8, true, 0, sgn, false, 0xff, 0xff, true)
	def(reloctype.R_NDS32_15_PCREL, 1, 4, 14, true, 0, sgn, false, 0x3fff, 0x3fff, true)
	def(reloctype.R_NDS32_17_PCREL, 1, 4, 16, true, 0, sgn, false, 0xffff, 0xffff, true)
	def(reloctype.R_NDS32_25_PCREL, 1, 4, 24, true, 0, sgn, false, 0xffffff, 0xffffff, true)
	def(reloctype.R_NDS32_HI20, 12, 4, 20, false, 0, none, true, 0xfffff, 0xfffff, false)
	def(reloctype.R_NDS32_LO12S3, 3, 4, 9, false, 0, none, true, 0x1ff, 0x1ff, false)
	def(reloctype.R_NDS32_LO12S2, 2, 4, 10, false, 0, none, true, 0x3ff, 0x3ff, false)
	def(reloctype.R_NDS32_LO12S1, 1, 4, 11, false, 0, none, true, 0x7ff, 0x7ff, false)
	def(reloctype.R_NDS32_LO12S0, 0, 4, 12, false, 0, none, true, 0xfff, 0xfff, false)
	def(reloctype.R_NDS32_SDA15S3, 3, 4, 15, false, 0, sgn, true, 0x7fff, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S2, 2, 4, 15, false, 0, sgn, true, 0x7fff, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S1, 1, 4, 15, false, 0, sgn, true, 0x7fff, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S0, 0, 4, 15, false, 0, sgn, true, 0x7fff, 0x7fff, false)
	marker(reloctype.R_NDS32_GNU_VTINHERIT)
	marker(reloctype.R_NDS32_GNU_VTENTRY)

	data(def(reloctype.R_NDS32_16_RELA, 0, 2, 16, false, 0, bf, false, 0, 0xffff, false))
	data(def(reloctype.R_NDS32_32_RELA, 0, 4, 32, false, 0, bf, false, 0, 0xffffffff, false))
	def(reloctype.R_NDS32_20_RELA, 0, 4, 20, false, 0, sgn, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_9_PCREL_RELA, 1, 2, 8, true, 0, sgn, false, 0, 0xff, true)
	def(reloctype.R_NDS32_15_PCREL_RELA, 1, 4, 14, true, 0, sgn, false, 0, 0x3fff, true)
	def(reloctype.R_NDS32_17_PCREL_RELA, 1, 4, 16, true, 0, sgn, false, 0, 0xffff, true)
	def(reloctype.R_NDS32_25_PCREL_RELA, 1, 4, 24, true, 0, sgn, false, 0, 0xffffff, true)
	def(reloctype.R_NDS32_HI20_RELA, 12, 4, 20, false, 0, none, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_LO12S3_RELA, 3, 4, 9, false, 0, none, false, 0, 0x1ff, false)
	def(reloctype.R_NDS32_LO12S2_RELA, 2, 4, 10, false, 0, none, false, 0, 0x3ff, false)
	def(reloctype.R_NDS32_LO12S1_RELA, 1, 4, 11, false, 0, none, false, 0, 0x7ff, false)
	def(reloctype.R_NDS32_LO12S0_RELA, 0, 4, 12, false, 0, none, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_SDA15S3_RELA, 3, 4, 15, false, 0, sgn, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S2_RELA, 2, 4, 15, false, 0, sgn, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S1_RELA, 1, 4, 15, false, 0, sgn, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_SDA15S0_RELA, 0, 4, 15, false, 0, sgn, false, 0, 0x7fff, false)
	marker(reloctype.R_NDS32_RELA_GNU_VTINHERIT)
	marker(reloctype.R_NDS32_RELA_GNU_VTENTRY)

	def(reloctype.R_NDS32_GOT20, 0, 4, 20, false, 0, uns, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_25_PLTREL, 1, 4, 24, true, 0, sgn, false, 0, 0xffffff, true)
	data(def(reloctype.R_NDS32_COPY, 0, 4, 32, false, 0, bf, false, 0, 0xffffffff, false))
	data(def(reloctype.R_NDS32_GLOB_DAT, 0, 4, 32, false, 0, bf, false, 0, 0xffffffff, false))
	data(def(reloctype.R_NDS32_JMP_SLOT, 0, 4, 32, false, 0, bf, false, 0, 0xffffffff, false))
	data(def(reloctype.R_NDS32_RELATIVE, 0, 4, 32, false, 0, bf, false, 0, 0xffffffff, false))
	def(reloctype.R_NDS32_GOTOFF, 0, 4, 20, false, 0, sgn, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_GOTPC20, 0, 4, 20, true, 0, sgn, false, 0, 0xfffff, true)
	def(reloctype.R_NDS32_GOT_HI20, 12, 4, 20, false, 0, none, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_GOT_LO12, 0, 4, 12, false, 0, none, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_GOTPC_HI20, 12, 4, 20, true, 0, none, false, 0, 0xfffff, true)
	def(reloctype.R_NDS32_GOTPC_LO12, 0, 4, 12, true, 0, none, false, 0, 0xfff, true)
	def(reloctype.R_NDS32_GOTOFF_HI20, 12, 4, 20, false, 0, none, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_GOTOFF_LO12, 0, 4, 12, false, 0, none, false, 0, 0xfff, false)

	for _, t := range []int{
		reloctype.R_NDS32_INSN16, reloctype.R_NDS32_LABEL,
		reloctype.R_NDS32_LONGCALL1, reloctype.R_NDS32_LONGCALL2, reloctype.R_NDS32_LONGCALL3,
		reloctype.R_NDS32_LONGJUMP1, reloctype.R_NDS32_LONGJUMP2, reloctype.R_NDS32_LONGJUMP3,
		reloctype.R_NDS32_LOADSTORE, reloctype.R_NDS32_UPDATE_TA_RELA,
		reloctype.R_NDS32_9_FIXED_RELA, reloctype.R_NDS32_15_FIXED_RELA,
		reloctype.R_NDS32_17_FIXED_RELA, reloctype.R_NDS32_25_FIXED_RELA,
	} {
		marker(t)
	}

	def(reloctype.R_NDS32_PLTREL_HI20, 12, 4, 20, true, 0, none, false, 0, 0xfffff, true)
	def(reloctype.R_NDS32_PLTREL_LO12, 0, 4, 12, true, 0, none, false, 0, 0xfff, true)
	def(reloctype.R_NDS32_PLT_GOTREL_HI20, 12, 4, 20, false, 0, none, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_PLT_GOTREL_LO12, 0, 4, 12, false, 0, none, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_SDA12S2_DP_RELA, 2, 4, 12, false, 0, sgn, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_SDA12S2_SP_RELA, 2, 4, 12, false, 0, sgn, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_LO12S2_DP_RELA, 2, 4, 10, false, 0, none, false, 0, 0x3ff, false)
	def(reloctype.R_NDS32_LO12S2_SP_RELA, 2, 4, 10, false, 0, none, false, 0, 0x3ff, false)
	def(reloctype.R_NDS32_LO12S0_ORI_RELA, 0, 4, 12, false, 0, none, false, 0, 0xfff, false)
	def(reloctype.R_NDS32_SDA16S3_RELA, 3, 4, 16, false, 0, sgn, false, 0, 0xffff, false)
	def(reloctype.R_NDS32_SDA17S2_RELA, 2, 4, 17, false, 0, sgn, false, 0, 0x1ffff, false)
	def(reloctype.R_NDS32_SDA18S1_RELA, 1, 4, 18, false, 0, sgn, false, 0, 0x3ffff, false)
	def(reloctype.R_NDS32_SDA19S0_RELA, 0, 4, 19, false, 0, sgn, false, 0, 0x7ffff, false)
	data(def(reloctype.R_NDS32_DWARF2_OP1_RELA, 0, 1, 8, false, 0, uns, false, 0, 0xff, false))
	data(def(reloctype.R_NDS32_DWARF2_OP2_RELA, 0, 2, 16, false, 0, uns, false, 0, 0xffff, false))
	leb := def(reloctype.R_NDS32_DWARF2_LEB_RELA, 0, 4, 32, false, 0, none, false, 0, 0xffffffff, false)
	data(leb)
	leb.Special = applyULEB128

	def(reloctype.R_NDS32_9_PLTREL, 1, 2, 8, true, 0, sgn, false, 0, 0xff, true)
	def(reloctype.R_NDS32_PLT_GOTREL_LO20, 0, 4, 20, false, 0, none, false, 0, 0xfffff, false)
	def(reloctype.R_NDS32_PLT_GOTREL_LO15, 0, 4, 15, false, 0, none, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_PLT_GOTREL_LO19, 0, 4, 19, false, 0, none, false, 0, 0x7ffff, false)
	def(reloctype.R_NDS32_GOT_LO15, 0, 4, 15, false, 0, none, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_GOT_LO19, 0, 4, 19, false, 0, none, false, 0, 0x7ffff, false)
	def(reloctype.R_NDS32_GOTOFF_LO15, 0, 4, 15, false, 0, none, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_GOTOFF_LO19, 0, 4, 19, false, 0, none, false, 0, 0x7ffff, false)
	def(reloctype.R_NDS32_GOT15S2_RELA, 2, 4, 15, false, 0, sgn, false, 0, 0x7fff, false)
	def(reloctype.R_NDS32_GOT17S2_RELA, 2, 4, 17, false, 0, sgn, false, 0, 0x1ffff, false)
	def(reloctype.R_NDS32_5_RELA, 0, 2, 5, false, 0, sgn, false, 0, 0x1f, false)
	def(reloctype.R_NDS32_10_UPCREL_RELA, 1, 2, 9, true, 0, uns, false, 0, 0x1ff, true)
	def(reloctype.R_NDS32_SDA_FP7U2_RELA, 2, 2, 7, false, 0, uns, false, 0, 0x7f, false)
	def(reloctype.R_NDS32_WORD_9_PCREL_RELA, 1, 4, 8, true, 0, sgn, false, 0, 0xff, true)
	def(reloctype.R_NDS32_25_ABS_RELA, 1, 4, 24, false, 0, none, false, 0, 0xffffff, false)
	def(reloctype.R_NDS32_17IFC_PCREL_RELA, 1, 4, 16, true, 0, sgn, false, 0, 0xffff, true)
	def(reloctype.R_NDS32_10IFCU_PCREL_RELA, 1, 2, 9, true, 0, uns, false, 0, 0x1ff, true)

	for t := reloctype.R_NDS32_RELAX_ENTRY; t < reloctype.R_NDS32_max; t++ {
		marker(t)
	}
}

// Lookup returns the descriptor of relocation kind t, nil when t is not a
// known kind.
func Lookup(t int) *Howto {
	return table[t]
}

// Table returns every descriptor ordered by kind.
func Table() []*Howto {
	hs := make([]*Howto, 0, len(table))
	for t := 0; t < reloctype.R_NDS32_max; t++ {
		if h, ok := table[t]; ok {
			hs = append(hs, h)
		}
	}
	return hs
}
