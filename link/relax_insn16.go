package link

import (
	"sort"

	"github.com/NetBSD/src-sub063/howto"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// insn16Conv records one 32-to-16-bit conversion so label alignment can
// undo it.
type insn16Conv struct {
	off      uint32
	orig     uint32
	field    int
	kind     int
	reverted bool
}

// relocsAt returns the index range of the records at off.
func relocsAt(relocs []obj.Reloc, off uint32) (int, int) {
	lo := sort.Search(len(relocs), func(i int) bool {
		return relocs[i].Offset >= off
	})
	hi := lo
	for hi < len(relocs) && relocs[hi].Offset == off {
		hi++
	}
	return lo, hi
}

// fieldReloc returns the single record at off that patches contents, -1
// when there is none and -2 when there are several.
func fieldReloc(relocs []obj.Reloc, off uint32) int {
	lo, hi := relocsAt(relocs, off)
	found := -1
	for j := lo; j < hi; j++ {
		t := relocs[j].Type
		if t == reloctype.R_NDS32_NONE {
			continue
		}
		if h := howto.Lookup(t); h != nil && h.Marker {
			continue
		}
		if found >= 0 {
			return -2
		}
		found = j
	}
	return found
}

// relaxInsn16 converts the instructions an INSN16 marker flags into their
// 16-bit forms. Branches are converted only when the 9-bit displacement
// reaches.
func (linker *Linker) relaxInsn16(o *obj.Object, sec *obj.Section) []insn16Conv {
	l := linker.blankList(sec)
	var convs []insn16Conv
	for i := range sec.Relocs {
		r := &sec.Relocs[i]
		if r.Type != reloctype.R_NDS32_INSN16 {
			continue
		}
		off := r.Offset
		if off+4 > sec.Size || l.Overlaps(off, 4) || isa.Length(sec.Contents, off) != 4 {
			continue
		}
		insn := isa.Read32(sec.Contents, off)
		field := fieldReloc(sec.Relocs, off)
		var hw uint16
		var ok bool
		switch {
		case field == -1:
			hw, ok = isa.To16(insn)
		case field >= 0:
			switch sec.Relocs[field].Type {
			case reloctype.R_NDS32_15_PCREL_RELA, reloctype.R_NDS32_17_PCREL_RELA, reloctype.R_NDS32_25_PCREL_RELA:
				hw, ok = isa.Branch16(insn)
				if ok {
					s := &seq{o: o, sec: sec, marker: r, off: off}
					dest, known := linker.callee(s, &sec.Relocs[field])
					ok = known && reaches(reloctype.R_NDS32_9_PCREL_RELA, dest-s.addr(off))
				}
			}
		}
		if !ok {
			continue
		}
		c := insn16Conv{off: off, orig: insn, field: field}
		isa.Write16(sec.Contents, off, hw)
		if field >= 0 {
			c.kind = sec.Relocs[field].Type
			sec.Relocs[field].Type = reloctype.R_NDS32_9_PCREL_RELA
		}
		r.Type = reloctype.R_NDS32_NONE
		linker.deleteBytes(sec, off+2, 2)
		convs = append(convs, c)
	}
	return convs
}

// revertInsn16 puts back the 32-bit instruction of c. The INSN16 marker
// stays cleared so the next pass does not convert it again.
func (linker *Linker) revertInsn16(sec *obj.Section, c *insn16Conv) {
	isa.Write32(sec.Contents, c.off, c.orig)
	linker.blankList(sec).Remove(c.off+2, 2)
	if c.field >= 0 {
		sec.Relocs[c.field].Type = c.kind
	}
	c.reverted = true
}
