package link

import (
	"encoding/binary"

	"github.com/NetBSD/src-sub063/blank"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/howto"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// blankList returns the pending deletions of sec.
func (linker *Linker) blankList(sec *obj.Section) *blank.List {
	l := linker.blanks[sec]
	if l == nil {
		l = &blank.List{}
		linker.blanks[sec] = l
	}
	return l
}

// deleteBytes marks [off, off+size) of sec for deletion.
func (linker *Linker) deleteBytes(sec *obj.Section, off, size uint32) {
	linker.blankList(sec).Insert(off, size)
}

// compact removes the pending blanks of sec and moves every offset that
// referred into it: relocations in the section, DIFF values and
// section-symbol addends anywhere in the object, and the values and sizes
// of symbols defined in the section. It reports whether any byte was
// removed.
func (linker *Linker) compact(o *obj.Object, sec *obj.Section) bool {
	l := linker.blanks[sec]
	if l == nil || l.Len() == 0 {
		return false
	}
	total := l.Total()

	linker.adjustDiffs(o, sec, l)

	for i := range sec.Relocs {
		r := &sec.Relocs[i]
		if l.Contains(r.Offset) && !reloctype.IsPositionMarker(r.Type) {
			r.Type = reloctype.R_NDS32_NONE
		}
		r.Offset = l.Map(r.Offset)
	}

	secSym := o.SectionSymbol(sec.Index)
	if secSym != 0 {
		for _, s := range o.Sections {
			if s == nil {
				continue
			}
			for i := range s.Relocs {
				r := &s.Relocs[i]
				if r.Sym == secSym && r.Addend >= 0 && r.Addend <= int64(sec.Size) {
					r.Addend = int64(l.Map(uint32(r.Addend)))
				}
			}
		}
	}

	for _, sym := range o.Symbols {
		if sym == nil || int(sym.Shndx) != sec.Index {
			continue
		}
		if sym.Type == symkind.STT_SECTION {
			continue
		}
		end := sym.Value + sym.Size
		sym.Value = l.Map(sym.Value)
		sym.Size = l.Map(end) - sym.Value
	}
	for _, g := range linker.globals {
		if g.Section == sec {
			g.Value = l.Map(g.Value)
		}
	}

	if !sec.IsNoBits() {
		c := sec.Contents
		var dst, src uint32
		l.Each(func(b blank.Blank) bool {
			dst += uint32(copy(c[dst:], c[src:b.Offset]))
			src = b.End()
			return true
		})
		if src < sec.Size {
			dst += uint32(copy(c[dst:], c[src:sec.Size]))
		}
		sec.Contents = c[:dst]
	}
	sec.Size -= total
	l.Reset()
	obj.SortRelocs(sec.Relocs)
	linker.log.Printf("%s(%s): removed %d bytes", o.Name, sec.Name, total)
	return true
}

// adjustDiffs recomputes the stored differences whose ends lie in sec.
// A DIFF relocation names the end of a span; its contents hold the span's
// length, so the start is end minus the stored value.
func (linker *Linker) adjustDiffs(o *obj.Object, sec *obj.Section, l *blank.List) {
	for _, s := range o.Sections {
		if s == nil || s.IsNoBits() {
			continue
		}
		for i := range s.Relocs {
			r := &s.Relocs[i]
			if !reloctype.IsDiff(r.Type) {
				continue
			}
			sym := o.Symbol(r.Sym)
			if sym == nil || int(sym.Shndx) != sec.Index {
				continue
			}
			end := uint32(int64(sym.Value) + r.Addend)
			stored, n := readDiff(s.Contents, r, linker.order)
			if n == 0 {
				linker.report(diag.ErrOutOfRange, diag.Error, o, s, r, "")
				continue
			}
			start := end - uint32(stored)
			diff := uint64(l.Map(end) - l.Map(start))
			if diff == stored {
				continue
			}
			if err := writeDiff(s.Contents, r, diff, n, linker.order); err != nil {
				linker.report(diag.ErrOverflow, diag.Error, o, s, r, err.Error())
			}
		}
	}
}

func readDiff(buf []byte, r *obj.Reloc, order binary.ByteOrder) (uint64, int) {
	off := int(r.Offset)
	switch r.Type {
	case reloctype.R_NDS32_DIFF8:
		if off+1 > len(buf) {
			return 0, 0
		}
		return uint64(buf[off]), 1
	case reloctype.R_NDS32_DIFF16:
		if off+2 > len(buf) {
			return 0, 0
		}
		return uint64(order.Uint16(buf[off:])), 2
	case reloctype.R_NDS32_DIFF32:
		if off+4 > len(buf) {
			return 0, 0
		}
		return uint64(order.Uint32(buf[off:])), 4
	}
	return howto.ReadULEB128(buf, r.Offset)
}

func writeDiff(buf []byte, r *obj.Reloc, v uint64, n int, order binary.ByteOrder) error {
	off := r.Offset
	switch r.Type {
	case reloctype.R_NDS32_DIFF8:
		buf[off] = byte(v)
	case reloctype.R_NDS32_DIFF16:
		order.PutUint16(buf[off:], uint16(v))
	case reloctype.R_NDS32_DIFF32:
		order.PutUint32(buf[off:], uint32(v))
	default:
		return howto.PutULEB128(buf, off, n, v)
	}
	return nil
}
