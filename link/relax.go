package link

import (
	"github.com/opentracing/opentracing-go"

	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// Round is the link-wide relaxation phase.
type Round int

const (
	RoundGeneral Round = iota
	RoundIFCCalc
	RoundEx9Build
	RoundEx9Replace
	RoundDone
)

func (r Round) String() string {
	switch r {
	case RoundGeneral:
		return "general"
	case RoundIFCCalc:
		return "ifc"
	case RoundEx9Build:
		return "ex9-build"
	case RoundEx9Replace:
		return "ex9-replace"
	case RoundDone:
		return "done"
	}
	return "unknown"
}

const maxGeneralPasses = 64

// Relax shrinks code until no section changes, then runs the ifc and ex9
// rounds. Every round ends with a layout, so distances seen by the next
// round are those of the shrunk sections.
func (linker *Linker) Relax() error {
	if !linker.Options.Relax {
		return nil
	}
	span := opentracing.StartSpan("nds32ld.relax")
	defer span.Finish()

	if err := linker.Layout(); err != nil {
		return err
	}
	if _, err := linker.SDABase(); err != nil {
		linker.log.Printf("small data relaxation disabled: %v", err)
	}
	if linker.Options.Ex9 {
		if _, err := linker.ITBBase(); err != nil {
			return err
		}
	}

	linker.round = RoundGeneral
	for pass := 0; ; pass++ {
		passSpan := opentracing.StartSpan("nds32ld.relax.general", opentracing.ChildOf(span.Context()))
		passSpan.SetTag("pass", pass)
		changed := false
		for _, ref := range linker.textSections() {
			if linker.relaxGeneral(ref.obj, ref.sec, pass) {
				changed = true
			}
		}
		err := linker.Layout()
		passSpan.Finish()
		if err != nil {
			return err
		}
		if !changed {
			break
		}
		if pass+1 >= maxGeneralPasses {
			linker.diags.Warnf(diag.ErrPairing, "relaxation did not converge after %d passes", maxGeneralPasses)
			break
		}
	}

	if linker.Options.IFC {
		linker.round = RoundIFCCalc
		roundSpan := opentracing.StartSpan("nds32ld.relax.ifc", opentracing.ChildOf(span.Context()))
		linker.ifcCollect()
		linker.ifcReplace()
		err := linker.finishRound()
		roundSpan.Finish()
		if err != nil {
			return err
		}
	}

	if linker.Options.Ex9 {
		linker.round = RoundEx9Build
		roundSpan := opentracing.StartSpan("nds32ld.relax.ex9", opentracing.ChildOf(span.Context()))
		linker.ex9Collect()
		linker.ex9Select()
		linker.round = RoundEx9Replace
		linker.ex9Replace()
		err := linker.finishRound()
		roundSpan.Finish()
		if err != nil {
			return err
		}
	}
	linker.round = RoundDone
	return nil
}

// finishRound compacts every section an ifc or ex9 round shrank and lays
// the link out again.
func (linker *Linker) finishRound() error {
	for _, ref := range linker.textSections() {
		l := linker.blanks[ref.sec]
		if l == nil || l.Len() == 0 {
			continue
		}
		linker.alignLabels(ref.obj, ref.sec, nil)
		linker.compact(ref.obj, ref.sec)
		linker.padSection(ref.sec)
	}
	return linker.Layout()
}

// relaxEntry returns the index of the RELAX_ENTRY record of sec, or -1.
func relaxEntry(sec *obj.Section) int {
	return obj.FindReloc(sec.Relocs, 0, reloctype.R_NDS32_RELAX_ENTRY)
}

func entryFlags(sec *obj.Section) uint32 {
	if e := relaxEntry(sec); e >= 0 {
		return uint32(sec.Relocs[e].Addend)
	}
	return 0
}

// relaxable reports whether the general round may still touch sec.
func (linker *Linker) relaxable(sec *obj.Section) bool {
	e := relaxEntry(sec)
	if e < 0 {
		return false
	}
	flags := uint32(sec.Relocs[e].Addend)
	if flags&(reloctype.RelaxEntryDisable|reloctype.RelaxEntryVerbatim) != 0 {
		return false
	}
	return !linker.Options.Excluded(sec.Name)
}

// relaxGeneral runs one general pass over sec and reports whether it
// changed. A section that did not change is padded and its relax entry
// is disabled, so later passes leave it alone.
func (linker *Linker) relaxGeneral(o *obj.Object, sec *obj.Section, pass int) bool {
	if !linker.relaxable(sec) {
		return false
	}
	changed := false
	if pass == 0 && linker.Options.FPAsGP && linker.relaxFPAsGP(o, sec) {
		changed = true
	}
	if linker.relaxSequences(o, sec) {
		changed = true
	}
	obj.SortRelocs(sec.Relocs)
	var convs []insn16Conv
	if !changed {
		convs = linker.relaxInsn16(o, sec)
		changed = len(convs) > 0
	}
	linker.alignLabels(o, sec, convs)
	linker.compact(o, sec)

	if !changed {
		linker.padSection(sec)
		if e := relaxEntry(sec); e >= 0 {
			sec.Relocs[e].Addend = int64(uint32(sec.Relocs[e].Addend) | reloctype.RelaxEntryDisable)
		}
		linker.log.Printf("%s(%s): relaxation converged at pass %d", o.Name, sec.Name, pass)
	}
	return changed
}

// padSection fills a section ending on a halfword with a 16-bit nop.
func (linker *Linker) padSection(sec *obj.Section) {
	if sec.Align() < 4 || sec.Size%4 == 0 || sec.Size%2 != 0 {
		return
	}
	size := sec.Size
	sec.Grow(size + 2)
	isa.Write16(sec.Contents, size, isa.Insn16NOP)
}

// alignLabels keeps every LABEL at the alignment its addend asks for,
// measured after the pending deletions. It first undoes the last 16-bit
// conversion before the label, then gives back bytes of the closest
// blank before it, filled with 16-bit nops.
func (linker *Linker) alignLabels(o *obj.Object, sec *obj.Section, convs []insn16Conv) {
	l := linker.blanks[sec]
	if l == nil || l.Len() == 0 {
		return
	}
	var prev uint32
	for i := range sec.Relocs {
		r := &sec.Relocs[i]
		if r.Type != reloctype.R_NDS32_LABEL {
			continue
		}
		align := uint32(1) << uint(r.Addend&0x1f)
		label := r.Offset
		if align <= 2 {
			prev = label
			continue
		}
		if l.Map(label)%align != 0 {
			for k := len(convs) - 1; k >= 0; k-- {
				c := convs[k]
				if c.off < prev || c.off >= label || c.reverted {
					continue
				}
				linker.revertInsn16(sec, &convs[k])
				break
			}
		}
		for l.Map(label)%align != 0 {
			need := align - l.Map(label)%align
			bi, ok := l.LastBefore(label)
			if !ok || need%2 != 0 {
				break
			}
			b := l.Blanks()[bi]
			if b.End() <= prev {
				break
			}
			if need > b.Size {
				need = b.Size
			}
			at := l.Trim(bi, need)
			for off := at; off < at+need; off += 2 {
				isa.Write16(sec.Contents, off, isa.Insn16NOP)
			}
			for j := range sec.Relocs {
				rr := &sec.Relocs[j]
				if rr.Offset >= at && rr.Offset < at+need && !reloctype.IsPositionMarker(rr.Type) {
					rr.Type = reloctype.R_NDS32_NONE
				}
			}
		}
		if l.Map(label)%align != 0 {
			linker.report(diag.ErrUnaligned, diag.Warning, o, sec, r, "label alignment lost by relaxation")
		}
		prev = label
	}
}

// region is one RELAX_REGION_BEGIN/END pair.
type region struct {
	begin, end uint32
	// index of the begin record
	index int
}

func (rg region) flags(sec *obj.Section) uint32 {
	return uint32(sec.Relocs[rg.index].Addend)
}

func (rg region) setFlags(sec *obj.Section, f uint32) {
	sec.Relocs[rg.index].Addend = int64(rg.flags(sec) | f)
}

func (rg region) contains(off uint32) bool {
	return off >= rg.begin && off < rg.end
}

// regions pairs the region markers of sec. An unterminated region runs to
// the end of the section.
func regions(sec *obj.Section) []region {
	var out []region
	var stack []int
	for i, r := range sec.Relocs {
		switch r.Type {
		case reloctype.R_NDS32_RELAX_REGION_BEGIN:
			stack = append(stack, i)
		case reloctype.R_NDS32_RELAX_REGION_END:
			if len(stack) == 0 {
				continue
			}
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out = append(out, region{begin: sec.Relocs[b].Offset, end: r.Offset, index: b})
		}
	}
	for _, b := range stack {
		out = append(out, region{begin: sec.Relocs[b].Offset, end: sec.Size, index: b})
	}
	return out
}

// inRegionWith reports whether off lies in a region carrying flag.
func inRegionWith(sec *obj.Section, rgs []region, off uint32, flag uint32) bool {
	for _, rg := range rgs {
		if rg.contains(off) && rg.flags(sec)&flag != 0 {
			return true
		}
	}
	return false
}

// byteRange is [begin, end) within a section.
type byteRange struct {
	begin, end uint32
}

// skippedBodies returns the instructions that the leading branch of an
// unrelaxed LONGCALL2/3 or LONGJUMP2/3 sequence skips. The skip distance is
// a plain immediate, so nothing inside a body may change length.
func skippedBodies(sec *obj.Section) []byteRange {
	var out []byteRange
	for i := range sec.Relocs {
		r := &sec.Relocs[i]
		switch r.Type {
		case reloctype.R_NDS32_LONGCALL2, reloctype.R_NDS32_LONGJUMP2:
			out = append(out, byteRange{r.Offset + 4, r.Offset + 8})
		case reloctype.R_NDS32_LONGCALL3, reloctype.R_NDS32_LONGJUMP3:
			s := &seq{sec: sec, marker: r, off: r.Offset}
			n := s.jumpLen(r.Offset+12, r.Type == reloctype.R_NDS32_LONGCALL3)
			if n == 0 {
				n = 4
			}
			out = append(out, byteRange{r.Offset + 4, r.Offset + 12 + n})
		}
	}
	return out
}

func inSpans(spans []byteRange, off uint32) bool {
	for _, sp := range spans {
		if off >= sp.begin && off < sp.end {
			return true
		}
	}
	return false
}
