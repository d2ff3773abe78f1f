package link

import (
	"fmt"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

func (linker *Linker) createGOT() {
	if linker.got != nil {
		return
	}
	linker.got = linker.newSection(constants.GOTSection, obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_WRITE, 2)
	linker.got.Grow(constants.GOTHeaderSize)
	linker.define(constants.GOTSymbol, linker.got, 0, false)
}

func (linker *Linker) createPLT() {
	if linker.plt != nil {
		return
	}
	linker.createGOT()
	linker.plt = linker.newSection(constants.PLTSection, obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_EXECINSTR, 2)
	linker.gotplt = linker.newSection(constants.GOTPLTSection, obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_WRITE, 2)
	linker.relaSection(&linker.relaPlt, constants.RelaPLTSection)
}

func (linker *Linker) relaSection(sec **obj.Section, name string) *obj.Section {
	if *sec == nil {
		*sec = linker.newSection(name, obj.SHT_RELA, obj.SHF_ALLOC, 2)
	}
	return *sec
}

// isAbsData reports the word relocations a dynamic relocation can
// reproduce at run time.
func isAbsData(t int) bool {
	return t == reloctype.R_NDS32_32 || t == reloctype.R_NDS32_32_RELA
}

// isAbsInsn reports instruction relocations that bake an absolute address
// into the code and so cannot appear in position independent output.
func isAbsInsn(t int) bool {
	switch {
	case reloctype.IsHI20(t), reloctype.IsLO12(t):
		return true
	}
	switch t {
	case reloctype.R_NDS32_20, reloctype.R_NDS32_20_RELA, reloctype.R_NDS32_25_ABS_RELA:
		return true
	}
	return false
}

func addDynReloc(list []*obj.DynReloc, sec *obj.Section, pc bool) []*obj.DynReloc {
	var p *obj.DynReloc
	for _, d := range list {
		if d.Section == sec {
			p = d
			break
		}
	}
	if p == nil {
		p = &obj.DynReloc{Section: sec}
		list = append(list, p)
	}
	p.Count++
	if pc {
		p.PCCount++
	}
	return list
}

// CheckRelocs scans every relocation once and records which symbols need
// GOT entries, PLT entries, copy relocations or copied dynamic
// relocations.
func (linker *Linker) CheckRelocs() error {
	if linker.scanned {
		return nil
	}
	linker.scanned = true
	linker.allocateCommons()
	if len(linker.Objects) == 0 {
		return fmt.Errorf("no input objects")
	}

	for _, o := range linker.Objects {
		if o.Shared {
			continue
		}
		for _, sec := range o.Sections {
			if sec == nil || !sec.IsAlloc() {
				continue
			}
			for i := range sec.Relocs {
				if err := linker.checkReloc(o, sec, &sec.Relocs[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (linker *Linker) checkReloc(o *obj.Object, sec *obj.Section, r *obj.Reloc) error {
	t := r.Type
	var g *global
	if r.Sym != 0 && !o.IsLocal(r.Sym) {
		if sym := o.Symbol(r.Sym); sym != nil {
			g = linker.lookup(sym.Name)
		}
	}
	shared := linker.Options.Shared

	switch {
	case reloctype.IsGOT(t), t == reloctype.R_NDS32_GOT_SUFF:
		linker.createGOT()
		linker.gotSlot(o, r.Sym, g).Refs++
	case reloctype.IsGOTOFF(t), reloctype.IsGOTPC(t), t == reloctype.R_NDS32_GOTOFF_SUFF:
		linker.createGOT()
	case reloctype.IsPLT(t), reloctype.IsPLTGOT(t), t == reloctype.R_NDS32_PLT_GOT_SUFF:
		linker.createGOT()
		if g != nil && (g.Kind == symkind.Dynamic || shared) {
			g.PltRefs++
		}
	case reloctype.IsPCRel(t):
		if g == nil {
			break
		}
		if g.Kind == symkind.Dynamic && g.Type != symkind.STT_OBJECT {
			g.PltRefs++
		} else if shared && sec.IsWrite() {
			g.DynRelocs = addDynReloc(g.DynRelocs, sec, true)
		}
	case isAbsData(t):
		if shared {
			if g != nil {
				g.DynRelocs = addDynReloc(g.DynRelocs, sec, false)
			} else {
				linker.localDyn[sec] = addDynReloc(linker.localDyn[sec], sec, false)
			}
			break
		}
		if g != nil && g.Kind == symkind.Dynamic {
			if g.Type == symkind.STT_FUNC {
				g.PltRefs++
			} else {
				g.Copy = true
			}
		}
	case isAbsInsn(t):
		if shared {
			linker.report(diag.ErrFatal, diag.Error, o, sec, r, "cannot be used when making a shared object; recompile with -fPIC")
			return fmt.Errorf("%w: %s in %s(%s) is not position independent", diag.ErrFatal, reloctype.RelocTypeString(t), o.Name, sec.Name)
		}
		if g != nil && g.Kind == symkind.Dynamic {
			if g.Type == symkind.STT_FUNC {
				g.PltRefs++
			} else {
				g.Copy = true
			}
		}
	}
	return nil
}

// SizeDynamicSections assigns GOT offsets, PLT indexes, copy slots and
// dynamic symbol indexes, and sizes every linker section.
func (linker *Linker) SizeDynamicSections() error {
	if !linker.scanned {
		if err := linker.CheckRelocs(); err != nil {
			return err
		}
	}
	if linker.sized {
		return nil
	}
	linker.sized = true
	shared := linker.Options.Shared
	globals := linker.sortedGlobals()

	for _, g := range globals {
		if g.PltRefs > 0 && linker.preemptible(g) {
			linker.createPLT()
			linker.pltCount++
			g.PltIndex = linker.pltCount
		}
	}

	nextGot := uint32(constants.GOTHeaderSize)
	relaGot := 0
	for _, g := range globals {
		if g.Got.Refs > 0 && g.Got.Assign(nextGot) {
			nextGot += constants.GOTEntrySize
			linker.gotCount++
			if linker.preemptible(g) || shared {
				relaGot++
			}
		}
	}
	for _, o := range linker.Objects {
		for i := range o.Symbols {
			slot, ok := linker.localGot[localKey{o, uint32(i)}]
			if ok && slot.Refs > 0 && slot.Assign(nextGot) {
				nextGot += constants.GOTEntrySize
				linker.gotCount++
				if shared {
					relaGot++
				}
			}
		}
	}

	var copies, relaDyn uint32
	for _, g := range globals {
		if g.Copy {
			linker.relaSection(&linker.dynbss, constants.DynBSSSection)
			linker.dynbss.Type = obj.SHT_NOBITS
			linker.dynbss.Flags = obj.SHF_ALLOC | obj.SHF_WRITE
			linker.dynbss.AlignPower = 3
			g.CopyOff = alignof(linker.dynbss.Size, 8)
			linker.dynbss.Size = g.CopyOff + g.Size
			copies++
		}
		if len(g.DynRelocs) == 0 {
			continue
		}
		if linker.bindsLocally(g) {
			// pc-relative references to a symbol bound in this link need
			// no run time relocation
			kept := g.DynRelocs[:0]
			for _, p := range g.DynRelocs {
				p.Count -= p.PCCount
				p.PCCount = 0
				if p.Count > 0 {
					kept = append(kept, p)
				}
			}
			g.DynRelocs = kept
		}
		for _, p := range g.DynRelocs {
			relaDyn += p.Count
		}
	}
	for _, list := range linker.localDyn {
		for _, p := range list {
			relaDyn += p.Count
		}
	}

	if linker.got != nil {
		linker.got.Grow(nextGot)
	}
	if linker.pltCount > 0 {
		linker.plt.Grow(uint32(linker.pltCount+1) * constants.PLTEntrySize)
		linker.gotplt.Grow(constants.GOTHeaderSize + uint32(linker.pltCount)*constants.GOTEntrySize)
		linker.relaPlt.Grow(uint32(linker.pltCount) * constants.RelaSize)
	}
	if relaGot > 0 {
		linker.relaSection(&linker.relaGot, constants.RelaGOTSection).Grow(uint32(relaGot) * constants.RelaSize)
	}
	if relaDyn > 0 {
		linker.relaSection(&linker.relaDyn, constants.RelaDynSection).Grow(relaDyn * constants.RelaSize)
	}
	if copies > 0 {
		linker.relaSection(&linker.relaBss, constants.RelaBSSSection).Grow(copies * constants.RelaSize)
	}

	var dynIndex uint32
	for _, g := range globals {
		if g.PltIndex > 0 || g.Copy || (g.Got.Set && linker.preemptible(g)) || (len(g.DynRelocs) > 0 && linker.preemptible(g)) {
			dynIndex++
			g.DynIndex = dynIndex
			linker.dynsyms = append(linker.dynsyms, g)
		}
	}
	linker.log.Printf("dynamic sections: %d got, %d plt, %d copied relocs, %d copy relocs", linker.gotCount, linker.pltCount, relaDyn, copies)
	return nil
}

// emitRela appends one record to a linker relocation section.
func (linker *Linker) emitRela(sec *obj.Section, offset uint32, symIndex uint32, t int, addend int64) {
	if sec == nil {
		linker.diags.Errorf(diag.ErrFatal, "no room for dynamic relocation %s at 0x%x", reloctype.RelocTypeString(t), offset)
		return
	}
	off := linker.relaFill[sec]
	if off+constants.RelaSize > sec.Size {
		linker.diags.Errorf(diag.ErrFatal, "%s overflowed writing %s at 0x%x", sec.Name, reloctype.RelocTypeString(t), offset)
		return
	}
	obj.Rela{Offset: offset, Info: obj.RelaInfo(symIndex, t), Addend: int32(addend)}.Put(sec.Contents[off:], linker.order)
	linker.relaFill[sec] = off + constants.RelaSize
}

// DynSymbols returns the names of the dynamic symbols in index order,
// starting at index 1.
func (linker *Linker) DynSymbols() []string {
	names := make([]string, len(linker.dynsyms))
	for i, g := range linker.dynsyms {
		names[i] = g.Name
	}
	return names
}
