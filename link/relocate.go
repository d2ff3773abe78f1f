package link

import (
	"errors"
	"fmt"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/howto"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// relocPass is the state of relocating one section. pending holds the
// legacy HI20 relocations still waiting for their LO12 half.
type relocPass struct {
	linker  *Linker
	o       *obj.Object
	sec     *obj.Section
	pending []*obj.Reloc
	fpBase  int64
	fpSet   bool
}

// RelocateSection patches every field of sec described by its relocations.
// Problems with single relocations are recorded as diagnostics; the
// returned error is reserved for conditions that make the whole section
// meaningless.
func (linker *Linker) RelocateSection(o *obj.Object, sec *obj.Section) error {
	if sec.IsNoBits() || len(sec.Relocs) == 0 {
		return nil
	}
	if uint32(len(sec.Contents)) < sec.Size {
		return fmt.Errorf("%s(%s): contents shorter than section size", o.Name, sec.Name)
	}
	pass := &relocPass{linker: linker, o: o, sec: sec}
	for i := range sec.Relocs {
		pass.relocate(&sec.Relocs[i])
	}
	pass.flushPending()
	return nil
}

// RelocateAll relocates every section of every input object, then the
// linker's own ex9 table.
func (linker *Linker) RelocateAll() error {
	for _, o := range linker.Objects {
		if o.Shared {
			continue
		}
		for _, sec := range o.Sections {
			if sec == nil || linker.merged[sec] != nil {
				continue
			}
			if err := linker.RelocateSection(o, sec); err != nil {
				return err
			}
		}
	}
	if linker.ex9 != nil {
		linker.patchEx9Table()
	}
	return nil
}

func (pass *relocPass) report(class error, sev diag.Severity, r *obj.Reloc, detail string) {
	pass.linker.report(class, sev, pass.o, pass.sec, r, detail)
}

// overflowSeverity grades an overflow: legacy kinds may be tolerated.
func (pass *relocPass) overflowSeverity(t int) diag.Severity {
	if reloctype.IsLegacy(t) && pass.linker.Options.TolerateLegacyOverflow {
		return diag.Warning
	}
	return diag.Error
}

func (pass *relocPass) apply(h *howto.Howto, r *obj.Reloc, value int64) {
	linker := pass.linker
	err := howto.Relocate(h, pass.sec.Contents[:pass.sec.Size], r.Offset, value, pass.sec.Addr+r.Offset, linker.order)
	switch {
	case err == nil:
	case errors.Is(err, diag.ErrOverflow):
		pass.report(diag.ErrOverflow, pass.overflowSeverity(r.Type), r, fmt.Sprintf("value 0x%x", value))
	case errors.Is(err, diag.ErrOutOfRange):
		pass.report(diag.ErrOutOfRange, diag.Error, r, fmt.Sprintf("section size 0x%x", pass.sec.Size))
	default:
		pass.report(diag.ErrFatal, diag.Error, r, err.Error())
	}
}

func (pass *relocPass) checkAlign(h *howto.Howto, r *obj.Reloc, value int64) {
	if mask := int64(1)<<h.RightShift - 1; value&mask != 0 {
		pass.report(diag.ErrUnaligned, diag.Warning, r, fmt.Sprintf("offset 0x%x is not %d byte aligned", value, mask+1))
	}
}

func (pass *relocPass) relocate(r *obj.Reloc) {
	linker := pass.linker
	t := r.Type
	if t == reloctype.R_NDS32_NONE {
		return
	}
	h := howto.Lookup(t)
	if h == nil {
		pass.report(diag.ErrFatal, diag.Error, r, "unknown relocation kind")
		return
	}
	if h.Marker {
		return
	}
	if uint64(r.Offset)+uint64(h.Size) > uint64(pass.sec.Size) {
		pass.report(diag.ErrOutOfRange, diag.Error, r, fmt.Sprintf("section size 0x%x", pass.sec.Size))
		return
	}

	tgt, err := linker.resolve(pass.o, r)
	if err != nil {
		class := diag.ErrUndefined
		if errors.Is(err, diag.ErrFatal) {
			class = diag.ErrFatal
		}
		pass.report(class, diag.Error, r, "")
		return
	}
	if t == reloctype.R_NDS32_SDA19S0_RELA && isa.IsAddiGP(isa.Read32(pass.sec.Contents, r.Offset)) &&
		isa.Rt(isa.Read32(pass.sec.Contents, r.Offset)) == isa.RegFP {
		pass.fpBase, pass.fpSet = tgt.value(), true
	}

	switch {
	case reloctype.IsGOT(t):
		slot := linker.gotSlot(pass.o, r.Sym, tgt.g)
		if !slot.Set || linker.got == nil {
			pass.report(diag.ErrFatal, diag.Error, r, "no GOT entry allocated")
			return
		}
		linker.initGotEntry(slot, tgt.g, tgt.addr)
		value := int64(slot.Offset) + r.Addend
		pass.checkAlign(h, r, value)
		pass.apply(h, r, value)

	case reloctype.IsGOTOFF(t):
		pass.apply(h, r, tgt.value()-int64(linker.gotOrigin()))

	case reloctype.IsGOTPC(t):
		pass.apply(h, r, int64(linker.gotOrigin())+r.Addend)

	case reloctype.IsPLT(t):
		pass.apply(h, r, pass.callTarget(tgt))

	case reloctype.IsPLTGOT(t):
		pass.apply(h, r, pass.callTarget(tgt)-int64(linker.gotOrigin()))

	case reloctype.IsSDA(t):
		base, err := linker.SDABase()
		if err != nil {
			pass.report(diag.ErrFatal, diag.Error, r, err.Error())
			return
		}
		value := tgt.value() - int64(base)
		pass.checkAlign(h, r, value)
		pass.apply(h, r, value)

	case t == reloctype.R_NDS32_SDA_FP7U2_RELA:
		value := tgt.value() - pass.frameBase()
		pass.checkAlign(h, r, value)
		pass.apply(h, r, value)

	case isAbsData(t) && pass.sec.IsAlloc() && linker.Options.Shared:
		pass.dynamicWord(h, r, tgt)

	case t == reloctype.R_NDS32_HI20:
		pass.pending = append(pass.pending, r)

	case reloctype.IsLO12(t) && reloctype.IsLegacy(t):
		pass.pairLow(h, r, tgt)

	default:
		if !tgt.defined && !tgt.undefWeak && !linker.Options.Shared && !pass.viaDynamic(tgt) {
			pass.report(diag.ErrUndefined, diag.Error, r, "")
			return
		}
		value := tgt.value()
		if reloctype.IsPCRel(t) || isAbsInsn(t) {
			value = pass.callTarget(tgt)
		}
		if pass.sec.IsAlloc() && linker.Options.Shared && reloctype.IsPCRel(t) && tgt.dynamic && pass.sec.IsWrite() {
			pass.emitDynamic(r, tgt, t)
		}
		pass.apply(h, r, value)
	}
}

// callTarget is the address a branch or address load of tgt resolves to:
// the symbol's PLT entry when it has one, else the symbol itself.
func (pass *relocPass) callTarget(tgt target) int64 {
	if g := tgt.g; g != nil && g.PltIndex > 0 && pass.linker.plt != nil {
		return int64(pass.linker.pltEntryAddr(g)) + tgt.addend
	}
	return tgt.value()
}

func (pass *relocPass) viaDynamic(tgt target) bool {
	return tgt.g != nil && (tgt.g.PltIndex > 0 || tgt.g.Copy)
}

// frameBase is the value $fp holds inside an fp-as-gp region: the target
// of the last addi.gp $fp setup seen in this section, or _FP_BASE_.
func (pass *relocPass) frameBase() int64 {
	if pass.fpSet {
		return pass.fpBase
	}
	if addr, ok := pass.linker.Symbol(constants.FPBaseSymbol); ok {
		return int64(addr)
	}
	base, _ := pass.linker.SDABase()
	return int64(base)
}

// dynamicWord handles an absolute word in an allocated section of a
// shared object: a run-time relocation against the symbol when it can be
// preempted, otherwise a RELATIVE relocation.
func (pass *relocPass) dynamicWord(h *howto.Howto, r *obj.Reloc, tgt target) {
	linker := pass.linker
	place := pass.sec.Addr + r.Offset
	if tgt.g != nil && linker.preemptible(tgt.g) {
		linker.emitRela(linker.relaDyn, place, tgt.g.DynIndex, reloctype.R_NDS32_32_RELA, r.Addend)
		pass.apply(h, r, r.Addend)
		return
	}
	linker.emitRela(linker.relaDyn, place, 0, reloctype.R_NDS32_RELATIVE, tgt.value())
	pass.apply(h, r, tgt.value())
}

func (pass *relocPass) emitDynamic(r *obj.Reloc, tgt target, t int) {
	linker := pass.linker
	linker.emitRela(linker.relaDyn, pass.sec.Addr+r.Offset, tgt.g.DynIndex, t, r.Addend)
}

// pairLow applies a legacy LO12 relocation together with every pending
// HI20 against the same symbol. The addend is split across both
// instructions: hi<<12 + lo.
func (pass *relocPass) pairLow(h *howto.Howto, r *obj.Reloc, tgt target) {
	buf := pass.sec.Contents
	hiHowto := howto.Lookup(reloctype.R_NDS32_HI20)
	lo := h.Extract(buf, r.Offset, pass.linker.order)

	kept := pass.pending[:0]
	paired := false
	for _, hi := range pass.pending {
		if hi.Sym != r.Sym {
			kept = append(kept, hi)
			continue
		}
		ahl := int64(isa.Read32(buf, hi.Offset)&hiHowto.DstMask)<<12 + lo
		value := tgt.value() + ahl
		exact := *hiHowto
		exact.PartialInplace = false
		pass.apply(&exact, hi, value)
		paired = true
	}
	pass.pending = kept

	exact := *h
	exact.PartialInplace = false
	if paired {
		// the LO addend is already part of ahl
		pass.apply(&exact, r, tgt.value()+lo)
		return
	}
	pass.apply(h, r, tgt.value())
}

// flushPending applies the HI20 relocations no LO12 claimed.
func (pass *relocPass) flushPending() {
	for _, hi := range pass.pending {
		pass.report(diag.ErrPairing, diag.Warning, hi, "HI20 without matching LO12")
		tgt, err := pass.linker.resolve(pass.o, hi)
		if err != nil {
			pass.report(diag.ErrUndefined, diag.Error, hi, "")
			continue
		}
		pass.apply(howto.Lookup(hi.Type), hi, tgt.value())
	}
	pass.pending = nil
}
