package link

import (
	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// PLT code words
const (
	pltLoadLink  = 0x05178000 // lwi r17, [r15 + 0]
	pltLoadEntry = 0x04f78001 // lwi r15, [r15 + 4]
	pltJumpTA    = 0x4a003c00 // jr r15
	pltAddGP     = 0x40f7f400 // add r15, gp, r15
	pltLoadGP    = 0x38febc02 // lw r15, [gp + r15]
	pltLoadSlot  = 0x04f78000 // lwi r15, [r15 + lo12]
	pltMoviR16   = 0x45000000 // movi r16, imm
	pltJump      = isa.InsnJ
)

func hi20(v uint32) uint32 {
	return v >> 12
}

func lo12(v uint32) uint32 {
	return v & 0xfff
}

// gotPltSlot returns the address of the .got.plt word of PLT entry index.
func (linker *Linker) gotPltSlot(index int) uint32 {
	return linker.gotplt.Addr + constants.GOTHeaderSize + uint32(index-1)*constants.GOTEntrySize
}

func (linker *Linker) writePLT0() {
	code := linker.plt.Contents
	target := linker.gotplt.Addr + 4
	if linker.Options.Shared {
		target -= linker.gotOrigin()
		isa.Write32(code, 0, isa.Sethi(isa.RegTA, hi20(target)))
		isa.Write32(code, 4, isa.Ori(isa.RegTA, isa.RegTA, lo12(target)))
		isa.Write32(code, 8, pltAddGP)
		isa.Write32(code, 12, pltLoadLink)
		isa.Write32(code, 16, pltLoadEntry)
		isa.Write32(code, 20, pltJumpTA)
		return
	}
	isa.Write32(code, 0, isa.Sethi(isa.RegTA, hi20(target)))
	isa.Write32(code, 4, isa.Ori(isa.RegTA, isa.RegTA, lo12(target)))
	isa.Write32(code, 8, pltLoadLink)
	isa.Write32(code, 12, pltLoadEntry)
	isa.Write32(code, 16, pltJumpTA)
	isa.Write32(code, 20, isa.InsnNOP)
}

func (linker *Linker) writePLTEntry(g *global) {
	off := uint32(g.PltIndex) * constants.PLTEntrySize
	code := linker.plt.Contents
	entry := linker.plt.Addr + off
	slot := linker.gotPltSlot(g.PltIndex)
	relaOff := uint32(g.PltIndex-1) * constants.RelaSize

	if linker.Options.Shared {
		rel := slot - linker.gotOrigin()
		isa.Write32(code, off, isa.Sethi(isa.RegTA, hi20(rel)))
		isa.Write32(code, off+4, isa.Ori(isa.RegTA, isa.RegTA, lo12(rel)))
		isa.Write32(code, off+8, pltLoadGP)
		isa.Write32(code, off+12, pltJumpTA)
		isa.Write32(code, off+16, pltMoviR16|relaOff&0xfffff)
		isa.Write32(code, off+20, pltJump|((linker.plt.Addr-(entry+20))>>1)&0xffffff)
		return
	}
	isa.Write32(code, off, isa.Sethi(isa.RegTA, hi20(slot)))
	isa.Write32(code, off+4, pltLoadSlot|lo12(slot)>>2)
	isa.Write32(code, off+8, pltJumpTA)
	isa.Write32(code, off+12, pltMoviR16|relaOff&0xfffff)
	isa.Write32(code, off+16, pltJump|((linker.plt.Addr-(entry+16))>>1)&0xffffff)
	isa.Write32(code, off+20, isa.InsnNOP)
}

// initGotEntry fills slot the first time a relocation reaches it. value
// is the link-time address of the symbol.
func (linker *Linker) initGotEntry(slot *obj.GotSlot, g *global, value uint32) {
	if slot.Initialized || linker.got == nil {
		return
	}
	slot.Initialized = true
	addr := linker.got.Addr + slot.Offset
	switch {
	case g != nil && linker.preemptible(g):
		linker.order.PutUint32(linker.got.Contents[slot.Offset:], 0)
		linker.emitRela(linker.relaGot, addr, g.DynIndex, reloctype.R_NDS32_GLOB_DAT, 0)
	case linker.Options.Shared:
		linker.order.PutUint32(linker.got.Contents[slot.Offset:], value)
		linker.emitRela(linker.relaGot, addr, 0, reloctype.R_NDS32_RELATIVE, int64(value))
	default:
		linker.order.PutUint32(linker.got.Contents[slot.Offset:], value)
	}
}

// FinishDynamic fills the reserved GOT words, the PLT and .got.plt, and
// the relocations that depend only on the symbol: JMP_SLOT, COPY, and the
// GOT entries no relocation initialized.
func (linker *Linker) FinishDynamic() error {
	if linker.got != nil {
		var dynamic uint32
		if g := linker.lookup(constants.DynamicSymbol); g != nil {
			dynamic, _ = linker.globalAddr(g)
		}
		linker.order.PutUint32(linker.got.Contents[0:], dynamic)
		linker.order.PutUint32(linker.got.Contents[4:], 0)
		linker.order.PutUint32(linker.got.Contents[8:], 0)
		if linker.gotplt != nil {
			linker.order.PutUint32(linker.gotplt.Contents[0:], dynamic)
		}
	}

	globals := linker.sortedGlobals()
	if linker.pltCount > 0 {
		linker.writePLT0()
		for _, g := range globals {
			if g.PltIndex <= 0 {
				continue
			}
			linker.writePLTEntry(g)
			slot := linker.gotPltSlot(g.PltIndex)
			linker.order.PutUint32(linker.gotplt.Contents[slot-linker.gotplt.Addr:], linker.plt.Addr)
			linker.emitRela(linker.relaPlt, slot, g.DynIndex, reloctype.R_NDS32_JMP_SLOT, 0)
		}
	}

	for _, g := range globals {
		if g.Copy {
			linker.emitRela(linker.relaBss, linker.dynbss.Addr+g.CopyOff, g.DynIndex, reloctype.R_NDS32_COPY, 0)
		}
		if g.Got.Set && !g.Got.Initialized {
			addr, _ := linker.globalAddr(g)
			linker.initGotEntry(&g.Got, g, addr)
		}
	}
	for _, o := range linker.Objects {
		for i, sym := range o.Symbols {
			slot, ok := linker.localGot[localKey{o, uint32(i)}]
			if !ok || !slot.Set || slot.Initialized {
				continue
			}
			addr, _ := linker.symbolAddr(o, sym, 0)
			linker.initGotEntry(slot, nil, addr)
		}
	}

	for _, sec := range []*obj.Section{linker.relaGot, linker.relaPlt, linker.relaDyn, linker.relaBss} {
		if sec != nil && linker.relaFill[sec] != sec.Size {
			linker.diags.Warnf(diag.ErrFatal, "%s: filled 0x%x of 0x%x bytes", sec.Name, linker.relaFill[sec], sec.Size)
		}
	}
	linker.log.Printf("dynamic sections finished")
	return nil
}
