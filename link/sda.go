package link

import (
	"fmt"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// small data sections, in the order they are searched
var sdaCandidates = []string{
	".data", constants.GOTSection,
	".sdata_d", ".sdata_w", ".sdata_h", ".sdata_b",
	".sbss_b", ".sbss_h", ".sbss_w", ".sbss_d",
	".bss",
}

func (linker *Linker) isSDACandidate(out *OutSection) bool {
	for _, name := range sdaCandidates {
		if out.Name == name {
			return true
		}
	}
	for _, sec := range out.Sections {
		if linker.Options.MatchSDA(sec.Name) {
			return true
		}
	}
	return false
}

// SDABase returns the value of _SDA_BASE_. The first call picks the
// symbol's place: the middle of the small data range, rounded down to 8
// bytes. _FP_BASE_ is defined weakly at the same place. The symbol is
// section relative, so later calls follow the section as layout moves it.
func (linker *Linker) SDABase() (uint32, error) {
	if linker.sda != nil {
		if addr, ok := linker.globalAddr(linker.sda); ok {
			return addr, nil
		}
		return 0, fmt.Errorf("%s is not defined", constants.SDABaseSymbol)
	}
	if g := linker.lookup(constants.SDABaseSymbol); g != nil && symkind.IsDefined(g.Kind) {
		linker.sda = g
		return linker.SDABase()
	}
	if len(linker.outputs) == 0 {
		if err := linker.Layout(); err != nil {
			return 0, err
		}
	}

	var first, last *OutSection
	for _, out := range linker.outputs {
		if !linker.isSDACandidate(out) {
			continue
		}
		if first == nil {
			first = out
		}
		last = out
	}
	if first == nil {
		return 0, fmt.Errorf("no small data section to place %s", constants.SDABaseSymbol)
	}
	start, end := first.Addr, last.Addr+last.Size
	point := (start + (end-start)/2) &^ (constants.SDABaseAlign - 1)
	if point < start {
		point = start
	}

	// anchor the symbol in the input section holding the point
	var anchor *obj.Section
	for _, out := range linker.outputs {
		if out.Addr > point && anchor != nil {
			break
		}
		for _, sec := range out.Sections {
			if sec.Addr <= point {
				anchor = sec
			}
		}
	}
	if anchor == nil {
		anchor = first.Sections[0]
	}
	linker.sda = linker.define(constants.SDABaseSymbol, anchor, point-anchor.Addr, false)
	if g := linker.lookup(constants.FPBaseSymbol); g == nil || !symkind.IsDefined(g.Kind) {
		linker.define(constants.FPBaseSymbol, anchor, point-anchor.Addr, true)
	}
	linker.log.Printf("%s = 0x%x (%s+0x%x)", constants.SDABaseSymbol, point, anchor.Name, point-anchor.Addr)
	return point, nil
}

// ITBBase returns the value of _ITB_BASE_, the start of the ex9
// instruction table, defining it on first use.
func (linker *Linker) ITBBase() (uint32, error) {
	if linker.itb == nil {
		if g := linker.lookup(constants.ITBBaseSymbol); g != nil && symkind.IsDefined(g.Kind) {
			linker.itb = g
		} else {
			if linker.ex9tab == nil {
				linker.ex9tab = linker.newSection(constants.Ex9Section, obj.SHT_PROGBITS, obj.SHF_ALLOC, 2)
			}
			linker.itb = linker.define(constants.ITBBaseSymbol, linker.ex9tab, 0, false)
		}
	}
	if addr, ok := linker.globalAddr(linker.itb); ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%s is not defined", constants.ITBBaseSymbol)
}
