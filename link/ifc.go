package link

import (
	"sort"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

type ifcKey struct {
	sec    *obj.Section
	target int64
}

type ifcSite struct {
	o     *obj.Object
	index int
	off   uint32
}

// ifcTable groups the jal sites of every ifc-enabled section by section
// and call target.
type ifcTable struct {
	groups map[ifcKey][]ifcSite
	keys   []ifcKey
}

func (linker *Linker) ifcCollect() {
	tab := &ifcTable{groups: make(map[ifcKey][]ifcSite)}
	linker.ifc = tab
	for _, ref := range linker.textSections() {
		sec := ref.sec
		if entryFlags(sec)&reloctype.RelaxEntryIFC == 0 || linker.Options.Excluded(sec.Name) {
			continue
		}
		rgs := regions(sec)
		bodies := skippedBodies(sec)
		for i := range sec.Relocs {
			r := &sec.Relocs[i]
			if r.Type != reloctype.R_NDS32_25_PCREL_RELA || r.Offset+4 > sec.Size {
				continue
			}
			if !isa.IsJal(isa.Read32(sec.Contents, r.Offset)) || inSpans(bodies, r.Offset) {
				continue
			}
			if linker.Options.IFCLoopAware && inRegionWith(sec, rgs, r.Offset, reloctype.RegionInnerLoop) {
				continue
			}
			s := &seq{o: ref.obj, sec: sec, marker: r, off: r.Offset}
			dest, ok := linker.callee(s, r)
			if !ok {
				continue
			}
			key := ifcKey{sec, dest}
			if _, seen := tab.groups[key]; !seen {
				tab.keys = append(tab.keys, key)
			}
			tab.groups[key] = append(tab.groups[key], ifcSite{o: ref.obj, index: i, off: r.Offset})
		}
	}
}

// ifcReplace keeps the last call of every group as a real jal and turns
// the earlier calls within reach of it into ifcall9 instructions that
// branch to the keeper. A call too far from the current keeper becomes
// the next keeper.
func (linker *Linker) ifcReplace() {
	tab := linker.ifc
	if tab == nil {
		return
	}
	replaced := 0
	for _, key := range tab.keys {
		sites := tab.groups[key]
		if len(sites) < 2 {
			continue
		}
		sort.Slice(sites, func(i, j int) bool {
			return sites[i].off > sites[j].off
		})
		sec := key.sec
		keeper := sites[0]
		for _, site := range sites[1:] {
			if keeper.off-site.off > constants.IFCMaxDistance {
				keeper = site
				continue
			}
			r := &sec.Relocs[site.index]
			isa.Write16(sec.Contents, site.off, isa.Ifcall9(0))
			r.Type = reloctype.R_NDS32_10IFCU_PCREL_RELA
			r.Sym = site.o.SectionSymbol(sec.Index)
			r.Addend = int64(keeper.off)
			linker.deleteBytes(sec, site.off+2, 2)
			replaced++
		}
	}
	linker.log.Printf("ifc: %d calls chained", replaced)
}
