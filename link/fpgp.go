package link

import (
	"sort"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// fpAccess is one small data access of an fp-as-gp region.
type fpAccess struct {
	addr  int64
	index int
}

// chooseFPWindow slides a window of width bytes over the ascending
// addresses and returns the start of the first window covering the most
// of them.
func chooseFPWindow(sorted []int64, width int64) (int64, int) {
	var start int64
	best := 0
	i := 0
	for j := range sorted {
		for sorted[j]-sorted[i] >= width {
			i++
		}
		if n := j - i + 1; n > best {
			best, start = n, sorted[i]
		}
	}
	return start, best
}

// relaxFPAsGP lets $fp stand in for gp inside every fp-as-gp region of
// sec: when enough small data accesses fall in one 512-byte window, the
// region's addi.gp $fp setup is retargeted to the window start and the
// accesses in the window become 16-bit fp-relative loads and stores.
// Regions that do not qualify keep their setup and are marked kept.
func (linker *Linker) relaxFPAsGP(o *obj.Object, sec *obj.Section) bool {
	sda, err := linker.SDABase()
	if err != nil {
		return false
	}
	threshold := linker.Options.FPAsGPThreshold
	if threshold <= 0 {
		threshold = constants.FPThreshold
	}
	changed := false
	for _, rg := range regions(sec) {
		flags := rg.flags(sec)
		if flags&reloctype.RegionOmitFP == 0 || flags&(reloctype.RegionFPResolved|reloctype.RegionFPKept) != 0 {
			continue
		}
		setup := -1
		var accesses []fpAccess
		for i := range sec.Relocs {
			r := &sec.Relocs[i]
			if !rg.contains(r.Offset) || !reloctype.IsSDA(r.Type) || r.Offset+4 > sec.Size {
				continue
			}
			insn := isa.Read32(sec.Contents, r.Offset)
			if setup < 0 && r.Type == reloctype.R_NDS32_SDA19S0_RELA && isa.IsAddiGP(insn) && isa.Rt(insn) == isa.RegFP {
				setup = i
				continue
			}
			tgt, err := linker.resolve(o, r)
			if err != nil || !tgt.defined || tgt.dynamic {
				continue
			}
			accesses = append(accesses, fpAccess{addr: tgt.value(), index: i})
		}
		sort.SliceStable(accesses, func(a, b int) bool {
			return accesses[a].addr < accesses[b].addr
		})
		addrs := make([]int64, len(accesses))
		for k, a := range accesses {
			addrs[k] = a.addr
		}
		start, count := chooseFPWindow(addrs, constants.FPWindowWidth)
		if setup < 0 || count < threshold || !fitsSigned(start-int64(sda), 19) {
			rg.setFlags(sec, reloctype.RegionFPKept)
			linker.log.Printf("%s(%s+0x%x): fp-as-gp region kept, %d accesses in window", o.Name, sec.Name, rg.begin, count)
			continue
		}

		for _, a := range accesses {
			if a.addr == start {
				base := sec.Relocs[a.index]
				sec.Relocs[setup].Sym = base.Sym
				sec.Relocs[setup].Addend = base.Addend
				break
			}
		}
		converted := 0
		for _, a := range accesses {
			d := a.addr - start
			if d < 0 || d > 508 || d%4 != 0 {
				continue
			}
			r := &sec.Relocs[a.index]
			insn := isa.Read32(sec.Contents, r.Offset)
			rt := isa.Rt(insn)
			if rt >= 8 {
				continue
			}
			switch {
			case isa.IsLwiGP(insn):
				isa.Write16(sec.Contents, r.Offset, isa.Lwi37FP(rt, 0))
			case isa.IsSwiGP(insn):
				isa.Write16(sec.Contents, r.Offset, isa.Swi37FP(rt, 0))
			default:
				continue
			}
			r.Type = reloctype.R_NDS32_SDA_FP7U2_RELA
			linker.deleteBytes(sec, r.Offset+2, 2)
			converted++
		}
		rg.setFlags(sec, reloctype.RegionFPResolved)
		linker.log.Printf("%s(%s+0x%x): fp-as-gp base 0x%x, %d accesses converted", o.Name, sec.Name, rg.begin, start, converted)
		if converted > 0 {
			changed = true
		}
	}
	return changed
}
