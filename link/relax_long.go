package link

import (
	"fmt"

	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/howto"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// seq is one relaxable instruction sequence found at a marker.
type seq struct {
	o      *obj.Object
	sec    *obj.Section
	marker *obj.Reloc
	off    uint32
}

func (s *seq) insn(at uint32) uint32 {
	return isa.Read32(s.sec.Contents, at)
}

func (s *seq) addr(at uint32) int64 {
	return int64(s.sec.Addr) + int64(at)
}

// reloc returns the record of kind t at off.
func (s *seq) reloc(at uint32, t int) *obj.Reloc {
	if i := obj.FindReloc(s.sec.Relocs, at, t); i >= 0 {
		return &s.sec.Relocs[i]
	}
	return nil
}

// jumpLen returns the length of the register jump at off if it is a jr or
// jral through ta, 0 otherwise.
func (s *seq) jumpLen(at uint32, link bool) uint32 {
	if at+2 > s.sec.Size {
		return 0
	}
	if isa.Length(s.sec.Contents, at) == 2 {
		hw := isa.Read16(s.sec.Contents, at)
		if link && hw == isa.Jral5(isa.RegTA) || !link && hw == isa.Jr5(isa.RegTA) {
			return 2
		}
		return 0
	}
	if at+4 > s.sec.Size {
		return 0
	}
	insn := s.insn(at)
	if isa.Rb(insn) != isa.RegTA {
		return 0
	}
	if link && isa.IsJral(insn) || !link && isa.IsJr(insn) {
		return 4
	}
	return 0
}

// reaches reports whether a field of kind t can hold distance d.
func reaches(t int, d int64) bool {
	h := howto.Lookup(t)
	return h != nil && d&1 == 0 && h.CheckOverflow(d) == nil
}

// relaxSequences tries every sequence marker of sec once and reports
// whether any sequence shrank.
func (linker *Linker) relaxSequences(o *obj.Object, sec *obj.Section) bool {
	changed := false
	for i := 0; i < len(sec.Relocs); i++ {
		r := &sec.Relocs[i]
		s := &seq{o: o, sec: sec, marker: r, off: r.Offset}
		if linker.blankList(sec).Contains(s.off) {
			continue
		}
		var ok bool
		var err error
		switch r.Type {
		case reloctype.R_NDS32_LONGCALL1:
			ok, err = linker.relaxLongCall1(s)
		case reloctype.R_NDS32_LONGCALL2:
			ok, err = linker.relaxLongCall2(s)
		case reloctype.R_NDS32_LONGCALL3:
			ok, err = linker.relaxLongCall3(s)
		case reloctype.R_NDS32_LONGJUMP1:
			ok, err = linker.relaxLongJump1(s)
		case reloctype.R_NDS32_LONGJUMP2:
			ok, err = linker.relaxLongJump2(s)
		case reloctype.R_NDS32_LONGJUMP3:
			ok, err = linker.relaxLongJump3(s)
		case reloctype.R_NDS32_LOADSTORE:
			ok, err = linker.relaxLoadStore(s)
		case reloctype.R_NDS32_GOT_SUFF:
			ok, err = linker.relaxGotSuff(s)
		case reloctype.R_NDS32_GOTOFF_SUFF:
			ok, err = linker.relaxGotoffSuff(s)
		case reloctype.R_NDS32_PLT_GOT_SUFF:
			ok, err = linker.relaxPltGotSuff(s)
		default:
			continue
		}
		if err != nil {
			linker.report(diag.ErrPairing, diag.Warning, o, sec, r, err.Error())
			r.Type = reloctype.R_NDS32_NONE
			continue
		}
		if ok {
			// handlers may move a record back onto the marker
			obj.SortRelocs(sec.Relocs)
			changed = true
		}
	}
	return changed
}

// callee resolves the symbol of r for a branch. It reports false when the
// target is not known at link time or must stay indirect.
func (linker *Linker) callee(s *seq, r *obj.Reloc) (int64, bool) {
	tgt, err := linker.resolve(s.o, r)
	if err != nil || !tgt.defined {
		if tgt.g != nil && tgt.g.PltIndex > 0 && linker.plt != nil {
			return int64(linker.pltEntryAddr(tgt.g)) + tgt.addend, true
		}
		return 0, false
	}
	if tgt.dynamic {
		if tgt.g != nil && tgt.g.PltIndex > 0 && linker.plt != nil {
			return int64(linker.pltEntryAddr(tgt.g)) + tgt.addend, true
		}
		return 0, false
	}
	return tgt.value(), true
}

// splitPair finds the HI20/LO12 records of a sethi/ori address load at
// off.
func (s *seq) splitPair(at uint32, hiType, loType int) (*obj.Reloc, *obj.Reloc, error) {
	if at+8 > s.sec.Size || !isa.IsSethi(s.insn(at)) || !isa.IsOri(s.insn(at+4)) {
		return nil, nil, fmt.Errorf("expected sethi/ori at 0x%x", at)
	}
	hi, lo := s.reloc(at, hiType), s.reloc(at+4, loType)
	if hi == nil || lo == nil {
		return nil, nil, fmt.Errorf("missing %s/%s pair at 0x%x", reloctype.RelocTypeString(hiType), reloctype.RelocTypeString(loType), at)
	}
	return hi, lo, nil
}

// sethi ta; ori ta; jral ta  =>  jal
func (linker *Linker) relaxLongCall1(s *seq) (bool, error) {
	hi, lo, err := s.splitPair(s.off, reloctype.R_NDS32_HI20_RELA, reloctype.R_NDS32_LO12S0_ORI_RELA)
	if err != nil {
		return false, err
	}
	n := s.jumpLen(s.off+8, true)
	if n == 0 {
		return false, fmt.Errorf("expected jral ta at 0x%x", s.off+8)
	}
	dest, ok := linker.callee(s, hi)
	if !ok || !reaches(reloctype.R_NDS32_25_PCREL_RELA, dest-s.addr(s.off)) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.Jal(0))
	hi.Type = reloctype.R_NDS32_25_PCREL_RELA
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 4+n)
	return true, nil
}

// bltz rt, .+8; jal  =>  bgezal rt
func (linker *Linker) relaxLongCall2(s *seq) (bool, error) {
	if s.off+8 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	br, call := s.insn(s.off), s.insn(s.off+4)
	if !isa.IsBR2(br) || isa.Sub2(br) != isa.BR2BLTZ || !isa.IsJal(call) {
		return false, fmt.Errorf("expected bltz/jal at 0x%x", s.off)
	}
	r := s.reloc(s.off+4, reloctype.R_NDS32_25_PCREL_RELA)
	if r == nil {
		return false, fmt.Errorf("jal at 0x%x has no 25_PCREL_RELA", s.off+4)
	}
	dest, ok := linker.callee(s, r)
	if !ok || !reaches(reloctype.R_NDS32_17_PCREL_RELA, dest-s.addr(s.off)) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.BR2(isa.BR2BGEZAL, isa.Rt(br), 0))
	r.Offset = s.off
	r.Type = reloctype.R_NDS32_17_PCREL_RELA
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 4)
	return true, nil
}

// bltz rt, .L; sethi ta; ori ta; jral ta; .L:
//   =>  bgezal rt
//   =>  bltz rt, .+8; jal   (LONGCALL2, relaxed further next pass)
func (linker *Linker) relaxLongCall3(s *seq) (bool, error) {
	if s.off+4 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	br := s.insn(s.off)
	if !isa.IsBR2(br) || isa.Sub2(br) != isa.BR2BLTZ {
		return false, fmt.Errorf("expected bltz at 0x%x", s.off)
	}
	hi, lo, err := s.splitPair(s.off+4, reloctype.R_NDS32_HI20_RELA, reloctype.R_NDS32_LO12S0_ORI_RELA)
	if err != nil {
		return false, err
	}
	n := s.jumpLen(s.off+12, true)
	if n == 0 {
		return false, fmt.Errorf("expected jral ta at 0x%x", s.off+12)
	}
	dest, ok := linker.callee(s, hi)
	if !ok {
		return false, nil
	}
	switch {
	case reaches(reloctype.R_NDS32_17_PCREL_RELA, dest-s.addr(s.off)):
		isa.Write32(s.sec.Contents, s.off, isa.BR2(isa.BR2BGEZAL, isa.Rt(br), 0))
		hi.Offset = s.off
		hi.Type = reloctype.R_NDS32_17_PCREL_RELA
		lo.Type = reloctype.R_NDS32_NONE
		s.marker.Type = reloctype.R_NDS32_NONE
		linker.deleteBytes(s.sec, s.off+4, 8+n)
	case reaches(reloctype.R_NDS32_25_PCREL_RELA, dest-s.addr(s.off+4)):
		isa.Write32(s.sec.Contents, s.off, isa.BR2(isa.BR2BLTZ, isa.Rt(br), 4))
		isa.Write32(s.sec.Contents, s.off+4, isa.Jal(0))
		hi.Type = reloctype.R_NDS32_25_PCREL_RELA
		lo.Type = reloctype.R_NDS32_NONE
		s.marker.Type = reloctype.R_NDS32_LONGCALL2
		linker.deleteBytes(s.sec, s.off+8, 4+n)
	default:
		return false, nil
	}
	return true, nil
}

// sethi ta; ori ta; jr ta  =>  j8  or  j
func (linker *Linker) relaxLongJump1(s *seq) (bool, error) {
	hi, lo, err := s.splitPair(s.off, reloctype.R_NDS32_HI20_RELA, reloctype.R_NDS32_LO12S0_ORI_RELA)
	if err != nil {
		return false, err
	}
	n := s.jumpLen(s.off+8, false)
	if n == 0 {
		return false, fmt.Errorf("expected jr ta at 0x%x", s.off+8)
	}
	dest, ok := linker.callee(s, hi)
	if !ok {
		return false, nil
	}
	d := dest - s.addr(s.off)
	switch {
	case reaches(reloctype.R_NDS32_9_PCREL_RELA, d):
		isa.Write16(s.sec.Contents, s.off, isa.J8(0))
		hi.Type = reloctype.R_NDS32_9_PCREL_RELA
		linker.deleteBytes(s.sec, s.off+2, 6+n)
	case reaches(reloctype.R_NDS32_25_PCREL_RELA, d):
		isa.Write32(s.sec.Contents, s.off, isa.J(0))
		hi.Type = reloctype.R_NDS32_25_PCREL_RELA
		linker.deleteBytes(s.sec, s.off+4, 4+n)
	default:
		return false, nil
	}
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	return true, nil
}

// branchReloc picks the 32-bit relocation for a conditional branch.
func branchReloc(insn uint32) int {
	if isa.BranchWidth(insn) == 14 {
		return reloctype.R_NDS32_15_PCREL_RELA
	}
	return reloctype.R_NDS32_17_PCREL_RELA
}

// shortBranch rewrites the conditional branch cond at off to reach d
// through r, in 16 bits when possible. It returns the new length, 0 when
// neither form reaches.
func (s *seq) shortBranch(cond uint32, r *obj.Reloc, d int64) uint32 {
	if hw, ok := isa.Branch16(cond); ok && reaches(reloctype.R_NDS32_9_PCREL_RELA, d) {
		isa.Write16(s.sec.Contents, s.off, hw)
		r.Offset = s.off
		r.Type = reloctype.R_NDS32_9_PCREL_RELA
		return 2
	}
	t := branchReloc(cond)
	if reaches(t, d) {
		isa.Write32(s.sec.Contents, s.off, isa.SetBranchImm(cond, 0))
		r.Offset = s.off
		r.Type = t
		return 4
	}
	return 0
}

// b<inv> .+8; j  =>  b<cond>, 16-bit when registers allow
func (linker *Linker) relaxLongJump2(s *seq) (bool, error) {
	if s.off+8 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	br, jump := s.insn(s.off), s.insn(s.off+4)
	cond, ok := isa.InvertBranch(br)
	if !ok || !isa.IsJ(jump) {
		return false, fmt.Errorf("expected branch/j at 0x%x", s.off)
	}
	r := s.reloc(s.off+4, reloctype.R_NDS32_25_PCREL_RELA)
	if r == nil {
		return false, fmt.Errorf("j at 0x%x has no 25_PCREL_RELA", s.off+4)
	}
	dest, ok := linker.callee(s, r)
	if !ok {
		return false, nil
	}
	n := s.shortBranch(cond, r, dest-s.addr(s.off))
	if n == 0 {
		return false, nil
	}
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+n, 8-n)
	return true, nil
}

// b<inv> .L; sethi ta; ori ta; jr ta; .L:
//   =>  b<cond>
//   =>  b<inv> .+8; j   (LONGJUMP2)
func (linker *Linker) relaxLongJump3(s *seq) (bool, error) {
	if s.off+4 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	br := s.insn(s.off)
	cond, ok := isa.InvertBranch(br)
	if !ok {
		return false, fmt.Errorf("expected conditional branch at 0x%x", s.off)
	}
	hi, lo, err := s.splitPair(s.off+4, reloctype.R_NDS32_HI20_RELA, reloctype.R_NDS32_LO12S0_ORI_RELA)
	if err != nil {
		return false, err
	}
	n := s.jumpLen(s.off+12, false)
	if n == 0 {
		return false, fmt.Errorf("expected jr ta at 0x%x", s.off+12)
	}
	dest, ok := linker.callee(s, hi)
	if !ok {
		return false, nil
	}
	total := 12 + n
	if m := s.shortBranch(cond, hi, dest-s.addr(s.off)); m > 0 {
		lo.Type = reloctype.R_NDS32_NONE
		s.marker.Type = reloctype.R_NDS32_NONE
		linker.deleteBytes(s.sec, s.off+m, total-m)
		return true, nil
	}
	if !reaches(reloctype.R_NDS32_25_PCREL_RELA, dest-s.addr(s.off+4)) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.SetBranchImm(br, 4))
	isa.Write32(s.sec.Contents, s.off+4, isa.J(0))
	hi.Type = reloctype.R_NDS32_25_PCREL_RELA
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_LONGJUMP2
	linker.deleteBytes(s.sec, s.off+8, total-8)
	return true, nil
}

// gpReloc maps the access scale of a gp-relative form to its relocation.
var gpReloc = [...]int{
	reloctype.R_NDS32_SDA19S0_RELA,
	reloctype.R_NDS32_SDA18S1_RELA,
	reloctype.R_NDS32_SDA17S2_RELA,
}

// sethi ta, hi20(x); ori rt, ta, lo12(x)  =>  movi rt, x  or  addi.gp rt, x
// sethi ta, hi20(x); <ld/st> rt, [ta + lo12(x)]  =>  <ld/st>.gp rt, x
func (linker *Linker) relaxLoadStore(s *seq) (bool, error) {
	if s.off+8 > s.sec.Size || !isa.IsSethi(s.insn(s.off)) {
		return false, fmt.Errorf("expected sethi at 0x%x", s.off)
	}
	hi := s.reloc(s.off, reloctype.R_NDS32_HI20_RELA)
	lo := obj.FindRelocFunc(s.sec.Relocs, s.off+4, reloctype.IsLO12)
	if hi == nil || lo < 0 {
		return false, fmt.Errorf("missing HI20/LO12 pair at 0x%x", s.off)
	}
	if linker.Options.Shared {
		// absolute and gp-relative forms are not position independent
		return false, nil
	}
	tgt, err := linker.resolve(s.o, hi)
	if err != nil || !tgt.defined || tgt.dynamic {
		return false, nil
	}
	value := tgt.value()
	second := s.insn(s.off + 4)
	ta := isa.Rt(s.insn(s.off))
	if isa.Ra(second) != ta {
		return false, fmt.Errorf("access at 0x%x does not use the sethi register", s.off+4)
	}
	sda, sdaErr := linker.SDABase()

	var insn uint32
	var t int
	switch {
	case isa.IsOri(second):
		rt := isa.Rt(second)
		switch {
		case fitsSigned(value, 20):
			insn, t = isa.Movi(rt, 0), reloctype.R_NDS32_20_RELA
		case sdaErr == nil && howto.Lookup(reloctype.R_NDS32_SDA19S0_RELA).CheckOverflow(value-int64(sda)) == nil:
			insn, t = isa.AddiGP(rt, 0), reloctype.R_NDS32_SDA19S0_RELA
		default:
			return false, nil
		}
	default:
		m, ok := isa.DecodeMem(second)
		if !ok {
			return false, fmt.Errorf("unexpected instruction 0x%08x at 0x%x", second, s.off+4)
		}
		if sdaErr != nil || m.Shift >= uint(len(gpReloc)) {
			return false, nil
		}
		d := value - int64(sda)
		t = gpReloc[m.Shift]
		if d&(1<<m.Shift-1) != 0 || howto.Lookup(t).CheckOverflow(d) != nil {
			return false, nil
		}
		insn, _ = m.ToGP(isa.Rt(second), 0)
	}
	isa.Write32(s.sec.Contents, s.off, insn)
	hi.Type = t
	s.sec.Relocs[lo].Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 4)
	return true, nil
}

// sethi ta, hi20(got); ori ta, lo12(got); lw rt, [gp + ta]  =>  lwi.gp rt, got
func (linker *Linker) relaxGotSuff(s *seq) (bool, error) {
	hi, lo, err := s.splitPair(s.off, reloctype.R_NDS32_GOT_HI20, reloctype.R_NDS32_GOT_LO12)
	if err != nil {
		return false, err
	}
	if s.off+12 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	load := s.insn(s.off + 8)
	if !isa.IsLw(load) || isa.Ra(load) != isa.RegGP || isa.Rb(load) != isa.RegTA {
		return false, fmt.Errorf("expected lw [gp + ta] at 0x%x", s.off+8)
	}
	var g *global
	if sym := s.o.Symbol(hi.Sym); sym != nil && !s.o.IsLocal(hi.Sym) {
		g = linker.lookup(sym.Name)
	}
	slot := linker.gotSlot(s.o, hi.Sym, g)
	if !slot.Set {
		return false, nil
	}
	if !reaches(reloctype.R_NDS32_GOT17S2_RELA, int64(slot.Offset)+hi.Addend) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.LwiGP(isa.Rt(load), 0))
	hi.Type = reloctype.R_NDS32_GOT17S2_RELA
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 8)
	return true, nil
}

// sethi ta, hi20(x@GOTOFF); ori ta, lo12; add rt, gp, ta  =>  addi.gp rt, x@GOTOFF
func (linker *Linker) relaxGotoffSuff(s *seq) (bool, error) {
	hi, lo, err := s.splitPair(s.off, reloctype.R_NDS32_GOTOFF_HI20, reloctype.R_NDS32_GOTOFF_LO12)
	if err != nil {
		return false, err
	}
	if s.off+12 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	add := s.insn(s.off + 8)
	if !isa.IsAdd(add) || isa.Ra(add) != isa.RegGP || isa.Rb(add) != isa.RegTA {
		return false, fmt.Errorf("expected add rt, gp, ta at 0x%x", s.off+8)
	}
	tgt, err := linker.resolve(s.o, hi)
	if err != nil || !tgt.defined || linker.got == nil {
		return false, nil
	}
	if !fitsSigned(tgt.value()-int64(linker.gotOrigin()), 19) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.AddiGP(isa.Rt(add), 0))
	hi.Type = reloctype.R_NDS32_GOTOFF_LO19
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 8)
	return true, nil
}

// sethi ta, hi20(x@PLT); ori ta, lo12; add ta, ta, gp; jral ta  =>  jal x
func (linker *Linker) relaxPltGotSuff(s *seq) (bool, error) {
	hi, lo, err := s.splitPair(s.off, reloctype.R_NDS32_PLT_GOTREL_HI20, reloctype.R_NDS32_PLT_GOTREL_LO12)
	if err != nil {
		return false, err
	}
	if s.off+12 > s.sec.Size {
		return false, fmt.Errorf("sequence runs past the section")
	}
	add := s.insn(s.off + 8)
	if !isa.IsAdd(add) || isa.Rt(add) != isa.RegTA {
		return false, fmt.Errorf("expected add ta, ta, gp at 0x%x", s.off+8)
	}
	n := s.jumpLen(s.off+12, true)
	if n == 0 {
		return false, fmt.Errorf("expected jral ta at 0x%x", s.off+12)
	}
	tgt, err := linker.resolve(s.o, hi)
	if err != nil || !tgt.defined || tgt.dynamic {
		return false, nil
	}
	if !reaches(reloctype.R_NDS32_25_PCREL_RELA, tgt.value()-s.addr(s.off)) {
		return false, nil
	}
	isa.Write32(s.sec.Contents, s.off, isa.Jal(0))
	hi.Type = reloctype.R_NDS32_25_PCREL_RELA
	lo.Type = reloctype.R_NDS32_NONE
	s.marker.Type = reloctype.R_NDS32_NONE
	linker.deleteBytes(s.sec, s.off+4, 8+n)
	return true, nil
}

func fitsSigned(v int64, bits uint) bool {
	lim := int64(1) << (bits - 1)
	return v >= -lim && v < lim
}
