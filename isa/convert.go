package isa

// To16 returns the 16-bit equivalent of a 32-bit instruction that carries
// no relocatable field.
func To16(insn uint32) (uint16, bool) {
	if insn == InsnNOP {
		return Insn16NOP, true
	}
	rt, ra := Rt(insn), Ra(insn)
	switch Major(insn) {
	case OpADDI:
		imm := signExtend(insn&0x7fff, 15)
		if imm == 0 {
			return Mov55(rt, ra), true
		}
		if rt == ra && rt < 16 && imm > 0 && imm < 32 {
			return Addi45(rt, uint32(imm)), true
		}
	case OpMOVI:
		imm := signExtend(insn&0xfffff, 20)
		if imm >= -16 && imm < 16 {
			return Movi55(rt, imm), true
		}
	case OpJREG:
		rb := Rb(insn)
		switch insn & 0x1ff {
		case 0:
			if rt == 0 && ra == 0 {
				return Jr5(rb), true
			}
		case 1:
			if rt == RegLP && ra == 0 {
				return Jral5(rb), true
			}
		case 0x20:
			if rt == 0 && ra == 0 {
				return Ret5(rb), true
			}
		}
	}
	return 0, false
}

// Branch16 returns the 16-bit form of a PC-relative branch with its
// displacement cleared. The caller must check the 9-bit reach.
func Branch16(insn uint32) (uint16, bool) {
	switch {
	case IsJ(insn):
		return Insn16J8, true
	case IsBR2(insn):
		rt := Rt(insn)
		switch Sub2(insn) {
		case BR2BEQZ:
			if rt == RegTA {
				return Insn16BEQZS8, true
			}
			if rt < 8 {
				return Beqz38(rt, 0), true
			}
		case BR2BNEZ:
			if rt == RegTA {
				return Insn16BNEZS8, true
			}
			if rt < 8 {
				return Bnez38(rt, 0), true
			}
		}
	case IsBR1(insn):
		rt := Rt(insn)
		if rt < 8 && Ra(insn) == 5 {
			if insn&(1<<14) != 0 {
				return uint16(Insn16BNES38 | rt<<8), true
			}
			return uint16(Insn16BEQS38 | rt<<8), true
		}
	}
	return 0, false
}

// InvertBranch flips the condition of a BR1 or BR2 compare branch.
func InvertBranch(insn uint32) (uint32, bool) {
	if IsBR1(insn) {
		return insn ^ 1<<14, true
	}
	if !IsBR2(insn) {
		return 0, false
	}
	sub := Sub2(insn)
	if sub < BR2BEQZ || sub > BR2BLEZ {
		return 0, false
	}
	// beqz/bnez, bgez/bltz and bgtz/blez differ in the lowest sub bit
	return insn ^ 1<<16, true
}

// BranchWidth returns the displacement width in bits of a conditional
// branch, 0 for anything else.
func BranchWidth(insn uint32) int {
	switch {
	case IsBR1(insn):
		return 14
	case IsBR2(insn):
		return 16
	case IsJ(insn), IsJal(insn):
		return 24
	}
	return 0
}

// SetBranchImm replaces the displacement of a PC-relative branch. imm is
// the halfword distance.
func SetBranchImm(insn uint32, imm int32) uint32 {
	switch w := BranchWidth(insn); w {
	case 14, 16, 24:
		mask := uint32(1)<<w - 1
		return insn&^mask | uint32(imm)&mask
	}
	return insn
}

// MemOp describes the access of a base+offset load or store.
type MemOp struct {
	Op     uint32
	Shift  uint
	Store  bool
	Signed bool
}

var memOps = []MemOp{
	{Op: OpLBI, Shift: 0},
	{Op: OpLHI, Shift: 1},
	{Op: OpLWI, Shift: 2},
	{Op: OpLBSI, Shift: 0, Signed: true},
	{Op: OpLHSI, Shift: 1, Signed: true},
	{Op: OpSBI, Shift: 0, Store: true},
	{Op: OpSHI, Shift: 1, Store: true},
	{Op: OpSWI, Shift: 2, Store: true},
}

// DecodeMem reports the load or store kind of insn.
func DecodeMem(insn uint32) (MemOp, bool) {
	op := Major(insn)
	for _, m := range memOps {
		if m.Op == op {
			return m, true
		}
	}
	return MemOp{}, false
}

// ToGP rewrites a base+offset load or store into its gp-relative form.
// imm is the scaled gp offset. It returns the width in bits of the gp
// immediate so the caller can pick the matching relocation.
func (m MemOp) ToGP(rt uint32, imm int32) (uint32, int) {
	switch m.Op {
	case OpLBI:
		return LbiGP(rt, imm), 19
	case OpLBSI:
		return LbsiGP(rt, imm), 19
	case OpSBI:
		return SbiGP(rt, imm), 19
	case OpLHI:
		return LhiGP(rt, imm), 18
	case OpLHSI:
		return LhsiGP(rt, imm), 18
	case OpSHI:
		return ShiGP(rt, imm), 18
	case OpLWI:
		return LwiGP(rt, imm), 17
	case OpSWI:
		return SwiGP(rt, imm), 17
	}
	return 0, 0
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// SignExtend interprets the low bits of v as a two's complement number.
func SignExtend(v uint32, bits uint) int32 {
	return signExtend(v, bits)
}
