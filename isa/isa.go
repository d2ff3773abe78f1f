// Package isa encodes and decodes the NDS32 instructions the relaxation
// engine rewrites. Instructions are stored big-endian regardless of the
// data byte order; a halfword with bit 15 set starts a 16-bit instruction.
package isa

import "encoding/binary"

// registers
const (
	RegTA = 15
	RegFP = 28
	RegGP = 29
	RegLP = 30
	RegSP = 31
)

// 32-bit major opcodes, already shifted into place
const (
	OpLBI   = 0x00000000
	OpLHI   = 0x02000000
	OpLWI   = 0x04000000
	OpSBI   = 0x10000000
	OpSHI   = 0x12000000
	OpSWI   = 0x14000000
	OpLBSI  = 0x20000000
	OpLHSI  = 0x22000000
	OpLBGP  = 0x2e000000
	OpLW    = 0x38000002
	OpHWGP  = 0x3c000000
	OpSBGP  = 0x3e000000
	OpALU1  = 0x40000000
	OpMOVI  = 0x44000000
	OpSETHI = 0x46000000
	OpJI    = 0x48000000
	OpJREG  = 0x4a000000
	OpBR1   = 0x4c000000
	OpBR2   = 0x4e000000
	OpADDI  = 0x50000000
	OpORI   = 0x58000000

	InsnJ    = 0x48000000
	InsnJAL  = 0x49000000
	InsnJR   = 0x4a000000
	InsnJRAL = 0x4a000001
	InsnRET  = 0x4a000020
	InsnNOP  = 0x40000009

	InsnLHIGP  = 0x3c000000
	InsnLHSIGP = 0x3c040000
	InsnSHIGP  = 0x3c080000
	InsnLWIGP  = 0x3c0c0000
	InsnSWIGP  = 0x3c0e0000
	InsnSBIGP  = 0x3e000000
	InsnADDIGP = 0x3e080000
	InsnLBSIGP = 0x2e080000
)

// BR2 sub-opcodes, bits 19..16
const (
	BR2IFCALL = 0x0
	BR2BEQZ   = 0x2
	BR2BNEZ   = 0x3
	BR2BGEZ   = 0x4
	BR2BLTZ   = 0x5
	BR2BGTZ   = 0x6
	BR2BLEZ   = 0x7
	BR2BGEZAL = 0xc
	BR2BLTZAL = 0xd
)

// 16-bit instructions
const (
	Insn16MOV55   = 0x8000
	Insn16MOVI55  = 0x8400
	Insn16ADDI45  = 0x8c00
	Insn16NOP     = 0x9200
	Insn16LWI37FP = 0xb000
	Insn16SWI37FP = 0xb080
	Insn16BEQZ38  = 0xc000
	Insn16BNEZ38  = 0xc800
	Insn16BEQS38  = 0xd000
	Insn16J8      = 0xd500
	Insn16BNES38  = 0xd800
	Insn16JR5     = 0xdd00
	Insn16JRAL5   = 0xdd20
	Insn16EX9IT5  = 0xdd40
	Insn16RET5    = 0xdd80
	Insn16BEQZS8  = 0xe800
	Insn16BNEZS8  = 0xe900
	Insn16EX9IT   = 0xea00
	Insn16IFCALL9 = 0xf800
)

//go:inline
func Is16(hw uint16) bool {
	return hw&0x8000 != 0
}

// Length returns the size of the instruction starting at off, 0 when the
// buffer ends first.
func Length(buf []byte, off uint32) int {
	if int(off)+2 > len(buf) {
		return 0
	}
	if Is16(binary.BigEndian.Uint16(buf[off:])) {
		return 2
	}
	if int(off)+4 > len(buf) {
		return 0
	}
	return 4
}

func Read16(buf []byte, off uint32) uint16 {
	return binary.BigEndian.Uint16(buf[off:])
}

func Write16(buf []byte, off uint32, hw uint16) {
	binary.BigEndian.PutUint16(buf[off:], hw)
}

func Read32(buf []byte, off uint32) uint32 {
	return binary.BigEndian.Uint32(buf[off:])
}

func Write32(buf []byte, off uint32, insn uint32) {
	binary.BigEndian.PutUint32(buf[off:], insn)
}

// field accessors of the 32-bit formats
func Op6(insn uint32) uint32 { return insn >> 25 & 0x3f }
func Rt(insn uint32) uint32 { return insn >> 20 & 0x1f }
func Ra(insn uint32) uint32 { return insn >> 15 & 0x1f }
func Rb(insn uint32) uint32 { return insn >> 10 & 0x1f }
func Sub2(insn uint32) uint32 {
	return insn >> 16 & 0xf
}

// Major returns the opcode bits 31..25 of a 32-bit instruction.
func Major(insn uint32) uint32 {
	return insn & 0xfe000000
}

func Sethi(rt, imm20 uint32) uint32 {
	return OpSETHI | rt<<20 | imm20&0xfffff
}

func Ori(rt, ra, imm15 uint32) uint32 {
	return OpORI | rt<<20 | ra<<15 | imm15&0x7fff
}

func Addi(rt, ra uint32, imm15 int32) uint32 {
	return OpADDI | rt<<20 | ra<<15 | uint32(imm15)&0x7fff
}

func Movi(rt uint32, imm20 int32) uint32 {
	return OpMOVI | rt<<20 | uint32(imm20)&0xfffff
}

func Add(rt, ra, rb uint32) uint32 {
	return OpALU1 | rt<<20 | ra<<15 | rb<<10
}

// Lw is the register-indexed load, lw rt, [ra + rb].
func Lw(rt, ra, rb uint32) uint32 {
	return OpLW | rt<<20 | ra<<15 | rb<<10
}

// Mem builds a base+immediate load or store of opcode op.
func Mem(op, rt, ra uint32, imm15 int32) uint32 {
	return op | rt<<20 | ra<<15 | uint32(imm15)&0x7fff
}

func J(imm24 int32) uint32 {
	return InsnJ | uint32(imm24)&0xffffff
}

func Jal(imm24 int32) uint32 {
	return InsnJAL | uint32(imm24)&0xffffff
}

func Jr(rb uint32) uint32 {
	return InsnJR | rb<<10
}

func Jral(rt, rb uint32) uint32 {
	return InsnJRAL | rt<<20 | rb<<10
}

func BR2(sub, rt uint32, imm16 int32) uint32 {
	return OpBR2 | rt<<20 | sub<<16 | uint32(imm16)&0xffff
}

// BR1 builds beq (ne false) or bne (ne true).
func BR1(ne bool, rt, ra uint32, imm14 int32) uint32 {
	insn := OpBR1 | rt<<20 | ra<<15 | uint32(imm14)&0x3fff
	if ne {
		insn |= 1 << 14
	}
	return insn
}

func Ifcall(imm16 int32) uint32 {
	return BR2(BR2IFCALL, 0, imm16)
}

// GP-relative forms. The immediate is already scaled.
func LbiGP(rt uint32, imm19 int32) uint32 { return OpLBGP | rt<<20 | uint32(imm19)&0x7ffff }
func LbsiGP(rt uint32, imm19 int32) uint32 { return InsnLBSIGP | rt<<20 | uint32(imm19)&0x7ffff }
func LhiGP(rt uint32, imm18 int32) uint32 { return InsnLHIGP | rt<<20 | uint32(imm18)&0x3ffff }
func LhsiGP(rt uint32, imm18 int32) uint32 { return InsnLHSIGP | rt<<20 | uint32(imm18)&0x3ffff }
func ShiGP(rt uint32, imm18 int32) uint32 { return InsnSHIGP | rt<<20 | uint32(imm18)&0x3ffff }
func LwiGP(rt uint32, imm17 int32) uint32 { return InsnLWIGP | rt<<20 | uint32(imm17)&0x1ffff }
func SwiGP(rt uint32, imm17 int32) uint32 { return InsnSWIGP | rt<<20 | uint32(imm17)&0x1ffff }
func SbiGP(rt uint32, imm19 int32) uint32 { return InsnSBIGP | rt<<20 | uint32(imm19)&0x7ffff }
func AddiGP(rt uint32, imm19 int32) uint32 { return InsnADDIGP | rt<<20 | uint32(imm19)&0x7ffff }

func IsLwiGP(insn uint32) bool { return insn&0xfe0e0000 == InsnLWIGP }
func IsSwiGP(insn uint32) bool { return insn&0xfe0e0000 == InsnSWIGP }
func IsAddiGP(insn uint32) bool { return insn&0xfe080000 == InsnADDIGP }

// 16-bit encoders
func Mov55(rt, ra uint32) uint16 { return uint16(Insn16MOV55 | rt<<5 | ra) }
func Movi55(rt uint32, imm5 int32) uint16 { return uint16(Insn16MOVI55 | rt<<5 | uint32(imm5)&0x1f) }
func Addi45(rt4, imm5 uint32) uint16 { return uint16(Insn16ADDI45 | rt4<<5 | imm5&0x1f) }
func Lwi37FP(rt3, imm7 uint32) uint16 { return uint16(Insn16LWI37FP | rt3<<8 | imm7&0x7f) }
func Swi37FP(rt3, imm7 uint32) uint16 { return uint16(Insn16SWI37FP | rt3<<8 | imm7&0x7f) }
func Beqz38(rt3 uint32, imm8 int32) uint16 {
	return uint16(Insn16BEQZ38 | rt3<<8 | uint32(imm8)&0xff)
}
func Bnez38(rt3 uint32, imm8 int32) uint16 {
	return uint16(Insn16BNEZ38 | rt3<<8 | uint32(imm8)&0xff)
}
func J8(imm8 int32) uint16 { return uint16(Insn16J8 | uint32(imm8)&0xff) }
func Jr5(rb uint32) uint16 { return uint16(Insn16JR5 | rb&0x1f) }
func Jral5(rb uint32) uint16 { return uint16(Insn16JRAL5 | rb&0x1f) }
func Ret5(rb uint32) uint16 { return uint16(Insn16RET5 | rb&0x1f) }
func Ex9It(slot uint32) uint16 {
	return uint16(Insn16EX9IT | slot&0x1ff)
}
func Ifcall9(imm9 uint32) uint16 { return uint16(Insn16IFCALL9 | imm9&0x1ff) }

func IsJral5(hw uint16) bool { return hw&0xffe0 == Insn16JRAL5 }
func IsJr5(hw uint16) bool { return hw&0xffe0 == Insn16JR5 }

func IsJral(insn uint32) bool {
	return insn&0xfe0003ff == InsnJRAL
}

func IsJr(insn uint32) bool {
	return insn&0xfe0003ff == InsnJR
}

func IsJal(insn uint32) bool {
	return insn&0xff000000 == InsnJAL
}

func IsJ(insn uint32) bool {
	return insn&0xff000000 == InsnJ
}

func IsAdd(insn uint32) bool {
	return insn&0xfe0003ff == OpALU1
}

// IsLw reports the register-indexed word load, any shift amount.
func IsLw(insn uint32) bool {
	return insn&0xfe0000ff == OpLW
}

func IsSethi(insn uint32) bool {
	return Major(insn) == OpSETHI
}

func IsOri(insn uint32) bool {
	return Major(insn) == OpORI
}

func IsBR1(insn uint32) bool {
	return Major(insn) == OpBR1
}

func IsBR2(insn uint32) bool {
	return Major(insn) == OpBR2
}

// IsConditional reports the BR1 and BR2 compare branches, excluding the
// and-link forms and ifcall.
func IsConditional(insn uint32) bool {
	if IsBR1(insn) {
		return true
	}
	if IsBR2(insn) {
		sub := Sub2(insn)
		return sub >= BR2BEQZ && sub <= BR2BLEZ
	}
	return false
}

// IsPCRelative reports instructions whose immediate is a branch distance.
func IsPCRelative(insn uint32) bool {
	switch Major(insn) {
	case OpJI, OpBR1, OpBR2:
		return true
	}
	return false
}
