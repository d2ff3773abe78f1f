package link

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/NetBSD/src-sub063/config"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

const textBase = config.DefaultTextBase

type seqReloc struct {
	off uint32
	t   int
}

var (
	nop16 = uint16(isa.Insn16NOP)

	longCall2 = []uint32{isa.BR2(isa.BR2BLTZ, 1, 4), isa.Jal(0)}
	longCall3 = []uint32{isa.BR2(isa.BR2BLTZ, 1, 8), isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jral(isa.RegLP, isa.RegTA)}
	longJump1 = []uint32{isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jr(isa.RegTA)}
	longJump2 = []uint32{isa.BR2(isa.BR2BNEZ, 1, 4), isa.J(0)}
	longJump3 = []uint32{isa.BR2(isa.BR2BNEZ, 1, 8), isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jr(isa.RegTA)}

	jumpRelocs   = []seqReloc{{4, reloctype.R_NDS32_25_PCREL_RELA}}
	pairRelocs   = []seqReloc{{0, reloctype.R_NDS32_HI20_RELA}, {4, reloctype.R_NDS32_LO12S0_ORI_RELA}}
	branchRelocs = []seqReloc{{4, reloctype.R_NDS32_HI20_RELA}, {8, reloctype.R_NDS32_LO12S0_ORI_RELA}}
)

func TestLongSequences(t *testing.T) {
	tests := []struct {
		name   string
		marker int
		code   []uint32
		relocs []seqReloc
		target uint32
		size   uint32
		want   []byte
	}{
		{
			name: "longcall2 to bgezal", marker: reloctype.R_NDS32_LONGCALL2,
			code: longCall2, relocs: jumpRelocs, target: textBase + 0x100,
			size: 4, want: code(isa.BR2(isa.BR2BGEZAL, 1, 0x80)),
		},
		{
			name: "longcall2 out of reach", marker: reloctype.R_NDS32_LONGCALL2,
			code: longCall2, relocs: jumpRelocs, target: textBase + 0x12000,
			size: 8, want: code(isa.BR2(isa.BR2BLTZ, 1, 4), isa.Jal(0x8ffe)),
		},
		{
			name: "longcall3 to bgezal", marker: reloctype.R_NDS32_LONGCALL3,
			code: longCall3, relocs: branchRelocs, target: textBase + 0x14,
			size: 4, want: code(uint32(0x4e1c000a)),
		},
		{
			name: "longcall3 to longcall2", marker: reloctype.R_NDS32_LONGCALL3,
			code: longCall3, relocs: branchRelocs, target: textBase + 0x12000,
			size: 8, want: code(isa.BR2(isa.BR2BLTZ, 1, 4), isa.Jal(0x8ffe)),
		},
		{
			name: "longcall3 out of reach", marker: reloctype.R_NDS32_LONGCALL3,
			code: longCall3, relocs: branchRelocs, target: 0x7000000,
			size: 16, want: code(isa.BR2(isa.BR2BLTZ, 1, 8), isa.Sethi(isa.RegTA, 0x7000), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Jral(isa.RegLP, isa.RegTA)),
		},
		{
			name: "longjump1 to j8", marker: reloctype.R_NDS32_LONGJUMP1,
			code: longJump1, relocs: pairRelocs, target: textBase + 0x80,
			size: 4, want: code(isa.J8(0x40), nop16),
		},
		{
			name: "longjump1 to j", marker: reloctype.R_NDS32_LONGJUMP1,
			code: longJump1, relocs: pairRelocs, target: textBase + 0x1000,
			size: 4, want: code(isa.J(0x800)),
		},
		{
			name: "longjump2 to beqz38", marker: reloctype.R_NDS32_LONGJUMP2,
			code: longJump2, relocs: jumpRelocs, target: textBase + 0x16,
			size: 4, want: code(uint16(0xc10b), nop16),
		},
		{
			name: "longjump2 to beqz", marker: reloctype.R_NDS32_LONGJUMP2,
			code: longJump2, relocs: jumpRelocs, target: textBase + 0x1000,
			size: 4, want: code(isa.BR2(isa.BR2BEQZ, 1, 0x800)),
		},
		{
			name: "longjump3 to beqz38", marker: reloctype.R_NDS32_LONGJUMP3,
			code: longJump3, relocs: branchRelocs, target: textBase + 0x80,
			size: 4, want: code(isa.Beqz38(1, 0x40), nop16),
		},
		{
			name: "longjump3 to longjump2", marker: reloctype.R_NDS32_LONGJUMP3,
			code: longJump3, relocs: branchRelocs, target: textBase + 0x12000,
			size: 8, want: code(isa.BR2(isa.BR2BNEZ, 1, 4), isa.J(0x8ffe)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestObject("seq.o")
			text := o.text(uint32(len(tt.code)) * 4)
			target := o.abs("target", tt.target)
			put32(text, 0, tt.code...)
			relaxEntryAt(text, 0)
			reloc(text, 0, 0, tt.marker, 0)
			for _, r := range tt.relocs {
				reloc(text, r.off, target, r.t, 0)
			}
			linker := newTestLinker(t, testOptions(), o)
			mustLink(t, linker)

			if text.Size != tt.size {
				t.Fatalf("size %d, want %d", text.Size, tt.size)
			}
			if got := text.Contents[:len(tt.want)]; !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestLoadStore(t *testing.T) {
	tests := []struct {
		name   string
		access uint32
		lo     int
		small  bool
		want   uint32
	}{
		{"movi", isa.Ori(1, isa.RegTA, 0), reloctype.R_NDS32_LO12S0_ORI_RELA, true, isa.Movi(1, 0x1234)},
		{"lwi.gp", isa.Mem(isa.OpLWI, 1, isa.RegTA, 0), reloctype.R_NDS32_LO12S2_RELA, false, isa.LwiGP(1, -0x60>>2)},
		{"addi.gp", isa.Ori(1, isa.RegTA, 0), reloctype.R_NDS32_LO12S0_ORI_RELA, false, isa.AddiGP(1, -0x60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestObject("ls.o")
			text := o.text(8)
			sdata := o.data(".sdata_w", 0x100)
			sym := o.global("v", sdata, 0x20, 4, symkind.STT_OBJECT)
			if tt.small {
				sym = o.abs("small", 0x1234)
			}
			put32(text, 0, isa.Sethi(isa.RegTA, 0), tt.access)
			relaxEntryAt(text, 0)
			reloc(text, 0, 0, reloctype.R_NDS32_LOADSTORE, 0)
			reloc(text, 0, sym, reloctype.R_NDS32_HI20_RELA, 0)
			reloc(text, 4, sym, tt.lo, 0)
			linker := newTestLinker(t, testOptions(), o)
			mustLink(t, linker)

			if text.Size != 4 {
				t.Fatalf("size %d, want 4", text.Size)
			}
			if got := isa.Read32(text.Contents, 0); got != tt.want {
				t.Errorf("got 0x%08x, want 0x%08x", got, tt.want)
			}
		})
	}
}

func TestSuffSequences(t *testing.T) {
	tests := []struct {
		name  string
		build func(o *testObject, text *obj.Section)
		in    uint32
		size  uint32
		check func(insn uint32) bool
	}{
		{
			name: "got_suff",
			build: func(o *testObject, text *obj.Section) {
				counter := o.global("counter", o.data(".data", 4), 0, 4, symkind.STT_OBJECT)
				put32(text, 0, isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Lw(1, isa.RegGP, isa.RegTA))
				reloc(text, 0, 0, reloctype.R_NDS32_GOT_SUFF, 0)
				reloc(text, 0, counter, reloctype.R_NDS32_GOT_HI20, 0)
				reloc(text, 4, counter, reloctype.R_NDS32_GOT_LO12, 0)
			},
			in:    12,
			size:  4,
			check: func(insn uint32) bool { return isa.IsLwiGP(insn) && isa.Rt(insn) == 1 },
		},
		{
			name: "gotoff_suff",
			build: func(o *testObject, text *obj.Section) {
				v := o.global("v", o.data(".data", 4), 0, 4, symkind.STT_OBJECT)
				put32(text, 0, isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Add(1, isa.RegGP, isa.RegTA))
				reloc(text, 0, 0, reloctype.R_NDS32_GOTOFF_SUFF, 0)
				reloc(text, 0, v, reloctype.R_NDS32_GOTOFF_HI20, 0)
				reloc(text, 4, v, reloctype.R_NDS32_GOTOFF_LO12, 0)
			},
			in:    12,
			size:  4,
			check: func(insn uint32) bool { return isa.IsAddiGP(insn) && isa.Rt(insn) == 1 },
		},
		{
			name: "plt_got_suff",
			build: func(o *testObject, text *obj.Section) {
				foo := o.global("foo", text, 0x10, 4, symkind.STT_FUNC)
				put32(text, 0, isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0), isa.Add(isa.RegTA, isa.RegTA, isa.RegGP), isa.Jral(isa.RegLP, isa.RegTA), isa.Jr(isa.RegLP))
				reloc(text, 0, 0, reloctype.R_NDS32_PLT_GOT_SUFF, 0)
				reloc(text, 0, foo, reloctype.R_NDS32_PLT_GOTREL_HI20, 0)
				reloc(text, 4, foo, reloctype.R_NDS32_PLT_GOTREL_LO12, 0)
			},
			in:    20,
			size:  8,
			check: func(insn uint32) bool { return insn == isa.Jal(2) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestObject("suff.o")
			text := o.text(tt.in)
			tt.build(o, text)
			relaxEntryAt(text, 0)
			linker := newTestLinker(t, testOptions(), o)
			mustLink(t, linker)

			if text.Size != tt.size {
				t.Fatalf("size %d, want %d", text.Size, tt.size)
			}
			if got := isa.Read32(text.Contents, 0); !tt.check(got) {
				t.Errorf("unexpected 0x%08x", got)
			}
		})
	}
}

// A 10-byte sethi/ori/jral5 call shrinks to a jal. Everything after it in
// the section, and the section that follows, moves down by 6 bytes before
// padding restores word alignment.
func TestLongCallShiftsFollowingCode(t *testing.T) {
	caller := newTestObject("caller.o")
	text := caller.text(0x50)
	foo := caller.undef("foo")
	put32(text, 0, isa.Sethi(isa.RegTA, 0), isa.Ori(isa.RegTA, isa.RegTA, 0))
	isa.Write16(text.Contents, 8, isa.Jral5(isa.RegTA))
	isa.Write16(text.Contents, 10, isa.Insn16NOP)
	put32(text, 12, isa.J(0))
	put32(text, 0x40, isa.Jal(0))
	relaxEntryAt(text, 0)
	reloc(text, 0, 0, reloctype.R_NDS32_LONGCALL1, 0)
	reloc(text, 0, foo, reloctype.R_NDS32_HI20_RELA, 0)
	reloc(text, 4, foo, reloctype.R_NDS32_LO12S0_ORI_RELA, 0)
	reloc(text, 12, foo, reloctype.R_NDS32_25_PCREL_RELA, 0)
	reloc(text, 0x40, foo, reloctype.R_NDS32_25_PCREL_RELA, 0)

	callee := newTestObject("callee.o")
	ctext := callee.text(4)
	callee.global("foo", ctext, 0, 4, symkind.STT_FUNC)
	put32(ctext, 0, isa.Jr(isa.RegLP))

	linker := newTestLinker(t, testOptions(), caller, callee)
	mustLink(t, linker)

	if text.Size != 0x4c {
		t.Fatalf("size 0x%x, want 0x4c", text.Size)
	}
	if got := addrOf(t, linker, "foo"); got != textBase+0x4c {
		t.Errorf("foo at 0x%x, want 0x%x", got, textBase+0x4c)
	}
	var offs []uint32
	for _, r := range text.Relocs {
		if r.Type == reloctype.R_NDS32_25_PCREL_RELA {
			offs = append(offs, r.Offset)
		}
	}
	if want := []uint32{0, 6, 0x3a}; len(offs) != len(want) || offs[0] != want[0] || offs[1] != want[1] || offs[2] != want[2] {
		t.Errorf("25_PCREL_RELA at %x, want %x", offs, want)
	}
	want := map[uint32]uint32{0: isa.Jal(0x26), 6: isa.J(0x23), 0x3a: isa.Jal(9)}
	for off, insn := range want {
		if got := isa.Read32(text.Contents, off); got != insn {
			t.Errorf("at 0x%x: 0x%08x, want 0x%08x", off, got, insn)
		}
	}
}

func TestMergeStrings(t *testing.T) {
	strs := func(o *testObject, s string) *obj.Section {
		sec := o.section(".rodata.str1.1", obj.SHT_PROGBITS, obj.SHF_ALLOC|obj.SHF_MERGE|obj.SHF_STRINGS, 0, uint32(len(s)))
		copy(sec.Contents, s)
		return sec
	}

	a := newTestObject("a.o")
	astr := strs(a, "hello\x00")
	adata := a.data(".data", 4)
	reloc(adata, 0, a.secsym(astr), reloctype.R_NDS32_32_RELA, 0)

	b := newTestObject("b.o")
	bstr := strs(b, "world\x00hello\x00")
	bdata := b.data(".data", 8)
	reloc(bdata, 0, b.secsym(bstr), reloctype.R_NDS32_32_RELA, 6)
	reloc(bdata, 4, b.secsym(bstr), reloctype.R_NDS32_32_RELA, 0)

	opts := testOptions()
	opts.Relax = false
	linker := newTestLinker(t, opts, a, b)
	mustLink(t, linker)

	m := linker.merged[astr]
	if m == nil || linker.merged[bstr] == nil || linker.merged[bstr].into != m.into {
		t.Fatal("string sections were not merged into one")
	}
	if got := string(m.into.Contents[:m.into.Size]); got != "hello\x00world\x00" {
		t.Errorf("merged contents %q", got)
	}
	hello := binary.LittleEndian.Uint32(adata.Contents)
	if hello != m.into.Addr {
		t.Errorf("a.o hello at 0x%x, want 0x%x", hello, m.into.Addr)
	}
	if got := binary.LittleEndian.Uint32(bdata.Contents); got != hello {
		t.Errorf("b.o hello at 0x%x, want 0x%x", got, hello)
	}
	if got := binary.LittleEndian.Uint32(bdata.Contents[4:]); got != m.into.Addr+6 {
		t.Errorf("b.o world at 0x%x, want 0x%x", got, m.into.Addr+6)
	}
}
