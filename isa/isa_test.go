package isa

import "testing"

func TestTo16(t *testing.T) {
	tests := []struct {
		name string
		insn uint32
		want uint16
		ok   bool
	}{
		{"nop", InsnNOP, Insn16NOP, true},
		{"addi45", Addi(1, 1, 5), 0x8c25, true},
		{"mov55", Addi(3, 4, 0), 0x8064, true},
		{"movi55", Movi(2, 3), 0x8443, true},
		{"movi wide", Movi(2, 100), 0, false},
		{"jr5", Jr(RegTA), 0xdd0f, true},
		{"jral5", Jral(RegLP, RegTA), 0xdd2f, true},
		{"sethi", Sethi(RegTA, 0x12345), 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := To16(test.insn)
			if ok != test.ok || got != test.want {
				t.Errorf("To16(0x%08x) = 0x%04x, %v, want 0x%04x, %v", test.insn, got, ok, test.want, test.ok)
			}
		})
	}
}

func TestBranch16(t *testing.T) {
	tests := []struct {
		name string
		insn uint32
		want uint16
		ok   bool
	}{
		{"j", J(0x100), Insn16J8, true},
		{"beqz38", BR2(BR2BEQZ, 3, 10), 0xc300, true},
		{"bnezs8", BR2(BR2BNEZ, RegTA, 10), Insn16BNEZS8, true},
		{"high register", BR2(BR2BEQZ, 9, 10), 0, false},
		{"bgez", BR2(BR2BGEZ, 3, 10), 0, false},
		{"jal", Jal(0x100), 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := Branch16(test.insn)
			if ok != test.ok || got != test.want {
				t.Errorf("Branch16(0x%08x) = 0x%04x, %v, want 0x%04x, %v", test.insn, got, ok, test.want, test.ok)
			}
		})
	}
}

func TestInvertBranch(t *testing.T) {
	tests := []struct {
		insn uint32
		want uint32
		ok   bool
	}{
		{BR2(BR2BEQZ, 3, 10), BR2(BR2BNEZ, 3, 10), true},
		{BR2(BR2BLTZ, 3, 10), BR2(BR2BGEZ, 3, 10), true},
		{BR2(BR2BGTZ, 3, 10), BR2(BR2BLEZ, 3, 10), true},
		{BR1(false, 1, 2, 4), BR1(true, 1, 2, 4), true},
		{BR2(BR2BGEZAL, 3, 10), 0, false},
		{Jal(4), 0, false},
	}
	for _, test := range tests {
		got, ok := InvertBranch(test.insn)
		if ok != test.ok || got != test.want {
			t.Errorf("InvertBranch(0x%08x) = 0x%08x, %v, want 0x%08x, %v", test.insn, got, ok, test.want, test.ok)
		}
		if ok {
			back, _ := InvertBranch(got)
			if back != test.insn {
				t.Errorf("inverting twice gave 0x%08x, want 0x%08x", back, test.insn)
			}
		}
	}
}

func TestSetBranchImm(t *testing.T) {
	if got, want := SetBranchImm(BR2(BR2BEQZ, 3, 0), -2), BR2(BR2BEQZ, 3, -2); got != want {
		t.Errorf("got 0x%08x, want 0x%08x", got, want)
	}
	if got, want := SetBranchImm(Jal(0), 0x800000), Jal(0x800000); got != want {
		t.Errorf("got 0x%08x, want 0x%08x", got, want)
	}
	if got := SetBranchImm(Sethi(1, 1), 4); got != Sethi(1, 1) {
		t.Errorf("non-branch changed: 0x%08x", got)
	}
}

func TestMemToGP(t *testing.T) {
	m, ok := DecodeMem(Mem(OpLWI, 1, 2, 4))
	if !ok || m.Shift != 2 || m.Store {
		t.Fatalf("DecodeMem(lwi) = %+v, %v", m, ok)
	}
	insn, bits := m.ToGP(1, 8)
	if insn != LwiGP(1, 8) || bits != 17 {
		t.Errorf("ToGP = 0x%08x, %d", insn, bits)
	}
	if !IsLwiGP(insn) {
		t.Errorf("0x%08x is not lwi.gp", insn)
	}
	if _, ok := DecodeMem(Sethi(1, 0)); ok {
		t.Error("sethi decoded as a memory access")
	}
}

func TestLength(t *testing.T) {
	buf := make([]byte, 6)
	Write32(buf, 0, Sethi(RegTA, 1))
	Write16(buf, 4, Insn16NOP)
	if n := Length(buf, 0); n != 4 {
		t.Errorf("Length(sethi) = %d", n)
	}
	if n := Length(buf, 4); n != 2 {
		t.Errorf("Length(nop16) = %d", n)
	}
	if n := Length(buf, 5); n != 0 {
		t.Errorf("Length past the end = %d", n)
	}
}

func TestSignExtend(t *testing.T) {
	if v := SignExtend(0xfff, 12); v != -1 {
		t.Errorf("SignExtend(0xfff, 12) = %d", v)
	}
	if v := SignExtend(0x7ff, 12); v != 0x7ff {
		t.Errorf("SignExtend(0x7ff, 12) = %d", v)
	}
}
