package link

import (
	"testing"

	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

func TestChooseFPWindow(t *testing.T) {
	tests := []struct {
		addrs []int64
		start int64
		count int
	}{
		{nil, 0, 0},
		{[]int64{0, 100, 200, 600}, 0, 3},
		{[]int64{0, 600, 650, 700}, 600, 3},
		{[]int64{0, 512, 1024}, 0, 1},
	}
	for _, tt := range tests {
		start, count := chooseFPWindow(tt.addrs, 512)
		if start != tt.start || count != tt.count {
			t.Errorf("chooseFPWindow(%v) = %d, %d, want %d, %d", tt.addrs, start, count, tt.start, tt.count)
		}
	}
}

func fpObject() (*testObject, *obj.Section) {
	o := newTestObject("fp.o")
	text := o.text(20)
	sdata := o.data(".sdata_w", 0x100)
	v0 := o.global("v0", sdata, 0x10, 4, symkind.STT_OBJECT)
	v1 := o.global("v1", sdata, 0x14, 4, symkind.STT_OBJECT)
	v2 := o.global("v2", sdata, 0x18, 4, symkind.STT_OBJECT)
	put32(text, 0, isa.AddiGP(isa.RegFP, 0), isa.LwiGP(1, 0), isa.LwiGP(2, 0), isa.LwiGP(3, 0), isa.Jr(isa.RegLP))
	relaxEntryAt(text, 0)
	reloc(text, 0, 0, reloctype.R_NDS32_RELAX_REGION_BEGIN, reloctype.RegionOmitFP)
	reloc(text, 0, v0, reloctype.R_NDS32_SDA19S0_RELA, 0)
	reloc(text, 4, v0, reloctype.R_NDS32_SDA17S2_RELA, 0)
	reloc(text, 8, v1, reloctype.R_NDS32_SDA17S2_RELA, 0)
	reloc(text, 12, v2, reloctype.R_NDS32_SDA17S2_RELA, 0)
	reloc(text, 20, 0, reloctype.R_NDS32_RELAX_REGION_END, 0)
	return o, text
}

func TestFPAsGP(t *testing.T) {
	o, text := fpObject()
	opts := testOptions()
	opts.FPAsGP = true
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)

	sda, err := linker.SDABase()
	if err != nil {
		t.Fatal(err)
	}
	if sda != 0x501080 {
		t.Fatalf("_SDA_BASE_ 0x%x", sda)
	}
	if text.Size != 16 {
		t.Fatalf("size %d, want 16", text.Size)
	}
	if got := isa.Read32(text.Contents, 0); got != isa.AddiGP(isa.RegFP, -0x70) {
		t.Errorf("setup 0x%08x", got)
	}
	for i, off := range []uint32{4, 6, 8} {
		if got, want := isa.Read16(text.Contents, off), isa.Lwi37FP(uint32(i+1), uint32(i)); got != want {
			t.Errorf("0x%x: 0x%04x, want 0x%04x", off, got, want)
		}
	}
	if got := isa.Read32(text.Contents, 10); got != isa.Jr(isa.RegLP) {
		t.Errorf("ret moved to 0x%08x", got)
	}
	rgs := regions(text)
	if len(rgs) != 1 || rgs[0].flags(text)&reloctype.RegionFPResolved == 0 {
		t.Errorf("region not marked resolved")
	}
}

func TestFPAsGPBelowThreshold(t *testing.T) {
	o, text := fpObject()
	opts := testOptions()
	opts.FPAsGP = true
	opts.FPAsGPThreshold = 4
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)

	if text.Size != 20 {
		t.Fatalf("size %d, want 20", text.Size)
	}
	rgs := regions(text)
	if len(rgs) != 1 || rgs[0].flags(text)&reloctype.RegionFPKept == 0 {
		t.Errorf("region not marked kept")
	}
	// the untouched loads still address through gp
	if got := isa.Read32(text.Contents, 4); got != isa.LwiGP(1, -0x70>>2) {
		t.Errorf("load 0x%08x", got)
	}
}
