package link

import (
	"bytes"
	"strings"
	"testing"

	"github.com/NetBSD/src-sub063/objabi/symkind"
)

func TestExportSymbols(t *testing.T) {
	o := newTestObject("a.o")
	text := o.text(8)
	o.global("f", text, 4, 4, symkind.STT_FUNC)
	o.undef("weak_or_missing")
	opts := testOptions()
	opts.Relax = false
	linker := newTestLinker(t, opts, o)
	if err := linker.Layout(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := linker.ExportSymbols(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "f = 0x00500004;\n") {
		t.Errorf("export missing f:\n%s", out)
	}
	if strings.Contains(out, "weak_or_missing") {
		t.Errorf("undefined symbol exported:\n%s", out)
	}
}

func TestDefinedSymbols(t *testing.T) {
	o := newTestObject("a.o")
	text := o.text(8)
	o.global("f", text, 4, 4, symkind.STT_FUNC)
	o.global("g", text, 0, 4, symkind.STT_FUNC)
	o.undef("missing")
	opts := testOptions()
	opts.Relax = false
	linker := newTestLinker(t, opts, o)
	if err := linker.Layout(); err != nil {
		t.Fatal(err)
	}

	got := map[string]uint32{}
	for _, sym := range linker.DefinedSymbols() {
		got[sym.Name] = sym.Addr
	}
	if got["f"] != 0x500004 || got["g"] != 0x500000 {
		t.Errorf("defined symbols %v", got)
	}
	if _, ok := got["missing"]; ok {
		t.Errorf("undefined symbol listed: %v", got)
	}
}

func TestDump(t *testing.T) {
	o := newTestObject("a.o")
	text := o.text(8)
	o.global("f", text, 0, 8, symkind.STT_FUNC)
	opts := testOptions()
	opts.Relax = false
	linker := newTestLinker(t, opts, o)
	mustLink(t, linker)

	var buf bytes.Buffer
	if err := linker.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".text", "a.o", "Ex9Table"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("dump has no %q:\n%s", want, buf.String())
		}
	}
}
