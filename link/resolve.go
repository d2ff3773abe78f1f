package link

import (
	"fmt"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// target is a relocation's symbol resolved to an output address.
type target struct {
	// S, with any merged-section addend already folded in
	addr   uint32
	addend int64
	name   string
	g      *global
	sym    *obj.Symbol
	// the address is known at link time
	defined bool
	// the symbol resolves at run time: defined by a shared library, left
	// undefined in a shared link, or preemptible
	dynamic   bool
	undefWeak bool
}

func (t target) value() int64 {
	return int64(t.addr) + t.addend
}

// symbolAddr returns the output address of a symbol defined in o.
func (linker *Linker) symbolAddr(o *obj.Object, sym *obj.Symbol, addend int64) (uint32, int64) {
	switch sym.Shndx {
	case symkind.SHN_ABS:
		return sym.Value, addend
	case symkind.SHN_UNDEF, symkind.SHN_COMMON:
		return 0, addend
	}
	sec := o.Section(sym.Shndx)
	if sec == nil {
		return 0, addend
	}
	if m := linker.merged[sec]; m != nil {
		if sym.Type == symkind.STT_SECTION {
			return m.into.Addr + m.offset(uint32(int64(sym.Value)+addend)), 0
		}
		return m.into.Addr + m.offset(sym.Value), addend
	}
	return sec.Addr + sym.Value, addend
}

func (linker *Linker) globalAddr(g *global) (uint32, bool) {
	switch {
	case g.Copy:
		return linker.dynbss.Addr + g.CopyOff, true
	case g.Kind == symkind.Dynamic:
		return 0, false
	case !symkind.IsDefined(g.Kind):
		return 0, false
	case g.Section != nil:
		return g.Section.Addr + g.Value, true
	case g.Abs:
		return g.Value, true
	case g.Obj != nil:
		addr, _ := linker.symbolAddr(g.Obj, g.Obj.Symbols[g.Index], 0)
		return addr, true
	}
	return 0, false
}

// preemptible reports whether references to g must go through the
// dynamic linker.
func (linker *Linker) preemptible(g *global) bool {
	if g == nil {
		return false
	}
	switch {
	case g.Kind == symkind.Dynamic:
		return !g.Copy
	case symkind.IsUndefined(g.Kind):
		return linker.Options.Shared
	}
	return linker.Options.Shared && !linker.bindsLocally(g)
}

// bindsLocally reports whether a definition in this link can never be
// overridden at run time.
func (linker *Linker) bindsLocally(g *global) bool {
	if g.Kind == symkind.Dynamic || !symkind.IsDefined(g.Kind) {
		return false
	}
	if !linker.Options.Shared || linker.Options.Bsymbolic {
		return true
	}
	return g.Other&3 != symkind.STV_DEFAULT
}

// resolve turns the symbol and addend of r into an output address. It
// returns an error wrapping diag.ErrUndefined when the symbol has no
// definition and the link is final.
func (linker *Linker) resolve(o *obj.Object, r *obj.Reloc) (target, error) {
	sym := o.Symbol(r.Sym)
	if sym == nil {
		return target{}, fmt.Errorf("%w: symbol index %d out of range", diag.ErrFatal, r.Sym)
	}
	t := target{sym: sym, addend: r.Addend, name: sym.Name}
	if r.Sym == 0 {
		t.defined = true
		return t, nil
	}
	if o.IsLocal(r.Sym) {
		t.addr, t.addend = linker.symbolAddr(o, sym, r.Addend)
		t.defined = true
		return t, nil
	}

	g := linker.lookup(sym.Name)
	if g == nil {
		return t, fmt.Errorf("%w: %s", diag.ErrUndefined, sym.Name)
	}
	t.g, t.name = g, g.Name
	t.dynamic = linker.preemptible(g)
	if addr, ok := linker.globalAddr(g); ok {
		t.addr, t.defined = addr, true
		return t, nil
	}
	switch {
	case g.Kind == symkind.UndefWeak:
		t.undefWeak = true
		t.defined = !linker.Options.Shared
		return t, nil
	case g.Kind == symkind.Dynamic, linker.Options.Shared:
		return t, nil
	}
	return t, fmt.Errorf("%w: %s", diag.ErrUndefined, g.Name)
}

func (linker *Linker) gotOrigin() uint32 {
	if linker.got == nil {
		return 0
	}
	return linker.got.Addr
}

func (linker *Linker) pltEntryAddr(g *global) uint32 {
	return linker.plt.Addr + uint32(g.PltIndex)*constants.PLTEntrySize
}

// gotSlot returns the GOT entry of the relocation's symbol.
func (linker *Linker) gotSlot(o *obj.Object, symIndex uint32, g *global) *obj.GotSlot {
	if g != nil {
		return &g.Got
	}
	key := localKey{o, symIndex}
	slot, ok := linker.localGot[key]
	if !ok {
		slot = &obj.GotSlot{}
		linker.localGot[key] = slot
	}
	return slot
}
