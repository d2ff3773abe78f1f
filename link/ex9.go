package link

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/howto"
	"github.com/NetBSD/src-sub063/isa"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
)

// ex9Target identifies the symbol an instruction's field refers to.
type ex9Target struct {
	g   *global
	o   *obj.Object
	sym uint32
}

// ex9Key is an instruction with its relocatable field cleared, plus what
// the field would have been filled with.
type ex9Key struct {
	insn   uint32
	kind   int
	target ex9Target
	addend int64
}

type ex9Entry struct {
	key      ex9Key
	uses     int
	seen     int
	slot     int
	imported bool
	// the relocation that fills the table word
	o     *obj.Object
	reloc obj.Reloc
}

type ex9Site struct {
	sec   *obj.Section
	off   uint32
	entry *ex9Entry
}

// ex9Table accumulates candidate instructions over every section before
// any of them is replaced.
type ex9Table struct {
	entries map[ex9Key]*ex9Entry
	order   []*ex9Entry
	sites   []ex9Site
	slots   []*ex9Entry
}

func newEx9Table() *ex9Table {
	return &ex9Table{entries: make(map[ex9Key]*ex9Entry)}
}

func (t *ex9Table) add(key ex9Key) *ex9Entry {
	e, ok := t.entries[key]
	if !ok {
		e = &ex9Entry{key: key, seen: len(t.order), slot: constants.InvalidIndex}
		t.entries[key] = e
		t.order = append(t.order, e)
	}
	return e
}

func (linker *Linker) ex9Tab() *ex9Table {
	if linker.ex9 == nil {
		linker.ex9 = newEx9Table()
	}
	return linker.ex9
}

// ex9Candidate builds the table key of the 32-bit instruction at off, or
// reports false when it cannot live in the table.
func (linker *Linker) ex9Candidate(o *obj.Object, sec *obj.Section, off uint32) (ex9Key, *obj.Reloc, bool) {
	insn := isa.Read32(sec.Contents, off)
	if isa.IsPCRelative(insn) {
		return ex9Key{}, nil, false
	}
	field := fieldReloc(sec.Relocs, off)
	switch {
	case field == -1:
		return ex9Key{insn: insn}, nil, true
	case field < 0:
		return ex9Key{}, nil, false
	}
	r := &sec.Relocs[field]
	if r.Type != reloctype.R_NDS32_HI20_RELA && r.Type != reloctype.R_NDS32_LO12S0_ORI_RELA {
		return ex9Key{}, nil, false
	}
	tgt, err := linker.resolve(o, r)
	if err != nil || !tgt.defined || tgt.dynamic {
		return ex9Key{}, nil, false
	}
	h := howto.Lookup(r.Type)
	key := ex9Key{insn: insn &^ h.DstMask, kind: r.Type, addend: r.Addend}
	if tgt.g != nil {
		key.target.g = tgt.g
	} else {
		key.target.o, key.target.sym = o, r.Sym
	}
	return key, r, true
}

// ex9Collect walks every ex9-enabled section and counts the instructions
// that could move into the table.
func (linker *Linker) ex9Collect() {
	tab := linker.ex9Tab()
	for _, ref := range linker.textSections() {
		sec := ref.sec
		if entryFlags(sec)&reloctype.RelaxEntryEx9 == 0 || linker.Options.Excluded(sec.Name) {
			continue
		}
		rgs := regions(sec)
		bodies := skippedBodies(sec)
		for off := uint32(0); off+2 <= sec.Size; {
			n := uint32(isa.Length(sec.Contents, off))
			if n == 4 && off+4 <= sec.Size && !inRegionWith(sec, rgs, off, reloctype.RegionNoEx9) && !inSpans(bodies, off) {
				if key, r, ok := linker.ex9Candidate(ref.obj, sec, off); ok {
					e := tab.add(key)
					e.uses++
					if r != nil && e.o == nil {
						e.o, e.reloc = ref.obj, *r
					}
					tab.sites = append(tab.sites, ex9Site{sec: sec, off: off, entry: e})
				}
			}
			if n == 0 {
				break
			}
			off += n
		}
	}
}

// ex9Select assigns table slots: imported words first, then the entries
// used at least three times, most used first.
func (linker *Linker) ex9Select() {
	tab := linker.ex9Tab()
	limit := linker.Options.Ex9Limit
	if limit <= 0 || limit > constants.Ex9MaxEntries {
		limit = constants.Ex9MaxEntries
	}
	var chosen []*ex9Entry
	for _, e := range tab.order {
		if e.imported {
			chosen = append(chosen, e)
		}
	}
	var ranked []*ex9Entry
	for _, e := range tab.order {
		if !e.imported && e.uses >= constants.Ex9MinUses {
			ranked = append(ranked, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].uses != ranked[j].uses {
			return ranked[i].uses > ranked[j].uses
		}
		return ranked[i].seen < ranked[j].seen
	})
	chosen = append(chosen, ranked...)

	tab.slots = tab.slots[:0]
	for _, e := range chosen {
		if len(tab.slots) >= limit {
			break
		}
		if len(tab.slots) == constants.Ex9SentinelSlot {
			// this slot must hold an instruction that is never executed
			// through ex9.it
			sentinel := &ex9Entry{key: ex9Key{insn: isa.InsnNOP}, slot: constants.Ex9SentinelSlot}
			tab.slots = append(tab.slots, sentinel)
			if len(tab.slots) >= limit {
				break
			}
		}
		e.slot = len(tab.slots)
		tab.slots = append(tab.slots, e)
	}

	if linker.ex9tab == nil {
		if _, err := linker.ITBBase(); err != nil {
			linker.diags.Errorf(diag.ErrFatal, "ex9: %v", err)
			return
		}
	}
	sec := linker.ex9tab
	sec.Contents = sec.Contents[:0]
	sec.Size = 0
	sec.Grow(uint32(len(tab.slots)) * constants.InsnSize)
	for i, e := range tab.slots {
		isa.Write32(sec.Contents, uint32(i)*constants.InsnSize, e.key.insn)
	}
	linker.log.Printf("ex9: %d candidates, %d table entries", len(tab.order), len(tab.slots))
}

// ex9Replace rewrites every occurrence of a table entry into ex9.it.
func (linker *Linker) ex9Replace() {
	tab := linker.ex9Tab()
	replaced := 0
	for _, site := range tab.sites {
		e := site.entry
		if e.slot < 0 {
			continue
		}
		isa.Write16(site.sec.Contents, site.off, isa.Ex9It(uint32(e.slot)))
		lo, hi := relocsAt(site.sec.Relocs, site.off)
		for j := lo; j < hi; j++ {
			if h := howto.Lookup(site.sec.Relocs[j].Type); h != nil && !h.Marker {
				site.sec.Relocs[j].Type = reloctype.R_NDS32_NONE
			}
		}
		linker.deleteBytes(site.sec, site.off+2, 2)
		replaced++
	}
	tab.sites = nil
	linker.log.Printf("ex9: %d instructions replaced", replaced)
}

// patchEx9Table fills the relocatable fields of the table words.
func (linker *Linker) patchEx9Table() {
	sec := linker.ex9tab
	if sec == nil {
		return
	}
	for _, e := range linker.ex9.slots {
		if e.o == nil || e.key.kind == reloctype.R_NDS32_NONE {
			continue
		}
		r := e.reloc
		r.Offset = uint32(e.slot) * constants.InsnSize
		tgt, err := linker.resolve(e.o, &e.reloc)
		if err != nil {
			linker.report(diag.ErrUndefined, diag.Error, e.o, sec, &r, "")
			continue
		}
		h := howto.Lookup(r.Type)
		if err := howto.Relocate(h, sec.Contents, r.Offset, tgt.value(), sec.Addr+r.Offset, linker.order); err != nil {
			linker.report(diag.ErrOverflow, diag.Error, e.o, sec, &r, err.Error())
		}
	}
}

// ImportEx9 preloads table entries from a file of big-endian instruction
// words. Imported entries take the first slots.
func (linker *Linker) ImportEx9(r io.Reader) error {
	tab := linker.ex9Tab()
	br := bufio.NewReader(r)
	var word [4]byte
	n := 0
	for {
		_, err := io.ReadFull(br, word[:])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read ex9 table: %w", err)
		}
		e := tab.add(ex9Key{insn: binary.BigEndian.Uint32(word[:])})
		e.imported = true
		n++
	}
	linker.log.Printf("ex9: imported %d table entries", n)
	return nil
}

// ExportEx9 writes the final table as big-endian instruction words.
func (linker *Linker) ExportEx9(w io.Writer) error {
	if linker.ex9tab == nil {
		return nil
	}
	if _, err := w.Write(linker.ex9tab.Contents[:linker.ex9tab.Size]); err != nil {
		return fmt.Errorf("write ex9 table: %w", err)
	}
	return nil
}

// Ex9Table returns the table words in slot order.
func (linker *Linker) Ex9Table() []uint32 {
	if linker.ex9tab == nil {
		return nil
	}
	words := make([]uint32, linker.ex9tab.Size/constants.InsnSize)
	for i := range words {
		words[i] = isa.Read32(linker.ex9tab.Contents, uint32(i)*constants.InsnSize)
	}
	return words
}
