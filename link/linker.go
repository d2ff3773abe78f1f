// Package link is the NDS32 relocation and relaxation engine: it resolves
// symbols, sizes and fills the dynamic sections, relaxes code sequences
// and patches section contents.
package link

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/NetBSD/src-sub063/blank"
	"github.com/NetBSD/src-sub063/config"
	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/diag"
	"github.com/NetBSD/src-sub063/obj"
	"github.com/NetBSD/src-sub063/objabi/reloctype"
	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// global is the link-wide entry of a global symbol name.
type global struct {
	Name  string
	Kind  int
	Type  uint8
	Other uint8
	Size  uint32

	// definition inside an input object
	Obj   *obj.Object
	Index uint32
	// definition made by the linker
	Section *obj.Section
	Value   uint32
	Abs     bool
	// target of an indirect symbol
	Link string

	Got       obj.GotSlot
	PltRefs   int
	PltIndex  int
	DynRelocs []*obj.DynReloc
	Copy      bool
	CopyOff   uint32
	DynIndex  uint32
}

type localKey struct {
	obj *obj.Object
	sym uint32
}

type Linker struct {
	Options *config.Options
	Objects []*obj.Object

	// sections created by the linker
	dynobj  *obj.Object
	got     *obj.Section
	gotplt  *obj.Section
	plt     *obj.Section
	relaGot *obj.Section
	relaPlt *obj.Section
	relaDyn *obj.Section
	relaBss *obj.Section
	dynbss  *obj.Section
	common  *obj.Section
	ex9tab  *obj.Section

	globals  map[string]*global
	names    []string
	localGot map[localKey]*obj.GotSlot
	localDyn map[*obj.Section][]*obj.DynReloc
	pltCount int
	gotCount int
	dynsyms  []*global
	relaFill map[*obj.Section]uint32

	outputs []*OutSection
	merged  map[*obj.Section]*mergeInfo
	didMerge bool

	sda     *global
	itb     *global
	blanks  map[*obj.Section]*blank.List
	round   Round
	ex9     *ex9Table
	ifc     *ifcTable
	scanned bool
	sized   bool

	order binary.ByteOrder
	log   *log.Logger
	diags *diag.Log
}

func NewLinker(opts *config.Options) *Linker {
	if opts == nil {
		opts = config.Default()
	}
	linker := &Linker{
		Options:  opts,
		globals:  make(map[string]*global),
		localGot: make(map[localKey]*obj.GotSlot),
		localDyn: make(map[*obj.Section][]*obj.DynReloc),
		relaFill: make(map[*obj.Section]uint32),
		merged:   make(map[*obj.Section]*mergeInfo),
		blanks:   make(map[*obj.Section]*blank.List),
		order:    binary.LittleEndian,
		diags:    diag.NewLog(diag.DefaultMaxEntries),
		log:      log.New(io.Discard, "nds32ld: ", 0),
	}
	if opts.BigEndian {
		linker.order = binary.BigEndian
	}
	if opts.Verbose {
		linker.log.SetOutput(log.Writer())
	}
	linker.dynobj = &obj.Object{Name: "<linker>", BigEndian: opts.BigEndian}
	linker.dynobj.AddSymbol(&obj.Symbol{})
	return linker
}

// SetLogOutput redirects progress logging.
func (linker *Linker) SetLogOutput(w io.Writer) {
	linker.log.SetOutput(w)
}

func (linker *Linker) Diagnostics() *diag.Log {
	return linker.diags
}

func (linker *Linker) ByteOrder() binary.ByteOrder {
	return linker.order
}

func (linker *Linker) Round() Round {
	return linker.round
}

// AddObject registers o and its global symbols.
func (linker *Linker) AddObject(o *obj.Object) error {
	if linker.scanned {
		return fmt.Errorf("add object %s: relocations already scanned", o.Name)
	}
	if o.BigEndian != linker.Options.BigEndian && !o.Shared {
		return fmt.Errorf("add object %s: byte order differs from the link", o.Name)
	}
	if len(o.Symbols) == 0 {
		o.AddSymbol(&obj.Symbol{})
	}
	for _, sec := range o.Sections {
		if sec == nil {
			continue
		}
		obj.SortRelocs(sec.Relocs)
		if !sec.IsNoBits() && uint32(len(sec.Contents)) < sec.Size {
			sec.Grow(sec.Size)
		}
		// ifc rewrites calls against the section symbol of their section
		if sec.IsExec() && sec.IsAlloc() && !o.Shared {
			o.AddSectionSymbol(sec)
		}
	}
	linker.Objects = append(linker.Objects, o)
	for i := o.FirstGlobal; i < len(o.Symbols); i++ {
		if err := linker.addSymbol(o, uint32(i)); err != nil {
			return err
		}
	}
	return nil
}

func symbolKind(o *obj.Object, sym *obj.Symbol) int {
	switch {
	case sym.Link != constants.EmptyString:
		return symkind.Indirect
	case sym.Shndx == symkind.SHN_UNDEF:
		if sym.Bind == symkind.STB_WEAK {
			return symkind.UndefWeak
		}
		return symkind.Undefined
	case o.Shared:
		return symkind.Dynamic
	case sym.Shndx == symkind.SHN_COMMON:
		return symkind.Common
	case sym.Bind == symkind.STB_WEAK:
		return symkind.DefWeak
	}
	return symkind.Defined
}

func (linker *Linker) addSymbol(o *obj.Object, index uint32) error {
	sym := o.Symbols[index]
	if sym.Name == constants.EmptyString {
		return nil
	}
	kind := symbolKind(o, sym)
	g, ok := linker.globals[sym.Name]
	if !ok {
		g = &global{Name: sym.Name, PltIndex: constants.InvalidIndex}
		linker.globals[sym.Name] = g
		linker.names = append(linker.names, sym.Name)
		linker.setDefinition(g, kind, o, index)
		return nil
	}
	switch {
	case kind == symkind.Undefined:
		if g.Kind == symkind.UndefWeak {
			g.Kind = symkind.Undefined
		}
		return nil
	case kind == symkind.UndefWeak:
		return nil
	case kind == symkind.Indirect:
		if symkind.IsUndefined(g.Kind) {
			linker.setDefinition(g, kind, o, index)
		}
		return nil
	case kind == symkind.Common && g.Kind == symkind.Common:
		if sym.Size > g.Size {
			g.Size = sym.Size
		}
		return nil
	case kind == symkind.Defined && g.Kind == symkind.Defined && g.Obj != nil && g.Obj != o:
		linker.diags.Add(diag.Diagnostic{
			Class:    diag.ErrFatal,
			Severity: diag.Error,
			Object:   o.Name,
			Symbol:   sym.Name,
			Detail:   "multiple definition, first defined in " + g.Obj.Name,
		})
		return nil
	}
	if symkind.IsUndefined(g.Kind) || symkind.Rank(kind) > symkind.Rank(g.Kind) {
		linker.setDefinition(g, kind, o, index)
	}
	return nil
}

func (linker *Linker) setDefinition(g *global, kind int, o *obj.Object, index uint32) {
	sym := o.Symbols[index]
	g.Kind = kind
	g.Obj, g.Index = o, index
	g.Type, g.Other, g.Size = sym.Type, sym.Other, sym.Size
	g.Link = sym.Link
}

// define makes a linker-created symbol at value inside sec, or an absolute
// symbol when sec is nil. A definition from an input object wins.
func (linker *Linker) define(name string, sec *obj.Section, value uint32, weak bool) *global {
	g, ok := linker.globals[name]
	if ok && symkind.IsDefined(g.Kind) && g.Obj != nil {
		return g
	}
	if !ok {
		g = &global{Name: name, PltIndex: constants.InvalidIndex}
		linker.globals[name] = g
		linker.names = append(linker.names, name)
	}
	g.Kind = symkind.Defined
	if weak {
		g.Kind = symkind.DefWeak
	}
	g.Obj, g.Index = nil, 0
	g.Section, g.Value, g.Abs = sec, value, sec == nil
	g.Other = symkind.STV_HIDDEN
	return g
}

// lookup follows indirect symbols to the entry that defines name.
func (linker *Linker) lookup(name string) *global {
	g := linker.globals[name]
	for steps := 0; g != nil && g.Kind == symkind.Indirect; steps++ {
		if steps > len(linker.globals) {
			linker.diags.Errorf(diag.ErrUndefined, "indirect symbol loop at %s", g.Name)
			return nil
		}
		g = linker.globals[g.Link]
	}
	return g
}

// Symbol returns the output address of global name.
func (linker *Linker) Symbol(name string) (uint32, bool) {
	g := linker.lookup(name)
	if g == nil {
		return 0, false
	}
	return linker.globalAddr(g)
}

func (linker *Linker) sortedGlobals() []*global {
	names := make([]string, len(linker.names))
	copy(names, linker.names)
	sort.Strings(names)
	gs := make([]*global, 0, len(names))
	for _, n := range names {
		gs = append(gs, linker.globals[n])
	}
	return gs
}

// allocateCommons gives every common symbol a slot in the linker's bss.
func (linker *Linker) allocateCommons() {
	for _, g := range linker.sortedGlobals() {
		if g.Kind != symkind.Common {
			continue
		}
		if linker.common == nil {
			linker.common = linker.newSection(constants.CommonSection, obj.SHT_NOBITS, obj.SHF_ALLOC|obj.SHF_WRITE, 3)
		}
		align := uint32(4)
		if g.Obj != nil {
			if a := g.Obj.Symbols[g.Index].Value; a > align {
				align = a
			}
		}
		off := alignof(linker.common.Size, align)
		linker.common.Size = off + g.Size
		g.Kind = symkind.Defined
		g.Obj, g.Index = nil, 0
		g.Section, g.Value = linker.common, off
	}
}

func (linker *Linker) newSection(name string, typ, flags uint32, alignPower uint8) *obj.Section {
	return linker.dynobj.AddSection(&obj.Section{Name: name, Type: typ, Flags: flags, AlignPower: alignPower})
}

// report records a diagnostic located at relocation r of sec.
func (linker *Linker) report(class error, sev diag.Severity, o *obj.Object, sec *obj.Section, r *obj.Reloc, detail string) {
	d := diag.Diagnostic{
		Class:    class,
		Severity: sev,
		Object:   o.Name,
		Section:  sec.Name,
		Offset:   r.Offset,
		Reloc:    reloctype.RelocTypeString(r.Type),
		Detail:   detail,
	}
	if sym := o.Symbol(r.Sym); sym != nil {
		d.Symbol = sym.Name
		if sym.Type == symkind.STT_SECTION {
			if s := o.Section(sym.Shndx); s != nil {
				d.Symbol = s.Name
			}
		}
	}
	linker.diags.Add(d)
}

// textSections returns every input section that can hold relaxable code.
func (linker *Linker) textSections() []sectionRef {
	var refs []sectionRef
	for _, o := range linker.Objects {
		if o.Shared {
			continue
		}
		for _, sec := range o.Sections {
			if sec != nil && sec.IsExec() && sec.IsLoadable() && !sec.IsNoBits() {
				refs = append(refs, sectionRef{o, sec})
			}
		}
	}
	return refs
}

type sectionRef struct {
	obj *obj.Object
	sec *obj.Section
}

func alignof(i uint32, align uint32) uint32 {
	if align > 1 && i%align != 0 {
		i = i + (align - i%align)
	}
	return i
}
