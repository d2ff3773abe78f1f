package link

import (
	"fmt"
	"strings"

	"github.com/NetBSD/src-sub063/constants"
	"github.com/NetBSD/src-sub063/obj"
)

// OutSection is one section of the output file and the input sections
// placed in it.
type OutSection struct {
	Name     string
	Addr     uint32
	Size     uint32
	Align    uint32
	Flags    uint32
	Type     uint32
	Sections []*obj.Section
}

const (
	classText = iota
	classRodata
	classData
	classBss
)

// known output sections per class, in address order
var outputRank = map[string]int{
	constants.PLTSection: 0,
	".text":              1,

	".rodata":                 0,
	constants.Ex9Section:      1,
	constants.RelaDynSection:  2,
	constants.RelaGOTSection:  3,
	constants.RelaPLTSection:  4,
	constants.RelaBSSSection:  5,

	".data":                 0,
	constants.GOTSection:    1,
	constants.GOTPLTSection: 2,
	".sdata_d":              3,
	".sdata_w":              4,
	".sdata_h":              5,
	".sdata_b":              6,

	".sbss_b":               0,
	".sbss_h":               1,
	".sbss_w":               2,
	".sbss_d":               3,
	".bss":                  4,
	constants.DynBSSSection: 5,
}

func outputName(name string) string {
	for _, prefix := range []string{".text", ".rodata", ".data", ".bss"} {
		if strings.HasPrefix(name, prefix+".") {
			return prefix
		}
	}
	return name
}

func classOf(sec *obj.Section) int {
	switch {
	case sec.IsExec():
		return classText
	case sec.IsNoBits():
		return classBss
	case sec.IsWrite():
		return classData
	}
	return classRodata
}

// inputSections lists every section that takes part in layout: input
// sections of regular objects, minus merged ones, then linker sections.
func (linker *Linker) inputSections() []*obj.Section {
	var secs []*obj.Section
	for _, o := range append(append([]*obj.Object{}, linker.Objects...), linker.dynobj) {
		if o.Shared {
			continue
		}
		for _, sec := range o.Sections {
			if sec == nil || !sec.IsLoadable() || linker.merged[sec] != nil {
				continue
			}
			secs = append(secs, sec)
		}
	}
	return secs
}

// Layout assigns output addresses to every loadable section. It is rerun
// after each relaxation pass so distances reflect shrunk sections.
func (linker *Linker) Layout() error {
	linker.mergeSections()

	var classes [classBss + 1][]*OutSection
	byName := map[string]*OutSection{}
	for _, sec := range linker.inputSections() {
		name := outputName(sec.Name)
		sec.OutputName = name
		out, ok := byName[name]
		if !ok {
			out = &OutSection{Name: name, Flags: sec.Flags, Type: sec.Type, Align: 1}
			byName[name] = out
			c := classOf(sec)
			classes[c] = append(classes[c], out)
		}
		if sec.Type != obj.SHT_NOBITS {
			out.Type = sec.Type
		}
		out.Sections = append(out.Sections, sec)
	}

	linker.outputs = linker.outputs[:0]
	addr := linker.Options.TextBase
	for c := range classes {
		outs := classes[c]
		sortOutputs(outs)
		if c == classData {
			addr = alignof(addr, linker.Options.DataAlign)
		}
		for _, out := range outs {
			out.Align = 1
			for _, sec := range out.Sections {
				if sec.Align() > out.Align {
					out.Align = sec.Align()
				}
			}
			addr = alignof(addr, out.Align)
			out.Addr = addr
			var off uint32
			for _, sec := range out.Sections {
				off = alignof(off, sec.Align())
				sec.OutputOffset = off
				sec.Addr = out.Addr + off
				off += sec.Size
			}
			out.Size = off
			if uint64(addr)+uint64(off) > 1<<32 {
				return fmt.Errorf("output section %s at 0x%x does not fit the address space", out.Name, addr)
			}
			addr += off
			linker.outputs = append(linker.outputs, out)
		}
	}
	return nil
}

func sortOutputs(outs []*OutSection) {
	rank := func(o *OutSection) int {
		if r, ok := outputRank[o.Name]; ok {
			return r
		}
		return len(outputRank)
	}
	// insertion sort keeps first-seen order among unknown names
	for i := 1; i < len(outs); i++ {
		for j := i; j > 0 && rank(outs[j]) < rank(outs[j-1]); j-- {
			outs[j], outs[j-1] = outs[j-1], outs[j]
		}
	}
}

// Output returns the output section called name.
func (linker *Linker) Output(name string) *OutSection {
	for _, out := range linker.outputs {
		if out.Name == name {
			return out
		}
	}
	return nil
}

func (linker *Linker) Outputs() []*OutSection {
	return linker.outputs
}
