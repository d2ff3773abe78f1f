package link

import (
	"io"

	"github.com/k0kubun/pp/v3"

	"github.com/NetBSD/src-sub063/diag"
)

type dumpSection struct {
	Object string
	Name   string
	Addr   uint32
	Size   uint32
	Relocs int
}

type dumpOutput struct {
	Name     string
	Addr     uint32
	Size     uint32
	Sections []dumpSection
}

type dumpSymbol struct {
	Name     string
	Addr     uint32
	Got      int64
	PltIndex int
	DynIndex uint32
	Copy     bool
}

type dumpState struct {
	Round    string
	Outputs  []dumpOutput
	Symbols  []dumpSymbol
	Ex9Table []uint32
	Errors   int
	Warnings int
}

// Dump pretty-prints the layout, the dynamic symbol state and the ex9
// table.
func (linker *Linker) Dump(w io.Writer) error {
	owner := linker.sectionOwners()
	state := dumpState{Round: linker.round.String(), Ex9Table: linker.Ex9Table()}
	for _, out := range linker.outputs {
		do := dumpOutput{Name: out.Name, Addr: out.Addr, Size: out.Size}
		for _, sec := range out.Sections {
			do.Sections = append(do.Sections, dumpSection{
				Object: owner[sec],
				Name:   sec.Name,
				Addr:   sec.Addr,
				Size:   sec.Size,
				Relocs: len(sec.Relocs),
			})
		}
		state.Outputs = append(state.Outputs, do)
	}
	for _, g := range linker.sortedGlobals() {
		addr, _ := linker.globalAddr(g)
		ds := dumpSymbol{Name: g.Name, Addr: addr, Got: -1, PltIndex: g.PltIndex, DynIndex: g.DynIndex, Copy: g.Copy}
		if g.Got.Set {
			ds.Got = int64(g.Got.Offset)
		}
		state.Symbols = append(state.Symbols, ds)
	}
	state.Errors = linker.diags.ErrorCount()
	for _, e := range linker.diags.Entries() {
		if e.Severity == diag.Warning {
			state.Warnings += e.Repeated() + 1
		}
	}

	printer := pp.New()
	printer.SetColoringEnabled(false)
	_, err := printer.Fprintln(w, state)
	return err
}
