package link

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/NetBSD/src-sub063/objabi/symkind"
)

// ExportSymbols writes a linker script assigning every defined global
// symbol its final address, one "NAME = 0xADDR;" line per symbol.
func (linker *Linker) ExportSymbols(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, sym := range linker.DefinedSymbols() {
		if _, err := fmt.Fprintf(bw, "%s = 0x%08x;\n", sym.Name, sym.Addr); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SymbolAddr is a global defined by the link and its final address.
type SymbolAddr struct {
	Name string
	Addr uint32
}

// DefinedSymbols lists the globals the link defines, by name. Symbols
// left to shared libraries are not included.
func (linker *Linker) DefinedSymbols() []SymbolAddr {
	var out []SymbolAddr
	for _, g := range linker.sortedGlobals() {
		if g.Kind == symkind.Dynamic || !symkind.IsDefined(g.Kind) {
			continue
		}
		if addr, ok := linker.globalAddr(g); ok {
			out = append(out, SymbolAddr{Name: g.Name, Addr: addr})
		}
	}
	return out
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFile(path string, read func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}
