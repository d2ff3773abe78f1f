package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/NetBSD/src-sub063"
	"github.com/NetBSD/src-sub063/config"
	"github.com/NetBSD/src-sub063/link"
)

type SectionInfo struct {
	Name string
	Addr string
	Size uint32
}

// LinkMap is the summary written by -map.
type LinkMap struct {
	Objects  []string
	Sections []SectionInfo
	Symbols  map[string]string
}

func NewLinkMap(linker *link.Linker) *LinkMap {
	m := &LinkMap{Symbols: map[string]string{}}
	for _, o := range linker.Objects {
		m.Objects = append(m.Objects, o.Name)
	}
	for _, out := range linker.Outputs() {
		m.Sections = append(m.Sections, SectionInfo{Name: out.Name, Addr: fmt.Sprintf("0x%08x", out.Addr), Size: out.Size})
	}
	for _, sym := range linker.DefinedSymbols() {
		m.Symbols[sym.Name] = fmt.Sprintf("0x%08x", sym.Addr)
	}
	return m
}

func (m *LinkMap) WriteToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	mar, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	_, err = f.Write(mar)
	return err
}

func loadOptions(path string) (*config.Options, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func main() {
	var configPath = flag.String("config", "", "yaml link options file")
	var shared = flag.Bool("shared", false, "link a shared object")
	var bsymbolic = flag.Bool("Bsymbolic", false, "bind global references locally")
	var relax = flag.Bool("relax", true, "relax code sequences")
	var ex9 = flag.Bool("ex9", false, "build the ex9 instruction table")
	var ifc = flag.Bool("ifc", false, "chain repeated calls")
	var fpAsGP = flag.Bool("fp-as-gp", false, "use $fp as a second small data base")
	var ex9Import = flag.String("ex9-import", "", "preload the ex9 table from file")
	var ex9Export = flag.String("ex9-export", "", "write the ex9 table to file")
	var exportSymbols = flag.String("export-symbols", "", "write a symbol assignment script to file")
	var textBase = flag.String("text-base", "", "address of the first text section")
	var bigEndian = flag.Bool("EB", false, "link big-endian objects")
	var verbose = flag.Bool("v", false, "log progress")
	var dump = flag.Bool("dump", false, "dump the linker state after the link")
	var mapPath = flag.String("map", "", "write a json link map to file")
	var snapshotPath = flag.String("snapshot", "", "write the relaxed objects to file")
	flag.Parse()

	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shared":
			opts.Shared = *shared
		case "Bsymbolic":
			opts.Bsymbolic = *bsymbolic
		case "relax":
			opts.Relax = *relax
		case "ex9":
			opts.Ex9 = *ex9
		case "ifc":
			opts.IFC = *ifc
		case "fp-as-gp":
			opts.FPAsGP = *fpAsGP
		case "ex9-import":
			opts.Ex9Import = *ex9Import
		case "ex9-export":
			opts.Ex9Export = *ex9Export
		case "export-symbols":
			opts.ExportSymbols = *exportSymbols
		case "EB":
			opts.BigEndian = *bigEndian
		case "v":
			opts.Verbose = *verbose
		}
	})
	if *textBase != "" {
		base, err := strconv.ParseUint(*textBase, 0, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -text-base:", err)
			os.Exit(2)
		}
		opts.TextBase = uint32(base)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: nds32ld [flags] object...")
		os.Exit(2)
	}

	objects, err := nds32ld.ReadObjects(flag.Args()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	linker, err := nds32ld.Link(objects, opts)
	linker.Diagnostics().Write(os.Stderr)
	if *dump {
		if derr := linker.Dump(os.Stdout); derr != nil {
			fmt.Fprintln(os.Stderr, derr)
		}
	}
	if *mapPath != "" {
		if merr := NewLinkMap(linker).WriteToFile(*mapPath); merr != nil {
			fmt.Fprintln(os.Stderr, merr)
		}
	}
	if *snapshotPath != "" {
		f, serr := os.Create(*snapshotPath)
		if serr == nil {
			serr = nds32ld.Serialize(objects, f)
			f.Close()
		}
		if serr != nil {
			fmt.Fprintln(os.Stderr, serr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
