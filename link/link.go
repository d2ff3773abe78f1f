package link

import (
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/NetBSD/src-sub063/obj"
)

// Link runs every phase over the added objects: reference scan, dynamic
// section sizing, layout, relaxation, relocation, dynamic section fill
// and the optional export files. It fails when any diagnostic of Error
// severity was raised.
func (linker *Linker) Link() error {
	span := opentracing.StartSpan("nds32ld.link")
	defer span.Finish()
	span.SetTag("objects", len(linker.Objects))
	span.SetTag("shared", linker.Options.Shared)

	if err := linker.Options.Validate(); err != nil {
		return err
	}
	if path := linker.Options.Ex9Import; path != "" && linker.Options.Ex9 {
		if err := readFile(path, linker.ImportEx9); err != nil {
			return fmt.Errorf("import ex9 table %s: %w", path, err)
		}
	}

	phases := []struct {
		name string
		run  func() error
	}{
		{"check", linker.CheckRelocs},
		{"size", linker.SizeDynamicSections},
		{"layout", linker.Layout},
		{"relax", linker.Relax},
		{"layout", linker.Layout},
		{"relocate", linker.RelocateAll},
		{"finish", linker.FinishDynamic},
	}
	for _, phase := range phases {
		child := opentracing.StartSpan("nds32ld."+phase.name, opentracing.ChildOf(span.Context()))
		err := phase.run()
		child.Finish()
		if err != nil {
			span.SetTag("error", true)
			return fmt.Errorf("%s: %w", phase.name, err)
		}
	}

	if path := linker.Options.ExportSymbols; path != "" {
		if err := writeFile(path, linker.ExportSymbols); err != nil {
			return fmt.Errorf("export symbols %s: %w", path, err)
		}
	}
	if path := linker.Options.Ex9Export; path != "" && linker.ex9tab != nil {
		if err := writeFile(path, linker.ExportEx9); err != nil {
			return fmt.Errorf("export ex9 table %s: %w", path, err)
		}
	}

	if n := linker.diags.ErrorCount(); n > 0 {
		span.SetTag("error", true)
		if errs := linker.diags.Errors(); len(errs) > 0 {
			return fmt.Errorf("link failed with %d errors, first: %w", n, errs[0])
		}
		return fmt.Errorf("link failed with %d errors", n)
	}
	return nil
}

// sectionOwners maps every section to the name of its object.
func (linker *Linker) sectionOwners() map[*obj.Section]string {
	owners := make(map[*obj.Section]string)
	for _, o := range append(append([]*obj.Object{}, linker.Objects...), linker.dynobj) {
		for _, sec := range o.Sections {
			if sec != nil {
				owners[sec] = o.Name
			}
		}
	}
	return owners
}
