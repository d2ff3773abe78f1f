// Package nds32ld links NDS32 relocatable objects: it resolves symbols,
// builds the GOT and PLT, relaxes code sequences into shorter forms and
// patches every relocated field.
package nds32ld

import (
	"fmt"

	"github.com/NetBSD/src-sub063/config"
	"github.com/NetBSD/src-sub063/link"
	"github.com/NetBSD/src-sub063/obj"
)

// Link links objects under opts. The returned linker holds the patched
// sections and the diagnostics even when the link fails.
func Link(objects []*obj.Object, opts *config.Options) (*link.Linker, error) {
	linker := link.NewLinker(opts)
	for _, o := range objects {
		if err := linker.AddObject(o); err != nil {
			return linker, err
		}
	}
	return linker, linker.Link()
}

// ReadObjects reads ELF relocatable objects and shared libraries.
func ReadObjects(paths ...string) ([]*obj.Object, error) {
	objects := make([]*obj.Object, 0, len(paths))
	for _, path := range paths {
		o, err := obj.ReadELFFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		objects = append(objects, o)
	}
	return objects, nil
}
