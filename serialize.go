package nds32ld

import (
	"encoding/gob"
	"io"

	"github.com/NetBSD/src-sub063/obj"
)

// snapshot is the gob form of a set of objects. gob rejects nil slice
// elements, so the null section and symbol are stored as empty values.
type snapshot struct {
	Objects []*obj.Object
}

func Serialize(objects []*obj.Object, writer io.Writer) error {
	snap := snapshot{Objects: make([]*obj.Object, len(objects))}
	for n, o := range objects {
		c := *o
		c.Sections = append([]*obj.Section(nil), o.Sections...)
		for i, sec := range c.Sections {
			if sec == nil {
				c.Sections[i] = &obj.Section{}
			}
		}
		c.Symbols = append([]*obj.Symbol(nil), o.Symbols...)
		for i, sym := range c.Symbols {
			if sym == nil {
				c.Symbols[i] = &obj.Symbol{}
			}
		}
		snap.Objects[n] = &c
	}
	encoder := gob.NewEncoder(writer)
	err := encoder.Encode(snap)
	if err != nil {
		return err
	}
	return nil
}

func UnSerialize(reader io.Reader) ([]*obj.Object, error) {
	var snap snapshot
	decoder := gob.NewDecoder(reader)
	err := decoder.Decode(&snap)
	if err != nil {
		return nil, err
	}
	return snap.Objects, nil
}
