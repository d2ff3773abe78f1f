package link

import (
	"bytes"
	"sort"

	"github.com/NetBSD/src-sub063/obj"
)

// mergeInfo maps an input string section onto the deduplicated section
// that replaced it.
type mergeInfo struct {
	into   *obj.Section
	pieces []mergePiece
}

type mergePiece struct {
	in, out, size uint32
}

func (m *mergeInfo) offset(in uint32) uint32 {
	i := sort.Search(len(m.pieces), func(i int) bool {
		return m.pieces[i].in+m.pieces[i].size > in
	})
	if i == len(m.pieces) {
		if i == 0 {
			return 0
		}
		last := m.pieces[i-1]
		return last.out + last.size
	}
	p := m.pieces[i]
	if in < p.in {
		return p.out
	}
	return p.out + (in - p.in)
}

// mergeSections deduplicates the strings of SHF_MERGE|SHF_STRINGS input
// sections sharing a name into one linker section.
func (linker *Linker) mergeSections() {
	if linker.didMerge {
		return
	}
	linker.didMerge = true
	groups := map[string]*obj.Section{}
	pool := map[string]map[string]uint32{}
	for _, o := range linker.Objects {
		if o.Shared {
			continue
		}
		for _, sec := range o.Sections {
			if sec == nil || !sec.IsLoadable() || sec.IsNoBits() || !sec.IsMergeStrings() {
				continue
			}
			into, ok := groups[sec.Name]
			if !ok {
				into = linker.newSection(sec.Name, sec.Type, sec.Flags&^(obj.SHF_MERGE|obj.SHF_STRINGS), sec.AlignPower)
				groups[sec.Name] = into
				pool[sec.Name] = map[string]uint32{}
			}
			if sec.AlignPower > into.AlignPower {
				into.AlignPower = sec.AlignPower
			}
			seen := pool[sec.Name]
			m := &mergeInfo{into: into}
			data := sec.Contents[:sec.Size]
			for start := 0; start < len(data); {
				end := bytes.IndexByte(data[start:], 0)
				if end < 0 {
					end = len(data)
				} else {
					end += start + 1
				}
				str := string(data[start:end])
				out, ok := seen[str]
				if !ok {
					out = uint32(len(into.Contents))
					into.Contents = append(into.Contents, data[start:end]...)
					into.Size = uint32(len(into.Contents))
					seen[str] = out
				}
				m.pieces = append(m.pieces, mergePiece{in: uint32(start), out: out, size: uint32(end - start)})
				start = end
			}
			linker.merged[sec] = m
			linker.log.Printf("merged %s(%s): %d strings", o.Name, sec.Name, len(m.pieces))
		}
	}
}
