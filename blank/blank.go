// Package blank records the byte ranges relaxation deletes from a section
// until the section is compacted.
package blank

import "sort"

// Blank is one deleted range. Before is the total size of every blank
// preceding it in the list.
type Blank struct {
	Offset uint32
	Size   uint32
	Before uint32
}

func (b Blank) End() uint32 {
	return b.Offset + b.Size
}

// List keeps its blanks ascending, non-overlapping and non-adjacent.
type List struct {
	blanks []Blank
}

func (l *List) Len() int {
	return len(l.blanks)
}

func (l *List) Reset() {
	l.blanks = l.blanks[:0]
}

// Insert marks [off, off+size) deleted, merging with any blank it overlaps
// or touches.
func (l *List) Insert(off, size uint32) {
	if size == 0 {
		return
	}
	start, end := off, off+size
	// first blank that ends at or after start
	i := sort.Search(len(l.blanks), func(i int) bool {
		return l.blanks[i].End() >= start
	})
	j := i
	for j < len(l.blanks) && l.blanks[j].Offset <= end {
		if l.blanks[j].Offset < start {
			start = l.blanks[j].Offset
		}
		if l.blanks[j].End() > end {
			end = l.blanks[j].End()
		}
		j++
	}
	merged := Blank{Offset: start, Size: end - start}
	l.blanks = append(l.blanks[:i], append([]Blank{merged}, l.blanks[j:]...)...)
	l.recount(i)
}

func (l *List) recount(from int) {
	var before uint32
	if from > 0 {
		prev := l.blanks[from-1]
		before = prev.Before + prev.Size
	}
	for k := from; k < len(l.blanks); k++ {
		l.blanks[k].Before = before
		before += l.blanks[k].Size
	}
}

// TotalBefore returns how many deleted bytes precede x. A point inside a
// blank counts only the part of that blank below it, so x-TotalBefore(x)
// maps every offset of a blank onto the blank's new position.
func (l *List) TotalBefore(x uint32) uint32 {
	i := sort.Search(len(l.blanks), func(i int) bool {
		return l.blanks[i].Offset >= x
	})
	if i == 0 {
		return 0
	}
	b := l.blanks[i-1]
	d := x - b.Offset
	if d > b.Size {
		d = b.Size
	}
	return b.Before + d
}

// Map returns the offset x moves to once the section is compacted.
func (l *List) Map(x uint32) uint32 {
	return x - l.TotalBefore(x)
}

// Find returns the blank containing x.
func (l *List) Find(x uint32) (Blank, bool) {
	i := sort.Search(len(l.blanks), func(i int) bool {
		return l.blanks[i].End() > x
	})
	if i < len(l.blanks) && l.blanks[i].Offset <= x {
		return l.blanks[i], true
	}
	return Blank{}, false
}

func (l *List) Contains(x uint32) bool {
	_, ok := l.Find(x)
	return ok
}

// Overlaps reports whether any byte of [off, off+size) is deleted.
func (l *List) Overlaps(off, size uint32) bool {
	i := sort.Search(len(l.blanks), func(i int) bool {
		return l.blanks[i].End() > off
	})
	return i < len(l.blanks) && l.blanks[i].Offset < off+size
}

// LastBefore returns the index of the last blank ending at or before x.
func (l *List) LastBefore(x uint32) (int, bool) {
	i := sort.Search(len(l.blanks), func(i int) bool {
		return l.blanks[i].End() > x
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// Trim gives back the last n bytes of blank i and returns the offset of
// the restored bytes. A blank trimmed to nothing is removed.
func (l *List) Trim(i int, n uint32) uint32 {
	b := &l.blanks[i]
	if n > b.Size {
		n = b.Size
	}
	b.Size -= n
	restored := b.Offset + b.Size
	if b.Size == 0 {
		l.blanks = append(l.blanks[:i], l.blanks[i+1:]...)
	}
	l.recount(i)
	return restored
}

// Remove gives back [off, off+size), splitting the blank that holds it.
// Bytes that are not deleted are ignored.
func (l *List) Remove(off, size uint32) {
	end := off + size
	for i := 0; i < len(l.blanks); i++ {
		b := l.blanks[i]
		if b.End() <= off || b.Offset >= end {
			continue
		}
		var keep []Blank
		if b.Offset < off {
			keep = append(keep, Blank{Offset: b.Offset, Size: off - b.Offset})
		}
		if b.End() > end {
			keep = append(keep, Blank{Offset: end, Size: b.End() - end})
		}
		l.blanks = append(l.blanks[:i], append(keep, l.blanks[i+1:]...)...)
		i += len(keep) - 1
	}
	l.recount(0)
}

func (l *List) Total() uint32 {
	if len(l.blanks) == 0 {
		return 0
	}
	last := l.blanks[len(l.blanks)-1]
	return last.Before + last.Size
}

// Each calls fn for every blank in ascending order until fn returns false.
func (l *List) Each(fn func(b Blank) bool) {
	for _, b := range l.blanks {
		if !fn(b) {
			return
		}
	}
}

func (l *List) Blanks() []Blank {
	c := make([]Blank, len(l.blanks))
	copy(c, l.blanks)
	return c
}
