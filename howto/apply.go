package howto

import (
	"encoding/binary"
	"fmt"

	"github.com/NetBSD/src-sub063/diag"
)

func (h *Howto) byteOrder(order binary.ByteOrder) binary.ByteOrder {
	if h.Insn || order == nil {
		return binary.BigEndian
	}
	return order
}

func (h *Howto) inBounds(buf []byte, off uint32) error {
	if uint64(off)+uint64(h.Size) > uint64(len(buf)) {
		return fmt.Errorf("%w: %s at 0x%x, section size 0x%x", diag.ErrOutOfRange, h.Name, off, len(buf))
	}
	return nil
}

func (h *Howto) read(buf []byte, off uint32, order binary.ByteOrder) uint32 {
	switch h.Size {
	case 1:
		return uint32(buf[off])
	case 2:
		return uint32(h.byteOrder(order).Uint16(buf[off:]))
	case 4:
		return h.byteOrder(order).Uint32(buf[off:])
	}
	return 0
}

func (h *Howto) write(buf []byte, off uint32, x uint32, order binary.ByteOrder) {
	switch h.Size {
	case 1:
		buf[off] = byte(x)
	case 2:
		h.byteOrder(order).PutUint16(buf[off:], uint16(x))
	case 4:
		h.byteOrder(order).PutUint32(buf[off:], x)
	}
}

func (h *Howto) signed() bool {
	return h.Overflow == OverflowSigned || h.Overflow == OverflowBitfield
}

// Extract returns the value currently encoded in the field, shifted back
// by RightShift and sign extended for signed kinds.
func (h *Howto) Extract(buf []byte, off uint32, order binary.ByteOrder) int64 {
	if h.Marker || h.Size == 0 || h.inBounds(buf, off) != nil {
		return 0
	}
	field := (h.read(buf, off, order) & h.DstMask) >> h.BitPos
	width := h.BitSize
	if width == 0 || width > 32 {
		width = 32
	}
	var v int64
	if h.signed() && width < 32 {
		shift := 64 - width
		v = int64(uint64(field)<<shift) >> shift
	} else {
		v = int64(field)
	}
	return v << h.RightShift
}

// CheckOverflow reports whether value, before the right shift, fits the
// field under the kind's overflow policy.
func (h *Howto) CheckOverflow(value int64) error {
	if h.Overflow == OverflowNone || h.BitSize == 0 || h.BitSize >= 32 {
		return nil
	}
	shifted := value >> h.RightShift
	switch h.Overflow {
	case OverflowSigned, OverflowBitfield:
		lim := int64(1) << (h.BitSize - 1)
		if shifted < -lim || shifted >= lim {
			return fmt.Errorf("%w: %s value %d does not fit %d signed bits", diag.ErrOverflow, h.Name, value, h.BitSize)
		}
	case OverflowUnsigned:
		if shifted < 0 || shifted>>h.BitSize != 0 {
			return fmt.Errorf("%w: %s value %d does not fit %d unsigned bits", diag.ErrOverflow, h.Name, value, h.BitSize)
		}
	}
	return nil
}

// Apply inserts value into the field at off. For partial-inplace kinds the
// addend already stored in the field is added first. The field is written
// even when the value overflows; the overflow is returned to the caller.
func (h *Howto) Apply(buf []byte, off uint32, value int64, order binary.ByteOrder) error {
	if h.Marker || h.Size == 0 {
		return nil
	}
	if err := h.inBounds(buf, off); err != nil {
		return err
	}
	if h.Special != nil {
		return h.Special(h, buf, off, value, order)
	}
	if h.PartialInplace {
		value += h.Extract(buf, off, order)
	}
	err := h.CheckOverflow(value)
	x := h.read(buf, off, order)
	field := uint32(value>>h.RightShift) << h.BitPos
	x = x&^h.DstMask | field&h.DstMask
	h.write(buf, off, x, order)
	return err
}

// Relocate performs the final-link computation for one field: value is
// S+A, pc the address of the patched place. PC-relative kinds subtract pc.
func Relocate(h *Howto, buf []byte, off uint32, value int64, pc uint32, order binary.ByteOrder) error {
	if h == nil {
		return fmt.Errorf("%w: unknown relocation kind", diag.ErrFatal)
	}
	if h.PCRel {
		value -= int64(pc)
	}
	return h.Apply(buf, off, value, order)
}

func applyULEB128(h *Howto, buf []byte, off uint32, value int64, _ binary.ByteOrder) error {
	_, n := ReadULEB128(buf, off)
	if n == 0 {
		return fmt.Errorf("%w: %s at 0x%x is not a uleb128", diag.ErrOutOfRange, h.Name, off)
	}
	return PutULEB128(buf, off, n, uint64(value))
}

// ReadULEB128 decodes the unsigned LEB128 number at off and returns its
// encoded length, 0 when the buffer ends inside it.
func ReadULEB128(buf []byte, off uint32) (uint64, int) {
	var v uint64
	var shift uint
	for i := int(off); i < len(buf); i++ {
		b := buf[i]
		if shift < 64 {
			v |= uint64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			return v, i - int(off) + 1
		}
	}
	return 0, 0
}

// PutULEB128 writes v as an unsigned LEB128 number padded to exactly n
// bytes.
func PutULEB128(buf []byte, off uint32, n int, v uint64) error {
	if n <= 0 || int(off)+n > len(buf) {
		return fmt.Errorf("%w: uleb128 at 0x%x", diag.ErrOutOfRange, off)
	}
	for i := 0; i < n; i++ {
		b := byte(v & 0x7f)
		v >>= 7
		if i < n-1 {
			b |= 0x80
		}
		buf[int(off)+i] = b
	}
	if v != 0 {
		return fmt.Errorf("%w: uleb128 value does not fit %d bytes", diag.ErrOverflow, n)
	}
	return nil
}
