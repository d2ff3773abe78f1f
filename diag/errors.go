package diag

import "errors"

// sentinel classes, one per kind of problem a relocation can raise. Every
// Diagnostic unwraps to one of these.
var (
	ErrOutOfRange = errors.New("relocation offset out of range")
	ErrOverflow   = errors.New("relocation truncated to fit")
	ErrUndefined  = errors.New("undefined reference")
	ErrPairing    = errors.New("unrecognized relocation pairing")
	ErrUnaligned  = errors.New("unaligned access")
	ErrFatal      = errors.New("unsupported relocation")
)

// Tag returns the short name used when printing diagnostics of class err.
func Tag(err error) string {
	switch {
	case errors.Is(err, ErrOutOfRange):
		return "range"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrUndefined):
		return "undefined"
	case errors.Is(err, ErrPairing):
		return "pairing"
	case errors.Is(err, ErrUnaligned):
		return "unaligned"
	case errors.Is(err, ErrFatal):
		return "fatal"
	}
	return "link"
}
