package symkind

// ELF symbol binding, type and special section indexes.
const (
	STB_LOCAL  = 0
	STB_GLOBAL = 1
	STB_WEAK   = 2

	STT_NOTYPE  = 0
	STT_OBJECT  = 1
	STT_FUNC    = 2
	STT_SECTION = 3
	STT_FILE    = 4

	STV_DEFAULT   = 0
	STV_INTERNAL  = 1
	STV_HIDDEN    = 2
	STV_PROTECTED = 3

	SHN_UNDEF  = 0
	SHN_ABS    = 0xfff1
	SHN_COMMON = 0xfff2
)

// link-wide resolution state of a global symbol
const (
	Undefined = iota
	UndefWeak
	Defined
	DefWeak
	Common
	Indirect
	// defined by a shared library, address known only at run time
	Dynamic
)

var kindNames = [...]string{
	Undefined: "undefined",
	UndefWeak: "undefweak",
	Defined:   "defined",
	DefWeak:   "defweak",
	Common:    "common",
	Indirect:  "indirect",
	Dynamic:   "dynamic",
}

func KindString(kind int) string {
	if kind >= 0 && kind < len(kindNames) {
		return kindNames[kind]
	}
	return "unknown"
}

//go:inline
func IsDefined(kind int) bool {
	return kind == Defined || kind == DefWeak || kind == Common
}

//go:inline
func IsUndefined(kind int) bool {
	return kind == Undefined || kind == UndefWeak
}

//go:inline
func IsWeak(kind int) bool {
	return kind == UndefWeak || kind == DefWeak
}

// Rank orders definitions: a higher rank replaces a lower one when two
// objects define the same name.
func Rank(kind int) int {
	switch kind {
	case Defined:
		return 4
	case DefWeak:
		return 3
	case Common:
		return 2
	case Dynamic:
		return 1
	}
	return 0
}
