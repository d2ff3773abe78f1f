package reloctype

import "strconv"

// copy from binutils include/elf/nds32.h, ordinals are part of the object
// file format and must not change.
const (
	R_NDS32_NONE               = 0
	R_NDS32_16                 = 1
	R_NDS32_32                 = 2
	R_NDS32_20                 = 3
	R_NDS32_9_PCREL            = 4
	R_NDS32_15_PCREL           = 5
	R_NDS32_17_PCREL           = 6
	R_NDS32_25_PCREL           = 7
	R_NDS32_HI20               = 8
	R_NDS32_LO12S3             = 9
	R_NDS32_LO12S2             = 10
	R_NDS32_LO12S1             = 11
	R_NDS32_LO12S0             = 12
	R_NDS32_SDA15S3            = 13
	R_NDS32_SDA15S2            = 14
	R_NDS32_SDA15S1            = 15
	R_NDS32_SDA15S0            = 16
	R_NDS32_GNU_VTINHERIT      = 17
	R_NDS32_GNU_VTENTRY        = 18
	R_NDS32_16_RELA            = 19
	R_NDS32_32_RELA            = 20
	R_NDS32_20_RELA            = 21
	R_NDS32_9_PCREL_RELA       = 22
	R_NDS32_15_PCREL_RELA      = 23
	R_NDS32_17_PCREL_RELA      = 24
	R_NDS32_25_PCREL_RELA      = 25
	R_NDS32_HI20_RELA          = 26
	R_NDS32_LO12S3_RELA        = 27
	R_NDS32_LO12S2_RELA        = 28
	R_NDS32_LO12S1_RELA        = 29
	R_NDS32_LO12S0_RELA        = 30
	R_NDS32_SDA15S3_RELA       = 31
	R_NDS32_SDA15S2_RELA       = 32
	R_NDS32_SDA15S1_RELA       = 33
	R_NDS32_SDA15S0_RELA       = 34
	R_NDS32_RELA_GNU_VTINHERIT = 35
	R_NDS32_RELA_GNU_VTENTRY   = 36
	R_NDS32_GOT20              = 37
	R_NDS32_25_PLTREL          = 38
	R_NDS32_COPY               = 39
	R_NDS32_GLOB_DAT           = 40
	R_NDS32_JMP_SLOT           = 41
	R_NDS32_RELATIVE           = 42
	R_NDS32_GOTOFF             = 43
	R_NDS32_GOTPC20            = 44
	R_NDS32_GOT_HI20           = 45
	R_NDS32_GOT_LO12           = 46
	R_NDS32_GOTPC_HI20         = 47
	R_NDS32_GOTPC_LO12         = 48
	R_NDS32_GOTOFF_HI20        = 49
	R_NDS32_GOTOFF_LO12        = 50
	R_NDS32_INSN16             = 51
	R_NDS32_LABEL              = 52
	R_NDS32_LONGCALL1          = 53
	R_NDS32_LONGCALL2          = 54
	R_NDS32_LONGCALL3          = 55
	R_NDS32_LONGJUMP1          = 56
	R_NDS32_LONGJUMP2          = 57
	R_NDS32_LONGJUMP3          = 58
	R_NDS32_LOADSTORE          = 59
	R_NDS32_9_FIXED_RELA       = 60
	R_NDS32_15_FIXED_RELA      = 61
	R_NDS32_17_FIXED_RELA      = 62
	R_NDS32_25_FIXED_RELA      = 63
	R_NDS32_PLTREL_HI20        = 64
	R_NDS32_PLTREL_LO12        = 65
	R_NDS32_PLT_GOTREL_HI20    = 66
	R_NDS32_PLT_GOTREL_LO12    = 67
	R_NDS32_SDA12S2_DP_RELA    = 68
	R_NDS32_SDA12S2_SP_RELA    = 69
	R_NDS32_LO12S2_DP_RELA     = 70
	R_NDS32_LO12S2_SP_RELA     = 71
	R_NDS32_LO12S0_ORI_RELA    = 72
	R_NDS32_SDA16S3_RELA       = 73
	R_NDS32_SDA17S2_RELA       = 74
	R_NDS32_SDA18S1_RELA       = 75
	R_NDS32_SDA19S0_RELA       = 76
	R_NDS32_DWARF2_OP1_RELA    = 77
	R_NDS32_DWARF2_OP2_RELA    = 78
	R_NDS32_DWARF2_LEB_RELA    = 79
	R_NDS32_UPDATE_TA_RELA     = 80
	R_NDS32_9_PLTREL           = 81
	R_NDS32_PLT_GOTREL_LO20    = 82
	R_NDS32_PLT_GOTREL_LO15    = 83
	R_NDS32_PLT_GOTREL_LO19    = 84
	R_NDS32_GOT_LO15           = 85
	R_NDS32_GOT_LO19           = 86
	R_NDS32_GOTOFF_LO15        = 87
	R_NDS32_GOTOFF_LO19        = 88
	R_NDS32_GOT15S2_RELA       = 89
	R_NDS32_GOT17S2_RELA       = 90
	R_NDS32_5_RELA             = 91
	R_NDS32_10_UPCREL_RELA     = 92
	R_NDS32_SDA_FP7U2_RELA     = 93
	R_NDS32_WORD_9_PCREL_RELA  = 94
	R_NDS32_25_ABS_RELA        = 95
	R_NDS32_17IFC_PCREL_RELA   = 96
	R_NDS32_10IFCU_PCREL_RELA  = 97

	// relocations only used by the relaxation engine, never applied.
	R_NDS32_RELAX_ENTRY        = 192
	R_NDS32_GOT_SUFF           = 193
	R_NDS32_GOTOFF_SUFF        = 194
	R_NDS32_PLT_GOT_SUFF       = 195
	R_NDS32_MULCALL_SUFF       = 196
	R_NDS32_PTR                = 197
	R_NDS32_PTR_COUNT          = 198
	R_NDS32_PTR_RESOLVED       = 199
	R_NDS32_PLTBLOCK           = 200
	R_NDS32_RELAX_REGION_BEGIN = 201
	R_NDS32_RELAX_REGION_END   = 202
	R_NDS32_MINUEND            = 203
	R_NDS32_SUBTRAHEND         = 204
	R_NDS32_DIFF8              = 205
	R_NDS32_DIFF16             = 206
	R_NDS32_DIFF32             = 207
	R_NDS32_DIFF_ULEB128       = 208
	R_NDS32_DATA               = 209
	R_NDS32_TRAN               = 210

	R_NDS32_max = 211
)

// R_NDS32_RELAX_ENTRY addend flags.
const (
	RelaxEntryDisable          = 1 << 31
	RelaxEntryOptimize         = 1 << 30
	RelaxEntryOptimizeForSpace = 1 << 29
	RelaxEntryVerbatim         = 1 << 28
	RelaxEntryEx9              = 1 << 27
	RelaxEntryIFC              = 1 << 26
)

// R_NDS32_RELAX_REGION_BEGIN/END addend flags.
const (
	RegionOmitFP     = 1 << 0
	RegionInnerLoop  = 1 << 1
	RegionNoEx9      = 1 << 2
	RegionFPResolved = 1 << 8
	RegionFPKept     = 1 << 9
)

var names = map[int]string{
	R_NDS32_NONE:               "R_NDS32_NONE",
	R_NDS32_16:                 "R_NDS32_16",
	R_NDS32_32:                 "R_NDS32_32",
	R_NDS32_20:                 "R_NDS32_20",
	R_NDS32_9_PCREL:            "R_NDS32_9_PCREL",
	R_NDS32_15_PCREL:           "R_NDS32_15_PCREL",
	R_NDS32_17_PCREL:           "R_NDS32_17_PCREL",
	R_NDS32_25_PCREL:           "R_NDS32_25_PCREL",
	R_NDS32_HI20:               "R_NDS32_HI20",
	R_NDS32_LO12S3:             "R_NDS32_LO12S3",
	R_NDS32_LO12S2:             "R_NDS32_LO12S2",
	R_NDS32_LO12S1:             "R_NDS32_LO12S1",
	R_NDS32_LO12S0:             "R_NDS32_LO12S0",
	R_NDS32_SDA15S3:            "R_NDS32_SDA15S3",
	R_NDS32_SDA15S2:            "R_NDS32_SDA15S2",
	R_NDS32_SDA15S1:            "R_NDS32_SDA15S1",
	R_NDS32_SDA15S0:            "R_NDS32_SDA15S0",
	R_NDS32_GNU_VTINHERIT:      "R_NDS32_GNU_VTINHERIT",
	R_NDS32_GNU_VTENTRY:        "R_NDS32_GNU_VTENTRY",
	R_NDS32_16_RELA:            "R_NDS32_16_RELA",
	R_NDS32_32_RELA:            "R_NDS32_32_RELA",
	R_NDS32_20_RELA:            "R_NDS32_20_RELA",
	R_NDS32_9_PCREL_RELA:       "R_NDS32_9_PCREL_RELA",
	R_NDS32_15_PCREL_RELA:      "R_NDS32_15_PCREL_RELA",
	R_NDS32_17_PCREL_RELA:      "R_NDS32_17_PCREL_RELA",
	R_NDS32_25_PCREL_RELA:      "R_NDS32_25_PCREL_RELA",
	R_NDS32_HI20_RELA:          "R_NDS32_HI20_RELA",
	R_NDS32_LO12S3_RELA:        "R_NDS32_LO12S3_RELA",
	R_NDS32_LO12S2_RELA:        "R_NDS32_LO12S2_RELA",
	R_NDS32_LO12S1_RELA:        "R_NDS32_LO12S1_RELA",
	R_NDS32_LO12S0_RELA:        "R_NDS32_LO12S0_RELA",
	R_NDS32_SDA15S3_RELA:       "R_NDS32_SDA15S3_RELA",
	R_NDS32_SDA15S2_RELA:       "R_NDS32_SDA15S2_RELA",
	R_NDS32_SDA15S1_RELA:       "R_NDS32_SDA15S1_RELA",
	R_NDS32_SDA15S0_RELA:       "R_NDS32_SDA15S0_RELA",
	R_NDS32_RELA_GNU_VTINHERIT: "R_NDS32_RELA_GNU_VTINHERIT",
	R_NDS32_RELA_GNU_VTENTRY:   "R_NDS32_RELA_GNU_VTENTRY",
	R_NDS32_GOT20:              "R_NDS32_GOT20",
	R_NDS32_25_PLTREL:          "R_NDS32_25_PLTREL",
	R_NDS32_COPY:               "R_NDS32_COPY",
	R_NDS32_GLOB_DAT:           "R_NDS32_GLOB_DAT",
	R_NDS32_JMP_SLOT:           "R_NDS32_JMP_SLOT",
	R_NDS32_RELATIVE:           "R_NDS32_RELATIVE",
	R_NDS32_GOTOFF:             "R_NDS32_GOTOFF",
	R_NDS32_GOTPC20:            "R_NDS32_GOTPC20",
	R_NDS32_GOT_HI20:           "R_NDS32_GOT_HI20",
	R_NDS32_GOT_LO12:           "R_NDS32_GOT_LO12",
	R_NDS32_GOTPC_HI20:         "R_NDS32_GOTPC_HI20",
	R_NDS32_GOTPC_LO12:         "R_NDS32_GOTPC_LO12",
	R_NDS32_GOTOFF_HI20:        "R_NDS32_GOTOFF_HI20",
	R_NDS32_GOTOFF_LO12:        "R_NDS32_GOTOFF_LO12",
	R_NDS32_INSN16:             "R_NDS32_INSN16",
	R_NDS32_LABEL:              "R_NDS32_LABEL",
	R_NDS32_LONGCALL1:          "R_NDS32_LONGCALL1",
	R_NDS32_LONGCALL2:          "R_NDS32_LONGCALL2",
	R_NDS32_LONGCALL3:          "R_NDS32_LONGCALL3",
	R_NDS32_LONGJUMP1:          "R_NDS32_LONGJUMP1",
	R_NDS32_LONGJUMP2:          "R_NDS32_LONGJUMP2",
	R_NDS32_LONGJUMP3:          "R_NDS32_LONGJUMP3",
	R_NDS32_LOADSTORE:          "R_NDS32_LOADSTORE",
	R_NDS32_9_FIXED_RELA:       "R_NDS32_9_FIXED_RELA",
	R_NDS32_15_FIXED_RELA:      "R_NDS32_15_FIXED_RELA",
	R_NDS32_17_FIXED_RELA:      "R_NDS32_17_FIXED_RELA",
	R_NDS32_25_FIXED_RELA:      "R_NDS32_25_FIXED_RELA",
	R_NDS32_PLTREL_HI20:        "R_NDS32_PLTREL_HI20",
	R_NDS32_PLTREL_LO12:        "R_NDS32_PLTREL_LO12",
	R_NDS32_PLT_GOTREL_HI20:    "R_NDS32_PLT_GOTREL_HI20",
	R_NDS32_PLT_GOTREL_LO12:    "R_NDS32_PLT_GOTREL_LO12",
	R_NDS32_SDA12S2_DP_RELA:    "R_NDS32_SDA12S2_DP_RELA",
	R_NDS32_SDA12S2_SP_RELA:    "R_NDS32_SDA12S2_SP_RELA",
	R_NDS32_LO12S2_DP_RELA:     "R_NDS32_LO12S2_DP_RELA",
	R_NDS32_LO12S2_SP_RELA:     "R_NDS32_LO12S2_SP_RELA",
	R_NDS32_LO12S0_ORI_RELA:    "R_NDS32_LO12S0_ORI_RELA",
	R_NDS32_SDA16S3_RELA:       "R_NDS32_SDA16S3_RELA",
	R_NDS32_SDA17S2_RELA:       "R_NDS32_SDA17S2_RELA",
	R_NDS32_SDA18S1_RELA:       "R_NDS32_SDA18S1_RELA",
	R_NDS32_SDA19S0_RELA:       "R_NDS32_SDA19S0_RELA",
	R_NDS32_DWARF2_OP1_RELA:    "R_NDS32_DWARF2_OP1_RELA",
	R_NDS32_DWARF2_OP2_RELA:    "R_NDS32_DWARF2_OP2_RELA",
	R_NDS32_DWARF2_LEB_RELA:    "R_NDS32_DWARF2_LEB_RELA",
	R_NDS32_UPDATE_TA_RELA:     "R_NDS32_UPDATE_TA_RELA",
	R_NDS32_9_PLTREL:           "R_NDS32_9_PLTREL",
	R_NDS32_PLT_GOTREL_LO20:    "R_NDS32_PLT_GOTREL_LO20",
	R_NDS32_PLT_GOTREL_LO15:    "R_NDS32_PLT_GOTREL_LO15",
	R_NDS32_PLT_GOTREL_LO19:    "R_NDS32_PLT_GOTREL_LO19",
	R_NDS32_GOT_LO15:           "R_NDS32_GOT_LO15",
	R_NDS32_GOT_LO19:           "R_NDS32_GOT_LO19",
	R_NDS32_GOTOFF_LO15:        "R_NDS32_GOTOFF_LO15",
	R_NDS32_GOTOFF_LO19:        "R_NDS32_GOTOFF_LO19",
	R_NDS32_GOT15S2_RELA:       "R_NDS32_GOT15S2_RELA",
	R_NDS32_GOT17S2_RELA:       "R_NDS32_GOT17S2_RELA",
	R_NDS32_5_RELA:             "R_NDS32_5_RELA",
	R_NDS32_10_UPCREL_RELA:     "R_NDS32_10_UPCREL_RELA",
	R_NDS32_SDA_FP7U2_RELA:     "R_NDS32_SDA_FP7U2_RELA",
	R_NDS32_WORD_9_PCREL_RELA:  "R_NDS32_WORD_9_PCREL_RELA",
	R_NDS32_25_ABS_RELA:        "R_NDS32_25_ABS_RELA",
	R_NDS32_17IFC_PCREL_RELA:   "R_NDS32_17IFC_PCREL_RELA",
	R_NDS32_10IFCU_PCREL_RELA:  "R_NDS32_10IFCU_PCREL_RELA",
	R_NDS32_RELAX_ENTRY:        "R_NDS32_RELAX_ENTRY",
	R_NDS32_GOT_SUFF:           "R_NDS32_GOT_SUFF",
	R_NDS32_GOTOFF_SUFF:        "R_NDS32_GOTOFF_SUFF",
	R_NDS32_PLT_GOT_SUFF:       "R_NDS32_PLT_GOT_SUFF",
	R_NDS32_MULCALL_SUFF:       "R_NDS32_MULCALL_SUFF",
	R_NDS32_PTR:                "R_NDS32_PTR",
	R_NDS32_PTR_COUNT:          "R_NDS32_PTR_COUNT",
	R_NDS32_PTR_RESOLVED:       "R_NDS32_PTR_RESOLVED",
	R_NDS32_PLTBLOCK:           "R_NDS32_PLTBLOCK",
	R_NDS32_RELAX_REGION_BEGIN: "R_NDS32_RELAX_REGION_BEGIN",
	R_NDS32_RELAX_REGION_END:   "R_NDS32_RELAX_REGION_END",
	R_NDS32_MINUEND:            "R_NDS32_MINUEND",
	R_NDS32_SUBTRAHEND:         "R_NDS32_SUBTRAHEND",
	R_NDS32_DIFF8:              "R_NDS32_DIFF8",
	R_NDS32_DIFF16:             "R_NDS32_DIFF16",
	R_NDS32_DIFF32:             "R_NDS32_DIFF32",
	R_NDS32_DIFF_ULEB128:       "R_NDS32_DIFF_ULEB128",
	R_NDS32_DATA:               "R_NDS32_DATA",
	R_NDS32_TRAN:               "R_NDS32_TRAN",
}

func RelocTypeString(relocType int) string {
	if name, ok := names[relocType]; ok {
		return name
	}
	return "R_NDS32_unknown(" + strconv.Itoa(relocType) + ")"
}

func IsValid(relocType int) bool {
	_, ok := names[relocType]
	return ok
}

// IsRelaxMarker reports the relocations that only steer relaxation and
// never patch section contents.
func IsRelaxMarker(relocType int) bool {
	switch relocType {
	case R_NDS32_INSN16, R_NDS32_LABEL,
		R_NDS32_LONGCALL1, R_NDS32_LONGCALL2, R_NDS32_LONGCALL3,
		R_NDS32_LONGJUMP1, R_NDS32_LONGJUMP2, R_NDS32_LONGJUMP3,
		R_NDS32_LOADSTORE, R_NDS32_UPDATE_TA_RELA:
		return true
	}
	return relocType >= R_NDS32_RELAX_ENTRY && relocType < R_NDS32_max
}

// IsPositionMarker reports the relocations that keep their place when the
// bytes they sit on are deleted: they describe a position, not a field.
func IsPositionMarker(relocType int) bool {
	switch relocType {
	case R_NDS32_LABEL, R_NDS32_RELAX_ENTRY,
		R_NDS32_RELAX_REGION_BEGIN, R_NDS32_RELAX_REGION_END,
		R_NDS32_DATA, R_NDS32_MINUEND, R_NDS32_SUBTRAHEND:
		return true
	}
	return false
}

// IsLegacy reports the pre-RELA kinds whose addend lives in the section
// contents.
func IsLegacy(relocType int) bool {
	return relocType >= R_NDS32_16 && relocType <= R_NDS32_GNU_VTENTRY
}

func IsDiff(relocType int) bool {
	return relocType >= R_NDS32_DIFF8 && relocType <= R_NDS32_DIFF_ULEB128
}

//go:inline
func IsGOT(relocType int) bool {
	switch relocType {
	case R_NDS32_GOT20, R_NDS32_GOT_HI20, R_NDS32_GOT_LO12,
		R_NDS32_GOT_LO15, R_NDS32_GOT_LO19,
		R_NDS32_GOT15S2_RELA, R_NDS32_GOT17S2_RELA:
		return true
	}
	return false
}

//go:inline
func IsGOTOFF(relocType int) bool {
	switch relocType {
	case R_NDS32_GOTOFF, R_NDS32_GOTOFF_HI20, R_NDS32_GOTOFF_LO12,
		R_NDS32_GOTOFF_LO15, R_NDS32_GOTOFF_LO19:
		return true
	}
	return false
}

//go:inline
func IsGOTPC(relocType int) bool {
	return relocType == R_NDS32_GOTPC20 || relocType == R_NDS32_GOTPC_HI20 || relocType == R_NDS32_GOTPC_LO12
}

//go:inline
func IsPLT(relocType int) bool {
	switch relocType {
	case R_NDS32_25_PLTREL, R_NDS32_9_PLTREL,
		R_NDS32_PLTREL_HI20, R_NDS32_PLTREL_LO12:
		return true
	}
	return false
}

//go:inline
func IsPLTGOT(relocType int) bool {
	switch relocType {
	case R_NDS32_PLT_GOTREL_HI20, R_NDS32_PLT_GOTREL_LO12,
		R_NDS32_PLT_GOTREL_LO15, R_NDS32_PLT_GOTREL_LO19, R_NDS32_PLT_GOTREL_LO20:
		return true
	}
	return false
}

// IsSDA reports relocations resolved against the small data base.
func IsSDA(relocType int) bool {
	switch relocType {
	case R_NDS32_SDA15S3, R_NDS32_SDA15S2, R_NDS32_SDA15S1, R_NDS32_SDA15S0,
		R_NDS32_SDA15S3_RELA, R_NDS32_SDA15S2_RELA, R_NDS32_SDA15S1_RELA, R_NDS32_SDA15S0_RELA,
		R_NDS32_SDA12S2_DP_RELA, R_NDS32_SDA12S2_SP_RELA,
		R_NDS32_SDA16S3_RELA, R_NDS32_SDA17S2_RELA, R_NDS32_SDA18S1_RELA, R_NDS32_SDA19S0_RELA:
		return true
	}
	return false
}

// IsHI20 and IsLO12 pair the halves of a sethi/ori style address split.
func IsHI20(relocType int) bool {
	return relocType == R_NDS32_HI20 || relocType == R_NDS32_HI20_RELA
}

func IsLO12(relocType int) bool {
	switch relocType {
	case R_NDS32_LO12S3, R_NDS32_LO12S2, R_NDS32_LO12S1, R_NDS32_LO12S0,
		R_NDS32_LO12S3_RELA, R_NDS32_LO12S2_RELA, R_NDS32_LO12S1_RELA, R_NDS32_LO12S0_RELA,
		R_NDS32_LO12S2_DP_RELA, R_NDS32_LO12S2_SP_RELA, R_NDS32_LO12S0_ORI_RELA:
		return true
	}
	return false
}

// IsPCRel reports kinds whose value is measured from the patched place.
func IsPCRel(relocType int) bool {
	switch relocType {
	case R_NDS32_9_PCREL, R_NDS32_15_PCREL, R_NDS32_17_PCREL, R_NDS32_25_PCREL,
		R_NDS32_9_PCREL_RELA, R_NDS32_15_PCREL_RELA, R_NDS32_17_PCREL_RELA, R_NDS32_25_PCREL_RELA,
		R_NDS32_9_FIXED_RELA, R_NDS32_15_FIXED_RELA, R_NDS32_17_FIXED_RELA, R_NDS32_25_FIXED_RELA,
		R_NDS32_25_PLTREL, R_NDS32_9_PLTREL, R_NDS32_PLTREL_HI20, R_NDS32_PLTREL_LO12,
		R_NDS32_GOTPC20, R_NDS32_GOTPC_HI20, R_NDS32_GOTPC_LO12,
		R_NDS32_10_UPCREL_RELA, R_NDS32_WORD_9_PCREL_RELA,
		R_NDS32_17IFC_PCREL_RELA, R_NDS32_10IFCU_PCREL_RELA:
		return true
	}
	return false
}

func String(relocType int) string { return RelocTypeString(relocType) }
