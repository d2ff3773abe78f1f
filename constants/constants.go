package constants

// well-known symbol names
const (
	SDABaseSymbol = "_SDA_BASE_"
	FPBaseSymbol  = "_FP_BASE_"
	ITBBaseSymbol = "_ITB_BASE_"
	GOTSymbol     = "_GLOBAL_OFFSET_TABLE_"
	DynamicSymbol = "_DYNAMIC"
)

// linker created sections
const (
	GOTSection     = ".got"
	GOTPLTSection  = ".got.plt"
	PLTSection     = ".plt"
	RelaGOTSection = ".rela.got"
	RelaPLTSection = ".rela.plt"
	RelaDynSection = ".rela.dyn"
	RelaBSSSection = ".rela.bss"
	DynBSSSection  = ".dynbss"
	Ex9Section     = ".ex9.itable"
	CommonSection  = ".bss.common"
)

const EmptyString = ``

const InvalidIndex = int(-1)
