package constants

// size
const (
	InsnSize = 4

	GOTEntrySize    = 4
	GOTReserved     = 3
	GOTHeaderSize   = GOTReserved * GOTEntrySize
	PLTEntrySize    = 24
	RelaSize        = 12
	SDABaseAlign    = 8
	FPWindowWidth   = 512
	FPThreshold     = 3
	Ex9MinUses      = 3
	Ex9MaxEntries   = 512
	Ex9SentinelSlot = 234
	IFCMaxDistance  = 1022
)
