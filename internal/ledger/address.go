package ledger

import "crypto/sha256"

const pdaMarker = "ProgramDerivedAddress"

// DeriveBotAddress returns the address of the bot record owned by owner
// under programID. Each owner has exactly one bot address.
func DeriveBotAddress(programID, owner Identity) Identity {
	h := sha256.New()
	h.Write([]byte("bot"))
	h.Write(owner[:])
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr Identity
	copy(addr[:], h.Sum(nil))
	return addr
}

// accountStorageOverhead is the per-account metadata charged for on top of data.
const accountStorageOverhead = 128

// RentExemptMinimum is the balance an account holding dataLen bytes must keep
// to be exempt from rent: two years of storage at lamportsPerByteYear.
func RentExemptMinimum(dataLen int, lamportsPerByteYear uint64) uint64 {
	return uint64(dataLen+accountStorageOverhead) * lamportsPerByteYear * 2
}
