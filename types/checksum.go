package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumLen is the length of a checksum in bytes.
const ChecksumLen = 32

// Checksum identifies module bytes. It is the SHA-256 hash of the bytes as
// they were handed to the estimator, before rewriting.
type Checksum [ChecksumLen]byte

// CreateChecksum computes the checksum of the given module bytes. Empty
// input is a *MalformedModuleError.
func CreateChecksum(code []byte) (Checksum, error) {
	if len(code) == 0 {
		return Checksum{}, &MalformedModuleError{Offset: 0, Reason: "module bytes are empty"}
	}
	return sha256.Sum256(code), nil
}

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}
