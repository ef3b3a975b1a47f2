package serialization

import (
	"crypto/sha256"
)

// Checksum returns the SHA-256 of the data section.
func Checksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// verifyChecksum reports ErrChecksumMismatch when data does not hash to stored.
func verifyChecksum(data []byte, stored [ChecksumSize]byte) error {
	if Checksum(data) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
