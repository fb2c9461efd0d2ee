package lib

import "crypto/sha256"

// ContentKey returns the fingerprint used to decide whether two byte
// payloads are the same, for attachment deduplication.
func ContentKey(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}
