package lib

import (
	"crypto/sha256"
	"encoding/hex"
)

// AccountTag returns a stable identifier for a server/username pair,
// used to name per-account files (like the processed cache database).
func AccountTag(serverURL, username string) string {
	hasher := sha256.New()
	hasher.Write([]byte(username))
	hasher.Write([]byte(":"))
	hasher.Write([]byte(serverURL))
	hasher.Write([]byte("\n"))
	return hex.EncodeToString(hasher.Sum(nil))
}
