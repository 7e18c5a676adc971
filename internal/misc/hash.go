package misc

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// SumSHA256 returns the hex SHA-256 of value followed by key. value is not
// modified.
func SumSHA256(value []byte, key string) string {
	h := sha256.New()
	h.Write(value)
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}
