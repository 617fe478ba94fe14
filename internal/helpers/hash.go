package helpers

import (
	"crypto/sha256"
	"strings"
)

const base62Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShortID derives a compact base62 tag from the parts. It is used to
// correlate the log lines of a single upstream request.
func ShortID(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// first 4 bytes of the hash as an unsigned integer
	num := uint32(hash[0])<<24 | uint32(hash[1])<<16 | uint32(hash[2])<<8 | uint32(hash[3])

	return base62Encode(num)
}

func base62Encode(num uint32) string {
	if num == 0 {
		return "0"
	}

	var result []byte
	for num > 0 {
		result = append([]byte{base62Charset[num%62]}, result...)
		num /= 62
	}
	return string(result)
}
