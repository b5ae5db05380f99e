package utils

import (
	"crypto/rand"
	"fmt"
	"io"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// largest multiple of len(alphanumeric) that fits in a byte
const alphanumericCutoff = 256 - 256%len(alphanumeric)

// RandomAlphanumeric returns a uniformly distributed alphanumeric string of the given length.
func RandomAlphanumeric(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		for _, b := range buf {
			if int(b) >= alphanumericCutoff {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
