package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const SecretBytes = 32

// GenerateSecret returns SecretBytes random bytes hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
