package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	keyLength = 32 // 32 bytes = 256 bits

	DefaultDevicePrefix = "device"
)

var ErrGeneration = errors.New("credential generation failed")

// Generator produces device keys and ids. The zero value reads from crypto/rand.
type Generator struct {
	Rand io.Reader
}

func (g Generator) reader() io.Reader {
	if g.Rand != nil {
		return g.Rand
	}
	return rand.Reader
}

// GenerateKey returns the standard base64 encoding of 32 random bytes.
func (g Generator) GenerateKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := io.ReadFull(g.reader(), b); err != nil {
		return "", fmt.Errorf("%w: failed to generate random bytes: %v", ErrGeneration, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// GenerateDeviceID returns "<prefix>-<uuid v4>".
func (g Generator) GenerateDeviceID(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultDevicePrefix
	}
	id, err := uuid.NewRandomFromReader(g.reader())
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate device ID: %v", ErrGeneration, err)
	}
	return prefix + "-" + id.String(), nil
}

// GenerateKey generates a key from crypto/rand.
func GenerateKey() (string, error) {
	return Generator{}.GenerateKey()
}

// GenerateDeviceID generates a device id from crypto/rand.
func GenerateDeviceID(prefix string) (string, error) {
	return Generator{}.GenerateDeviceID(prefix)
}
