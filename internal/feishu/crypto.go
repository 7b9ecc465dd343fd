package feishu

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNoEncryptKey means an encrypted event arrived but no encrypt key is
// configured. Kept distinct from ErrDecryptFailed so callers can tell a
// deployment problem from a bad payload, even though both produce the same
// acknowledgment on the wire.
var ErrNoEncryptKey = errors.New("feishu: encrypt key not configured")

// ErrDecryptFailed wraps any failure while decrypting an event envelope.
var ErrDecryptFailed = errors.New("feishu: event decryption failed")

// DecryptEvent opens a Feishu encrypted event envelope: base64 ciphertext,
// AES-256-CBC keyed by SHA-256 of the configured encrypt key, IV in the
// first block, PKCS#7 padding indicated by the final byte.
func DecryptEvent(encryptKey, ciphertext string) ([]byte, error) {
	if encryptKey == "" {
		return nil, ErrNoEncryptKey
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ErrDecryptFailed, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrDecryptFailed, len(raw))
	}

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > len(plain) {
		return nil, fmt.Errorf("%w: bad padding %d", ErrDecryptFailed, pad)
	}
	return plain[:len(plain)-pad], nil
}
