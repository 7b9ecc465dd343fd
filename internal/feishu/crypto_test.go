package feishu

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encryptEvent builds a platform-style envelope: random IV, AES-256-CBC
// with SHA-256 key derivation, PKCS#7 padding.
func encryptEvent(t *testing.T, encryptKey string, plaintext []byte) string {
	t.Helper()

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	iv := make([]byte, aes.BlockSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out)
}

func TestDecryptEventRoundTrip(t *testing.T) {
	plaintext := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	ciphertext := encryptEvent(t, "test-encrypt-key", plaintext)

	got, err := DecryptEvent("test-encrypt-key", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptEventMissingKey(t *testing.T) {
	_, err := DecryptEvent("", "d2hhdGV2ZXI=")
	assert.ErrorIs(t, err, ErrNoEncryptKey)
	assert.NotErrorIs(t, err, ErrDecryptFailed, "missing key and bad payload are distinct kinds")
}

func TestDecryptEventBadBase64(t *testing.T) {
	_, err := DecryptEvent("key", "not *** base64")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptEventTruncatedCiphertext(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	_, err := DecryptEvent("key", short)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptEventWrongKey(t *testing.T) {
	ciphertext := encryptEvent(t, "right-key", []byte(`{"a":1}`))

	// Wrong key either fails padding validation or yields garbage; it must
	// never silently return the original plaintext.
	got, err := DecryptEvent("wrong-key", ciphertext)
	if err == nil {
		assert.NotEqual(t, []byte(`{"a":1}`), got)
	} else {
		assert.ErrorIs(t, err, ErrDecryptFailed)
	}
}
