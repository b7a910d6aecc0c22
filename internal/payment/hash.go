package payment

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHash = errors.New("invalid payment hash")

// Hasher produces the gateway's integrity token: the pipe-joined fields
// encrypted with AES-256-CBC under a key derived from the app secret and a
// random salt, bundled as "iv:salt:ciphertext" with '/' escaped as "__".
type Hasher struct {
	appSecret string
	random    func() string
}

func NewHasher(appSecret string) *Hasher {
	return &Hasher{appSecret: appSecret, random: randomSeed}
}

// WithRandom fixes the seed source used for the IV and salt.
func (h *Hasher) WithRandom(random func() string) *Hasher {
	h.random = random
	return h
}

// PaymentHash signs a 3D payment form.
func (h *Hasher) PaymentHash(total, installments, currency, merchantKey, invoiceID string) (string, error) {
	return h.Encrypt(total, installments, currency, merchantKey, invoiceID)
}

// RefundHash signs a refund request.
func (h *Hasher) RefundHash(amount, invoiceID, merchantKey string) (string, error) {
	return h.Encrypt(amount, invoiceID, merchantKey)
}

// Encrypt builds a hash bundle over fields.
func (h *Hasher) Encrypt(fields ...string) (string, error) {
	data := strings.Join(fields, "|")

	iv := sha1Hex(h.random())[:16]
	salt := sha1Hex(h.random())[:4]
	key := h.deriveKey(salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := pkcs7Pad([]byte(data), aes.BlockSize)
	encrypted := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(encrypted, plain)

	bundle := iv + ":" + salt + ":" + base64.StdEncoding.EncodeToString(encrypted)
	return strings.ReplaceAll(bundle, "/", "__"), nil
}

// Decrypt reverses Encrypt and returns the original fields.
func (h *Hasher) Decrypt(hashKey string) ([]string, error) {
	bundle := strings.ReplaceAll(hashKey, "__", "/")
	parts := strings.SplitN(bundle, ":", 3)
	if len(parts) != 3 || len(parts[0]) != aes.BlockSize {
		return nil, fmt.Errorf("%w: malformed bundle", ErrInvalidHash)
	}
	iv, salt, payload := parts[0], parts[1], parts[2]

	encrypted, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad ciphertext length", ErrInvalidHash)
	}

	block, err := aes.NewCipher(h.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(plain, encrypted)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(plain), "|"), nil
}

// deriveKey is the first 32 hex chars of sha256(sha1(secret) + salt), used
// as raw key bytes.
func (h *Hasher) deriveKey(salt string) []byte {
	password := sha1Hex(h.appSecret)
	return []byte(sha256Hex(password + salt)[:32])
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidHash)
	}
	padding := int(data[n-1])
	if padding == 0 || padding > blockSize || padding > n {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidHash)
	}
	for _, b := range data[n-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidHash)
		}
	}
	return data[:n-padding], nil
}

func randomSeed() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}
