package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wallet-vault/internal/core/domain"

	"golang.org/x/crypto/pbkdf2"
)

// Balance cipher parameters. Keys are derived per wallet: the password
// plus a server-side pepper run through PBKDF2-SHA256 with the wallet's
// random salt. The salt lives in the wallet's encryption metadata, so
// identical passwords never derive identical keys across wallets.
const (
	cipherAlgorithm = "AES-256-GCM"
	cipherKDF       = "PBKDF2-SHA256"
	cipherSaltLen   = 16
	cipherKeyLen    = 32 // AES-256
	minKDFIters     = 100_000

	// ciphertextSeparator splits hex(nonce) from hex(sealed payload).
	ciphertextSeparator = ":"
)

// PBKDF2BalanceCipher implements ports.BalanceCipher.
type PBKDF2BalanceCipher struct {
	pepper     string
	iterations int
	legacySalt []byte // fixed salt of the legacy on-disk layout, decrypt-only
}

// NewPBKDF2BalanceCipher creates the balance cipher. legacySaltHex may be
// empty, which disables the legacy fallback entirely.
func NewPBKDF2BalanceCipher(pepper string, iterations int, legacySaltHex string) (*PBKDF2BalanceCipher, error) {
	if iterations < minKDFIters {
		return nil, fmt.Errorf("KDF iterations must be at least %d, got %d", minKDFIters, iterations)
	}

	var legacySalt []byte
	if legacySaltHex != "" {
		salt, err := hex.DecodeString(legacySaltHex)
		if err != nil {
			return nil, fmt.Errorf("decoding legacy salt: %w", err)
		}
		legacySalt = salt
	}

	return &PBKDF2BalanceCipher{
		pepper:     pepper,
		iterations: iterations,
		legacySalt: legacySalt,
	}, nil
}

// NewMeta draws a fresh random salt for a new wallet.
func (c *PBKDF2BalanceCipher) NewMeta() (*domain.EncryptionMeta, error) {
	salt := make([]byte, cipherSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return &domain.EncryptionMeta{
		Algorithm:  cipherAlgorithm,
		KDF:        cipherKDF,
		Iterations: c.iterations,
		SaltHex:    hex.EncodeToString(salt),
	}, nil
}

// Encrypt serializes the balance as decimal text and seals it under the
// derived key. Each call draws a fresh nonce, so two encryptions of the
// same balance never produce identical ciphertext.
// Layout: hex(nonce) + ":" + hex(sealed).
func (c *PBKDF2BalanceCipher) Encrypt(balance int64, password string, meta *domain.EncryptionMeta) (string, error) {
	if balance < 0 {
		return "", fmt.Errorf("balance must be non-negative, got %d", balance)
	}

	aesGCM, err := c.buildGCM(password, meta)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	plaintext := strconv.FormatInt(balance, 10)
	sealed := aesGCM.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + ciphertextSeparator + hex.EncodeToString(sealed), nil
}

// Decrypt parses the primary layout first and falls back to the legacy
// layout (single hex blob nonce||sealed, fixed salt) only when the
// primary parse fails.
func (c *PBKDF2BalanceCipher) Decrypt(ciphertext string, password string, meta *domain.EncryptionMeta) (int64, error) {
	if strings.Contains(ciphertext, ciphertextSeparator) {
		return c.decryptPrimary(ciphertext, password, meta)
	}
	return c.decryptLegacy(ciphertext, password)
}

func (c *PBKDF2BalanceCipher) decryptPrimary(ciphertext string, password string, meta *domain.EncryptionMeta) (int64, error) {
	parts := strings.SplitN(ciphertext, ciphertextSeparator, 2)

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return 0, fmt.Errorf("decoding nonce: %w", err)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return 0, fmt.Errorf("decoding payload: %w", err)
	}

	aesGCM, err := c.buildGCM(password, meta)
	if err != nil {
		return 0, err
	}
	if len(nonce) != aesGCM.NonceSize() {
		return 0, fmt.Errorf("unrecognized ciphertext layout")
	}

	plaintext, err := aesGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, fmt.Errorf("opening ciphertext: %w", err)
	}

	return parseBalance(string(plaintext))
}

// decryptLegacy handles wallets written before per-wallet salts: the
// same cipher, nonce prepended to the sealed payload in one hex blob,
// key derived from the process-wide legacy salt.
func (c *PBKDF2BalanceCipher) decryptLegacy(ciphertext string, password string) (int64, error) {
	if c.legacySalt == nil {
		return 0, fmt.Errorf("unrecognized ciphertext layout and no legacy salt configured")
	}

	blob, err := hex.DecodeString(ciphertext)
	if err != nil {
		return 0, fmt.Errorf("decoding legacy ciphertext: %w", err)
	}

	aesGCM, err := c.gcmForKey(c.deriveKey(password, c.legacySalt, c.iterations))
	if err != nil {
		return 0, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(blob) < nonceSize {
		return 0, fmt.Errorf("legacy ciphertext too short")
	}

	nonce, sealed := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, fmt.Errorf("opening legacy ciphertext: %w", err)
	}

	return parseBalance(string(plaintext))
}

func (c *PBKDF2BalanceCipher) buildGCM(password string, meta *domain.EncryptionMeta) (cipher.AEAD, error) {
	if meta == nil {
		return nil, fmt.Errorf("encryption metadata missing")
	}
	salt, err := hex.DecodeString(meta.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("decoding wallet salt: %w", err)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("wallet salt is empty")
	}

	iterations := meta.Iterations
	if iterations == 0 {
		iterations = c.iterations
	}

	return c.gcmForKey(c.deriveKey(password, salt, iterations))
}

func (c *PBKDF2BalanceCipher) deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password+c.pepper), salt, iterations, cipherKeyLen, sha256.New)
}

func (c *PBKDF2BalanceCipher) gcmForKey(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aesGCM, nil
}

func parseBalance(plaintext string) (int64, error) {
	balance, err := strconv.ParseInt(plaintext, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing decrypted balance: %w", err)
	}
	if balance < 0 {
		return 0, fmt.Errorf("decrypted balance is negative")
	}
	return balance, nil
}
