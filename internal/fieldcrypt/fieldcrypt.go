// Package fieldcrypt applies reversible encryption to individual text fields before they are persisted.
package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const prefix = "enc:v1:"

var (
	ErrEmptySecret      = errors.New("encryption secret is empty")
	ErrMalformedPayload = errors.New("malformed encrypted payload")
)

// FallbackFunc observes a field that could not be decrypted and was returned raw.
type FallbackFunc func(stored string, err error)

type Cipher struct {
	aead       cipher.AEAD
	logger     *zap.Logger
	onFallback FallbackFunc
	fallbacks  atomic.Int64
}

type Option func(*Cipher)

func WithFallbackHook(fn FallbackFunc) Option {
	return func(c *Cipher) {
		c.onFallback = fn
	}
}

func New(secret string, logger *zap.Logger, opts ...Option) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte("go_pos/fieldcrypt"), []byte("field-encryption"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cipher{aead: aead, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt leaves empty strings untouched so optional fields stay empty.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// MustEncrypt is Encrypt for call sites that cannot do anything useful with a
// nonce failure; the plain value is kept rather than dropping the field.
func (c *Cipher) MustEncrypt(plain string) string {
	out, err := c.Encrypt(plain)
	if err != nil {
		c.logger.Error("field encryption failed", zap.Error(err))
		return plain
	}
	return out
}

// Decrypt never fails. Values written before encryption was enabled pass through
// as-is; undecryptable payloads are returned raw and reported.
func (c *Cipher) Decrypt(stored string) string {
	if !strings.HasPrefix(stored, prefix) {
		return stored
	}

	plain, err := c.open(stored)
	if err != nil {
		c.reportFallback(stored, err)
		return stored
	}
	return plain
}

// DecryptNumber decrypts a numeric field, returning def when the value is not a number.
func (c *Cipher) DecryptNumber(stored string, def float64) float64 {
	if stored == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Decrypt(stored)), 64)
	if err != nil {
		return def
	}
	return v
}

// Fallbacks is the number of fields returned raw since the cipher was created.
func (c *Cipher) Fallbacks() int64 {
	return c.fallbacks.Load()
}

func (c *Cipher) open(stored string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrMalformedPayload
	}

	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open payload: %w", err)
	}
	return string(plain), nil
}

func (c *Cipher) reportFallback(stored string, err error) {
	c.fallbacks.Add(1)
	c.logger.Warn("field decryption failed, using stored value",
		zap.Int("length", len(stored)),
		zap.Error(err))
	if c.onFallback != nil {
		c.onFallback(stored, err)
	}
}
