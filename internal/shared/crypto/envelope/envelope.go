// Package envelope implements the {iv, data} wire wrapper used for encrypted JSON bodies.
//
// Cipher: AES-256-CBC with PKCS#7 padding. The key is the raw bytes of the configured
// secret (no hashing or derivation) so existing clients can interoperate.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialization vector length in bytes.
	IVSize = aes.BlockSize
)

// Envelope is the wire representation of an encrypted payload.
type Envelope struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// DecryptionError reports a malformed or unauthenticated envelope.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt envelope: %s: %v", e.Reason, e.Err)
	}
	return "decrypt envelope: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// ErrKeySize is returned when the configured key is not exactly KeySize bytes.
var ErrKeySize = fmt.Errorf("encryption key must be %d bytes", KeySize)

// Cipher encrypts and decrypts envelopes with a fixed key. Safe for concurrent use.
type Cipher struct {
	block cipher.Block
	rand  io.Reader
}

// New builds a Cipher from raw key material.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a freshly generated IV.
func (c *Cipher) Encrypt(plaintext []byte) (Envelope, error) {
	if c == nil || c.block == nil {
		return Envelope{}, errors.New("envelope cipher not configured")
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Envelope{}, fmt.Errorf("generate iv: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return Envelope{
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(out),
	}, nil
}

// Decrypt opens an envelope, failing with *DecryptionError on any malformed input.
func (c *Cipher) Decrypt(env Envelope) ([]byte, error) {
	if c == nil || c.block == nil {
		return nil, &DecryptionError{Reason: "cipher not configured"}
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, &DecryptionError{Reason: "invalid iv encoding", Err: err}
	}
	if len(iv) != IVSize {
		return nil, &DecryptionError{Reason: fmt.Sprintf("iv must be %d bytes", IVSize)}
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, &DecryptionError{Reason: "invalid data encoding", Err: err}
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, &DecryptionError{Reason: "ciphertext is not a multiple of the block size"}
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, &DecryptionError{Reason: "bad padding", Err: err}
	}
	return plain, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

var errPadding = errors.New("invalid pkcs7 padding")

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, errPadding
		}
	}
	return b[:len(b)-n], nil
}
