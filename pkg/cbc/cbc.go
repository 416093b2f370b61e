// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cbc implements the symmetric cipher used to seal signature claims.
//
// Claims are encrypted with AES-128 in CBC mode with PKCS#7 padding.
package cbc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
)

// KeySize is the required key length in bytes.
const KeySize = 16

// IVSize is the required initialization vector length in bytes.
const IVSize = aes.BlockSize

var (
	// ErrInvalidKeyLength is returned when the key is not KeySize bytes long.
	ErrInvalidKeyLength = errors.New("key must be 16 bytes")

	// ErrInvalidIVLength is returned when the IV is not IVSize bytes long.
	ErrInvalidIVLength = errors.New("iv must be 16 bytes")

	// ErrDecryptionFailed is returned when the ciphertext can't be decrypted with the given key and IV.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// ValidateKey checks the key length.
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	return nil
}

// Seal encrypts the plaintext.
func Seal(plaintext, key, iv []byte) ([]byte, error) {
	mode, err := newMode(key, iv, cipher.NewCBCEncrypter)
	if err != nil {
		return nil, err
	}

	padded := pad(plaintext)
	out := make([]byte, len(padded))

	mode.CryptBlocks(out, padded)

	return out, nil
}

// Open decrypts the ciphertext produced by Seal.
//
// A wrong key, a wrong IV or a corrupted ciphertext result in ErrDecryptionFailed.
func Open(ciphertext, key, iv []byte) ([]byte, error) {
	mode, err := newMode(key, iv, cipher.NewCBCDecrypter)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryptionFailed)
	}

	out := make([]byte, len(ciphertext))

	mode.CryptBlocks(out, ciphertext)

	return unpad(out)
}

func newMode(key, iv []byte, fn func(cipher.Block, []byte) cipher.BlockMode) (cipher.BlockMode, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIVLength, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return fn(block, iv), nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize

	out := make([]byte, len(data)+n)
	copy(out, data)

	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}

	return out
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, ErrDecryptionFailed
	}

	// compare every padding byte, not just until the first mismatch
	good := 1

	for _, b := range data[len(data)-n:] {
		good &= subtle.ConstantTimeByteEq(b, byte(n))
	}

	if good != 1 {
		return nil, ErrDecryptionFailed
	}

	return data[:len(data)-n], nil
}
