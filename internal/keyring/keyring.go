// Package keyring derives per-account signing keys from a master seed.
// Private material never leaves this package except as an in-memory key
// handed to the chain client for signing.
package keyring

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Deriver resolves a derivation index to signing material.
type Deriver interface {
	SigningKey(index uint32) (*ecdsa.PrivateKey, error)
	Address(index uint32) (string, error)
}

// Keyring is an HMAC-SHA512 child-key deriver over a master seed. The same
// (seed, index) pair always yields the same key, so deposit addresses are a
// deterministic function of the index.
type Keyring struct {
	seed []byte
}

func New(masterSeedHex string) (*Keyring, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(masterSeedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode master seed: %w", err)
	}
	if len(seed) < 32 {
		return nil, fmt.Errorf("master seed too short: %d bytes", len(seed))
	}
	return &Keyring{seed: seed}, nil
}

func (k *Keyring) SigningKey(index uint32) (*ecdsa.PrivateKey, error) {
	mac := hmac.New(sha512.New, k.seed)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], index)
	mac.Write(buf[:])
	digest := mac.Sum(nil)

	key, err := crypto.ToECDSA(digest[:32])
	if err != nil {
		return nil, fmt.Errorf("derive key for index %d: %w", index, err)
	}
	return key, nil
}

// Address returns the lower-cased hex deposit address for an index.
func (k *Keyring) Address(index uint32) (string, error) {
	key, err := k.SigningKey(index)
	if err != nil {
		return "", err
	}
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), nil
}
