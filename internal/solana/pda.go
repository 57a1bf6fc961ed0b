package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program ids.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	PumpFunProgramID         = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

const (
	// PublicKeyLength is the size of an ed25519 public key.
	PublicKeyLength = 32
	maxSeedLength   = 32
	maxSeeds        = 16
	pdaMarker       = "ProgramDerivedAddress"
)

// PDA derivation errors
var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSeeds     = errors.New("invalid seeds")
	ErrNoViableBump     = errors.New("no viable bump seed")
)

// DecodePublicKey decodes a base58 public key.
func DecodePublicKey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPublicKey, s, err)
	}
	if len(b) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrInvalidPublicKey, s, len(b))
	}
	return b, nil
}

// FindProgramAddress derives a Program Derived Address.
// The bump is searched from 255 down to 0 and the first hash that is not a
// valid ed25519 point wins.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := DecodePublicKey(programID)
	if err != nil {
		return "", 0, err
	}
	if len(seeds) >= maxSeeds {
		return "", 0, fmt.Errorf("%w: %d seeds", ErrInvalidSeeds, len(seeds))
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return "", 0, fmt.Errorf("%w: seed of %d bytes", ErrInvalidSeeds, len(seed))
		}
	}

	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 32*len(seeds)+1+PublicKeyLength+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, program...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)

		// Check if point is off the ed25519 curve
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}
	return "", 0, ErrNoViableBump
}

// AssociatedTokenAddress returns the associated token account of owner for mint.
// Seeds: [owner, token_program, mint] under the associated token program.
func AssociatedTokenAddress(owner, mint, tokenProgram string) (string, error) {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}
	ownerKey, err := DecodePublicKey(owner)
	if err != nil {
		return "", err
	}
	mintKey, err := DecodePublicKey(mint)
	if err != nil {
		return "", err
	}
	programKey, err := DecodePublicKey(tokenProgram)
	if err != nil {
		return "", err
	}

	addr, _, err := FindProgramAddress([][]byte{ownerKey, programKey, mintKey}, AssociatedTokenProgramID)
	if err != nil {
		return "", fmt.Errorf("associated token address: %w", err)
	}
	return addr, nil
}

// BondingCurveAddress returns the pump.fun bonding curve account of mint.
func BondingCurveAddress(mint string) (string, error) {
	mintKey, err := DecodePublicKey(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mintKey}, PumpFunProgramID)
	if err != nil {
		return "", fmt.Errorf("bonding curve address: %w", err)
	}
	return addr, nil
}

// IsOnCurve reports whether a base58 key is a valid ed25519 point.
func IsOnCurve(key string) bool {
	b, err := DecodePublicKey(key)
	if err != nil {
		return false
	}
	return isOnCurve(b)
}

func isOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
