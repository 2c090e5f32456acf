package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Scheme identifies the signature scheme of a witness public key.
type Scheme int

const (
	// SchemeSecp256k1 is ECDSA over secp256k1 with DER signatures.
	SchemeSecp256k1 Scheme = iota
	// SchemeEd25519 is Ed25519 with raw 64-byte signatures.
	SchemeEd25519
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeSecp256k1:
		return "secp256k1"
	case SchemeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// ParseScheme parses a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "secp256k1":
		return SchemeSecp256k1, nil
	case "ed25519":
		return SchemeEd25519, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// SeedSize is the minimum seed length accepted for deterministic key
// derivation.
const SeedSize = 16

var (
	// ErrInvalidSeed is returned when a key seed is too short.
	ErrInvalidSeed = errors.New("seed must be at least 16 bytes")
	// ErrUnknownScheme is returned for an unrecognized signature scheme.
	ErrUnknownScheme = errors.New("unknown signature scheme")
	// ErrSignatureFailed is returned when signing fails.
	ErrSignatureFailed = errors.New("failed to sign message")
)

// Keypair holds a signing key for one of the supported schemes.
type Keypair struct {
	scheme Scheme
	secp   *btcec.PrivateKey
	ed     ed25519.PrivateKey
}

// NewKeypair generates a fresh random keypair for the given scheme.
func NewKeypair(scheme Scheme) (*Keypair, error) {
	switch scheme {
	case SchemeSecp256k1:
		priv, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
		}
		return &Keypair{scheme: scheme, secp: priv}, nil
	case SchemeEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		return &Keypair{scheme: scheme, ed: priv}, nil
	default:
		return nil, ErrUnknownScheme
	}
}

// KeypairFromSeed derives a keypair deterministically from a seed of at
// least SeedSize bytes. The private scalar is the first 32 bytes of
// SHA-512(seed), so equal seeds always yield equal keys.
func KeypairFromSeed(scheme Scheme, seed []byte) (*Keypair, error) {
	if len(seed) < SeedSize {
		return nil, ErrInvalidSeed
	}

	digest := sha512.Sum512(seed)
	material := digest[:32]
	defer Wipe(material)

	switch scheme {
	case SchemeSecp256k1:
		priv, _ := btcec.PrivKeyFromBytes(material)
		if priv == nil {
			return nil, ErrInvalidSeed
		}
		return &Keypair{scheme: scheme, secp: priv}, nil
	case SchemeEd25519:
		return &Keypair{scheme: scheme, ed: ed25519.NewKeyFromSeed(material)}, nil
	default:
		return nil, ErrUnknownScheme
	}
}

// RandomSeed generates a random seed suitable for KeypairFromSeed.
func RandomSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("failed to generate random seed: %w", err)
	}
	return seed, nil
}

// Scheme returns the keypair's signature scheme.
func (k *Keypair) Scheme() Scheme {
	return k.scheme
}

// PublicKey returns the encoded public key: the 33-byte compressed SEC
// form for secp256k1, the raw 32 bytes for ed25519.
func (k *Keypair) PublicKey() []byte {
	switch k.scheme {
	case SchemeSecp256k1:
		return k.secp.PubKey().SerializeCompressed()
	case SchemeEd25519:
		pub := make([]byte, ed25519.PublicKeySize)
		copy(pub, k.ed.Public().(ed25519.PublicKey))
		return pub
	default:
		return nil
	}
}

// EntityID returns the 20-byte identity hash of the keypair's public key.
func (k *Keypair) EntityID() [Hash160Size]byte {
	return Hash160(k.PublicKey())
}

// Sign signs message with the keypair's private key. secp256k1 signatures
// are DER-encoded ECDSA over Sha512Half(message); ed25519 signs the raw
// message.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	switch k.scheme {
	case SchemeSecp256k1:
		digest := Sha512Half(message)
		sig := ecdsa.Sign(k.secp, digest[:])
		if sig == nil {
			return nil, ErrSignatureFailed
		}
		return sig.Serialize(), nil
	case SchemeEd25519:
		return ed25519.Sign(k.ed, message), nil
	default:
		return nil, ErrUnknownScheme
	}
}

// Verify reports whether signature is valid for message under publicKey.
// Malformed keys or signatures report false rather than erroring: a
// witness that cannot be parsed is simply not a valid witness.
func Verify(scheme Scheme, publicKey, message, signature []byte) bool {
	switch scheme {
	case SchemeSecp256k1:
		pub, err := btcec.ParsePubKey(publicKey)
		if err != nil {
			return false
		}
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false
		}
		digest := Sha512Half(message)
		return sig.Verify(digest[:], pub)
	case SchemeEd25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
	default:
		return false
	}
}

// Wipe overwrites b with zeros. Remnants may survive in registers or
// caches; this only narrows the window for key material in heap dumps.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
