// Package crypto provides the hashing and signature primitives used across
// stabled: transaction body digests, entity id derivation and witness
// signature checks.
package crypto

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// Hash160Size is the size of an entity identity hash in bytes.
const Hash160Size = 20

// Sha512Half returns the first 32 bytes of the SHA-512 hash of msg.
// It is the canonical digest for transaction bodies and datums.
func Sha512Half(msg []byte) [32]byte {
	h := sha512.Sum512(msg)
	var result [32]byte
	copy(result[:], h[:32])
	return result
}

// Hash160 computes the 160-bit identity hash of a public key as
// RIPEMD160(SHA256(publicKey)).
//
// Chaining two different hashes avoids length extension attacks, and
// RIPEMD160 is the only hash generally considered safe at 160 bits. The
// same derivation is used for every key scheme; the full encoded public
// key, including any scheme prefix, is hashed.
func Hash160(publicKey []byte) [Hash160Size]byte {
	sha := sha256.Sum256(publicKey)

	hasher := ripemd160.New()
	hasher.Write(sha[:])
	sum := hasher.Sum(nil)

	var result [Hash160Size]byte
	copy(result[:], sum)
	return result
}

// DoubleSha256 computes SHA256(SHA256(data)). Used for checksums in
// encoded key material.
func DoubleSha256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
