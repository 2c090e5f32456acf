package testenv

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/crypto"
)

// Account is a test identity with a deterministic keypair. Using the same
// name always produces the same account, making tests reproducible.
type Account struct {
	// Name is a human-readable identifier for the account.
	Name string

	// Keys is the account's signing keypair.
	Keys *crypto.Keypair

	// ID is the entity id derived from the public key; outputs locked by
	// this account carry it as their address.
	ID ledger.EntityID
}

// NewAccount creates a test account with an ed25519 keypair derived from
// the name.
func NewAccount(name string) *Account {
	return NewAccountWithScheme(name, crypto.SchemeEd25519)
}

// NewAccountWithScheme creates a test account with the given signature
// scheme. The seed is the first 16 bytes of SHA-512(name).
func NewAccountWithScheme(name string, scheme crypto.Scheme) *Account {
	digest := sha512.Sum512([]byte(name))
	keys, err := crypto.KeypairFromSeed(scheme, digest[:crypto.SeedSize])
	if err != nil {
		panic(fmt.Sprintf("testenv: derive %s keypair for account %q: %v", scheme, name, err))
	}
	return &Account{
		Name: name,
		Keys: keys,
		ID:   ledger.EntityIDFromPublicKey(keys.PublicKey()),
	}
}

// Scheme returns the account's signature scheme.
func (a *Account) Scheme() crypto.Scheme {
	return a.Keys.Scheme()
}

// PublicKey returns the encoded public key.
func (a *Account) PublicKey() []byte {
	return a.Keys.PublicKey()
}

// Witness signs the given signing payload and wraps the signature as a
// transaction witness.
func (a *Account) Witness(signingBytes []byte) ledger.Witness {
	sig, err := a.Keys.Sign(signingBytes)
	if err != nil {
		panic(fmt.Sprintf("testenv: sign as account %q: %v", a.Name, err))
	}
	return ledger.Witness{
		Scheme: a.Keys.Scheme(),
		PubKey: a.Keys.PublicKey(),
		Sig:    sig,
	}
}

// IDHex returns the entity id as a hex string.
func (a *Account) IDHex() string {
	return hex.EncodeToString(a.ID[:])
}

// String implements the Stringer interface for debugging.
func (a *Account) String() string {
	return a.Name + " (" + a.ID.String() + ")"
}
