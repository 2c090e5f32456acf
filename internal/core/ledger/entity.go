// Package ledger defines the UTxO data model the policy evaluates against:
// entity identities, multi-asset values, outputs, transactions and the
// resolved transaction context.
package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/halvalla/stabled/internal/crypto"
)

// EntityIDSize is the size of an entity identity in bytes.
const EntityIDSize = crypto.Hash160Size

// EntityID is a 160-bit ledger identity, the Hash160 of a public key or
// script. Outputs are locked by entity ids and witnesses resolve to them.
// The zero value identifies nothing and is invalid wherever an entity is
// required.
type EntityID [EntityIDSize]byte

// PolicyID is the 160-bit identity of a minting policy, derived the same
// way as an EntityID. It scopes asset classes: two policies can issue
// assets with the same token name without colliding.
type PolicyID [EntityIDSize]byte

var errBadEntityHex = errors.New("entity id must be 40 hex characters")

// EntityIDFromPublicKey derives the entity id of an encoded public key.
func EntityIDFromPublicKey(publicKey []byte) EntityID {
	return EntityID(crypto.Hash160(publicKey))
}

// EntityIDFromHex parses a 40-character hex entity id.
func EntityIDFromHex(s string) (EntityID, error) {
	var id EntityID
	if err := decodeHex20(s, id[:]); err != nil {
		return EntityID{}, err
	}
	return id, nil
}

// PolicyIDFromHex parses a 40-character hex policy id.
func PolicyIDFromHex(s string) (PolicyID, error) {
	var id PolicyID
	if err := decodeHex20(s, id[:]); err != nil {
		return PolicyID{}, err
	}
	return id, nil
}

func decodeHex20(s string, dst []byte) error {
	if len(s) != 2*EntityIDSize {
		return errBadEntityHex
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid entity id hex: %w", err)
	}
	copy(dst, raw)
	return nil
}

// String returns the lowercase hex form.
func (e EntityID) String() string {
	return hex.EncodeToString(e[:])
}

// IsZero reports whether the id is all zeros.
func (e EntityID) IsZero() bool {
	return e == EntityID{}
}

// String returns the lowercase hex form.
func (p PolicyID) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether the id is all zeros.
func (p PolicyID) IsZero() bool {
	return p == PolicyID{}
}
