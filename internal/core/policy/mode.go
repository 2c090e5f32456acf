package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/halvalla/stabled/internal/core/datum"
)

// Mode selects which rule set the policy applies. It is the redeemer
// value the submitter attaches for this policy, wired as a small CBOR
// integer.
type Mode int

const (
	// ModeMint creates stablecoins against a newly produced position.
	ModeMint Mode = 0
	// ModeBurn retires stablecoins and releases the consumed position.
	ModeBurn Mode = 1
	// ModeLiquidate seizes an undercollateralized position.
	ModeLiquidate Mode = 2
)

// ErrUnknownMode is returned when parsing an unrecognized mode.
var ErrUnknownMode = errors.New("unknown policy mode")

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeMint:
		return "mint"
	case ModeBurn:
		return "burn"
	case ModeLiquidate:
		return "liquidate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether the mode is one of the three rule sets.
func (m Mode) Valid() bool {
	return m == ModeMint || m == ModeBurn || m == ModeLiquidate
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mint":
		return ModeMint, nil
	case "burn":
		return ModeBurn, nil
	case "liquidate":
		return ModeLiquidate, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Bytes returns the redeemer wire form: the mode as a canonical CBOR
// integer.
func (m Mode) Bytes() ([]byte, error) {
	return datum.Marshal(int(m))
}

// DecodeMode decodes a redeemer payload. The decoded value may still be
// out of range; evaluation maps that to an InvalidMode rejection rather
// than an error, so a malformed redeemer costs the submitter the same as
// any other rejection.
func DecodeMode(raw []byte) (Mode, error) {
	var v int
	if err := datum.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("redeemer does not decode as a mode: %w", err)
	}
	return Mode(v), nil
}
