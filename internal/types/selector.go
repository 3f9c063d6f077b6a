package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SelectorLength number of input bytes that identify a function call
const SelectorLength = 4

// Selector lower-case 0x-prefixed hex of the first 4 bytes of call input
type Selector string

// EmptySelector marks input too short to carry a selector (value transfer or fallback call)
const EmptySelector Selector = "0x"

// SelectorFromInput derives the selector of raw call input
func SelectorFromInput(input []byte) Selector {
	if len(input) < SelectorLength {
		return EmptySelector
	}
	return Selector(hexutil.Encode(input[:SelectorLength]))
}

// SelectorFromHex derives the selector of hex encoded call input.
// Malformed hex yields EmptySelector.
func SelectorFromHex(input string) Selector {
	raw, err := hexutil.Decode(normalizeHex(input))
	if err != nil {
		return EmptySelector
	}
	return SelectorFromInput(raw)
}

// IsEmpty reports whether s is the sentinel selector
func (s Selector) IsEmpty() bool {
	return s == EmptySelector || s == ""
}

func (s Selector) String() string {
	return string(s)
}

// HasEmptyInput reports whether hex encoded call input carries no bytes
func HasEmptyInput(input string) bool {
	trimmed := strings.TrimSpace(input)
	return trimmed == "" || trimmed == "0x" || trimmed == "0X"
}

// ParseAddress parses a hex chain address
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseHash parses a 0x-prefixed 32-byte transaction hash
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return common.BytesToHash(raw), nil
}

func normalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}
