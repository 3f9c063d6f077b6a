package signature

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"golang.org/x/crypto/sha3"
)

const (
	functionSelectorSize = 4
	eventSelectorSize    = 32
)

// Map hex selector to canonical signature, read-only once built
type Map map[string]string

// Lookup resolves a selector; unknown selectors are not an error
func (m Map) Lookup(selector string) (string, bool) {
	sig, ok := m[strings.ToLower(selector)]
	return sig, ok
}

// LookupPtr is Lookup returning nil for unknown selectors
func (m Map) LookupPtr(selector string) *string {
	sig, ok := m.Lookup(selector)
	if !ok {
		return nil
	}
	return &sig
}

// buildMaps indexes every function and event of a parsed ABI by selector
func buildMaps(parsed abi.ABI) (Map, Map) {
	functions := make(Map, len(parsed.Methods))
	for _, method := range parsed.Methods {
		functions[keccakHex(method.Sig, functionSelectorSize)] = method.Sig
	}

	events := make(Map, len(parsed.Events))
	for _, event := range parsed.Events {
		events[keccakHex(event.Sig, eventSelectorSize)] = event.Sig
	}
	return functions, events
}

// keccakHex returns the 0x-prefixed first size bytes of keccak256(sig)
func keccakHex(sig string, size int) string {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(sig))
	sum := hash.Sum(nil)
	return "0x" + hex.EncodeToString(sum[:size])
}
