package proxy

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// EIP-1167 runtime code layout:
//
//	363d3d373d3d3d363d | PUSHn <n address bytes> | 5af43d82803e903d91602b | 57fd5bf3
//	prefix               implementation           delegatecall body        suffix
var (
	minimalProxyPrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d}
	minimalProxySuffix = []byte{0x57, 0xfd, 0x5b, 0xf3}
)

const (
	// opPush0 is one below PUSH1, so PUSHn = opPush0 + n
	opPush0 = 0x5f

	minAddressLength = 1
	maxAddressLength = common.AddressLength

	// delegatecall and returndata copy between the address and the suffix
	minimalProxyBodyLength = 11
)

// ParseMinimalProxy extracts the implementation address of EIP-1167 runtime code.
// ok is false on any layout mismatch or a zero implementation.
func ParseMinimalProxy(code []byte) (common.Address, bool) {
	if !bytes.HasPrefix(code, minimalProxyPrefix) {
		return common.Address{}, false
	}
	offset := len(minimalProxyPrefix)

	if len(code) <= offset {
		return common.Address{}, false
	}
	addressLength := int(code[offset]) - opPush0
	if addressLength < minAddressLength || addressLength > maxAddressLength {
		return common.Address{}, false
	}
	offset++

	addressEnd := offset + addressLength
	suffixStart := addressEnd + minimalProxyBodyLength
	suffixEnd := suffixStart + len(minimalProxySuffix)
	if len(code) < suffixEnd {
		return common.Address{}, false
	}
	if !bytes.Equal(code[suffixStart:suffixEnd], minimalProxySuffix) {
		return common.Address{}, false
	}

	implementation := common.BytesToAddress(code[offset:addressEnd])
	if implementation == (common.Address{}) {
		return common.Address{}, false
	}
	return implementation, true
}
