package types

import "errors"

var (
	// ErrInvalidAddress address string cannot be parsed as a chain address
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidHash hash string is not a 32-byte hex value
	ErrInvalidHash = errors.New("invalid transaction hash")
	// ErrNotFound transaction, block or receipt is unknown to the node
	ErrNotFound = errors.New("not found")
	// ErrSignatureLookupFailed verified ABI could not be obtained for a contract
	ErrSignatureLookupFailed = errors.New("signature lookup failed")
	// ErrContractNotVerified explorer has no verified source for the contract
	ErrContractNotVerified = errors.New("contract source code not verified")
	// ErrUnknownChain chain name or alias is not configured
	ErrUnknownChain = errors.New("unknown chain")
)
