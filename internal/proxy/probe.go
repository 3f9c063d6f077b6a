package proxy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/types"
)

// Storage slots reserved by proxy standards
var (
	// bytes32(uint256(keccak256('eip1967.proxy.implementation')) - 1)
	SlotEIP1967Logic = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	// bytes32(uint256(keccak256('eip1967.proxy.beacon')) - 1)
	SlotEIP1967Beacon = common.HexToHash("0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50")
	// keccak256("org.zeppelinos.proxy.implementation")
	SlotOpenZeppelin = common.HexToHash("0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3")
	// keccak256("PROXIABLE")
	SlotEIP1822 = common.HexToHash("0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7")
)

// View function selectors used by call based standards
var (
	SelectorImplementation            = common.FromHex("0x5c60da1b") // implementation()
	SelectorChildImplementation       = common.FromHex("0xda525716") // childImplementation()
	SelectorMasterCopy                = common.FromHex("0xa619486e") // masterCopy()
	SelectorComptrollerImplementation = common.FromHex("0xbb82aa5e") // comptrollerImplementation()
)

const wordLength = 32

// Prober one proxy detection strategy. A nil address with a nil error means no match.
type Prober interface {
	Standard() types.ProxyStandard
	Probe(ctx context.Context, client interfaces.ChainClient, address common.Address) (*common.Address, error)
}

// DefaultProbes returns the supported strategies in resolution priority order
func DefaultProbes() []Prober {
	return []Prober{
		MinimalProxyProbe{},
		BeaconProbe{Slot: SlotEIP1967Beacon, Selectors: [][]byte{SelectorImplementation, SelectorChildImplementation}},
		StorageSlotProbe{Tag: types.ProxyOpenZeppelin, Slot: SlotOpenZeppelin},
		StorageSlotProbe{Tag: types.ProxyEIP1822, Slot: SlotEIP1822},
		CallProbe{Tag: types.ProxyEIP897, Selector: SelectorImplementation},
		StorageSlotProbe{Tag: types.ProxyEIP1967Logic, Slot: SlotEIP1967Logic},
		CallProbe{Tag: types.ProxyGnosisSafe, Selector: SelectorMasterCopy},
		CallProbe{Tag: types.ProxyCompound, Selector: SelectorComptrollerImplementation},
	}
}

// MinimalProxyProbe decodes EIP-1167 runtime code
type MinimalProxyProbe struct{}

func (MinimalProxyProbe) Standard() types.ProxyStandard { return types.ProxyEIP1167 }

func (MinimalProxyProbe) Probe(ctx context.Context, client interfaces.ChainClient, address common.Address) (*common.Address, error) {
	code, err := client.CodeAt(ctx, address)
	if err != nil {
		return nil, err
	}
	implementation, ok := ParseMinimalProxy(code)
	if !ok {
		return nil, nil
	}
	return &implementation, nil
}

// StorageSlotProbe reads the implementation from a fixed storage slot
type StorageSlotProbe struct {
	Tag  types.ProxyStandard
	Slot common.Hash
}

func (p StorageSlotProbe) Standard() types.ProxyStandard { return p.Tag }

func (p StorageSlotProbe) Probe(ctx context.Context, client interfaces.ChainClient, address common.Address) (*common.Address, error) {
	word, err := client.StorageAt(ctx, address, p.Slot)
	if err != nil {
		return nil, err
	}
	return addressFromWord(word), nil
}

// CallProbe asks the contract for its implementation with a view call
type CallProbe struct {
	Tag      types.ProxyStandard
	Selector []byte
}

func (p CallProbe) Standard() types.ProxyStandard { return p.Tag }

func (p CallProbe) Probe(ctx context.Context, client interfaces.ChainClient, address common.Address) (*common.Address, error) {
	out, err := client.CallContract(ctx, address, p.Selector)
	if err != nil {
		return nil, err
	}
	return addressFromWord(out), nil
}

// BeaconProbe reads a beacon address from storage and asks the beacon for the implementation,
// trying each selector in order
type BeaconProbe struct {
	Slot      common.Hash
	Selectors [][]byte
}

func (BeaconProbe) Standard() types.ProxyStandard { return types.ProxyEIP1967Beacon }

func (p BeaconProbe) Probe(ctx context.Context, client interfaces.ChainClient, address common.Address) (*common.Address, error) {
	word, err := client.StorageAt(ctx, address, p.Slot)
	if err != nil {
		return nil, err
	}
	beacon := addressFromWord(word)
	if beacon == nil {
		return nil, nil
	}

	var lastErr error
	for _, selector := range p.Selectors {
		out, err := client.CallContract(ctx, *beacon, selector)
		if err != nil {
			lastErr = fmt.Errorf("beacon %s call %x: %w", beacon.Hex(), selector, err)
			continue
		}
		if implementation := addressFromWord(out); implementation != nil {
			return implementation, nil
		}
	}
	return nil, lastErr
}

// addressFromWord takes the low 20 bytes of the first 32-byte word.
// Short input and the zero address yield nil.
func addressFromWord(word []byte) *common.Address {
	if len(word) < wordLength {
		return nil
	}
	address := common.BytesToAddress(word[wordLength-common.AddressLength : wordLength])
	if address == (common.Address{}) {
		return nil
	}
	return &address
}
