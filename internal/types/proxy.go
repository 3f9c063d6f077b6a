package types

import "github.com/ethereum/go-ethereum/common"

// ProxyStandard tag of the proxy standard matched for an address
type ProxyStandard string

const (
	ProxyNone          ProxyStandard = ""
	ProxyEIP1167       ProxyStandard = "eip_1167"
	ProxyEIP1967Beacon ProxyStandard = "eip_1967_beacon"
	ProxyOpenZeppelin  ProxyStandard = "open_zeppelin"
	ProxyEIP1822       ProxyStandard = "eip_1822"
	ProxyEIP897        ProxyStandard = "eip_897"
	ProxyEIP1967Logic  ProxyStandard = "eip_1967_logic"
	ProxyGnosisSafe    ProxyStandard = "gnosis_safe"
	ProxyCompound      ProxyStandard = "compound"
)

// DetectResult outcome of proxy resolution. Target is nil iff Standard is ProxyNone.
type DetectResult struct {
	Standard ProxyStandard   `json:"standard"`
	Target   *common.Address `json:"target"`
}

// IsProxy reports whether an implementation was found
func (r DetectResult) IsProxy() bool {
	return r.Target != nil
}
