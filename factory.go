package discovery

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-amm-discovery/logs"
	"github.com/ethereum/go-ethereum/common"
)

// FactoryVariant identifies one of the supported AMM factory templates.
// The set is closed: supporting a new template means adding a variant here,
// its event topic in the logs package, and the two switch arms below.
type FactoryVariant uint8

const (
	// UniswapV2Factory covers Uniswap V2 and its many forks, whose factories
	// emit PairCreated when a new pair is deployed.
	UniswapV2Factory FactoryVariant = iota
	// UniswapV3Factory covers Uniswap V3-style factories, whose factories
	// emit PoolCreated when a new pool is deployed.
	UniswapV3Factory
)

func (v FactoryVariant) String() string {
	switch v {
	case UniswapV2Factory:
		return "uniswap-v2"
	case UniswapV3Factory:
		return "uniswap-v3"
	default:
		return fmt.Sprintf("factory-variant(%d)", uint8(v))
	}
}

// DiscoveryEventSignature returns the topic the variant's factories emit
// their pool-creation event under. Every supported variant maps to exactly
// one signature.
func (v FactoryVariant) DiscoveryEventSignature() common.Hash {
	switch v {
	case UniswapV2Factory:
		return logs.UniswapV2PairCreatedEvent
	case UniswapV3Factory:
		return logs.UniswapV3PoolCreatedEvent
	default:
		panic(fmt.Sprintf("no discovery event signature for %s", v))
	}
}

// VariantBySignature is the reverse of DiscoveryEventSignature: it resolves a
// log's topic0 back to the factory template that emits it. The second return
// value is false when the topic matches no supported template.
func VariantBySignature(topic common.Hash) (FactoryVariant, bool) {
	switch topic {
	case logs.UniswapV2PairCreatedEvent:
		return UniswapV2Factory, true
	case logs.UniswapV3PoolCreatedEvent:
		return UniswapV3Factory, true
	default:
		return 0, false
	}
}

// FactoryRecord describes a discovered factory contract. Identity is the
// contract address. CreationBlock is the height of the first matching log
// observed for the address and never changes afterwards.
type FactoryRecord struct {
	Variant       FactoryVariant `json:"variant"`
	Address       common.Address `json:"address"`
	CreationBlock uint64         `json:"creationBlock"`
}
