package logs

import (
	"github.com/ethereum/go-ethereum/core/types"
)

// CreationEventInBloom reports whether a block's bloom filter may contain a
// pool-creation event from one of the supported factory templates. A false
// result means the block can be skipped without fetching its logs.
func CreationEventInBloom(bloom types.Bloom) bool {
	return bloom.Test(UniswapV2PairCreatedEvent.Bytes()) ||
		bloom.Test(UniswapV3PoolCreatedEvent.Bytes())
}
