package logs

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CreatedPoolsInBlock parses a slice of logs and returns, for each recognized
// pool-creation event, the factory that emitted it and the address of the
// pool it deployed. The two returned slices are parallel.
func CreatedPoolsInBlock(logs []types.Log) (factories, pools []common.Address, err error) {
	for _, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}

		switch log.Topics[0] {
		case UniswapV2PairCreatedEvent:
			// PairCreated packs (address pair, uint256 allPairsLength) into
			// two 32-byte slots of the data section.
			if len(log.Data) != 64 {
				// Not a well-formed PairCreated event. Skip it to prevent panics.
				continue
			}
			factories = append(factories, log.Address)
			pools = append(pools, common.BytesToAddress(log.Data[:32]))

		case UniswapV3PoolCreatedEvent:
			// PoolCreated packs (int24 tickSpacing, address pool) into two
			// 32-byte slots of the data section; token0, token1 and fee are
			// indexed topics.
			if len(log.Data) != 64 {
				continue
			}
			factories = append(factories, log.Address)
			pools = append(pools, common.BytesToAddress(log.Data[32:]))
		}
	}

	return factories, pools, nil
}
