package logs

import "github.com/ethereum/go-ethereum/common"

// Topic hashes of the pool-creation events each supported factory template
// emits. The hashes are fixed by the template contracts, so they are declared
// directly rather than derived from ABI JSON at startup.
var (
	// UniswapV2PairCreatedEvent: PairCreated(address,address,address,uint256)
	UniswapV2PairCreatedEvent = common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")

	// UniswapV3PoolCreatedEvent: PoolCreated(address,address,uint24,int24,address)
	UniswapV3PoolCreatedEvent = common.HexToHash("0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118")
)
