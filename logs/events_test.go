package logs

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

// The hardcoded topic hashes must stay in lockstep with the canonical event
// declarations of the factory templates.
func TestCreationEventSignatures(t *testing.T) {
	assert.Equal(t,
		crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)")),
		UniswapV2PairCreatedEvent,
	)
	assert.Equal(t,
		crypto.Keccak256Hash([]byte("PoolCreated(address,address,uint24,int24,address)")),
		UniswapV3PoolCreatedEvent,
	)
}
