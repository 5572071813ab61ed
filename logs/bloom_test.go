package logs

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

var (
	erc20TransferEvent = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
)

func TestCreationEventInBloom(t *testing.T) {

	// Define test cases table for structured testing.
	testCases := []struct {
		name         string
		setupBloom   func() types.Bloom // Function to set up the specific bloom filter for the test
		expectResult bool
	}{
		{
			name: "Happy Path - Bloom filter contains the PairCreated event",
			setupBloom: func() types.Bloom {
				var bloom types.Bloom
				bloom.Add(UniswapV2PairCreatedEvent.Bytes())
				return bloom
			},
			expectResult: true,
		},
		{
			name: "Happy Path - Bloom filter contains the PoolCreated event",
			setupBloom: func() types.Bloom {
				var bloom types.Bloom
				bloom.Add(UniswapV3PoolCreatedEvent.Bytes())
				return bloom
			},
			expectResult: true,
		},
		{
			name: "Negative Case - Bloom filter is empty",
			setupBloom: func() types.Bloom {
				// An empty bloom filter should not contain either event.
				return types.Bloom{}
			},
			expectResult: false,
		},
		{
			name: "Negative Case - Bloom filter contains a different event",
			setupBloom: func() types.Bloom {
				var bloom types.Bloom
				// Add a different, unrelated event topic.
				bloom.Add(erc20TransferEvent.Bytes())
				return bloom
			},
			expectResult: false,
		},
		{
			name: "Edge Case - Bloom filter contains creation and other events",
			setupBloom: func() types.Bloom {
				var bloom types.Bloom
				bloom.Add(UniswapV2PairCreatedEvent.Bytes())
				bloom.Add(erc20TransferEvent.Bytes())
				// Add some other arbitrary data
				bloom.Add([]byte("some other data"))
				return bloom
			},
			expectResult: true,
		},
	}

	// Run all test cases.
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// 1. Setup
			bloomFilter := tc.setupBloom()

			// 2. Execute
			result := CreationEventInBloom(bloomFilter)

			// 3. Assert
			assert.Equal(t, tc.expectResult, result)
		})
	}
}
