package prober

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	discovery "github.com/Iwinswap/iwinswap-amm-discovery"
	ethclients "github.com/Iwinswap/iwinswap-ethclients"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	v2FactoryAddr = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v3FactoryAddr = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	ownerAddr     = common.HexToAddress("0x1a9C8182C09F50C8318d769245beA52c32BE35BC")
)

// uint256Response packs a value into the single 32-byte slot a uint256 view
// function returns.
func uint256Response(v uint64) []byte {
	out := make([]byte, 32)
	new(big.Int).SetUint64(v).FillBytes(out)
	return out
}

func addressResponse(addr common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out
}

func TestProbeFactories(t *testing.T) {
	testCases := []struct {
		name           string
		records        []discovery.FactoryRecord
		setupHandler   func(t *testing.T, client *ethclients.TestETHClient)
		expectedCounts []uint64
		expectErrs     []bool
	}{
		{
			name: "Happy Path - V2 factory reports its pair count",
			records: []discovery.FactoryRecord{
				{Variant: discovery.UniswapV2Factory, Address: v2FactoryAddr, CreationBlock: 100},
			},
			setupHandler: func(t *testing.T, client *ethclients.TestETHClient) {
				client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
					require.NotNil(t, msg.To)
					assert.Equal(t, v2FactoryAddr, *msg.To)
					assert.True(t, bytes.Equal(msg.Data, allPairsLengthSig), "V2 factories must be asked for allPairsLength()")
					return uint256Response(1234), nil
				})
			},
			expectedCounts: []uint64{1234},
			expectErrs:     []bool{false},
		},
		{
			name: "Happy Path - V3 factory verified via owner",
			records: []discovery.FactoryRecord{
				{Variant: discovery.UniswapV3Factory, Address: v3FactoryAddr, CreationBlock: 200},
			},
			setupHandler: func(t *testing.T, client *ethclients.TestETHClient) {
				client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
					require.NotNil(t, msg.To)
					assert.Equal(t, v3FactoryAddr, *msg.To)
					assert.True(t, bytes.Equal(msg.Data, ownerSig), "V3 factories must be asked for owner()")
					return addressResponse(ownerAddr), nil
				})
			},
			expectedCounts: []uint64{0},
			expectErrs:     []bool{false},
		},
		{
			name: "Mixed batch - each variant gets its own call",
			records: []discovery.FactoryRecord{
				{Variant: discovery.UniswapV2Factory, Address: v2FactoryAddr, CreationBlock: 100},
				{Variant: discovery.UniswapV3Factory, Address: v3FactoryAddr, CreationBlock: 200},
			},
			setupHandler: func(t *testing.T, client *ethclients.TestETHClient) {
				client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
					switch {
					case bytes.Equal(msg.Data, allPairsLengthSig):
						return uint256Response(9), nil
					case bytes.Equal(msg.Data, ownerSig):
						return addressResponse(ownerAddr), nil
					default:
						return nil, errors.New("unexpected call data")
					}
				})
			},
			expectedCounts: []uint64{9, 0},
			expectErrs:     []bool{false, false},
		},
		{
			name: "Failure - RPC error is reported per record",
			records: []discovery.FactoryRecord{
				{Variant: discovery.UniswapV2Factory, Address: v2FactoryAddr, CreationBlock: 100},
			},
			setupHandler: func(t *testing.T, client *ethclients.TestETHClient) {
				client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
					return nil, errors.New("execution reverted")
				})
			},
			expectedCounts: []uint64{0},
			expectErrs:     []bool{true},
		},
		{
			name: "Failure - malformed response length",
			records: []discovery.FactoryRecord{
				{Variant: discovery.UniswapV2Factory, Address: v2FactoryAddr, CreationBlock: 100},
			},
			setupHandler: func(t *testing.T, client *ethclients.TestETHClient) {
				client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
					return []byte{0x01, 0x02, 0x03}, nil
				})
			},
			expectedCounts: []uint64{0},
			expectErrs:     []bool{true},
		},
		{
			name:           "Edge Case - empty batch",
			records:        nil,
			setupHandler:   func(t *testing.T, client *ethclients.TestETHClient) {},
			expectedCounts: nil,
			expectErrs:     nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := ethclients.NewTestETHClient()
			tc.setupHandler(t, client)

			probe := NewProbeFactories(4)
			counts, errs := probe(context.Background(), tc.records, client)

			if tc.expectedCounts == nil {
				assert.Nil(t, counts)
				assert.Nil(t, errs)
				return
			}

			require.Len(t, counts, len(tc.expectedCounts))
			require.Len(t, errs, len(tc.expectErrs))
			for i := range tc.expectedCounts {
				if tc.expectErrs[i] {
					assert.Error(t, errs[i])
					continue
				}
				assert.NoError(t, errs[i])
				assert.Equal(t, tc.expectedCounts[i], counts[i])
			}
		})
	}
}

func TestProbeFactories_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := ethclients.NewTestETHClient()
	client.SetCallContractHandler(func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
		t.Error("no RPC call should be made once the context is cancelled")
		return nil, nil
	})

	probe := NewProbeFactories(1)
	_, errs := probe(ctx, []discovery.FactoryRecord{
		{Variant: discovery.UniswapV2Factory, Address: v2FactoryAddr, CreationBlock: 100},
	}, client)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestProbeFactories_UnsupportedVariant(t *testing.T) {
	client := ethclients.NewTestETHClient()

	probe := NewProbeFactories(1)
	_, errs := probe(context.Background(), []discovery.FactoryRecord{
		{Variant: discovery.FactoryVariant(250), Address: v2FactoryAddr, CreationBlock: 100},
	}, client)

	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}
