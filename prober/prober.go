package prober

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	discovery "github.com/Iwinswap/iwinswap-amm-discovery"
	ethclients "github.com/Iwinswap/iwinswap-ethclients"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// Method selectors for the factory view calls, one per supported template.
	// allPairsLengthSig: allPairsLength()
	allPairsLengthSig = common.Hex2Bytes("574f2ba3")
	// ownerSig: owner()
	ownerSig = common.Hex2Bytes("8da5cb5b")
)

const (
	// defaultRPCTimeout defines the default timeout for individual RPC calls made by the prober.
	// This prevents a single slow request from blocking a goroutine indefinitely.
	defaultRPCTimeout = 10 * time.Second
)

// NewProbeFactories returns a probe function that verifies discovered
// factories against their template's interface, limiting the number of
// concurrent RPC calls to the provided `maxConcurrentCalls`.
// It returns a function that matches the discovery.ProbeFactoriesFunc type
// and can be injected as a dependency.
//
// A V2-style factory is asked for allPairsLength() and the reported pair
// count is returned; a V3-style factory exposes no pool count, so answering
// owner() verifies the interface and a count of zero is returned. Every call
// is read-only.
func NewProbeFactories(
	maxConcurrentCalls int,
) discovery.ProbeFactoriesFunc {

	// The returned function closes over the semaphore channel.
	semaphore := make(chan struct{}, maxConcurrentCalls)

	return func(
		ctx context.Context,
		records []discovery.FactoryRecord,
		client ethclients.ETHClient,
	) (poolCounts []uint64, errs []error) {
		numFactories := len(records)
		if numFactories == 0 {
			return nil, nil
		}

		// Pre-allocate result slices to the exact size needed. This is crucial for
		// safely writing results from concurrent goroutines into the correct index.
		poolCounts = make([]uint64, numFactories)
		errs = make([]error, numFactories)

		var wg sync.WaitGroup
		wg.Add(numFactories)

		for i, record := range records {
			// This will block until a spot is available in the semaphore channel,
			// effectively limiting the number of concurrent goroutines.
			semaphore <- struct{}{}

			go func(index int, record discovery.FactoryRecord) {
				defer func() {
					// Release the spot in the semaphore channel once the goroutine is done.
					<-semaphore
					wg.Done()
				}()

				if ctx.Err() != nil {
					errs[index] = ctx.Err()
					return
				}

				count, err := probeFactory(ctx, record, client)
				if err != nil {
					errs[index] = err
					return
				}

				poolCounts[index] = count
			}(i, record)
		}

		wg.Wait()

		return poolCounts, errs
	}
}

// probeFactory performs the template-specific RPC call for a single factory.
func probeFactory(parentCtx context.Context, record discovery.FactoryRecord, client ethclients.ETHClient) (uint64, error) {
	ctx, cancel := context.WithTimeout(parentCtx, defaultRPCTimeout)
	defer cancel()

	factoryAddr := record.Address

	switch record.Variant {
	case discovery.UniswapV2Factory:
		callData, err := client.CallContract(ctx, ethereum.CallMsg{
			To:   &factoryAddr,
			Data: allPairsLengthSig,
		}, nil)
		if err != nil {
			return 0, fmt.Errorf("eth_call for allPairsLength failed for factory %s: %w", factoryAddr.Hex(), err)
		}
		// A uint256 response is always a single 32-byte slot.
		if len(callData) != 32 {
			return 0, fmt.Errorf("invalid response length for allPairsLength on factory %s: got %d bytes", factoryAddr.Hex(), len(callData))
		}

		return new(big.Int).SetBytes(callData).Uint64(), nil

	case discovery.UniswapV3Factory:
		callData, err := client.CallContract(ctx, ethereum.CallMsg{
			To:   &factoryAddr,
			Data: ownerSig,
		}, nil)
		if err != nil {
			return 0, fmt.Errorf("eth_call for owner failed for factory %s: %w", factoryAddr.Hex(), err)
		}
		// A valid address response from a view function is always 32 bytes long.
		if len(callData) != 32 {
			return 0, fmt.Errorf("invalid response length for owner on factory %s: got %d bytes", factoryAddr.Hex(), len(callData))
		}

		return 0, nil

	default:
		return 0, fmt.Errorf("unsupported factory variant %s for factory %s", record.Variant, factoryAddr.Hex())
	}
}
