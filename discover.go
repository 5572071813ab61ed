package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	ethclients "github.com/Iwinswap/iwinswap-ethclients"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DiscoveryConfig holds the inputs for a single DiscoverFactories invocation.
type DiscoveryConfig struct {
	// Variants lists the factory templates to discover.
	Variants []FactoryVariant

	// Threshold is the minimum number of creation events a factory must emit
	// after it is first seen for it to appear in the result. Zero selects
	// every discovered factory.
	Threshold uint64

	// Step is the fixed width, in blocks, of each log query window. Wider
	// windows mean fewer requests but larger per-request payloads.
	Step uint64

	// GetClient supplies the RPC client used for the scan.
	GetClient GetClientFunc

	// Logger is optional; slog.Default() is used when nil.
	Logger Logger
}

// validate checks that all essential fields in the DiscoveryConfig are provided.
func (c *DiscoveryConfig) validate() error {
	if len(c.Variants) == 0 {
		return errors.New("at least one factory variant is required")
	}
	if c.Step == 0 {
		return errors.New("step must be greater than zero")
	}
	if c.GetClient == nil {
		return errors.New("get client function is required")
	}
	return nil
}

// DiscoverFactories scans the chain's historical event log for the
// pool-creation events emitted by the configured factory templates, counts
// how many creation events each emitting contract produced, and returns the
// contracts whose count meets cfg.Threshold.
//
// The scan is strictly sequential: one bounded window of blocks per provider
// request, in increasing-height order, so a factory's creation block is
// always the height of its first matching log. The log that establishes a
// factory does not increment its count; a factory that emits exactly one
// creation event over the scanned range therefore counts zero events.
//
// Any provider failure, a creation log without a block height, or a log whose
// topic matches no configured template aborts the scan; no partial result is
// returned. Cancel via the context; an aborted provider call surfaces as a
// *ProviderError wrapping ctx.Err().
func DiscoverFactories(ctx context.Context, cfg *DiscoveryConfig) ([]FactoryRecord, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid discovery configuration: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := cfg.GetClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get eth client: %w", err)
	}

	logger.Info(
		"discovering factories",
		"variants", len(cfg.Variants),
		"threshold", cfg.Threshold,
		"step", cfg.Step,
	)

	// The registry lives only for this invocation; concurrent invocations
	// share nothing but the client.
	registry := NewFactoryRegistry()
	if err := scanCreationLogs(ctx, client, cfg.Variants, cfg.Step, registry, logger); err != nil {
		return nil, err
	}

	filtered := filterByEventCount(cfg.Threshold, registry)
	logger.Info(
		"factory discovery complete",
		"discovered", len(registry.address),
		"selected", len(filtered),
	)
	return filtered, nil
}

// discoveryFilterTopics builds the combined filter matching any of the
// configured creation-event signatures at topic position 0.
func discoveryFilterTopics(variants []FactoryVariant) [][]common.Hash {
	signatures := make([]common.Hash, 0, len(variants))
	for _, v := range variants {
		signatures = append(signatures, v.DiscoveryEventSignature())
	}
	return [][]common.Hash{signatures}
}

// scanCreationLogs walks the chain from genesis to the current head in
// fixed-width windows and classifies every matching log into the registry.
// The next window always starts at the previous start plus step, independent
// of clamping at the tail, so windows never overlap and never skip blocks.
func scanCreationLogs(
	ctx context.Context,
	client ethclients.ETHClient,
	variants []FactoryVariant,
	step uint64,
	registry *FactoryRegistry,
	logger Logger,
) error {
	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return &ProviderError{Op: "eth_blockNumber", Err: err}
	}

	topics := discoveryFilterTopics(variants)

	for fromBlock := uint64(0); fromBlock < currentBlock; fromBlock += step {
		targetBlock := fromBlock + step - 1
		if targetBlock > currentBlock {
			targetBlock = currentBlock
		}

		logger.Info("searching blocks", "from", fromBlock, "to", targetBlock)

		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(targetBlock),
			Topics:    topics,
		})
		if err != nil {
			return &ProviderError{Op: "eth_getLogs", Err: err}
		}

		for _, log := range logs {
			if err := classifyCreationLog(log, registry, logger); err != nil {
				return err
			}
		}
	}

	return nil
}

// classifyCreationLog resolves one creation log against the registry. A log
// from a known factory increments that factory's event count without
// re-inspecting its topics. A log from a new address establishes a record at
// count zero, keyed to the variant its topic0 resolves to and pinned to the
// log's block height.
func classifyCreationLog(log types.Log, registry *FactoryRegistry, logger Logger) error {
	if incrementFactory(log.Address, registry) {
		logger.Debug("matched known factory", "address", log.Address.Hex())
		return nil
	}

	if len(log.Topics) == 0 {
		return &UnknownSignatureError{Address: log.Address}
	}
	variant, ok := VariantBySignature(log.Topics[0])
	if !ok {
		return &UnknownSignatureError{Address: log.Address, Topic: log.Topics[0]}
	}

	// go-ethereum reports pending logs with a zero block number; a creation
	// log without a finalized height cannot establish a record.
	if log.BlockNumber == 0 {
		return &MissingBlockNumberError{Address: log.Address}
	}

	record := FactoryRecord{
		Variant:       variant,
		Address:       log.Address,
		CreationBlock: log.BlockNumber,
	}
	if err := addFactory(record, registry); err != nil {
		return err
	}

	logger.Info(
		"discovered new factory",
		"address", log.Address.Hex(),
		"variant", variant.String(),
		"creationBlock", log.BlockNumber,
	)
	return nil
}
