package discovery

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrFactoryExists is returned when attempting to add a factory that is already in the registry.
	ErrFactoryExists = errors.New("factory already exists in registry")
	// ErrFactoryNotFound is returned when attempting to access a factory that is not in the registry.
	ErrFactoryNotFound = errors.New("factory not found in registry")
)

// ProviderError wraps a transport or node failure from one of the RPC
// provider calls (chain head lookup or log fetch). It is fatal for the
// operation that triggered it: no partial result is returned and no retry
// is attempted.
type ProviderError struct {
	// Op is the provider operation that failed, e.g. "eth_blockNumber" or "eth_getLogs".
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider call %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UnknownSignatureError indicates a log's topic0 matched none of the
// registered creation-event signatures at classification time. Given the
// scanner's topic filter this points at a provider or filter inconsistency,
// so it must surface rather than be skipped.
type UnknownSignatureError struct {
	Address common.Address
	Topic   common.Hash
}

func (e *UnknownSignatureError) Error() string {
	return fmt.Sprintf("log from %s carries unknown event signature %s", e.Address.Hex(), e.Topic.Hex())
}

// MissingBlockNumberError indicates that a log which should establish a new
// factory record carries no block height. Such a log is treated as malformed
// input; it is never recorded with a defaulted creation block.
type MissingBlockNumberError struct {
	Address common.Address
}

func (e *MissingBlockNumberError) Error() string {
	return fmt.Sprintf("creation log from %s is missing a block number", e.Address.Hex())
}

// SystemError is a base type for errors originating from the live System's
// per-block processing.
type SystemError struct {
	BlockNumber uint64
	Err         error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("block %d: %v", e.BlockNumber, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// ProbeError indicates a failure while verifying a discovered factory on-chain.
type ProbeError struct {
	FactoryAddress common.Address
	Err            error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe: failed to verify factory %s: %v", e.FactoryAddress.Hex(), e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// PrunerError indicates a failure during the periodic pruning process.
type PrunerError struct {
	FactoryAddress common.Address
	Err            error
}

func (e *PrunerError) Error() string {
	return fmt.Sprintf("pruner: failed to process factory %s: %v", e.FactoryAddress.Hex(), e.Err)
}

func (e *PrunerError) Unwrap() error {
	return e.Err
}

// determineErrorType maps an error to a stable label for the error metrics.
func determineErrorType(err error) string {
	var (
		providerErr *ProviderError
		sigErr      *UnknownSignatureError
		blockErr    *MissingBlockNumberError
		probeErr    *ProbeError
		prunerErr   *PrunerError
	)
	switch {
	case errors.As(err, &providerErr):
		return "provider"
	case errors.As(err, &sigErr):
		return "unknown_signature"
	case errors.As(err, &blockErr):
		return "missing_block_number"
	case errors.As(err, &probeErr):
		return "probe"
	case errors.As(err, &prunerErr):
		return "pruner"
	case errors.Is(err, ErrFactoryExists) || errors.Is(err, ErrFactoryNotFound):
		return "registry"
	default:
		return "unknown"
	}
}
