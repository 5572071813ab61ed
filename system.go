package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ethclients "github.com/Iwinswap/iwinswap-ethclients"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging,
// compatible with the standard library's slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// --- Function Type Definitions for Dependencies ---

// These named types create a clear, maintainable contract for the system's dependencies.

type GetClientFunc func() (ethclients.ETHClient, error)
type InBlockedListFunc func(factoryAddr common.Address) bool
type ExtractCreatedPoolsFunc func([]types.Log) (factories, pools []common.Address, err error)
type ProbeFactoriesFunc func(ctx context.Context, records []FactoryRecord, client ethclients.ETHClient) (poolCounts []uint64, errs []error)

type ErrorHandlerFunc func(err error)
type TestBloomFunc func(types.Bloom) bool

// Config holds all the dependencies and settings for the live discovery System.
// Using a configuration struct makes initialization cleaner and more extensible.
type Config struct {
	SystemName          string
	PrometheusReg       prometheus.Registerer
	NewBlockEventer     chan *types.Block
	GetClient           GetClientFunc
	Variants            []FactoryVariant
	InBlockedList       InBlockedListFunc
	ExtractCreatedPools ExtractCreatedPoolsFunc
	ProbeFactories      ProbeFactoriesFunc
	ErrorHandler        ErrorHandlerFunc
	TestBloom           TestBloomFunc
	InitialFactories    []FactoryView
	PruneFrequency      time.Duration
	ProbeFrequency      time.Duration
	LogMaxRetries       int
	LogRetryDelay       time.Duration
	Logger              Logger
}

// validate checks that all essential fields in the Config are provided.
func (c *Config) validate() error {
	if c.SystemName == "" {
		return errors.New("system name is required")
	}
	if c.NewBlockEventer == nil {
		return errors.New("new block eventer channel is required")
	}
	if c.GetClient == nil {
		return errors.New("get client function is required")
	}
	if len(c.Variants) == 0 {
		return errors.New("at least one factory variant is required")
	}
	if c.InBlockedList == nil {
		return errors.New("in blocked list function is required")
	}
	if c.ExtractCreatedPools == nil {
		return errors.New("extract created pools function is required")
	}
	if c.ErrorHandler == nil {
		return errors.New("error handler function is required")
	}
	if c.TestBloom == nil {
		return errors.New("test bloom function is required")
	}
	if c.ProbeFrequency > 0 && c.ProbeFactories == nil {
		return errors.New("probe factories function is required when probing is enabled")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}

	return nil
}

// System is the orchestrator that connects the factory registry to the live
// blockchain. It consumes new-block events, classifies pool-creation logs
// into a long-lived registry, prunes blocked factories, and periodically
// verifies candidates on-chain, all with thread-safety.
type System struct {
	systemName          string
	newBlockEventer     chan *types.Block
	getClient           GetClientFunc
	variants            []FactoryVariant
	filterTopics        [][]common.Hash // Combined topic0 filter derived from variants.
	inBlockedList       InBlockedListFunc
	extractCreatedPools ExtractCreatedPoolsFunc
	probeFactories      ProbeFactoriesFunc
	errorHandler        ErrorHandlerFunc
	testBloom           TestBloomFunc
	cachedView          atomic.Pointer[[]FactoryView]
	lastUpdatedAtBlock  atomic.Uint64
	pruneFrequency      time.Duration
	probeFrequency      time.Duration
	logMaxRetries       int
	logRetryDelay       time.Duration
	mu                  sync.RWMutex
	registry            *FactoryRegistry
	metrics             *Metrics
	logger              Logger
}

// NewSystem constructs and returns a new, fully initialized system.
// It starts all background goroutines, making it a self-contained, "live" service upon creation.
func NewSystem(ctx context.Context, cfg *Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid factory discovery system configuration: %w", err)
	}

	metrics := NewMetrics(cfg.PrometheusReg, cfg.SystemName)

	system := &System{
		systemName:          cfg.SystemName,
		newBlockEventer:     cfg.NewBlockEventer,
		getClient:           cfg.GetClient,
		variants:            cfg.Variants,
		filterTopics:        discoveryFilterTopics(cfg.Variants),
		inBlockedList:       cfg.InBlockedList,
		extractCreatedPools: cfg.ExtractCreatedPools,
		probeFactories:      cfg.ProbeFactories,
		errorHandler: func(err error) {
			errorType := determineErrorType(err)
			cfg.Logger.Error("FactoryDiscoverySystem internal error", "system", cfg.SystemName, "type", errorType, "error", err)
			metrics.ErrorsTotal.WithLabelValues(errorType).Inc()

			// Call the user's external handler.
			cfg.ErrorHandler(err)
		},
		testBloom:          cfg.TestBloom,
		pruneFrequency:     cfg.PruneFrequency,
		probeFrequency:     cfg.ProbeFrequency,
		logMaxRetries:      cfg.LogMaxRetries,
		logRetryDelay:      cfg.LogRetryDelay,
		registry:           NewFactoryRegistryFromViews(cfg.InitialFactories),
		lastUpdatedAtBlock: atomic.Uint64{},
		metrics:            metrics,
		logger:             cfg.Logger,
	}

	initialView := viewRegistry(system.registry)
	if initialView == nil {
		initialView = []FactoryView{}
	}
	system.cachedView.Store(&initialView)
	system.metrics.FactoriesInRegistry.WithLabelValues().Set(float64(len(initialView)))

	system.logger.Info("FactoryDiscoverySystem started", "system", system.systemName, "restored", len(initialView))
	go system.listenBlockEventer(ctx)
	go system.startPruner(ctx)
	go system.startProber(ctx)

	return system, nil
}

// View returns a copy of the latest registry view. This operation is lock-free.
func (s *System) View() []FactoryView {
	viewPtr := s.cachedView.Load()
	if viewPtr == nil {
		return nil
	}
	view := *viewPtr
	viewCopy := make([]FactoryView, len(view))
	copy(viewCopy, view)
	return viewCopy
}

// DiscoveredFactories returns the factories whose accumulated event count is
// at or above threshold. A threshold of zero returns every tracked factory.
// Order is not guaranteed.
func (s *System) DiscoveredFactories(threshold uint64) []FactoryRecord {
	view := s.View()

	var records []FactoryRecord
	for _, v := range view {
		if v.EventCount >= threshold {
			records = append(records, FactoryRecord{
				Variant:       v.Variant,
				Address:       v.Address,
				CreationBlock: v.CreationBlock,
			})
		}
	}
	return records
}

// LastUpdatedAtBlock returns the block number of the last successfully processed block.
func (s *System) LastUpdatedAtBlock() uint64 {
	return s.lastUpdatedAtBlock.Load()
}

// updateCachedView generates a fresh view from the registry and atomically updates the pointer.
// This method MUST be called from within a write lock (s.mu.Lock).
func (s *System) updateCachedView() {
	newView := viewRegistry(s.registry)
	s.cachedView.Store(&newView)
	s.metrics.FactoriesInRegistry.WithLabelValues().Set(float64(len(newView)))
}

// listenBlockEventer is the main event loop for the system.
func (s *System) listenBlockEventer(ctx context.Context) {
	for {
		select {
		case b := <-s.newBlockEventer:
			timer := prometheus.NewTimer(s.metrics.BlockProcessingDur.WithLabelValues())

			if !s.testBloom(b.Bloom()) {
				s.lastUpdatedAtBlock.Store(b.NumberU64())
				s.metrics.LastProcessedBlock.WithLabelValues().Set(float64(b.NumberU64()))
				timer.ObserveDuration()
				continue
			}
			if err := s.handleNewBlock(ctx, b); err != nil {
				s.errorHandler(err)
			}
			timer.ObserveDuration()
		case <-ctx.Done():
			s.logger.Info("FactoryDiscoverySystem stopping due to context cancellation.")
			return
		}
	}
}

// getLogsWithRetry attempts to fetch the creation logs for a specific block,
// using a high-frequency polling strategy to account for potential node
// indexing delays.
//
// This function is called only after a block's bloom filter has passed our
// test, meaning we expect relevant logs to be present. If the initial query
// returns an empty slice, it retries up to `s.logMaxRetries` times before
// concluding the block has no relevant logs. Genuine RPC errors are never
// retried.
func (s *System) getLogsWithRetry(ctx context.Context, client ethclients.ETHClient, block *types.Block) ([]types.Log, error) {
	blockHash := block.Hash()
	query := ethereum.FilterQuery{
		FromBlock: block.Number(),
		ToBlock:   block.Number(),
		Topics:    s.filterTopics,
	}

	// maxAttempts is 1 + the s.logMaxRetries value
	// we will try to fetch logs at least 1.
	maxAttempts := 1 + s.logMaxRetries
	for i := range maxAttempts {

		attempt := i + 1
		logs, err := client.FilterLogs(ctx, query)
		if err != nil {
			return nil, err // For genuine RPC errors, fail immediately.
		}

		// If logs are found, we have succeeded.
		if len(logs) > 0 {
			return logs, nil
		}

		// If logs are empty, it might be a race condition (node might still be processing the block)
		// we can retry if attempt < maxAttempts

		if attempt < maxAttempts {
			select {
			case <-time.After(s.logRetryDelay):
				s.logger.Debug("Retrying log fetch for block", "block", block.NumberU64(), "attempt", attempt)
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	// If all retries are exhausted, assume no relevant logs exist.
	s.logger.Warn("No relevant logs found for block after all retries", "block", block.NumberU64(), "hash", blockHash.Hex())
	return []types.Log{}, nil // Return an empty slice, not an error.
}

// handleNewBlock processes a single block: it fetches the block's creation
// logs and classifies them into the registry. Classification failures are
// reported through the error handler without halting the live loop.
func (s *System) handleNewBlock(ctx context.Context, b *types.Block) error {
	blockNum := b.NumberU64()
	start := time.Now()
	defer func() {
		s.logger.Info("Processed new block", "blockNumber", blockNum, "duration", time.Since(start))
	}()

	client, err := s.getClient()
	if err != nil {
		return fmt.Errorf("block %d: failed to get eth client: %w", blockNum, err)
	}

	logs, err := s.getLogsWithRetry(ctx, client, b)
	if err != nil {
		return fmt.Errorf("block %d: failed to filter logs: %w", blockNum, err)
	}

	emitters, createdPools, err := s.extractCreatedPools(logs)
	if err != nil {
		s.errorHandler(&SystemError{BlockNumber: blockNum, Err: fmt.Errorf("failed to extract created pools: %w", err)})
	}

	if len(createdPools) > 0 {
		s.logger.Info(
			"Pools created in block",
			"blockNumber", blockNum,
			"pools", len(createdPools),
			"factories", len(emitters),
		)
	}

	var capturedErrors []error
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, log := range logs {
			if s.inBlockedList(log.Address) {
				continue
			}
			if err := classifyCreationLog(log, s.registry, s.logger); err != nil {
				capturedErrors = append(capturedErrors, &SystemError{BlockNumber: blockNum, Err: err})
			}
		}

		s.lastUpdatedAtBlock.Store(blockNum)
		s.updateCachedView()
	}()

	s.metrics.LastProcessedBlock.WithLabelValues().Set(float64(blockNum))
	if len(logs) > 0 {
		s.metrics.CreationEventsTotal.WithLabelValues().Add(float64(len(logs)))
	}
	if len(createdPools) > 0 {
		s.metrics.PoolsCreatedTotal.WithLabelValues().Add(float64(len(createdPools)))
	}
	for _, e := range capturedErrors {
		s.errorHandler(e)
	}
	return nil
}

// startProber is a background process that periodically verifies the
// registry's factories on-chain.
func (s *System) startProber(ctx context.Context) {
	if s.probeFrequency <= 0 {
		return
	}
	ticker := time.NewTicker(s.probeFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runFactoryProbe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runFactoryProbe performs a single cycle of probing every tracked factory
// and recording the pool counts the contracts report.
func (s *System) runFactoryProbe(ctx context.Context) {
	timer := prometheus.NewTimer(s.metrics.ProbeDuration.WithLabelValues())
	defer timer.ObserveDuration()

	currentView := s.View()
	if len(currentView) == 0 {
		return
	}

	client, err := s.getClient()
	if err != nil {
		s.errorHandler(fmt.Errorf("prober: failed to get eth client: %w", err))
		return
	}

	records := make([]FactoryRecord, len(currentView))
	for i, view := range currentView {
		records[i] = FactoryRecord{
			Variant:       view.Variant,
			Address:       view.Address,
			CreationBlock: view.CreationBlock,
		}
	}

	poolCounts, errs := s.probeFactories(ctx, records, client)

	var probeErrors []error
	var verified int
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, record := range records {
			if errs[i] != nil {
				probeErrors = append(probeErrors, &ProbeError{FactoryAddress: record.Address, Err: errs[i]})
				continue
			}
			if err := setPoolCount(record.Address, poolCounts[i], s.registry); err != nil {
				if errors.Is(err, ErrFactoryNotFound) {
					// Pruned while the probe was in flight.
					continue
				}
				probeErrors = append(probeErrors, &ProbeError{FactoryAddress: record.Address, Err: err})
				continue
			}
			verified++
		}

		if verified > 0 {
			s.updateCachedView()
		}
	}()

	if verified > 0 {
		s.logger.Info(
			"Factory probe complete",
			"verified", verified,
			"failed", len(probeErrors),
		)
	}
	for _, e := range probeErrors {
		s.errorHandler(e)
	}
}

// startPruner is a background process that periodically removes blocked factories from the registry.
func (s *System) startPruner(ctx context.Context) {
	if s.pruneFrequency <= 0 {
		return
	}
	ticker := time.NewTicker(s.pruneFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pruneBlockedFactories()
		case <-ctx.Done():
			return
		}
	}
}

// pruneBlockedFactories scans the registry for factories the caller has
// blocked and removes them.
func (s *System) pruneBlockedFactories() {
	s.logger.Info("Starting pruner run to check for blocked factories")
	timer := prometheus.NewTimer(s.metrics.PruningDuration.WithLabelValues())
	defer timer.ObserveDuration()

	currentView := s.View()
	if len(currentView) == 0 {
		return
	}

	var factoriesToDelete []common.Address
	for _, view := range currentView {
		if s.inBlockedList(view.Address) {
			factoriesToDelete = append(factoriesToDelete, view.Address)
		}
	}

	if len(factoriesToDelete) > 0 {
		s.logger.Info("Pruner removing blocked factories", "count", len(factoriesToDelete))
		pruned := len(factoriesToDelete)
		if errs := s.DeleteFactories(factoriesToDelete); errs != nil {
			for i, err := range errs {
				if err != nil {
					pruned--
					s.errorHandler(&PrunerError{FactoryAddress: factoriesToDelete[i], Err: fmt.Errorf("failed to delete from registry: %w", err)})
				}
			}
		}
		if pruned > 0 {
			s.metrics.FactoriesPruned.WithLabelValues().Add(float64(pruned))
		}
	}
}

// DeleteFactory removes a factory from the System's internal registry.
//
// @note A factory removed here will be re-established (with a fresh creation
// block) if it emits another creation event and is not in the blocked list;
// permanent removal belongs in the caller's blocked list.
func (s *System) DeleteFactory(factoryAddr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := deleteFactory(factoryAddr, s.registry)
	if err != nil {
		return err
	}

	// After any modification to the registry, the cached view must be updated.
	s.updateCachedView()
	return nil
}

// DeleteFactories removes multiple factories from the System's internal registry.
//
// @note A factory removed here will be re-established (with a fresh creation
// block) if it emits another creation event and is not in the blocked list;
// permanent removal belongs in the caller's blocked list.
func (s *System) DeleteFactories(factoryAddrs []common.Address) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := make([]error, len(factoryAddrs))
	hasChanged := false
	hasErrors := false

	for i, factoryAddr := range factoryAddrs {
		err := deleteFactory(factoryAddr, s.registry)
		if err != nil {
			errs[i] = err
			hasErrors = true
		} else {
			hasChanged = true
		}
	}

	if hasChanged {
		// After any modification to the registry, the cached view must be updated.
		s.updateCachedView()
	}

	if hasErrors {
		return errs
	}

	return nil
}
