package discovery

import (
	"github.com/ethereum/go-ethereum/common"
)

// FactoryView is a read-only snapshot of one aggregated factory.
type FactoryView struct {
	Variant       FactoryVariant `json:"variant"`
	Address       common.Address `json:"address"`
	CreationBlock uint64         `json:"creationBlock"`
	EventCount    uint64         `json:"eventCount"`
	PoolCount     uint64         `json:"poolCount"`
}

// FactoryRegistry aggregates discovered factories using a data-oriented design.
// It maintains at most one entry per address; each entry's event count starts
// at zero when the factory is established and only increases.
type FactoryRegistry struct {
	variant       []FactoryVariant
	address       []common.Address
	creationBlock []uint64
	eventCount    []uint64
	poolCount     []uint64

	// Maps a factory address to its current slice index.
	addrToIndex map[common.Address]int
}

func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		addrToIndex: make(map[common.Address]int),
	}
}

// NewFactoryRegistryFromViews reconstructs a FactoryRegistry from a slice of
// FactoryView structs. This is the mechanism for restoring the registry's
// state from a snapshot, pre-allocating all memory to the final size.
func NewFactoryRegistryFromViews(views []FactoryView) *FactoryRegistry {
	if len(views) == 0 {
		return NewFactoryRegistry()
	}

	numFactories := len(views)
	registry := &FactoryRegistry{
		variant:       make([]FactoryVariant, numFactories),
		address:       make([]common.Address, numFactories),
		creationBlock: make([]uint64, numFactories),
		eventCount:    make([]uint64, numFactories),
		poolCount:     make([]uint64, numFactories),
		addrToIndex:   make(map[common.Address]int, numFactories),
	}

	for i, view := range views {
		registry.variant[i] = view.Variant
		registry.address[i] = view.Address
		registry.creationBlock[i] = view.CreationBlock
		registry.eventCount[i] = view.EventCount
		registry.poolCount[i] = view.PoolCount

		registry.addrToIndex[view.Address] = i
	}

	return registry
}

func addFactory(
	record FactoryRecord,
	registry *FactoryRegistry,
) error {
	if _, ok := registry.addrToIndex[record.Address]; ok {
		return ErrFactoryExists
	}

	registry.variant = append(registry.variant, record.Variant)
	registry.address = append(registry.address, record.Address)
	registry.creationBlock = append(registry.creationBlock, record.CreationBlock)
	registry.eventCount = append(registry.eventCount, 0)
	registry.poolCount = append(registry.poolCount, 0)

	newIndex := len(registry.address) - 1
	registry.addrToIndex[record.Address] = newIndex

	return nil
}

// incrementFactory bumps the event count for a known address by one. It
// reports false when the address has no entry, leaving the registry untouched.
func incrementFactory(
	factoryAddr common.Address,
	registry *FactoryRegistry,
) bool {
	index, ok := registry.addrToIndex[factoryAddr]
	if !ok {
		return false
	}

	registry.eventCount[index]++
	return true
}

// setPoolCount records the on-chain pool count reported by a probe.
func setPoolCount(
	factoryAddr common.Address,
	poolCount uint64,
	registry *FactoryRegistry,
) error {
	index, ok := registry.addrToIndex[factoryAddr]
	if !ok {
		return ErrFactoryNotFound
	}

	registry.poolCount[index] = poolCount
	return nil
}

func deleteFactory(
	factoryAddr common.Address,
	registry *FactoryRegistry,
) error {
	indexToDelete, ok := registry.addrToIndex[factoryAddr]
	if !ok {
		return ErrFactoryNotFound
	}

	lastIndex := len(registry.address) - 1
	lastAddr := registry.address[lastIndex]

	if indexToDelete != lastIndex {
		registry.variant[indexToDelete] = registry.variant[lastIndex]
		registry.address[indexToDelete] = registry.address[lastIndex]
		registry.creationBlock[indexToDelete] = registry.creationBlock[lastIndex]
		registry.eventCount[indexToDelete] = registry.eventCount[lastIndex]
		registry.poolCount[indexToDelete] = registry.poolCount[lastIndex]
		registry.addrToIndex[lastAddr] = indexToDelete
	}

	delete(registry.addrToIndex, factoryAddr)

	registry.variant = registry.variant[:lastIndex]
	registry.address = registry.address[:lastIndex]
	registry.creationBlock = registry.creationBlock[:lastIndex]
	registry.eventCount = registry.eventCount[:lastIndex]
	registry.poolCount = registry.poolCount[:lastIndex]

	return nil
}

func viewRegistry(
	registry *FactoryRegistry,
) []FactoryView {
	numFactories := len(registry.address)
	if numFactories == 0 {
		return nil
	}

	views := make([]FactoryView, numFactories)
	for i := 0; i < numFactories; i++ {
		views[i] = FactoryView{
			Variant:       registry.variant[i],
			Address:       registry.address[i],
			CreationBlock: registry.creationBlock[i],
			EventCount:    registry.eventCount[i],
			PoolCount:     registry.poolCount[i],
		}
	}
	return views
}

// getFactoryByAddress retrieves a single factory's view by its address.
func getFactoryByAddress(
	factoryAddr common.Address,
	registry *FactoryRegistry,
) (FactoryView, error) {
	index, ok := registry.addrToIndex[factoryAddr]
	if !ok {
		return FactoryView{}, ErrFactoryNotFound
	}

	return FactoryView{
		Variant:       registry.variant[index],
		Address:       registry.address[index],
		CreationBlock: registry.creationBlock[index],
		EventCount:    registry.eventCount[index],
		PoolCount:     registry.poolCount[index],
	}, nil
}

func hasFactory(
	factoryAddr common.Address,
	registry *FactoryRegistry,
) bool {
	_, ok := registry.addrToIndex[factoryAddr]
	return ok
}

// filterByEventCount returns the records whose accumulated event count is at
// or above threshold. A threshold of zero selects every factory in the
// registry. Order of the returned slice is not guaranteed.
func filterByEventCount(
	threshold uint64,
	registry *FactoryRegistry,
) []FactoryRecord {
	var filtered []FactoryRecord
	for i := range registry.address {
		if registry.eventCount[i] >= threshold {
			filtered = append(filtered, FactoryRecord{
				Variant:       registry.variant[i],
				Address:       registry.address[i],
				CreationBlock: registry.creationBlock[i],
			})
		}
	}
	return filtered
}
