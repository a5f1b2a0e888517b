package emov2

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Config{}
)

// Register adds a named configuration builder. Registering a duplicate name
// panics.
func Register(name string, builder func() Config) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("emov2: variant %q already registered", name))
	}
	registry[name] = builder
}

// VariantConfig returns the configuration of a registered variant.
func VariantConfig(name string) (Config, error) {
	registryMu.RLock()
	builder, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Config{}, fmt.Errorf("emov2: unknown variant %q (have %v)", name, Variants())
	}
	return builder(), nil
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("emov2_det", DefaultConfig)
	Register("emov2_hybrid", func() Config {
		cfg := DefaultConfig()
		cfg.HybridOps = [][]OpKind{{OpConv}, {OpConv}, {OpAttnHybrid}, {OpAttnHybrid}}
		return cfg
	})
	Register("emov2_small", func() Config {
		cfg := DefaultConfig()
		cfg.Depths = []int{1, 2, 2, 2}
		cfg.EmbedDims = []int{48, 72, 160, 288}
		cfg.DimHeads = []int{24, 24, 32, 32}
		return cfg
	})
}
