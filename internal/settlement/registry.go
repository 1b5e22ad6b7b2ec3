package settlement

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry resolves network identifiers to adapters.
type Registry struct {
	mu       sync.RWMutex
	aliases  map[string]Adapter
	fallback Adapter
	logger   logrus.FieldLogger
}

// NewRegistry builds the registry with the Ethereum, Bitcoin and Polygon adapters.
func NewRegistry(logger logrus.FieldLogger) *Registry {
	logger = orStandard(logger)
	eth := NewEthereumAdapter(logger)
	btc := NewBitcoinAdapter(logger)
	poly := NewPolygonAdapter(logger)
	return &Registry{
		aliases: map[string]Adapter{
			"ETH":      eth,
			"ETHEREUM": eth,
			"BTC":      btc,
			"BITCOIN":  btc,
			"MATIC":    poly,
			"POLYGON":  poly,
		},
		fallback: eth,
		logger:   logger,
	}
}

// Register adds or replaces an alias.
func (r *Registry) Register(alias string, adapter Adapter) {
	if adapter == nil {
		return
	}
	r.mu.Lock()
	r.aliases[normalize(alias)] = adapter
	r.mu.Unlock()
}

// Resolve returns the adapter for network. Unknown networks fall back to
// Ethereum with a warning and never fail.
func (r *Registry) Resolve(network string) Adapter {
	r.mu.RLock()
	adapter, ok := r.aliases[normalize(network)]
	r.mu.RUnlock()
	if ok {
		return adapter
	}
	r.logger.WithField("network", network).Warnf("Unknown network %s, defaulting to Ethereum", network)
	return r.fallback
}

func normalize(network string) string {
	return strings.ToUpper(strings.TrimSpace(network))
}
