package bundler

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

// NonceManager tracks the next nonce per sender so sequential operations can
// be built before earlier ones are mined. It combines on-chain state with
// knowledge of submitted-but-not-yet-mined operations.
type NonceManager struct {
	// next nonce per sender hex
	pendingNonces map[string]*big.Int
	mu            sync.RWMutex
	logger        logger.Logger
}

func NewNonceManager(lg logger.Logger) *NonceManager {
	return &NonceManager{
		pendingNonces: make(map[string]*big.Int),
		logger:        logger.EnsureLogger(lg),
	}
}

// GetNextNonce returns max(on-chain nonce, cached pending nonce) so a nonce
// already pending in the bundler mempool is never reused. fetch reads the
// on-chain value.
func (nm *NonceManager) GetNextNonce(sender common.Address, fetch func() (*big.Int, error)) (*big.Int, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	onChain, err := fetch()
	if err != nil {
		return nil, err
	}

	cached, hasCached := nm.pendingNonces[sender.Hex()]

	next := new(big.Int).Set(onChain)
	if hasCached && cached.Cmp(onChain) > 0 {
		// Cached is ahead: earlier operations are still pending. When the
		// chain is ahead instead, the pending ones were mined or dropped and
		// the on-chain value is authoritative.
		next.Set(cached)
	}

	nm.logger.Debug("resolved next nonce",
		"sender", sender.Hex(),
		"on_chain", onChain.String(),
		"next", next.String(),
	)

	return next, nil
}

// IncrementNonce records that nonce was consumed by a submission, so the next
// operation for sender builds on top of it.
func (nm *NonceManager) IncrementNonce(sender common.Address, nonce *big.Int) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.pendingNonces[sender.Hex()] = new(big.Int).Add(nonce, big.NewInt(1))
}

// ResetNonce clears the cached nonce for sender, forcing the next
// GetNextNonce to trust the chain. Use after a nonce conflict.
func (nm *NonceManager) ResetNonce(sender common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	delete(nm.pendingNonces, sender.Hex())
}

// SetNonce pins the cached nonce for sender.
func (nm *NonceManager) SetNonce(sender common.Address, nonce *big.Int) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.pendingNonces[sender.Hex()] = new(big.Int).Set(nonce)
}

// GetCachedNonce returns the cached nonce without touching the chain.
func (nm *NonceManager) GetCachedNonce(sender common.Address) (*big.Int, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	nonce, ok := nm.pendingNonces[sender.Hex()]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(nonce), true
}
