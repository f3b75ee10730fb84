package bundler

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nonceSender = common.HexToAddress("0xe0f7D11FD714674722d325Cd86062A5F1882E13a")

func fetchReturning(n int64) func() (*big.Int, error) {
	return func() (*big.Int, error) { return big.NewInt(n), nil }
}

func TestGetNextNonce_FirstSeen(t *testing.T) {
	nm := NewNonceManager(nil)

	next, err := nm.GetNextNonce(nonceSender, fetchReturning(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), next)
}

func TestGetNextNonce_PendingAhead(t *testing.T) {
	nm := NewNonceManager(nil)

	// Two submissions went out at nonces 5 and 6; chain still reports 5.
	nm.IncrementNonce(nonceSender, big.NewInt(5))
	nm.IncrementNonce(nonceSender, big.NewInt(6))

	next, err := nm.GetNextNonce(nonceSender, fetchReturning(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), next, "pending submissions must advance the nonce")
}

func TestGetNextNonce_ChainAhead(t *testing.T) {
	nm := NewNonceManager(nil)

	nm.SetNonce(nonceSender, big.NewInt(3))

	// Operations mined (or dropped) elsewhere, chain advanced past the cache.
	next, err := nm.GetNextNonce(nonceSender, fetchReturning(9))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9), next)
}

func TestGetNextNonce_FetchError(t *testing.T) {
	nm := NewNonceManager(nil)

	_, err := nm.GetNextNonce(nonceSender, func() (*big.Int, error) {
		return nil, fmt.Errorf("node down")
	})
	assert.ErrorContains(t, err, "node down")
}

func TestResetNonce(t *testing.T) {
	nm := NewNonceManager(nil)

	nm.SetNonce(nonceSender, big.NewInt(11))
	_, ok := nm.GetCachedNonce(nonceSender)
	require.True(t, ok)

	nm.ResetNonce(nonceSender)
	_, ok = nm.GetCachedNonce(nonceSender)
	assert.False(t, ok)
}

func TestGetCachedNonce_ReturnsCopy(t *testing.T) {
	nm := NewNonceManager(nil)

	nm.SetNonce(nonceSender, big.NewInt(4))

	cached, ok := nm.GetCachedNonce(nonceSender)
	require.True(t, ok)
	cached.SetInt64(99)

	again, ok := nm.GetCachedNonce(nonceSender)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(4), again, "mutating a returned nonce must not corrupt the cache")
}
