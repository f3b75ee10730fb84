package eip1559

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name            string
		tipCap          *big.Int
		baseFee         *big.Int
		wantMaxFee      *big.Int
		wantPriorityFee *big.Int
	}{
		{
			name:            "buffered tip plus double base fee",
			tipCap:          gwei(10),
			baseFee:         gwei(50),
			wantPriorityFee: big.NewInt(11_300_000_000),  // 10 gwei + 13%
			wantMaxFee:      big.NewInt(111_300_000_000), // 2*50 gwei + tip
		},
		{
			name:            "tip floors at 2 gwei",
			tipCap:          big.NewInt(100),
			baseFee:         gwei(50),
			wantPriorityFee: gwei(2),
			wantMaxFee:      gwei(102),
		},
		{
			name:            "max fee floors at 20 gwei",
			tipCap:          big.NewInt(0),
			baseFee:         big.NewInt(7),
			wantPriorityFee: gwei(2),
			wantMaxFee:      gwei(20),
		},
		{
			name:            "legacy chain without base fee",
			tipCap:          gwei(10),
			baseFee:         nil,
			wantPriorityFee: big.NewInt(11_300_000_000),
			wantMaxFee:      big.NewInt(11_300_000_000),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			maxFee, priorityFee := computeFees(tc.tipCap, tc.baseFee)
			assert.Equal(t, tc.wantMaxFee, maxFee)
			assert.Equal(t, tc.wantPriorityFee, priorityFee)
		})
	}
}

func TestFixedSuggester_ReturnsCopies(t *testing.T) {
	s := &FixedSuggester{
		MaxFeePerGas:         gwei(30),
		MaxPriorityFeePerGas: gwei(3),
	}

	maxFee, _, err := s.SuggestFee(context.Background())
	require.NoError(t, err)

	maxFee.SetInt64(1)

	maxFee2, priority2, err := s.SuggestFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gwei(30), maxFee2, "mutating a result must not leak into later calls")
	assert.Equal(t, gwei(3), priority2)
}

type countingSuggester struct {
	calls       int
	maxFee      *big.Int
	maxPriority *big.Int
	err         error
}

func (s *countingSuggester) SuggestFee(ctx context.Context) (*big.Int, *big.Int, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return new(big.Int).Set(s.maxFee), new(big.Int).Set(s.maxPriority), nil
}

func TestCachingSuggester(t *testing.T) {
	inner := &countingSuggester{maxFee: gwei(40), maxPriority: gwei(4)}

	s, err := NewCachingSuggester(inner, 0)
	require.NoError(t, err)

	maxFee, priority, err := s.SuggestFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gwei(40), maxFee)
	assert.Equal(t, gwei(4), priority)

	maxFee, priority, err = s.SuggestFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gwei(40), maxFee)
	assert.Equal(t, gwei(4), priority)
	assert.Equal(t, 1, inner.calls, "second lookup should hit the cache")

	s.Invalidate()

	_, _, err = s.SuggestFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "invalidation should force a fresh lookup")
}

func TestCachingSuggester_InnerError(t *testing.T) {
	inner := &countingSuggester{err: fmt.Errorf("node down")}

	s, err := NewCachingSuggester(inner, 0)
	require.NoError(t, err)

	_, _, err = s.SuggestFee(context.Background())
	require.ErrorContains(t, err, "node down")

	// Errors are not cached.
	inner.err = nil
	inner.maxFee = gwei(25)
	inner.maxPriority = gwei(2)

	maxFee, _, err := s.SuggestFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gwei(25), maxFee)
	assert.Equal(t, 2, inner.calls)
}

func TestFeeCacheCodec(t *testing.T) {
	maxFee, priority, err := decodeFees(encodeFees(gwei(100), gwei(7)))
	require.NoError(t, err)
	assert.Equal(t, gwei(100), maxFee)
	assert.Equal(t, gwei(7), priority)

	for _, raw := range []string{"", "123", "12|", "|12", "a|b"} {
		_, _, err := decodeFees([]byte(raw))
		assert.Error(t, err, "entry %q should not decode", raw)
	}
}
