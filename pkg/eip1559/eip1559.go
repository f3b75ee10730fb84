// Package eip1559 sources the maxFeePerGas / maxPriorityFeePerGas pair used
// when pricing a user operation.
package eip1559

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// SuggestFee queries the node and returns (maxFeePerGas, maxPriorityFeePerGas).
func SuggestFee(ctx context.Context, client *ethclient.Client) (*big.Int, *big.Int, error) {
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	maxFeePerGas, maxPriorityFeePerGas := computeFees(tipCap, header.BaseFee)
	return maxFeePerGas, maxPriorityFeePerGas, nil
}

// computeFees turns the node's suggested tip and the head base fee into the
// pair attached to a user operation. baseFee is nil on pre-EIP-1559 chains.
func computeFees(tipCap, baseFee *big.Int) (*big.Int, *big.Int) {
	// Add 13% buffer to the suggested tip.
	buffer := new(big.Int).Div(tipCap, big.NewInt(100))
	buffer = new(big.Int).Mul(buffer, big.NewInt(13))
	maxPriorityFeePerGas := new(big.Int).Add(tipCap, buffer)

	// Bundlers drop operations that tip below their profitability floor.
	minTip := big.NewInt(2_000_000_000) // 2 gwei
	if maxPriorityFeePerGas.Cmp(minTip) < 0 {
		maxPriorityFeePerGas = minTip
	}

	var maxFeePerGas *big.Int

	if baseFee != nil {
		// maxFeePerGas = 2*baseFee + tip keeps the operation includable even
		// if the base fee doubles before inclusion.
		maxFeePerGas = new(big.Int).Add(
			new(big.Int).Mul(baseFee, big.NewInt(2)),
			maxPriorityFeePerGas,
		)

		// Floor for high-basefee chains.
		minMaxFee := big.NewInt(20_000_000_000) // 20 gwei
		if maxFeePerGas.Cmp(minMaxFee) < 0 {
			maxFeePerGas = minMaxFee
		}
	} else {
		// Pre-EIP-1559 chain.
		maxFeePerGas = new(big.Int).Set(maxPriorityFeePerGas)
	}

	return maxFeePerGas, maxPriorityFeePerGas
}

// Suggester abstracts fee sourcing so callers can plug in caching or fixed
// fees.
type Suggester interface {
	SuggestFee(ctx context.Context) (maxFeePerGas, maxPriorityFeePerGas *big.Int, err error)
}

// ClientSuggester queries an RPC node on every call.
type ClientSuggester struct {
	client *ethclient.Client
}

func NewClientSuggester(client *ethclient.Client) *ClientSuggester {
	return &ClientSuggester{client: client}
}

func (s *ClientSuggester) SuggestFee(ctx context.Context) (*big.Int, *big.Int, error) {
	return SuggestFee(ctx, s.client)
}

// FixedSuggester always returns the same pair. Each call hands out copies so
// callers can mutate the results freely.
type FixedSuggester struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (s *FixedSuggester) SuggestFee(ctx context.Context) (*big.Int, *big.Int, error) {
	return new(big.Int).Set(s.MaxFeePerGas), new(big.Int).Set(s.MaxPriorityFeePerGas), nil
}
