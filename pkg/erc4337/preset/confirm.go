package preset

import (
	"context"
	"fmt"
	"math/big"
	"time"

	retry "github.com/avast/retry-go"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/IncentivNetwork/ui-sdk/core/chainio/aa"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

const (
	// Lookback window for the event scan, enough to survive small reorgs.
	receiptLookbackBlocks = 20

	DefaultConfirmInterval = 3 * time.Second
	DefaultConfirmAttempts = 40
)

// OnchainReceipt pairs the bundle transaction receipt with the entrypoint's
// UserOperationEvent for one operation. The event carries the per-operation
// outcome; the receipt only covers the whole bundle.
type OnchainReceipt struct {
	Receipt *types.Receipt
	Event   *aa.EntryPointUserOperationEvent
}

// WaitMined polls the chain until the operation's UserOperationEvent shows up
// in the entrypoint's logs, then fetches the enclosing transaction receipt.
// It works against any node and does not need the bundler's receipt RPC.
// interval and attempts fall back to the package defaults when zero; the
// polling backs off exponentially from interval.
func WaitMined(
	ctx context.Context,
	client *ethclient.Client,
	entryPoint common.Address,
	opHash common.Hash,
	interval time.Duration,
	attempts uint,
	lg logger.Logger,
) (*OnchainReceipt, error) {
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}
	if attempts == 0 {
		attempts = DefaultConfirmAttempts
	}
	log := logger.EnsureLogger(lg)

	epABI, err := aa.EntryPointMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	eventID := epABI.Events["UserOperationEvent"].ID

	var found *OnchainReceipt
	err = retry.Do(
		func() error {
			r, ok, err := findUserOpEvent(ctx, client, entryPoint, eventID, opHash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user operation %s not mined yet", opHash.Hex())
			}
			found = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(30*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	log.Info("user operation mined",
		"userop_hash", opHash.Hex(),
		"tx_hash", found.Receipt.TxHash.Hex(),
		"block", found.Receipt.BlockNumber.String(),
		"success", found.Event.Success,
		"actual_gas_cost", found.Event.ActualGasCost.String(),
	)
	return found, nil
}

// findUserOpEvent scans the recent block window for the UserOperationEvent
// indexed by opHash.
func findUserOpEvent(
	ctx context.Context,
	client *ethclient.Client,
	entryPoint common.Address,
	eventID common.Hash,
	opHash common.Hash,
) (*OnchainReceipt, bool, error) {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("error reading block number: %w", err)
	}
	from := int64(0)
	if head > receiptLookbackBlocks {
		from = int64(head - receiptLookbackBlocks)
	}

	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		Addresses: []common.Address{entryPoint},
		Topics:    [][]common.Hash{{eventID}, {opHash}},
	})
	if err != nil {
		return nil, false, fmt.Errorf("error filtering entrypoint logs: %w", err)
	}
	if len(logs) == 0 {
		return nil, false, nil
	}

	filterer, err := aa.NewEntryPointFilterer(entryPoint, client)
	if err != nil {
		return nil, false, err
	}
	event, err := filterer.ParseUserOperationEvent(logs[0])
	if err != nil {
		return nil, false, fmt.Errorf("error parsing UserOperationEvent: %w", err)
	}

	receipt, err := client.TransactionReceipt(ctx, logs[0].TxHash)
	if err != nil {
		return nil, false, fmt.Errorf("error fetching receipt for tx %s: %w", logs[0].TxHash.Hex(), err)
	}

	return &OnchainReceipt{Receipt: receipt, Event: event}, true, nil
}

// WaitMined on a builder waits for the operation this builder submitted.
func (b *Builder) WaitMined(ctx context.Context, interval time.Duration, attempts uint) (*OnchainReceipt, error) {
	if err := b.requireState(StateSubmitted, "WaitMined"); err != nil {
		return nil, err
	}
	return WaitMined(ctx, b.client, b.entryPoint, b.submittedOpHash, interval, attempts, b.logger)
}
