package storage

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/IncentivNetwork/ui-sdk/model"
	"github.com/IncentivNetwork/ui-sdk/storage/schema"
)

// ErrWalletNotFound is returned when no record exists for an owner/address
// pair.
var ErrWalletNotFound = errors.New("wallet not found")

// WalletLimitError rejects creation of a new wallet record once an owner
// already holds the configured maximum. Existing records stay readable and
// writable.
type WalletLimitError struct {
	Limit int
}

func (e *WalletLimitError) Error() string {
	return fmt.Sprintf("max smart wallet count reached for owner (limit=%d)", e.Limit)
}

// WalletStore persists derived smart wallet records so the same account does
// not have to be re-derived over RPC on every run.
type WalletStore struct {
	db          Storage
	maxPerOwner int
}

// NewWalletStore wraps db with the wallet key scheme. maxPerOwner caps how
// many records one owner may create, zero or negative disables the cap.
func NewWalletStore(db Storage, maxPerOwner int) *WalletStore {
	return &WalletStore{
		db:          db,
		maxPerOwner: maxPerOwner,
	}
}

// Save writes the record, creating or overwriting it. The per owner cap
// applies only to records that do not exist yet, updating a known wallet
// always succeeds.
func (s *WalletStore) Save(wallet *model.SmartWallet) error {
	if wallet == nil || wallet.Owner == nil || wallet.Address == nil {
		return fmt.Errorf("cannot store wallet without owner and address")
	}

	key := []byte(schema.WalletStorageKey(*wallet.Owner, wallet.Address.Hex()))

	if s.maxPerOwner > 0 {
		exists, err := s.db.Exist(key)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if !exists {
			count, err := s.db.CountKeysByPrefix(schema.WalletByOwnerPrefix(*wallet.Owner))
			if err != nil {
				return err
			}
			if count >= int64(s.maxPerOwner) {
				return &WalletLimitError{Limit: s.maxPerOwner}
			}
		}
	}

	data, err := wallet.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal wallet for storage (key: %s): %w", key, err)
	}

	return s.db.Set(key, data)
}

// Get loads the record for an owner/address pair.
func (s *WalletStore) Get(owner common.Address, address common.Address) (*model.SmartWallet, error) {
	key := []byte(schema.WalletStorageKey(owner, address.Hex()))

	data, err := s.db.GetKey(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	wallet := &model.SmartWallet{}
	if err := wallet.FromStorageData(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet data for key %s: %w", key, err)
	}

	return wallet, nil
}

// List returns every record saved for the owner, in key order.
func (s *WalletStore) List(owner common.Address) ([]*model.SmartWallet, error) {
	items, err := s.db.GetByPrefix(schema.WalletByOwnerPrefix(owner))
	if err != nil {
		return nil, err
	}

	wallets := make([]*model.SmartWallet, 0, len(items))
	for _, item := range items {
		wallet := &model.SmartWallet{}
		if err := wallet.FromStorageData(item.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wallet data for key %s: %w", item.Key, err)
		}
		wallets = append(wallets, wallet)
	}

	return wallets, nil
}

// MarkDeployed flips the deployment flag on an existing record.
func (s *WalletStore) MarkDeployed(owner common.Address, address common.Address) error {
	wallet, err := s.Get(owner, address)
	if err != nil {
		return err
	}

	wallet.Deployed = true

	data, err := wallet.ToJSON()
	if err != nil {
		return err
	}

	return s.db.Set([]byte(schema.WalletStorageKey(owner, address.Hex())), data)
}
