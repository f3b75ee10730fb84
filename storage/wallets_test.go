package storage

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IncentivNetwork/ui-sdk/model"
	"github.com/IncentivNetwork/ui-sdk/storage/schema"
)

var (
	testOwner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testFactory = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
)

func testDB(t *testing.T) Storage {
	t.Helper()

	db, err := NewWithPath(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testWallet(owner common.Address, salt int64) *model.SmartWallet {
	addr := common.BigToAddress(big.NewInt(0x1000 + salt))
	return model.NewSmartWallet(owner, addr, testFactory, big.NewInt(salt))
}

func TestWalletStoreRoundTrip(t *testing.T) {
	store := NewWalletStore(testDB(t), 0)

	wallet := testWallet(testOwner, 9876)
	require.NoError(t, store.Save(wallet))

	got, err := store.Get(testOwner, *wallet.Address)
	require.NoError(t, err)

	assert.Equal(t, testOwner.Hex(), got.Owner.Hex())
	assert.Equal(t, wallet.Address.Hex(), got.Address.Hex())
	assert.Equal(t, testFactory.Hex(), got.Factory.Hex())
	assert.Equal(t, "9876", got.Salt.String())
	assert.False(t, got.Deployed)
	assert.Equal(t, wallet.CreatedAt, got.CreatedAt)

	_, err = store.Get(testOwner, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletStoreRejectsIncompleteRecord(t *testing.T) {
	store := NewWalletStore(testDB(t), 0)

	require.Error(t, store.Save(nil))
	require.Error(t, store.Save(&model.SmartWallet{Owner: &testOwner}))
}

func TestWalletStoreList(t *testing.T) {
	store := NewWalletStore(testDB(t), 0)

	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	for salt := int64(0); salt < 3; salt++ {
		require.NoError(t, store.Save(testWallet(testOwner, salt)))
	}
	require.NoError(t, store.Save(testWallet(other, 0)))

	wallets, err := store.List(testOwner)
	require.NoError(t, err)
	require.Len(t, wallets, 3)

	seen := map[string]bool{}
	for _, w := range wallets {
		assert.Equal(t, testOwner.Hex(), w.Owner.Hex())
		seen[w.Salt.String()] = true
	}
	assert.Equal(t, map[string]bool{"0": true, "1": true, "2": true}, seen)

	wallets, err = store.List(other)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)

	wallets, err = store.List(common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestWalletStoreLimitBlocksNewRecordsOnly(t *testing.T) {
	store := NewWalletStore(testDB(t), 2)

	first := testWallet(testOwner, 0)
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(testWallet(testOwner, 1)))

	err := store.Save(testWallet(testOwner, 2))
	var limitErr *WalletLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Contains(t, err.Error(), "max smart wallet count reached for owner (limit=2)")

	// Updating a record that already exists is not creation.
	first.Deployed = true
	require.NoError(t, store.Save(first))

	got, err := store.Get(testOwner, *first.Address)
	require.NoError(t, err)
	assert.True(t, got.Deployed)

	// Another owner is counted separately.
	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, store.Save(testWallet(other, 0)))
}

func TestWalletStoreMarkDeployed(t *testing.T) {
	store := NewWalletStore(testDB(t), 1)

	wallet := testWallet(testOwner, 0)
	require.NoError(t, store.Save(wallet))

	require.NoError(t, store.MarkDeployed(testOwner, *wallet.Address))

	got, err := store.Get(testOwner, *wallet.Address)
	require.NoError(t, err)
	assert.True(t, got.Deployed)
	assert.Equal(t, "0", got.Salt.String())

	err = store.MarkDeployed(testOwner, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletStorageKeyCasing(t *testing.T) {
	addr := common.HexToAddress("0x61f9b158c6a340b57ba255cbe5B6e61f4BE0eAf9")

	key := schema.WalletStorageKey(testOwner, addr.Hex())
	assert.Equal(t, fmt.Sprintf("w:%s:%s",
		strings.ToLower(testOwner.Hex()),
		strings.ToLower(addr.Hex()),
	), key)

	prefix := schema.WalletByOwnerPrefix(testOwner)
	assert.True(t, strings.HasPrefix(key, string(prefix)))
}

func TestBadgerStorageBasics(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.Set([]byte("k:a"), []byte("1")))
	require.NoError(t, db.Set([]byte("k:b"), []byte("2")))
	require.NoError(t, db.Set([]byte("x:c"), []byte("3")))

	value, err := db.GetKey([]byte("k:a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	exists, err := db.Exist([]byte("k:a"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, _ = db.Exist([]byte("k:missing"))
	assert.False(t, exists)

	count, err := db.CountKeysByPrefix([]byte("k:"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = db.CountKeysByPrefix(nil)
	require.Error(t, err)

	items, err := db.GetByPrefix([]byte("k:"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []byte("k:a"), items[0].Key)
	assert.Equal(t, []byte("1"), items[0].Value)

	require.NoError(t, db.Delete([]byte("k:a")))
	_, err = db.GetKey([]byte("k:a"))
	assert.True(t, errors.Is(err, badger.ErrKeyNotFound))
}
