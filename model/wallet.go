package model

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SmartWallet is the locally persisted record of a derived smart account. It
// carries public coordinates only, never key material.
type SmartWallet struct {
	Owner   *common.Address `json:"owner"`
	Address *common.Address `json:"address"`
	Factory *common.Address `json:"factory,omitempty"`
	Salt    *big.Int        `json:"salt"`

	// Deployed flips to true once the account contract has been observed
	// onchain. It never flips back.
	Deployed bool `json:"deployed"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// NewSmartWallet builds a record for a freshly derived account. A nil salt is
// stored as salt zero, matching the factory default.
func NewSmartWallet(owner, address, factory common.Address, salt *big.Int) *SmartWallet {
	if salt == nil {
		salt = big.NewInt(0)
	}

	o := owner
	a := address
	f := factory

	return &SmartWallet{
		Owner:     &o,
		Address:   &a,
		Factory:   &f,
		Salt:      new(big.Int).Set(salt),
		CreatedAt: time.Now().Unix(),
	}
}

func (w *SmartWallet) ToJSON() ([]byte, error) {
	return json.Marshal(w)
}

func (w *SmartWallet) FromStorageData(body []byte) error {
	return json.Unmarshal(body, w)
}
