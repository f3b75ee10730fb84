package schema

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet records live under w:<owner>:<address>. Both addresses are lowercase
// hex so prefix scans never depend on checksum casing.

// WalletByOwnerPrefix returns the storage prefix covering every wallet record
// of the given owner
func WalletByOwnerPrefix(owner common.Address) []byte {
	return []byte(fmt.Sprintf(
		"w:%s",
		strings.ToLower(owner.Hex()),
	))
}

// WalletStorageKey constructs the storage key for one owner/wallet pair
func WalletStorageKey(owner common.Address, smartWalletAddress string) string {
	return fmt.Sprintf(
		"w:%s:%s",
		strings.ToLower(owner.Hex()),
		strings.ToLower(smartWalletAddress),
	)
}
