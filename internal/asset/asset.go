// asset.go - Fungible assets and faucet issuance.
//
// A faucet is the only account type allowed to mint a fungible asset, and it
// mints at most its declared max supply. Conservation is enforced here, at
// issuance time, before any note logic runs.

package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrSupplyExceeded rejects issuance that would push the faucet past its
	// declared max supply.
	ErrSupplyExceeded = errors.New("faucet max supply exceeded")
	// ErrZeroAmount rejects empty issuance or empty assets.
	ErrZeroAmount = errors.New("asset amount must be positive")
)

// FungibleAsset is a token amount bound to the faucet that issued it.
type FungibleAsset struct {
	FaucetID string `json:"faucet_id"`
	Amount   uint64 `json:"amount"`
}

// Faucet mints a bounded supply of a single fungible asset.
type Faucet struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	MaxSupply uint64 `json:"max_supply"`
	Issued    uint64 `json:"issued"`
}

// NewFaucet creates a faucet with a fixed max supply.
func NewFaucet(id, symbol string, decimals uint8, maxSupply uint64) (*Faucet, error) {
	if id == "" || symbol == "" {
		return nil, fmt.Errorf("faucet id and symbol are required")
	}
	if maxSupply == 0 {
		return nil, fmt.Errorf("faucet max supply must be positive")
	}
	return &Faucet{
		ID:        id,
		Symbol:    symbol,
		Decimals:  decimals,
		MaxSupply: maxSupply,
	}, nil
}

// Issue mints amount units against this faucet. Total issuance never exceeds
// MaxSupply.
func (f *Faucet) Issue(amount uint64) (FungibleAsset, error) {
	if amount == 0 {
		return FungibleAsset{}, ErrZeroAmount
	}
	if amount > f.MaxSupply-f.Issued {
		return FungibleAsset{}, fmt.Errorf("%w: issued %d of %d, requested %d",
			ErrSupplyExceeded, f.Issued, f.MaxSupply, amount)
	}
	f.Issued += amount
	return FungibleAsset{FaucetID: f.ID, Amount: amount}, nil
}

// Remaining reports the unissued supply.
func (f *Faucet) Remaining() uint64 {
	return f.MaxSupply - f.Issued
}
