package mint

import (
	"fmt"

	"hashlock/internal/asset"
	"hashlock/internal/hashlock"
)

// MintTx credits freshly issued faucet funds to a receiving account. Supply
// conservation is enforced by the faucet at issuance time, before the ledger
// is touched.
type MintTx struct {
	FaucetID string              `json:"faucet_id"`
	Receiver hashlock.AccountID  `json:"receiver"`
	Asset    asset.FungibleAsset `json:"asset"`
}

// Mint issues amount units from the faucet for the receiver.
func Mint(f *asset.Faucet, receiver hashlock.AccountID, amount uint64) (*MintTx, error) {
	a, err := f.Issue(amount)
	if err != nil {
		return nil, fmt.Errorf("mint rejected: %w", err)
	}
	return &MintTx{FaucetID: f.ID, Receiver: receiver, Asset: a}, nil
}

// Apply credits the minted asset on the ledger.
func (tx *MintTx) Apply(l *hashlock.Ledger) error {
	if tx.Asset.Amount == 0 {
		return asset.ErrZeroAmount
	}
	l.Credit(tx.Receiver, tx.Asset.FaucetID, tx.Asset.Amount)
	return nil
}
