package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/native/bank"
)

func (v *Vault) onlyOwner(caller common.Address) error {
	if caller != v.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// UpdateTvlCap sets the maximum total assets accepted by Deposit. Lowering
// the cap below current assets only blocks further deposits.
func (v *Vault) UpdateTvlCap(caller common.Address, cap *uint256.Int) error {
	return v.run("update_tvl_cap", func() error {
		if err := v.onlyOwner(caller); err != nil {
			return err
		}
		if cap == nil {
			return fmt.Errorf("vault: nil tvl cap")
		}
		v.tvlCap = new(uint256.Int).Set(cap)
		evt := events.VaultTvlCapUpdated{Vault: v.address, Cap: new(uint256.Int).Set(cap)}
		v.journal.Defer(func() { v.emitter.Emit(evt) })
		return nil
	})
}

// RemoveTvlCap lifts the deposit cap.
func (v *Vault) RemoveTvlCap(caller common.Address) error {
	return v.UpdateTvlCap(caller, new(uint256.Int).SetAllOne())
}

// UpdateDepositFee sets the deposit fee in basis points.
func (v *Vault) UpdateDepositFee(caller common.Address, bps uint64) error {
	return v.run("update_fees", func() error {
		if err := v.onlyOwner(caller); err != nil {
			return err
		}
		if err := validateFees(bps, v.withdrawFeeBps); err != nil {
			return err
		}
		v.depositFeeBps = bps
		v.deferFeesUpdated()
		return nil
	})
}

// UpdateWithdrawFee sets the withdraw fee, bounded by MaxWithdrawFeeBps.
func (v *Vault) UpdateWithdrawFee(caller common.Address, bps uint64) error {
	return v.run("update_fees", func() error {
		if err := v.onlyOwner(caller); err != nil {
			return err
		}
		if err := validateFees(v.depositFeeBps, bps); err != nil {
			return err
		}
		v.withdrawFeeBps = bps
		v.deferFeesUpdated()
		return nil
	})
}

func (v *Vault) deferFeesUpdated() {
	evt := events.VaultFeesUpdated{Vault: v.address, DepositFeeBps: v.depositFeeBps, WithdrawFeeBps: v.withdrawFeeBps}
	v.journal.Defer(func() { v.emitter.Emit(evt) })
}

// InCaseTokensGetStuck sends the vault's whole balance of a non-want token
// to the owner.
func (v *Vault) InCaseTokensGetStuck(caller, token common.Address) (*uint256.Int, error) {
	var swept *uint256.Int
	err := v.run("sweep", func() error {
		if err := v.onlyOwner(caller); err != nil {
			return err
		}
		if token == v.want {
			return ErrWantToken
		}
		swept = v.ledger.BalanceOf(token, v.address)
		return v.ledger.Transfer(token, v.address, v.owner, swept)
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// TransferShares moves shares between holders without touching assets.
func (v *Vault) TransferShares(from, to common.Address, shares *uint256.Int) error {
	return v.run("transfer_shares", func() error {
		if shares == nil || shares.IsZero() {
			return ErrZeroAmount
		}
		if to == (common.Address{}) {
			return bank.ErrZeroRecipient
		}
		held := v.BalanceOf(from)
		if held.Lt(shares) {
			return fmt.Errorf("%w: holds %s, requested %s", ErrInsufficientShares, held.Dec(), shares.Dec())
		}
		subFrom(v.shares, from, shares)
		addTo(v.shares, to, shares)
		return nil
	})
}

// TransferOwnership hands the owner role to next.
func (v *Vault) TransferOwnership(caller, next common.Address) error {
	return v.run("transfer_ownership", func() error {
		if err := v.onlyOwner(caller); err != nil {
			return err
		}
		if next == (common.Address{}) {
			return fmt.Errorf("vault: zero owner")
		}
		v.owner = next
		return nil
	})
}
