package vault

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/state"
)

type holderRecord struct {
	Holder    common.Address
	Shares    *big.Int
	Deposited *big.Int
	Withdrawn *big.Int
}

type vaultRecord struct {
	Owner          common.Address
	Strategy       common.Address
	TotalShares    *big.Int
	DepositFeeBps  uint64
	WithdrawFeeBps uint64
	TvlCap         *big.Int
	Holders        []holderRecord
}

func storageKey(addr common.Address) []byte {
	return []byte("vault/" + addr.Hex())
}

// Persist writes the vault's accounting to store.
func (v *Vault) Persist(store *state.Store) error {
	seen := make(map[common.Address]struct{})
	for _, book := range []map[common.Address]*uint256.Int{v.shares, v.deposited, v.withdrawn} {
		for holder := range book {
			seen[holder] = struct{}{}
		}
	}
	holders := make([]common.Address, 0, len(seen))
	for holder := range seen {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].Cmp(holders[j]) < 0 })

	record := vaultRecord{
		Owner:          v.owner,
		Strategy:       v.strategy,
		TotalShares:    v.totalShares.ToBig(),
		DepositFeeBps:  v.depositFeeBps,
		WithdrawFeeBps: v.withdrawFeeBps,
		TvlCap:         v.tvlCap.ToBig(),
		Holders:        make([]holderRecord, 0, len(holders)),
	}
	for _, holder := range holders {
		record.Holders = append(record.Holders, holderRecord{
			Holder:    holder,
			Shares:    amountOf(v.shares, holder).ToBig(),
			Deposited: amountOf(v.deposited, holder).ToBig(),
			Withdrawn: amountOf(v.withdrawn, holder).ToBig(),
		})
	}
	if err := store.KVPut(storageKey(v.address), record); err != nil {
		return fmt.Errorf("vault persist: %w", err)
	}
	return nil
}

// Load restores accounting previously written by Persist. It reports false
// when nothing was stored for this vault.
func (v *Vault) Load(store *state.Store) (bool, error) {
	var record vaultRecord
	ok, err := store.KVGet(storageKey(v.address), &record)
	if err != nil || !ok {
		return ok, err
	}
	totalShares, err := fromBig(record.TotalShares)
	if err != nil {
		return false, err
	}
	tvlCap, err := fromBig(record.TvlCap)
	if err != nil {
		return false, err
	}
	shares := make(map[common.Address]*uint256.Int)
	deposited := make(map[common.Address]*uint256.Int)
	withdrawn := make(map[common.Address]*uint256.Int)
	for _, h := range record.Holders {
		for _, pair := range []struct {
			book map[common.Address]*uint256.Int
			raw  *big.Int
		}{{shares, h.Shares}, {deposited, h.Deposited}, {withdrawn, h.Withdrawn}} {
			amt, err := fromBig(pair.raw)
			if err != nil {
				return false, err
			}
			if !amt.IsZero() {
				pair.book[h.Holder] = amt
			}
		}
	}
	v.owner = record.Owner
	v.strategy = record.Strategy
	v.totalShares = totalShares
	v.depositFeeBps = record.DepositFeeBps
	v.withdrawFeeBps = record.WithdrawFeeBps
	v.tvlCap = tvlCap
	v.shares = shares
	v.deposited = deposited
	v.withdrawn = withdrawn
	return true, nil
}

func fromBig(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("vault load: value %s overflows 256 bits", value)
	}
	return out, nil
}
