package bank

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/state"
)

var ledgerKey = []byte("bank/ledger")

type balanceRecord struct {
	Holder common.Address
	Amount *big.Int
}

type tokenRecord struct {
	Token    common.Address
	Supply   *big.Int
	Balances []balanceRecord
}

type ledgerRecord struct {
	Tokens []tokenRecord
}

func sortedAddresses[V any](m map[common.Address]V) []common.Address {
	out := make([]common.Address, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Persist writes every token's supply and non-zero balances to store.
func (l *Ledger) Persist(store *state.Store) error {
	tokens := make(map[common.Address]struct{}, len(l.supply))
	for token := range l.supply {
		tokens[token] = struct{}{}
	}
	for token := range l.balances {
		tokens[token] = struct{}{}
	}
	var record ledgerRecord
	for _, token := range sortedAddresses(tokens) {
		entry := tokenRecord{Token: token, Supply: l.TotalSupply(token).ToBig()}
		holders := l.balances[token]
		for _, holder := range sortedAddresses(holders) {
			if holders[holder].IsZero() {
				continue
			}
			entry.Balances = append(entry.Balances, balanceRecord{Holder: holder, Amount: holders[holder].ToBig()})
		}
		record.Tokens = append(record.Tokens, entry)
	}
	if err := store.KVPut(ledgerKey, record); err != nil {
		return fmt.Errorf("bank persist: %w", err)
	}
	return nil
}

// Load replaces the ledger contents with what Persist stored, reporting
// false when nothing was stored.
func (l *Ledger) Load(store *state.Store) (bool, error) {
	var record ledgerRecord
	ok, err := store.KVGet(ledgerKey, &record)
	if err != nil || !ok {
		return ok, err
	}
	balances := make(map[common.Address]map[common.Address]*uint256.Int, len(record.Tokens))
	supply := make(map[common.Address]*uint256.Int, len(record.Tokens))
	for _, token := range record.Tokens {
		total, err := decodeAmount(token.Supply)
		if err != nil {
			return false, err
		}
		supply[token.Token] = total
		holders := make(map[common.Address]*uint256.Int, len(token.Balances))
		for _, bal := range token.Balances {
			amount, err := decodeAmount(bal.Amount)
			if err != nil {
				return false, err
			}
			holders[bal.Holder] = amount
		}
		balances[token.Token] = holders
	}
	l.balances = balances
	l.supply = supply
	return true, nil
}

func decodeAmount(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("bank load: amount %s overflows 256 bits", value)
	}
	return out, nil
}
