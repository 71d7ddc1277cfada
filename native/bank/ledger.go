package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrZeroRecipient is returned when a transfer targets the zero address.
	ErrZeroRecipient = errors.New("bank: transfer to zero address")
	// ErrSupplyOverflow is returned when minting would exceed 2^256-1.
	ErrSupplyOverflow = errors.New("bank: supply overflow")
)

// TransferHook observes committed balance moves. A non-nil error aborts the
// enclosing unit of work.
type TransferHook func(token, from, to common.Address, amount *uint256.Int) error

// Ledger is the token balance book shared by the vault, the strategy and the
// external collaborators. Balances are keyed by token and then by holder.
type Ledger struct {
	balances map[common.Address]map[common.Address]*uint256.Int
	supply   map[common.Address]*uint256.Int
	hook     TransferHook
}

type ledgerSnapshot struct {
	balances map[common.Address]map[common.Address]*uint256.Int
	supply   map[common.Address]*uint256.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:   make(map[common.Address]*uint256.Int),
	}
}

// SetTransferHook installs a hook invoked after every transfer.
func (l *Ledger) SetTransferHook(hook TransferHook) {
	l.hook = hook
}

// BalanceOf returns a copy of holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *uint256.Int {
	if holders, ok := l.balances[token]; ok {
		if bal, ok := holders[holder]; ok {
			return new(uint256.Int).Set(bal)
		}
	}
	return new(uint256.Int)
}

// TotalSupply returns the minted supply of token.
func (l *Ledger) TotalSupply(token common.Address) *uint256.Int {
	if s, ok := l.supply[token]; ok {
		return new(uint256.Int).Set(s)
	}
	return new(uint256.Int)
}

// Mint credits amount of token to holder.
func (l *Ledger) Mint(token, holder common.Address, amount *uint256.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroRecipient
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.TotalSupply(token), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	l.supply[token] = supply
	l.credit(token, holder, amount)
	return nil
}

// Transfer moves amount of token from one holder to another. Zero-amount
// transfers succeed without touching state or invoking the hook.
func (l *Ledger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	balance := l.BalanceOf(token, from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}
	l.balances[token][from] = new(uint256.Int).Sub(balance, amount)
	l.credit(token, to, amount)
	if l.hook != nil {
		return l.hook(token, from, to, new(uint256.Int).Set(amount))
	}
	return nil
}

func (l *Ledger) credit(token, holder common.Address, amount *uint256.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[token] = holders
	}
	// Balance cannot overflow: it is bounded by the token supply.
	holders[holder] = new(uint256.Int).Add(l.BalanceOf(token, holder), amount)
}

// Snapshot implements state.Journaled.
func (l *Ledger) Snapshot() any {
	snap := ledgerSnapshot{
		balances: make(map[common.Address]map[common.Address]*uint256.Int, len(l.balances)),
		supply:   make(map[common.Address]*uint256.Int, len(l.supply)),
	}
	for token, holders := range l.balances {
		copied := make(map[common.Address]*uint256.Int, len(holders))
		for holder, bal := range holders {
			copied[holder] = new(uint256.Int).Set(bal)
		}
		snap.balances[token] = copied
	}
	for token, s := range l.supply {
		snap.supply[token] = new(uint256.Int).Set(s)
	}
	return snap
}

// Revert implements state.Journaled.
func (l *Ledger) Revert(snapshot any) {
	snap, ok := snapshot.(ledgerSnapshot)
	if !ok {
		return
	}
	l.balances = snap.balances
	l.supply = snap.supply
}
