package vault

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	nativecommon "cryptvault/native/common"
	"cryptvault/observability/metrics"
)

// run executes fn as one non-reentrant, all-or-nothing unit.
func (v *Vault) run(operation string, fn func() error) error {
	err := nativecommon.Guard(&v.guard, func() error {
		return v.journal.Atomic(fn)
	})
	if err != nil {
		metrics.Vault().IncError(operation, errorKind(err))
		v.logger.Debug("vault operation rejected", "operation", operation, "error", err)
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, ErrStrategyPaused):
		return "strategy_paused"
	case errors.Is(err, ErrStrategyRetired):
		return "strategy_retired"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrVaultInsolvent):
		return "insolvent"
	case errors.Is(err, nativecommon.ErrReentrancyDetected):
		return "reentrancy"
	default:
		return "other"
	}
}

// live returns the wired strategy when it can accept capital.
func (v *Vault) live() (Strategy, error) {
	strat, err := v.resolve()
	if err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, ErrNotInitialized
	}
	if strat.Retired() {
		return nil, ErrStrategyRetired
	}
	if strat.Paused() {
		return nil, ErrStrategyPaused
	}
	return strat, nil
}

func (v *Vault) totalAssets(strat Strategy) *uint256.Int {
	total := v.Available()
	if strat != nil {
		total.Add(total, strat.BalanceOf())
	}
	return total
}

// Deposit pulls amount of want from caller, mints shares priced against the
// pre-deposit pool net of the deposit fee and forwards idle capital to the
// strategy. It returns the minted shares.
func (v *Vault) Deposit(caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.run("deposit", func() error {
		var err error
		minted, err = v.deposit(caller, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// DepositAll deposits the caller's entire want balance.
func (v *Vault) DepositAll(caller common.Address) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.run("deposit", func() error {
		var err error
		minted, err = v.deposit(caller, v.ledger.BalanceOf(v.want, caller))
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

func (v *Vault) deposit(caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	strat, err := v.live()
	if err != nil {
		return nil, err
	}
	pool := v.totalAssets(strat)
	after, overflow := new(uint256.Int).AddOverflow(pool, amount)
	if overflow || after.Gt(v.tvlCap) {
		return nil, fmt.Errorf("%w: %s + %s above %s", ErrInsufficientCapacity, pool.Dec(), amount.Dec(), v.tvlCap.Dec())
	}

	net := new(uint256.Int).Sub(amount, nativecommon.ApplyBps(amount, v.depositFeeBps))
	shares := net
	if !v.totalShares.IsZero() {
		if pool.IsZero() {
			return nil, ErrVaultInsolvent
		}
		if shares, err = nativecommon.MulDiv(net, v.totalShares, pool); err != nil {
			return nil, err
		}
	}
	if shares.IsZero() {
		return nil, fmt.Errorf("%w: deposit of %s mints no shares", ErrZeroAmount, amount.Dec())
	}

	v.totalShares = new(uint256.Int).Add(v.totalShares, shares)
	addTo(v.shares, caller, shares)
	addTo(v.deposited, caller, amount)

	if err := v.ledger.Transfer(v.want, caller, v.address, amount); err != nil {
		return nil, fmt.Errorf("vault deposit: %w", err)
	}
	if err := v.earn(strat); err != nil {
		return nil, err
	}

	evt := events.VaultDeposit{Vault: v.address, Holder: caller, Amount: new(uint256.Int).Set(amount), Shares: new(uint256.Int).Set(shares)}
	v.journal.Defer(func() {
		v.emitter.Emit(evt)
		m := metrics.Vault()
		m.ObserveDeposit(v.address.Hex(), evt.Amount.Float64())
		v.observeGauges(m)
		v.logger.Info("deposit", "holder", caller.Hex(), "amount", evt.Amount.Dec(), "shares", evt.Shares.Dec())
	})
	return shares, nil
}

// Withdraw burns shares and pays caller their slice of total assets minus
// the withdraw fee, recalling the shortfall from the strategy when idle
// capital is insufficient. It returns the amount paid.
func (v *Vault) Withdraw(caller common.Address, shares *uint256.Int) (*uint256.Int, error) {
	var payout *uint256.Int
	err := v.run("withdraw", func() error {
		var err error
		payout, err = v.withdraw(caller, shares)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// WithdrawAll redeems every share held by caller.
func (v *Vault) WithdrawAll(caller common.Address) (*uint256.Int, error) {
	var payout *uint256.Int
	err := v.run("withdraw", func() error {
		var err error
		payout, err = v.withdraw(caller, v.BalanceOf(caller))
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (v *Vault) withdraw(caller common.Address, shares *uint256.Int) (*uint256.Int, error) {
	if shares == nil || shares.IsZero() {
		return nil, ErrZeroAmount
	}
	held := v.BalanceOf(caller)
	if held.Lt(shares) {
		return nil, fmt.Errorf("%w: holds %s, requested %s", ErrInsufficientShares, held.Dec(), shares.Dec())
	}
	strat, err := v.resolve()
	if err != nil {
		return nil, err
	}
	owed, err := nativecommon.MulDiv(shares, v.totalAssets(strat), v.totalShares)
	if err != nil {
		return nil, err
	}

	// Burn before any transfer.
	v.totalShares = new(uint256.Int).Sub(v.totalShares, shares)
	subFrom(v.shares, caller, shares)

	fee := nativecommon.ApplyBps(owed, v.withdrawFeeBps)
	payout := new(uint256.Int).Sub(owed, fee)
	idle := v.Available()
	if idle.Lt(payout) && strat != nil && !strat.Retired() {
		shortfall := new(uint256.Int).Sub(payout, idle)
		if err := strat.Withdraw(v.address, shortfall); err != nil {
			return nil, fmt.Errorf("vault withdraw: recall %s: %w", shortfall.Dec(), err)
		}
		idle = v.Available()
	}
	if idle.Lt(payout) {
		payout = idle
	}
	if err := v.ledger.Transfer(v.want, v.address, caller, payout); err != nil {
		return nil, fmt.Errorf("vault withdraw: %w", err)
	}
	addTo(v.withdrawn, caller, payout)

	evt := events.VaultWithdraw{Vault: v.address, Holder: caller, Shares: new(uint256.Int).Set(shares), Payout: new(uint256.Int).Set(payout), Fee: fee}
	v.journal.Defer(func() {
		v.emitter.Emit(evt)
		m := metrics.Vault()
		m.ObserveWithdraw(v.address.Hex(), evt.Payout.Float64())
		v.observeGauges(m)
		v.logger.Info("withdraw", "holder", caller.Hex(), "shares", evt.Shares.Dec(), "payout", evt.Payout.Dec(), "fee", evt.Fee.Dec())
	})
	return payout, nil
}

// Earn forwards the idle balance to the strategy. It is a no-op when no
// strategy is wired or the strategy cannot accept capital.
func (v *Vault) Earn() error {
	return v.run("earn", func() error {
		strat, err := v.live()
		if errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrStrategyPaused) || errors.Is(err, ErrStrategyRetired) {
			return nil
		}
		if err != nil {
			return err
		}
		return v.earn(strat)
	})
}

func (v *Vault) earn(strat Strategy) error {
	idle := v.Available()
	if idle.IsZero() {
		return nil
	}
	if err := v.ledger.Transfer(v.want, v.address, strat.Address(), idle); err != nil {
		return fmt.Errorf("vault earn: %w", err)
	}
	if err := strat.Deposit(v.address); err != nil {
		return fmt.Errorf("vault earn: %w", err)
	}
	return nil
}

// Initialize wires strategyAddr as the active strategy. Only the owner may
// call it, the strategy must point back at this vault and share its want
// token, and a live strategy must not already be wired. A retired strategy
// leaves the slot free for its replacement.
func (v *Vault) Initialize(caller, strategyAddr common.Address) error {
	return v.run("initialize", func() error {
		if caller != v.owner {
			return ErrUnauthorized
		}
		current, err := v.resolve()
		if err != nil {
			return err
		}
		if current != nil && !current.Retired() {
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, v.strategy.Hex())
		}
		contract, err := v.registry.Lookup(strategyAddr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
		}
		next, ok := contract.(Strategy)
		if !ok {
			return fmt.Errorf("%w: %s is not a strategy", ErrInvalidStrategy, strategyAddr.Hex())
		}
		if next.Vault() != v.address {
			return fmt.Errorf("%w: %s is bound to vault %s", ErrInvalidStrategy, strategyAddr.Hex(), next.Vault().Hex())
		}
		if next.Want() != v.want {
			return fmt.Errorf("%w: want token mismatch", ErrInvalidStrategy)
		}
		if next.Retired() {
			return ErrStrategyRetired
		}
		previous := v.strategy
		v.strategy = strategyAddr
		evt := events.VaultStrategyInitialized{Vault: v.address, Strategy: strategyAddr, Previous: previous}
		v.journal.Defer(func() {
			v.emitter.Emit(evt)
			v.logger.Info("strategy initialized", "strategy", strategyAddr.Hex(), "previous", previous.Hex())
		})
		return nil
	})
}

func (v *Vault) observeGauges(m *metrics.VaultMetrics) {
	label := v.address.Hex()
	m.SetTotalAssets(label, v.Balance().Float64())
	pps := v.GetPricePerFullShare().Float64() / nativecommon.WadUnit.Float64()
	m.SetPricePerShare(label, pps)
}
