package strategy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/native/access"
	"cryptvault/native/fees"
	"cryptvault/observability/metrics"
)

func (s *Strategy) onlyVault(caller common.Address) error {
	if caller != s.vault {
		return fmt.Errorf("%w: %w: %s", access.ErrUnauthorized, ErrNotVault, caller.Hex())
	}
	return nil
}

func (s *Strategy) stakeIdle() error {
	idle := s.ledger.BalanceOf(s.want, s.address)
	if idle.IsZero() {
		return nil
	}
	if err := s.farm.Deposit(s.poolID, s.address, idle); err != nil {
		return fmt.Errorf("strategy: stake: %w", err)
	}
	return nil
}

func (s *Strategy) unstakeAll() error {
	staked := s.farm.Staked(s.poolID, s.address)
	if staked.IsZero() {
		return nil
	}
	if err := s.farm.Withdraw(s.poolID, s.address, staked); err != nil {
		return fmt.Errorf("strategy: unstake: %w", err)
	}
	return nil
}

// Deposit stakes the strategy's idle want in the farm. Only the vault may
// call it and only while Active.
func (s *Strategy) Deposit(caller common.Address) error {
	return s.run("deposit", func() error {
		if err := s.onlyVault(caller); err != nil {
			return err
		}
		switch s.state {
		case StatePaused, StatePanicked:
			return fmt.Errorf("%w: %s", ErrStrategyPaused, s.state)
		case StateRetired:
			return ErrStrategyRetired
		}
		return s.stakeIdle()
	})
}

// Withdraw sends up to amount of want to the vault, paying from idle
// custody first and unstaking the shortfall. It works while Paused or
// Panicked so holders can always exit.
func (s *Strategy) Withdraw(caller common.Address, amount *uint256.Int) error {
	return s.run("withdraw", func() error {
		if err := s.onlyVault(caller); err != nil {
			return err
		}
		if s.state == StateRetired {
			return ErrStrategyRetired
		}
		if amount == nil || amount.IsZero() {
			return nil
		}
		idle := s.ledger.BalanceOf(s.want, s.address)
		if idle.Lt(amount) {
			shortfall := new(uint256.Int).Sub(amount, idle)
			staked := s.farm.Staked(s.poolID, s.address)
			if staked.Lt(shortfall) {
				shortfall = staked
			}
			if !shortfall.IsZero() {
				if err := s.farm.Withdraw(s.poolID, s.address, shortfall); err != nil {
					return fmt.Errorf("strategy withdraw: %w", err)
				}
			}
			idle = s.ledger.BalanceOf(s.want, s.address)
		}
		pay := amount
		if idle.Lt(pay) {
			pay = idle
		}
		return s.ledger.Transfer(s.want, s.address, s.vault, pay)
	})
}

func (s *Strategy) transition(caller common.Address, to State) {
	from := s.state
	s.state = to
	evt := events.StrategyStateChanged{Strategy: s.address, Caller: caller, From: from.String(), To: to.String()}
	s.journal.Defer(func() {
		s.emitter.Emit(evt)
		metrics.Strategy().SetState(s.address.Hex(), int(to))
		s.logger.Info("state changed", "caller", caller.Hex(), "from", from.String(), "to", to.String())
	})
}

// Pause blocks new deposits. Harvests and vault recalls keep working.
// Pausing a paused strategy is a no-op.
func (s *Strategy) Pause(caller common.Address) error {
	return s.run("pause", func() error {
		if err := s.roles.Authorize(caller, access.CapPause); err != nil {
			return err
		}
		switch s.state {
		case StatePaused:
			return nil
		case StatePanicked:
			return ErrStrategyPanicked
		case StateRetired:
			return ErrStrategyRetired
		}
		s.transition(caller, StatePaused)
		return nil
	})
}

// Unpause returns a paused strategy to Active and restakes idle want. A
// panicked strategy cannot be unpaused and must be replaced.
func (s *Strategy) Unpause(caller common.Address) error {
	return s.run("unpause", func() error {
		if err := s.roles.Authorize(caller, access.CapUnpause); err != nil {
			return err
		}
		switch s.state {
		case StateActive:
			return nil
		case StatePanicked:
			return ErrStrategyPanicked
		case StateRetired:
			return ErrStrategyRetired
		}
		s.transition(caller, StateActive)
		return s.stakeIdle()
	})
}

// Panic withdraws every staked unit from the farm into strategy custody and
// disables harvesting.
func (s *Strategy) Panic(caller common.Address) error {
	return s.run("panic", func() error {
		if err := s.roles.Authorize(caller, access.CapPanic); err != nil {
			return err
		}
		switch s.state {
		case StatePanicked:
			return nil
		case StateRetired:
			return ErrStrategyRetired
		}
		if err := s.unstakeAll(); err != nil {
			return err
		}
		s.transition(caller, StatePanicked)
		return nil
	})
}

// RetireStrat unstakes everything, sends the whole want balance to the
// vault and marks the strategy inert. Retiring twice is a no-op.
func (s *Strategy) RetireStrat(caller common.Address) error {
	return s.run("retire", func() error {
		if err := s.roles.Authorize(caller, access.CapRetire); err != nil {
			return err
		}
		if s.state == StateRetired {
			return nil
		}
		if err := s.unstakeAll(); err != nil {
			return err
		}
		returned := s.ledger.BalanceOf(s.want, s.address)
		if err := s.ledger.Transfer(s.want, s.address, s.vault, returned); err != nil {
			return fmt.Errorf("strategy retire: %w", err)
		}
		s.transition(caller, StateRetired)
		evt := events.StrategyRetired{Strategy: s.address, Vault: s.vault, Caller: caller, Returned: returned}
		s.journal.Defer(func() { s.emitter.Emit(evt) })
		return nil
	})
}

// UpdateHarvestLogCadence sets the minimum spacing in seconds between log
// entries. Harvests closer together than the cadence coalesce into the
// newest entry.
func (s *Strategy) UpdateHarvestLogCadence(caller common.Address, seconds uint64) error {
	return s.run("update_cadence", func() error {
		if err := s.roles.Authorize(caller, access.CapUpdateCadence); err != nil {
			return err
		}
		if s.state == StateRetired {
			return ErrStrategyRetired
		}
		s.cadence = seconds
		evt := events.StrategyCadenceUpdated{Strategy: s.address, Seconds: seconds}
		s.journal.Defer(func() { s.emitter.Emit(evt) })
		return nil
	})
}

// SetFees replaces the harvest fee split.
func (s *Strategy) SetFees(caller common.Address, split fees.Split) error {
	return s.run("set_fees", func() error {
		if err := s.roles.Authorize(caller, access.CapSetFees); err != nil {
			return err
		}
		if err := split.Validate(); err != nil {
			return err
		}
		s.split = split
		evt := events.StrategyFeesUpdated{Strategy: s.address, TreasuryBps: split.TreasuryBps, StrategistBps: split.StrategistBps, CallFeeBps: split.CallFeeBps}
		s.journal.Defer(func() { s.emitter.Emit(evt) })
		return nil
	})
}

// GrantRole adds account to role.
func (s *Strategy) GrantRole(caller common.Address, role access.Role, account common.Address) error {
	return s.updateRole(caller, role, account, true)
}

// RevokeRole removes account from role.
func (s *Strategy) RevokeRole(caller common.Address, role access.Role, account common.Address) error {
	return s.updateRole(caller, role, account, false)
}

func (s *Strategy) updateRole(caller common.Address, role access.Role, account common.Address, grant bool) error {
	return s.run("manage_roles", func() error {
		if err := s.roles.Authorize(caller, access.CapManageRoles); err != nil {
			return err
		}
		var err error
		if grant {
			err = s.roles.Grant(role, account)
		} else {
			err = s.roles.Revoke(role, account)
		}
		if err != nil {
			return err
		}
		evt := events.StrategyRoleUpdated{Strategy: s.address, Account: account, Role: role.String(), Granted: grant}
		s.journal.Defer(func() { s.emitter.Emit(evt) })
		return nil
	})
}
