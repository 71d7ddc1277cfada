package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/types"
)

const (
	// TypeVaultDeposit is emitted when want tokens are deposited for shares.
	TypeVaultDeposit = "vault.deposit"
	// TypeVaultWithdraw is emitted when shares are burned for want tokens.
	TypeVaultWithdraw = "vault.withdraw"
	// TypeVaultStrategyInitialized is emitted when a strategy is wired to the vault.
	TypeVaultStrategyInitialized = "vault.strategy_initialized"
	// TypeVaultTvlCapUpdated is emitted when the owner changes the deposit cap.
	TypeVaultTvlCapUpdated = "vault.tvl_cap_updated"
	// TypeVaultFeesUpdated is emitted when deposit or withdraw fees change.
	TypeVaultFeesUpdated = "vault.fees_updated"
)

// VaultDeposit captures a committed deposit.
type VaultDeposit struct {
	Vault  common.Address
	Holder common.Address
	Amount *uint256.Int
	Shares *uint256.Int
}

// EventType satisfies the Event interface.
func (VaultDeposit) EventType() string { return TypeVaultDeposit }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposit,
		Attributes: map[string]string{
			"vault":  formatAddress(e.Vault),
			"holder": formatAddress(e.Holder),
			"amount": formatAmount(e.Amount),
			"shares": formatAmount(e.Shares),
		},
	}
}

// VaultWithdraw captures a committed withdrawal.
type VaultWithdraw struct {
	Vault  common.Address
	Holder common.Address
	Shares *uint256.Int
	Payout *uint256.Int
	Fee    *uint256.Int
}

// EventType satisfies the Event interface.
func (VaultWithdraw) EventType() string { return TypeVaultWithdraw }

// Event converts the structured payload into a broadcastable event.
func (e VaultWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdraw,
		Attributes: map[string]string{
			"vault":  formatAddress(e.Vault),
			"holder": formatAddress(e.Holder),
			"shares": formatAmount(e.Shares),
			"payout": formatAmount(e.Payout),
			"fee":    formatAmount(e.Fee),
		},
	}
}

// VaultStrategyInitialized records the strategy handle wired into the vault.
type VaultStrategyInitialized struct {
	Vault    common.Address
	Strategy common.Address
	Previous common.Address
}

// EventType satisfies the Event interface.
func (VaultStrategyInitialized) EventType() string { return TypeVaultStrategyInitialized }

// Event converts the structured payload into a broadcastable event.
func (e VaultStrategyInitialized) Event() *types.Event {
	attrs := map[string]string{
		"vault":    formatAddress(e.Vault),
		"strategy": formatAddress(e.Strategy),
	}
	if e.Previous != (common.Address{}) {
		attrs["previous"] = formatAddress(e.Previous)
	}
	return &types.Event{Type: TypeVaultStrategyInitialized, Attributes: attrs}
}

// VaultTvlCapUpdated records a deposit cap change.
type VaultTvlCapUpdated struct {
	Vault common.Address
	Cap   *uint256.Int
}

// EventType satisfies the Event interface.
func (VaultTvlCapUpdated) EventType() string { return TypeVaultTvlCapUpdated }

// Event converts the structured payload into a broadcastable event.
func (e VaultTvlCapUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultTvlCapUpdated,
		Attributes: map[string]string{
			"vault": formatAddress(e.Vault),
			"cap":   formatAmount(e.Cap),
		},
	}
}

// VaultFeesUpdated records a deposit or withdraw fee change.
type VaultFeesUpdated struct {
	Vault          common.Address
	DepositFeeBps  uint64
	WithdrawFeeBps uint64
}

// EventType satisfies the Event interface.
func (VaultFeesUpdated) EventType() string { return TypeVaultFeesUpdated }

// Event converts the structured payload into a broadcastable event.
func (e VaultFeesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultFeesUpdated,
		Attributes: map[string]string{
			"vault":          formatAddress(e.Vault),
			"depositFeeBps":  uintToString(e.DepositFeeBps),
			"withdrawFeeBps": uintToString(e.WithdrawFeeBps),
		},
	}
}
