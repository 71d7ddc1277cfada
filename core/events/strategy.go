package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/types"
)

const (
	// TypeStrategyHarvest is emitted after a harvest realised profit.
	TypeStrategyHarvest = "strategy.harvest"
	// TypeStrategyStateChanged is emitted on pause, unpause and panic.
	TypeStrategyStateChanged = "strategy.state_changed"
	// TypeStrategyRetired is emitted once when a strategy drains to its vault.
	TypeStrategyRetired = "strategy.retired"
	// TypeStrategyFeesUpdated is emitted when the harvest fee split changes.
	TypeStrategyFeesUpdated = "strategy.fees_updated"
	// TypeStrategyCadenceUpdated is emitted when the harvest log cadence changes.
	TypeStrategyCadenceUpdated = "strategy.cadence_updated"
	// TypeStrategyRoleUpdated is emitted when a role is granted or revoked.
	TypeStrategyRoleUpdated = "strategy.role_updated"
)

// StrategyHarvest captures the realised outcome of a harvest cycle.
type StrategyHarvest struct {
	Strategy      common.Address
	Caller        common.Address
	Timestamp     int64
	AssetsBefore  *uint256.Int
	AssetsAfter   *uint256.Int
	Profit        *uint256.Int
	TreasuryFee   *uint256.Int
	StrategistFee *uint256.Int
	CallFee       *uint256.Int
	Coalesced     bool
}

// EventType satisfies the Event interface.
func (StrategyHarvest) EventType() string { return TypeStrategyHarvest }

// Event converts the structured payload into a broadcastable event.
func (e StrategyHarvest) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyHarvest,
		Attributes: map[string]string{
			"strategy":      formatAddress(e.Strategy),
			"caller":        formatAddress(e.Caller),
			"timestamp":     intToString(e.Timestamp),
			"assetsBefore":  formatAmount(e.AssetsBefore),
			"assetsAfter":   formatAmount(e.AssetsAfter),
			"profit":        formatAmount(e.Profit),
			"treasuryFee":   formatAmount(e.TreasuryFee),
			"strategistFee": formatAmount(e.StrategistFee),
			"callFee":       formatAmount(e.CallFee),
			"coalesced":     strconv.FormatBool(e.Coalesced),
		},
	}
}

// StrategyStateChanged records a lifecycle transition.
type StrategyStateChanged struct {
	Strategy common.Address
	Caller   common.Address
	From     string
	To       string
}

// EventType satisfies the Event interface.
func (StrategyStateChanged) EventType() string { return TypeStrategyStateChanged }

// Event converts the structured payload into a broadcastable event.
func (e StrategyStateChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyStateChanged,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"caller":   formatAddress(e.Caller),
			"from":     e.From,
			"to":       e.To,
		},
	}
}

// StrategyRetired records the amount returned to the vault on retirement.
type StrategyRetired struct {
	Strategy common.Address
	Vault    common.Address
	Caller   common.Address
	Returned *uint256.Int
}

// EventType satisfies the Event interface.
func (StrategyRetired) EventType() string { return TypeStrategyRetired }

// Event converts the structured payload into a broadcastable event.
func (e StrategyRetired) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyRetired,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"vault":    formatAddress(e.Vault),
			"caller":   formatAddress(e.Caller),
			"returned": formatAmount(e.Returned),
		},
	}
}

// StrategyFeesUpdated records a new harvest fee split.
type StrategyFeesUpdated struct {
	Strategy      common.Address
	TreasuryBps   uint64
	StrategistBps uint64
	CallFeeBps    uint64
}

// EventType satisfies the Event interface.
func (StrategyFeesUpdated) EventType() string { return TypeStrategyFeesUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StrategyFeesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyFeesUpdated,
		Attributes: map[string]string{
			"strategy":      formatAddress(e.Strategy),
			"treasuryBps":   uintToString(e.TreasuryBps),
			"strategistBps": uintToString(e.StrategistBps),
			"callFeeBps":    uintToString(e.CallFeeBps),
		},
	}
}

// StrategyCadenceUpdated records a new harvest log cadence.
type StrategyCadenceUpdated struct {
	Strategy common.Address
	Seconds  uint64
}

// EventType satisfies the Event interface.
func (StrategyCadenceUpdated) EventType() string { return TypeStrategyCadenceUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StrategyCadenceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyCadenceUpdated,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"seconds":  uintToString(e.Seconds),
		},
	}
}

// StrategyRoleUpdated records a role grant or revocation.
type StrategyRoleUpdated struct {
	Strategy common.Address
	Account  common.Address
	Role     string
	Granted  bool
}

// EventType satisfies the Event interface.
func (StrategyRoleUpdated) EventType() string { return TypeStrategyRoleUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StrategyRoleUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyRoleUpdated,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"account":  formatAddress(e.Account),
			"role":     e.Role,
			"granted":  strconv.FormatBool(e.Granted),
		},
	}
}
