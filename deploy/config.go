// Package deploy wires a vault and its strategy from a validated deployment
// configuration: deploy the vault, deploy the strategy bound to it, then
// initialize the vault with the strategy.
package deploy

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/native/fees"
	"cryptvault/native/strategy"
)

// ErrMissingConfiguration is returned when a required deployment field is empty.
var ErrMissingConfiguration = errors.New("deploy: missing configuration")

// VaultConfig parameterises the vault deployment.
type VaultConfig struct {
	Name           string
	Symbol         string
	DepositFeeBps  uint64
	WithdrawFeeBps uint64
	// TVLCap of nil leaves deposits uncapped.
	TVLCap *uint256.Int
}

// StrategyConfig parameterises the strategy deployment.
type StrategyConfig struct {
	Admin                 common.Address
	Strategists           []common.Address
	Guardians             []common.Address
	Treasury              common.Address
	StrategistRemitter    common.Address
	PoolID                uint64
	RewardTokens          []common.Address
	Fees                  fees.Split
	HarvestLogCadence     uint64
	LogCapacity           int
	PermissionlessHarvest bool
}

// Config names every address and parameter a deployment needs.
type Config struct {
	Deployer common.Address
	Want     common.Address
	Vault    VaultConfig
	Strategy StrategyConfig
}

// DefaultStrategyConfig returns the fee split, cadence and log capacity
// used when a deployment does not override them.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Fees:                  fees.DefaultSplit(),
		HarvestLogCadence:     strategy.DefaultHarvestLogCadence,
		LogCapacity:           strategy.DefaultLogCapacity,
		PermissionlessHarvest: true,
	}
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfiguration, field)
}

// Validate fails fast on any empty address or required field.
func (c Config) Validate() error {
	zero := common.Address{}
	switch {
	case c.Deployer == zero:
		return missing("deployer")
	case c.Want == zero:
		return missing("want")
	case c.Vault.Name == "":
		return missing("vault.name")
	case c.Vault.Symbol == "":
		return missing("vault.symbol")
	case c.Strategy.Admin == zero:
		return missing("strategy.admin")
	case c.Strategy.Treasury == zero:
		return missing("strategy.treasury")
	case c.Strategy.StrategistRemitter == zero:
		return missing("strategy.strategist_remitter")
	case len(c.Strategy.RewardTokens) == 0:
		return missing("strategy.reward_tokens")
	}
	for i, token := range c.Strategy.RewardTokens {
		if token == zero {
			return missing(fmt.Sprintf("strategy.reward_tokens[%d]", i))
		}
	}
	for i, account := range c.Strategy.Strategists {
		if account == zero {
			return missing(fmt.Sprintf("strategy.strategists[%d]", i))
		}
	}
	for i, account := range c.Strategy.Guardians {
		if account == zero {
			return missing(fmt.Sprintf("strategy.guardians[%d]", i))
		}
	}
	if err := c.Strategy.Fees.Validate(); err != nil {
		return err
	}
	return nil
}
