package deploy

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/native/bank"
	"cryptvault/native/farm"
)

// SimulationConfig describes a local environment with a simulated farm and
// a fixed-rate converter standing in for the external collaborators.
type SimulationConfig struct {
	Want            common.Address
	Reward          common.Address
	FarmAddress     common.Address
	Liquidity       common.Address
	PoolID          uint64
	RewardPerSecond *uint256.Int
	// RateNumerator/RateDenominator is the want paid per reward token.
	RateNumerator   *uint256.Int
	RateDenominator *uint256.Int
	// LiquidityFunding is the want minted to the converter's liquidity account.
	LiquidityFunding *uint256.Int
	Now              func() time.Time
}

// Simulation bundles an Env with handles on the concrete collaborators.
type Simulation struct {
	*Env
	SimFarm   *farm.SimFarm
	Converter *farm.FixedRateConverter
}

// NewSimulation builds the ledger, farm and converter described by cfg.
func NewSimulation(cfg SimulationConfig) (*Simulation, error) {
	if cfg.Want == (common.Address{}) || cfg.Reward == (common.Address{}) {
		return nil, missing("simulation tokens")
	}
	if cfg.FarmAddress == (common.Address{}) || cfg.Liquidity == (common.Address{}) {
		return nil, missing("simulation accounts")
	}
	ledger := bank.NewLedger()
	simFarm := farm.NewSimFarm(ledger, cfg.FarmAddress)
	if cfg.Now != nil {
		simFarm.SetNowFunc(cfg.Now)
	}
	simFarm.AddPool(cfg.PoolID, farm.PoolConfig{Want: cfg.Want, Reward: cfg.Reward, RewardPerSecond: cfg.RewardPerSecond})

	converter := farm.NewFixedRateConverter(ledger, cfg.Want, cfg.Liquidity)
	num, den := cfg.RateNumerator, cfg.RateDenominator
	if num == nil || den == nil {
		num, den = uint256.NewInt(1), uint256.NewInt(1)
	}
	if err := converter.SetRate(cfg.Reward, farm.Rate{Numerator: num, Denominator: den}); err != nil {
		return nil, err
	}
	if cfg.LiquidityFunding != nil {
		if err := ledger.Mint(cfg.Want, cfg.Liquidity, cfg.LiquidityFunding); err != nil {
			return nil, fmt.Errorf("fund liquidity: %w", err)
		}
	}
	env := NewEnv(ledger, simFarm, converter)
	env.Now = cfg.Now
	return &Simulation{Env: env, SimFarm: simFarm, Converter: converter}, nil
}
