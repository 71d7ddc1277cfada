// Package deploytest builds a fully wired simulated deployment for tests.
package deploytest

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/deploy"
)

var (
	Want      = common.HexToAddress("0x000000000000000000000000000000000000a11e")
	Reward    = common.HexToAddress("0x000000000000000000000000000000000000be11")
	FarmAddr  = common.HexToAddress("0x000000000000000000000000000000000000fa4a")
	Liquidity = common.HexToAddress("0x000000000000000000000000000000000000110a")
	Deployer  = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	Admin     = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	Guardian  = common.HexToAddress("0x00000000000000000000000000000000000000a6")
	Treasury  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	Remitter  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	Alice     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	Bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	Keeper    = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

// PoolID is the simulated farm pool.
const PoolID = 4

// Start is the fixture clock origin.
var Start = time.Unix(1_700_000_000, 0).UTC()

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fixture is a deployed vault and strategy over a simulated farm.
type Fixture struct {
	Sim        *deploy.Simulation
	Deployment *deploy.Deployment
	Config     deploy.Config
	Clock      *Clock
	Recorder   *events.Recorder
}

// Config returns the deployment configuration used by New: zero vault fees,
// the default harvest split, no cadence and a guardian.
func Config() deploy.Config {
	sc := deploy.DefaultStrategyConfig()
	sc.Admin = Admin
	sc.Guardians = []common.Address{Guardian}
	sc.Treasury = Treasury
	sc.StrategistRemitter = Remitter
	sc.PoolID = PoolID
	sc.RewardTokens = []common.Address{Reward}
	sc.HarvestLogCadence = 0
	return deploy.Config{
		Deployer: Deployer,
		Want:     Want,
		Vault:    deploy.VaultConfig{Name: "Crypt Want", Symbol: "rfWANT"},
		Strategy: sc,
	}
}

// New deploys a fixture. The farm emits 1000 reward per second, converted
// 1:1 into want. Alice and Bob each start with 1_000_000 want.
func New(t testing.TB, mutate func(*deploy.Config)) *Fixture {
	t.Helper()
	clock := &Clock{now: Start}
	sim, err := deploy.NewSimulation(deploy.SimulationConfig{
		Want:             Want,
		Reward:           Reward,
		FarmAddress:      FarmAddr,
		Liquidity:        Liquidity,
		PoolID:           PoolID,
		RewardPerSecond:  uint256.NewInt(1_000),
		LiquidityFunding: uint256.NewInt(1_000_000_000_000),
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	recorder := &events.Recorder{}
	sim.Emitter = recorder
	for _, holder := range []common.Address{Alice, Bob} {
		if err := sim.Ledger.Mint(Want, holder, uint256.NewInt(1_000_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	cfg := Config()
	if mutate != nil {
		mutate(&cfg)
	}
	dep, err := deploy.Setup(sim.Env, cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return &Fixture{Sim: sim, Deployment: dep, Config: cfg, Clock: clock, Recorder: recorder}
}

// Amount is shorthand for uint256.NewInt.
func Amount(v uint64) *uint256.Int { return uint256.NewInt(v) }
