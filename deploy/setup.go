package deploy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cryptvault/core/events"
	"cryptvault/core/state"
	"cryptvault/native/bank"
	"cryptvault/native/farm"
	"cryptvault/native/strategy"
	"cryptvault/native/vault"
	"cryptvault/observability/logging"
)

// Env is the execution environment contracts are deployed into.
type Env struct {
	Ledger    *bank.Ledger
	Registry  *state.Registry
	Journal   *state.Journal
	Farm      farm.Farm
	Converter farm.Converter
	Emitter   events.Emitter
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewEnv builds an environment around ledger and the farm collaborators,
// registering the ledger, the registry and any journaled collaborator with
// a fresh journal.
func NewEnv(ledger *bank.Ledger, yieldFarm farm.Farm, converter farm.Converter) *Env {
	env := &Env{
		Ledger:    ledger,
		Registry:  state.NewRegistry(),
		Journal:   state.NewJournal(),
		Farm:      yieldFarm,
		Converter: converter,
		Emitter:   events.NoopEmitter{},
		Logger:    logging.Discard(),
	}
	env.Journal.Register(ledger, env.Registry)
	for _, c := range []any{yieldFarm, converter} {
		if j, ok := c.(state.Journaled); ok {
			env.Journal.Register(j)
		}
	}
	return env
}

// Deployment is the result of Setup.
type Deployment struct {
	Vault    *vault.Vault
	Strategy *strategy.Strategy
	// Retired lists strategies replaced through ReplaceStrategy, oldest first.
	Retired []*strategy.Strategy
}

// Setup validates cfg and deploys the vault, the strategy and the wiring
// between them as one unit of work.
func Setup(env *Env, cfg Config) (*Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env == nil || env.Ledger == nil || env.Registry == nil || env.Journal == nil || env.Farm == nil || env.Converter == nil {
		return nil, missing("environment")
	}
	dep := &Deployment{}
	err := env.Journal.Exec(func() error {
		v, err := deployVault(env, cfg)
		if err != nil {
			return fmt.Errorf("deploy vault: %w", err)
		}
		s, err := deployStrategy(env, cfg, v.Address())
		if err != nil {
			return fmt.Errorf("deploy strategy: %w", err)
		}
		if err := v.Initialize(cfg.Deployer, s.Address()); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		dep.Vault, dep.Strategy = v, s
		return nil
	})
	if err != nil {
		return nil, err
	}
	env.logger().Info("deployment complete",
		"vault", dep.Vault.Address().Hex(),
		"strategy", dep.Strategy.Address().Hex(),
		"want", cfg.Want.Hex())
	return dep, nil
}

// Attach rebuilds the deployment objects at the addresses Setup would
// derive, without initializing them. Callers restore persisted state into
// the returned contracts.
func Attach(env *Env, cfg Config, strategies int) (*Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategies < 1 {
		strategies = 1
	}
	dep := &Deployment{}
	err := env.Journal.Exec(func() error {
		v, err := deployVault(env, cfg)
		if err != nil {
			return err
		}
		dep.Vault = v
		for i := 0; i < strategies; i++ {
			s, err := deployStrategy(env, cfg, v.Address())
			if err != nil {
				return err
			}
			if dep.Strategy != nil {
				dep.Retired = append(dep.Retired, dep.Strategy)
			}
			dep.Strategy = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// ReplaceStrategy retires the active strategy on behalf of retirer, which
// drains its want to the vault, then deploys a fresh strategy from cfg, wires
// it as the vault owner and forwards the idle balance to it.
func ReplaceStrategy(env *Env, dep *Deployment, retirer common.Address, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dep == nil || dep.Vault == nil || dep.Strategy == nil {
		return missing("deployment")
	}
	var next *strategy.Strategy
	err := env.Journal.Exec(func() error {
		if err := dep.Strategy.RetireStrat(retirer); err != nil {
			return fmt.Errorf("retire: %w", err)
		}
		s, err := deployStrategy(env, cfg, dep.Vault.Address())
		if err != nil {
			return fmt.Errorf("deploy strategy: %w", err)
		}
		if err := dep.Vault.Initialize(cfg.Deployer, s.Address()); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		if err := dep.Vault.Earn(); err != nil {
			return fmt.Errorf("earn: %w", err)
		}
		next = s
		return nil
	})
	if err != nil {
		return err
	}
	dep.Retired = append(dep.Retired, dep.Strategy)
	dep.Strategy = next
	env.logger().Info("strategy replaced", "vault", dep.Vault.Address().Hex(), "strategy", next.Address().Hex())
	return nil
}

func (env *Env) logger() *slog.Logger {
	if env.Logger == nil {
		return logging.Discard()
	}
	return env.Logger
}

func deployVault(env *Env, cfg Config) (*vault.Vault, error) {
	addr := env.Registry.NextAddress(cfg.Deployer)
	v, err := vault.New(addr, vault.Config{
		Name:           cfg.Vault.Name,
		Symbol:         cfg.Vault.Symbol,
		Want:           cfg.Want,
		Owner:          cfg.Deployer,
		DepositFeeBps:  cfg.Vault.DepositFeeBps,
		WithdrawFeeBps: cfg.Vault.WithdrawFeeBps,
		TVLCap:         cfg.Vault.TVLCap,
	}, env.Ledger, env.Registry, env.Journal)
	if err != nil {
		return nil, err
	}
	v.SetEmitter(env.Emitter)
	v.SetLogger(env.logger())
	if err := env.Registry.Register(addr, v); err != nil {
		return nil, err
	}
	return v, nil
}

func deployStrategy(env *Env, cfg Config, vaultAddr common.Address) (*strategy.Strategy, error) {
	addr := env.Registry.NextAddress(cfg.Deployer)
	sc := cfg.Strategy
	s, err := strategy.New(addr, strategy.Config{
		Vault:                 vaultAddr,
		Want:                  cfg.Want,
		PoolID:                sc.PoolID,
		RewardTokens:          sc.RewardTokens,
		Treasury:              sc.Treasury,
		StrategistRemitter:    sc.StrategistRemitter,
		Admin:                 sc.Admin,
		Strategists:           sc.Strategists,
		Guardians:             sc.Guardians,
		Fees:                  sc.Fees,
		HarvestLogCadence:     sc.HarvestLogCadence,
		LogCapacity:           sc.LogCapacity,
		PermissionlessHarvest: sc.PermissionlessHarvest,
	}, strategy.Collaborators{
		Ledger:    env.Ledger,
		Farm:      env.Farm,
		Converter: env.Converter,
		Journal:   env.Journal,
	})
	if err != nil {
		return nil, err
	}
	if env.Now != nil {
		s.SetNowFunc(env.Now)
	}
	s.SetEmitter(env.Emitter)
	s.SetLogger(env.logger())
	if err := env.Registry.Register(addr, s); err != nil {
		return nil, err
	}
	return s, nil
}
