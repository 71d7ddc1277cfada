package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"cryptvault/deploy"
	"cryptvault/native/fees"
	"cryptvault/native/strategy"
)

// ErrUnsupportedFormat is returned for config files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// AuthSecretEnv overrides server.auth.hmac_secret.
const AuthSecretEnv = "CRYPTVAULT_AUTH_SECRET"

const minAuthSecretLen = 16

// Default returns the configuration applied before the file is decoded, so
// any key the file omits keeps its default.
func Default() *File {
	return &File{
		Vault: VaultSection{
			Name:           "Crypt Vault",
			Symbol:         "rfWANT",
			WithdrawFeeBps: 10,
			TVLCap:         "max",
		},
		Strategy: StrategySection{
			Fees:                  fees.DefaultSplit(),
			HarvestLogCadence:     strategy.DefaultHarvestLogCadence,
			LogCapacity:           strategy.DefaultLogCapacity,
			PermissionlessHarvest: true,
		},
		Server: ServerSection{
			ListenAddress:     ":8545",
			RateLimit:         20,
			RateBurst:         40,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			Auth: AuthSection{
				Issuer:    "vaultd",
				Audience:  "cryptvault",
				ClockSkew: 30 * time.Second,
				TokenTTL:  time.Hour,
			},
		},
		Keeper: KeeperSection{
			Schedule:  "@every 1h",
			MinProfit: "0",
			Timeout:   30 * time.Second,
		},
		Storage: StorageSection{Backend: "memory"},
		Logging: LoggingSection{Env: "dev", Level: "info"},
		Telemetry: TelemetrySection{
			Endpoint: "localhost:4318",
			Metrics:  true,
			Traces:   true,
		},
		Indexer: IndexerSection{Driver: "sqlite", DSN: "file::memory:?cache=shared"},
		Simulation: SimulationSection{
			RewardPerSecond: "1000000000000000000",
			RateNumerator:   "1",
			RateDenominator: "1",
		},
	}
}

// Load decodes path as TOML or YAML depending on its extension, applies
// defaults and validates the result.
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(raw), cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *File) normalize() {
	f.Deployer = strings.TrimSpace(f.Deployer)
	f.Want = strings.TrimSpace(f.Want)
	f.Server.ListenAddress = strings.TrimSpace(f.Server.ListenAddress)
	f.Storage.Backend = strings.ToLower(strings.TrimSpace(f.Storage.Backend))
	f.Indexer.Driver = strings.ToLower(strings.TrimSpace(f.Indexer.Driver))
	f.Vault.TVLCap = strings.TrimSpace(f.Vault.TVLCap)
	if f.Vault.TVLCap == "" {
		f.Vault.TVLCap = "max"
	}
	if f.Keeper.Caller == "" {
		f.Keeper.Caller = f.Deployer
	}
	if secret := strings.TrimSpace(os.Getenv(AuthSecretEnv)); secret != "" {
		f.Server.Auth.HMACSecret = secret
	}
	f.Server.Auth.HMACSecret = strings.TrimSpace(f.Server.Auth.HMACSecret)
}

func (f *File) validate() error {
	if f.Server.ListenAddress == "" {
		return fmt.Errorf("server: listen address required")
	}
	if f.Server.RateLimit < 0 || f.Server.RateBurst < 0 {
		return fmt.Errorf("server: rate limit must not be negative")
	}
	if f.Telemetry.SampleRatio < 0 || f.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0, 1]")
	}
	if f.Server.Auth.HMACSecret != "" && len(f.Server.Auth.HMACSecret) < minAuthSecretLen {
		return fmt.Errorf("server.auth: secret must be at least %d bytes", minAuthSecretLen)
	}
	switch f.Storage.Backend {
	case "memory":
	case "leveldb", "bolt":
		if strings.TrimSpace(f.Storage.Path) == "" {
			return fmt.Errorf("storage: %s requires a path", f.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", f.Storage.Backend)
	}
	if f.Indexer.Enabled {
		switch f.Indexer.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("indexer: unknown driver %q", f.Indexer.Driver)
		}
		if strings.TrimSpace(f.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: dsn required")
		}
	}
	if f.Keeper.Enabled {
		if strings.TrimSpace(f.Keeper.Schedule) == "" {
			return fmt.Errorf("keeper: schedule required")
		}
		if _, err := parseAddress("keeper.caller", f.Keeper.Caller); err != nil {
			return err
		}
	}
	if _, err := parseAmount("keeper.min_profit", f.Keeper.MinProfit); err != nil {
		return err
	}
	return nil
}

// Deployment converts the vault and strategy sections into a validated
// deploy.Config.
func (f *File) Deployment() (deploy.Config, error) {
	var cfg deploy.Config
	var err error
	if cfg.Deployer, err = parseAddress("deployer", f.Deployer); err != nil {
		return cfg, err
	}
	if cfg.Want, err = parseAddress("want", f.Want); err != nil {
		return cfg, err
	}
	cfg.Vault = deploy.VaultConfig{
		Name:           f.Vault.Name,
		Symbol:         f.Vault.Symbol,
		DepositFeeBps:  f.Vault.DepositFeeBps,
		WithdrawFeeBps: f.Vault.WithdrawFeeBps,
	}
	if !strings.EqualFold(f.Vault.TVLCap, "max") {
		if cfg.Vault.TVLCap, err = parseAmount("vault.tvl_cap", f.Vault.TVLCap); err != nil {
			return cfg, err
		}
	}

	s := f.Strategy
	sc := deploy.StrategyConfig{
		PoolID:                s.PoolID,
		Fees:                  s.Fees,
		HarvestLogCadence:     s.HarvestLogCadence,
		LogCapacity:           s.LogCapacity,
		PermissionlessHarvest: s.PermissionlessHarvest,
	}
	if sc.Admin, err = parseAddress("strategy.admin", s.Admin); err != nil {
		return cfg, err
	}
	if sc.Treasury, err = parseAddress("strategy.treasury", s.Treasury); err != nil {
		return cfg, err
	}
	if sc.StrategistRemitter, err = parseAddress("strategy.strategist_remitter", s.StrategistRemitter); err != nil {
		return cfg, err
	}
	if sc.Strategists, err = parseAddresses("strategy.strategists", s.Strategists); err != nil {
		return cfg, err
	}
	if sc.Guardians, err = parseAddresses("strategy.guardians", s.Guardians); err != nil {
		return cfg, err
	}
	if sc.RewardTokens, err = parseAddresses("strategy.reward_tokens", s.RewardTokens); err != nil {
		return cfg, err
	}
	cfg.Strategy = sc
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SimulationSetup converts the simulation section into the environment
// description consumed by deploy.NewSimulation.
func (f *File) SimulationSetup() (deploy.SimulationConfig, error) {
	var cfg deploy.SimulationConfig
	var err error
	sim := f.Simulation
	if cfg.Want, err = parseAddress("want", f.Want); err != nil {
		return cfg, err
	}
	if cfg.Reward, err = parseAddress("simulation.reward", sim.Reward); err != nil {
		return cfg, err
	}
	if cfg.FarmAddress, err = parseAddress("simulation.farm", sim.Farm); err != nil {
		return cfg, err
	}
	if cfg.Liquidity, err = parseAddress("simulation.liquidity", sim.Liquidity); err != nil {
		return cfg, err
	}
	cfg.PoolID = f.Strategy.PoolID
	if cfg.RewardPerSecond, err = parseAmount("simulation.reward_per_second", sim.RewardPerSecond); err != nil {
		return cfg, err
	}
	if cfg.RateNumerator, err = parseAmount("simulation.rate_numerator", sim.RateNumerator); err != nil {
		return cfg, err
	}
	if cfg.RateDenominator, err = parseAmount("simulation.rate_denominator", sim.RateDenominator); err != nil {
		return cfg, err
	}
	if cfg.RateDenominator.IsZero() {
		return cfg, fmt.Errorf("simulation.rate_denominator must be positive")
	}
	if sim.LiquidityFunding != "" {
		if cfg.LiquidityFunding, err = parseAmount("simulation.liquidity_funding", sim.LiquidityFunding); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Grant is a parsed Funding entry.
type Grant struct {
	Account common.Address
	Amount  *uint256.Int
}

// Grants parses the simulation funding list.
func (f *File) Grants() ([]Grant, error) {
	out := make([]Grant, 0, len(f.Simulation.Funding))
	for i, entry := range f.Simulation.Funding {
		field := fmt.Sprintf("simulation.funding[%d]", i)
		account, err := parseAddress(field+".account", entry.Account)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(field+".amount", entry.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, Grant{Account: account, Amount: amount})
	}
	return out, nil
}

// KeeperCaller returns the account the keeper harvests as.
func (f *File) KeeperCaller() (common.Address, error) {
	return parseAddress("keeper.caller", f.Keeper.Caller)
}

// KeeperMinProfit returns the minimum call fee that makes a harvest worthwhile.
func (f *File) KeeperMinProfit() (*uint256.Int, error) {
	return parseAmount("keeper.min_profit", f.Keeper.MinProfit)
}
