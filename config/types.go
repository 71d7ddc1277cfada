package config

import (
	"time"

	"cryptvault/native/fees"
	"cryptvault/observability/logging"
)

// File is the on-disk daemon configuration. Addresses are hex strings and
// token amounts are decimal strings.
type File struct {
	Deployer   string            `toml:"Deployer" yaml:"deployer"`
	Want       string            `toml:"Want" yaml:"want"`
	Vault      VaultSection      `toml:"vault" yaml:"vault"`
	Strategy   StrategySection   `toml:"strategy" yaml:"strategy"`
	Server     ServerSection     `toml:"server" yaml:"server"`
	Keeper     KeeperSection     `toml:"keeper" yaml:"keeper"`
	Storage    StorageSection    `toml:"storage" yaml:"storage"`
	Logging    LoggingSection    `toml:"logging" yaml:"logging"`
	Telemetry  TelemetrySection  `toml:"telemetry" yaml:"telemetry"`
	Indexer    IndexerSection    `toml:"indexer" yaml:"indexer"`
	Simulation SimulationSection `toml:"simulation" yaml:"simulation"`
}

// VaultSection configures the share vault. TVLCap accepts "max" for an
// uncapped vault.
type VaultSection struct {
	Name           string `toml:"Name" yaml:"name"`
	Symbol         string `toml:"Symbol" yaml:"symbol"`
	DepositFeeBps  uint64 `toml:"DepositFeeBps" yaml:"deposit_fee_bps"`
	WithdrawFeeBps uint64 `toml:"WithdrawFeeBps" yaml:"withdraw_fee_bps"`
	TVLCap         string `toml:"TVLCap" yaml:"tvl_cap"`
}

// StrategySection configures the farming strategy and its roles.
type StrategySection struct {
	Admin                 string     `toml:"Admin" yaml:"admin"`
	Strategists           []string   `toml:"Strategists" yaml:"strategists"`
	Guardians             []string   `toml:"Guardians" yaml:"guardians"`
	Treasury              string     `toml:"Treasury" yaml:"treasury"`
	StrategistRemitter    string     `toml:"StrategistRemitter" yaml:"strategist_remitter"`
	PoolID                uint64     `toml:"PoolID" yaml:"pool_id"`
	RewardTokens          []string   `toml:"RewardTokens" yaml:"reward_tokens"`
	Fees                  fees.Split `toml:"fees" yaml:"fees"`
	HarvestLogCadence     uint64     `toml:"HarvestLogCadence" yaml:"harvest_log_cadence"`
	LogCapacity           int        `toml:"LogCapacity" yaml:"log_capacity"`
	PermissionlessHarvest bool       `toml:"PermissionlessHarvest" yaml:"permissionless_harvest"`
}

// ServerSection configures the HTTP surface.
type ServerSection struct {
	ListenAddress     string        `toml:"ListenAddress" yaml:"listen"`
	RateLimit         float64       `toml:"RateLimit" yaml:"rate_limit"`
	RateBurst         int           `toml:"RateBurst" yaml:"rate_burst"`
	ReadHeaderTimeout time.Duration `toml:"ReadHeaderTimeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `toml:"ShutdownTimeout" yaml:"shutdown_timeout"`
	Auth              AuthSection   `toml:"auth" yaml:"auth"`
}

// AuthSection configures bearer tokens for the state-changing routes. The
// secret may also come from CRYPTVAULT_AUTH_SECRET.
type AuthSection struct {
	HMACSecret string        `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer     string        `toml:"Issuer" yaml:"issuer"`
	Audience   string        `toml:"Audience" yaml:"audience"`
	ClockSkew  time.Duration `toml:"ClockSkew" yaml:"clock_skew"`
	TokenTTL   time.Duration `toml:"TokenTTL" yaml:"token_ttl"`
}

// KeeperSection configures the scheduled harvest caller.
type KeeperSection struct {
	Enabled   bool          `toml:"Enabled" yaml:"enabled"`
	Schedule  string        `toml:"Schedule" yaml:"schedule"`
	Caller    string        `toml:"Caller" yaml:"caller"`
	MinProfit string        `toml:"MinProfit" yaml:"min_profit"`
	Timeout   time.Duration `toml:"Timeout" yaml:"timeout"`
}

// StorageSection selects the persistence backend: memory, leveldb or bolt.
type StorageSection struct {
	Backend string `toml:"Backend" yaml:"backend"`
	Path    string `toml:"Path" yaml:"path"`
}

// LoggingSection configures the structured logger.
type LoggingSection struct {
	Env   string            `toml:"Env" yaml:"env"`
	Level string            `toml:"Level" yaml:"level"`
	File  *logging.FileSink `toml:"file" yaml:"file"`
}

// TelemetrySection configures the OTLP exporters.
type TelemetrySection struct {
	Enabled  bool              `toml:"Enabled" yaml:"enabled"`
	Endpoint string            `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool              `toml:"Insecure" yaml:"insecure"`
	Headers  map[string]string `toml:"Headers" yaml:"headers"`
	Metrics  bool              `toml:"Metrics" yaml:"metrics"`
	Traces   bool              `toml:"Traces" yaml:"traces"`

	// SampleRatio keeps that fraction of root traces; 0 keeps all.
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// IndexerSection configures the harvest archive. Driver is sqlite or postgres.
type IndexerSection struct {
	Enabled bool   `toml:"Enabled" yaml:"enabled"`
	Driver  string `toml:"Driver" yaml:"driver"`
	DSN     string `toml:"DSN" yaml:"dsn"`
}

// Funding mints want to an account when the daemon starts on empty state.
type Funding struct {
	Account string `toml:"Account" yaml:"account"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// SimulationSection describes the simulated farm and converter.
type SimulationSection struct {
	Reward           string    `toml:"Reward" yaml:"reward"`
	Farm             string    `toml:"Farm" yaml:"farm"`
	Liquidity        string    `toml:"Liquidity" yaml:"liquidity"`
	RewardPerSecond  string    `toml:"RewardPerSecond" yaml:"reward_per_second"`
	RateNumerator    string    `toml:"RateNumerator" yaml:"rate_numerator"`
	RateDenominator  string    `toml:"RateDenominator" yaml:"rate_denominator"`
	LiquidityFunding string    `toml:"LiquidityFunding" yaml:"liquidity_funding"`
	Funding          []Funding `toml:"funding" yaml:"funding"`
}
