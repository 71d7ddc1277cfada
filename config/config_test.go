package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cryptvault/deploy"
	"cryptvault/native/fees"
)

const tomlConfig = `Deployer = "0x00000000000000000000000000000000000000d0"
Want = "0x000000000000000000000000000000000000a11e"

[vault]
Name = "Crypt LP"
Symbol = "rfLP"
TVLCap = "5000000"

[strategy]
Admin = "0x00000000000000000000000000000000000000ad"
Guardians = ["0x00000000000000000000000000000000000000a6"]
Treasury = "0x00000000000000000000000000000000000000e1"
StrategistRemitter = "0x00000000000000000000000000000000000000e2"
PoolID = 7
RewardTokens = ["0x000000000000000000000000000000000000be11"]

[server]
ListenAddress = "127.0.0.1:9000"
ReadHeaderTimeout = "2s"

[server.auth]
HMACSecret = "0123456789abcdef0123"
Issuer = "ops"

[keeper]
Enabled = true
Schedule = "@every 10m"
MinProfit = "25"

[storage]
Backend = "bolt"
Path = "./data/vault.db"

[logging]
Level = "debug"

[logging.file]
Path = "./logs/vaultd.log"
MaxSizeMB = 50

[simulation]
Reward = "0x000000000000000000000000000000000000be11"
Farm = "0x000000000000000000000000000000000000fa4a"
Liquidity = "0x000000000000000000000000000000000000110a"
RateNumerator = "3"
RateDenominator = "2"

[[simulation.funding]]
Account = "0x0000000000000000000000000000000000000a11"
Amount = "1000000"
`

const yamlConfig = `deployer: "0x00000000000000000000000000000000000000d0"
want: "0x000000000000000000000000000000000000a11e"
vault:
  withdraw_fee_bps: 25
strategy:
  admin: "0x00000000000000000000000000000000000000ad"
  treasury: "0x00000000000000000000000000000000000000e1"
  strategist_remitter: "0x00000000000000000000000000000000000000e2"
  reward_tokens: ["0x000000000000000000000000000000000000be11"]
  fees:
    treasury_bps: 500
    strategist_bps: 100
    call_fee_bps: 50
  harvest_log_cadence: 3600
indexer:
  enabled: true
  driver: postgres
  dsn: "host=localhost user=vault dbname=vault"
`

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadTOMLAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "vaultd.toml", tomlConfig))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddress)
	require.Equal(t, 2*time.Second, cfg.Server.ReadHeaderTimeout)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "0123456789abcdef0123", cfg.Server.Auth.HMACSecret)
	require.Equal(t, "ops", cfg.Server.Auth.Issuer)
	require.Equal(t, "cryptvault", cfg.Server.Auth.Audience)
	require.Equal(t, time.Hour, cfg.Server.Auth.TokenTTL)
	require.Equal(t, "bolt", cfg.Storage.Backend)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.NotNil(t, cfg.Logging.File)
	require.Equal(t, 50, cfg.Logging.File.MaxSizeMB)
	require.Equal(t, cfg.Deployer, cfg.Keeper.Caller)

	dep, err := cfg.Deployment()
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xd0"), dep.Deployer)
	require.Equal(t, uint64(10), dep.Vault.WithdrawFeeBps)
	require.Zero(t, dep.Vault.DepositFeeBps)
	require.Equal(t, "5000000", dep.Vault.TVLCap.Dec())
	require.Equal(t, fees.DefaultSplit(), dep.Strategy.Fees)
	require.Equal(t, uint64(43200), dep.Strategy.HarvestLogCadence)
	require.Equal(t, 30, dep.Strategy.LogCapacity)
	require.Equal(t, uint64(7), dep.Strategy.PoolID)
	require.True(t, dep.Strategy.PermissionlessHarvest)

	sim, err := cfg.SimulationSetup()
	require.NoError(t, err)
	require.Equal(t, uint64(7), sim.PoolID)
	require.Equal(t, "3", sim.RateNumerator.Dec())
	require.Equal(t, "2", sim.RateDenominator.Dec())
	require.Nil(t, sim.LiquidityFunding)

	grants, err := cfg.Grants()
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, "1000000", grants[0].Amount.Dec())

	minProfit, err := cfg.KeeperMinProfit()
	require.NoError(t, err)
	require.Equal(t, uint64(25), minProfit.Uint64())
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "vaultd.yaml", yamlConfig))
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Indexer.Driver)

	dep, err := cfg.Deployment()
	require.NoError(t, err)
	require.Equal(t, uint64(25), dep.Vault.WithdrawFeeBps)
	require.Nil(t, dep.Vault.TVLCap)
	require.Equal(t, fees.Split{TreasuryBps: 500, StrategistBps: 100, CallFeeBps: 50}, dep.Strategy.Fees)
	require.Equal(t, uint64(3600), dep.Strategy.HarvestLogCadence)
	require.Equal(t, "Crypt Vault", dep.Vault.Name)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "vaultd.json", "{}"))
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoadValidatesSections(t *testing.T) {
	cases := map[string]string{
		"storage path":   "[storage]\nBackend = \"leveldb\"\n",
		"storage kind":   "[storage]\nBackend = \"redis\"\n",
		"indexer driver": "[indexer]\nEnabled = true\nDriver = \"mysql\"\n",
		"keeper caller":  "[keeper]\nEnabled = true\n",
		"min profit":     "[keeper]\nMinProfit = \"ten\"\n",
		"sample ratio":   "[telemetry]\nSampleRatio = 2.0\n",
		"short secret":   "[server.auth]\nHMACSecret = \"short\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "vaultd.toml", contents))
			require.Error(t, err)
		})
	}
}

func TestAuthSecretFromEnvironment(t *testing.T) {
	t.Setenv(AuthSecretEnv, "  env-secret-0123456789  ")
	cfg, err := Load(writeConfig(t, "vaultd.yaml", yamlConfig))
	require.NoError(t, err)
	require.Equal(t, "env-secret-0123456789", cfg.Server.Auth.HMACSecret)
}

func TestDeploymentReportsMissingAddresses(t *testing.T) {
	cfg := Default()
	_, err := cfg.Deployment()
	require.ErrorIs(t, err, deploy.ErrMissingConfiguration)
	require.Contains(t, err.Error(), "deployer")

	cfg.Deployer = "not-an-address"
	_, err = cfg.Deployment()
	require.Error(t, err)
	require.Contains(t, err.Error(), "hex address")
}
