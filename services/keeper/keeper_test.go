package keeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dt "cryptvault/deploy/deploytest"
)

func newKeeper(t *testing.T, f *dt.Fixture, minProfit uint64) *Keeper {
	t.Helper()
	k, err := New(Config{
		Schedule:  "@every 1m",
		Caller:    dt.Keeper,
		MinProfit: dt.Amount(minProfit),
	}, f.Sim.Journal, func() Harvester { return f.Deployment.Strategy }, nil)
	require.NoError(t, err)
	return k
}

func TestNewValidatesConfig(t *testing.T) {
	f := dt.New(t, nil)
	target := func() Harvester { return f.Deployment.Strategy }
	_, err := New(Config{Schedule: "every so often", Caller: dt.Keeper}, f.Sim.Journal, target, nil)
	require.Error(t, err)
	_, err = New(Config{}, f.Sim.Journal, target, nil)
	require.Error(t, err)
	_, err = New(Config{Caller: dt.Keeper}, nil, target, nil)
	require.Error(t, err)
}

func TestRunOnceSkipsWithoutProfit(t *testing.T) {
	f := dt.New(t, nil)
	_, err := f.Deployment.Vault.Deposit(dt.Alice, dt.Amount(100_000))
	require.NoError(t, err)

	out, err := newKeeper(t, f, 0).RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, out.Harvested)
	require.Equal(t, SkipNoProfit, out.SkipReason)
}

func TestRunOnceRespectsMinProfit(t *testing.T) {
	f := dt.New(t, nil)
	_, err := f.Deployment.Vault.Deposit(dt.Alice, dt.Amount(100_000))
	require.NoError(t, err)
	f.Clock.Advance(10 * time.Second)

	out, err := newKeeper(t, f, 100).RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, SkipBelowMinProfit, out.SkipReason)
	require.Empty(t, f.Deployment.Strategy.HarvestLog())

	out, err = newKeeper(t, f, 45).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, out.Harvested)
	require.Equal(t, uint64(10_000), out.Result.Profit.Uint64())
	require.Equal(t, uint64(45), out.Result.CallFee.Uint64())
	require.Equal(t, uint64(45), f.Sim.Ledger.BalanceOf(dt.Want, dt.Keeper).Uint64())
	require.Len(t, f.Deployment.Strategy.HarvestLog(), 1)
}

func TestRunOnceSkipsHaltedStrategies(t *testing.T) {
	f := dt.New(t, nil)
	_, err := f.Deployment.Vault.Deposit(dt.Alice, dt.Amount(100_000))
	require.NoError(t, err)
	f.Clock.Advance(time.Minute)
	k := newKeeper(t, f, 0)

	require.NoError(t, f.Deployment.Strategy.Panic(dt.Guardian))
	out, err := k.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, SkipPaused, out.SkipReason)

	require.NoError(t, f.Deployment.Strategy.RetireStrat(dt.Admin))
	out, err = k.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, SkipRetired, out.SkipReason)
}

func TestRunOnceHonoursCancelledContext(t *testing.T) {
	f := dt.New(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newKeeper(t, f, 0).RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartAndStop(t *testing.T) {
	f := dt.New(t, nil)
	k := newKeeper(t, f, 0)
	require.NoError(t, k.Start(context.Background()))
	k.Stop()
}
