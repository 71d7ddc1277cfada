package farm

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/native/bank"
)

var (
	wantToken   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	rewardToken = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	farmAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	alice       = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFarm(t *testing.T) (*SimFarm, *bank.Ledger, *fakeClock) {
	t.Helper()
	ledger := bank.NewLedger()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := NewSimFarm(ledger, farmAddr)
	f.SetNowFunc(clock.Now)
	f.AddPool(4, PoolConfig{Want: wantToken, Reward: rewardToken, RewardPerSecond: uint256.NewInt(100)})
	for _, who := range []common.Address{alice, bob} {
		if err := ledger.Mint(wantToken, who, uint256.NewInt(1_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	return f, ledger, clock
}

func TestSimFarmProRataRewards(t *testing.T) {
	f, ledger, clock := newFarm(t)
	if err := f.Deposit(4, alice, uint256.NewInt(300)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := f.Deposit(4, bob, uint256.NewInt(100)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	clock.Advance(10 * time.Second)

	pending, err := f.Pending(4, alice)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if got := pending[0].Amount.Uint64(); got != 750 {
		t.Fatalf("alice pending = %d, want 750", got)
	}
	claimed, err := f.Claim(4, alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed[0].Amount.Eq(pending[0].Amount) {
		t.Fatalf("claimed %s, pending was %s", claimed[0].Amount.Dec(), pending[0].Amount.Dec())
	}
	if got := ledger.BalanceOf(rewardToken, alice).Uint64(); got != 750 {
		t.Fatalf("alice reward balance = %d", got)
	}
	bobPending, _ := f.Pending(4, bob)
	if got := bobPending[0].Amount.Uint64(); got != 250 {
		t.Fatalf("bob pending = %d, want 250", got)
	}
	again, _ := f.Pending(4, alice)
	if !again[0].Amount.IsZero() {
		t.Fatalf("expected nothing pending after claim, got %s", again[0].Amount.Dec())
	}
}

func TestSimFarmWithdrawKeepsAccruedRewards(t *testing.T) {
	f, ledger, clock := newFarm(t)
	if err := f.Deposit(4, alice, uint256.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5 * time.Second)
	if err := f.Withdraw(4, alice, uint256.NewInt(500)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := ledger.BalanceOf(wantToken, alice).Uint64(); got != 1_000 {
		t.Fatalf("alice want = %d", got)
	}
	if !f.Staked(4, alice).IsZero() {
		t.Fatalf("stake not cleared")
	}
	clock.Advance(5 * time.Second)
	pending, _ := f.Pending(4, alice)
	if got := pending[0].Amount.Uint64(); got != 500 {
		t.Fatalf("pending after exit = %d, want 500", got)
	}
	if err := f.Withdraw(4, alice, uint256.NewInt(1)); !errors.Is(err, ErrWithdrawExceedsStake) {
		t.Fatalf("expected ErrWithdrawExceedsStake, got %v", err)
	}
}

func TestSimFarmSnapshotRevert(t *testing.T) {
	f, _, clock := newFarm(t)
	if err := f.Deposit(4, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	snap := f.Snapshot()
	clock.Advance(time.Second)
	if _, err := f.Claim(4, alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	f.Revert(snap)
	pending, _ := f.Pending(4, alice)
	if got := pending[0].Amount.Uint64(); got != 100 {
		t.Fatalf("pending after revert = %d, want 100", got)
	}
	if _, err := f.Pending(9, alice); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
}

func TestFixedRateConverter(t *testing.T) {
	ledger := bank.NewLedger()
	liquidity := common.HexToAddress("0x00000000000000000000000000000000000011aa")
	conv := NewFixedRateConverter(ledger, wantToken, liquidity)
	if err := conv.SetRate(rewardToken, Rate{Numerator: uint256.NewInt(3), Denominator: uint256.NewInt(2)}); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := ledger.Mint(rewardToken, alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := conv.Convert(rewardToken, alice, uint256.NewInt(10)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if err := ledger.Mint(wantToken, liquidity, uint256.NewInt(1_000)); err != nil {
		t.Fatalf("mint liquidity: %v", err)
	}
	quote, err := conv.Quote(rewardToken, uint256.NewInt(10))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	out, err := conv.Convert(rewardToken, alice, uint256.NewInt(10))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !out.Eq(quote) || out.Uint64() != 15 {
		t.Fatalf("convert = %s, quote = %s", out.Dec(), quote.Dec())
	}
	if got := ledger.BalanceOf(wantToken, alice).Uint64(); got != 15 {
		t.Fatalf("alice want = %d", got)
	}
	if !ledger.BalanceOf(rewardToken, alice).IsZero() {
		t.Fatalf("reward not collected")
	}
	if _, err := conv.Quote(bob, uint256.NewInt(1)); !errors.Is(err, ErrUnsupportedToken) {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}
}
