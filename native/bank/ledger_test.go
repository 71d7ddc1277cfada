package bank

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/state"
	"cryptvault/storage"
)

var (
	want  = common.HexToAddress("0x61C9E05d1Cdb1b70856c7a2c53fA9c220830633c")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestTransferMovesBalance(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(want, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(want, alice, bob, uint256.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(want, alice); got.Uint64() != 60 {
		t.Fatalf("expected alice 60, got %s", got.Dec())
	}
	if got := l.BalanceOf(want, bob); got.Uint64() != 40 {
		t.Fatalf("expected bob 40, got %s", got.Dec())
	}
	if got := l.TotalSupply(want); got.Uint64() != 100 {
		t.Fatalf("expected supply 100, got %s", got.Dec())
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	l := NewLedger()
	_ = l.Mint(want, alice, uint256.NewInt(10))
	err := l.Transfer(want, alice, bob, uint256.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf(want, alice); got.Uint64() != 10 {
		t.Fatalf("balance changed on failed transfer: %s", got.Dec())
	}
	if err := l.Transfer(want, alice, common.Address{}, uint256.NewInt(1)); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("expected ErrZeroRecipient, got %v", err)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	l := NewLedger()
	_ = l.Mint(want, alice, uint256.NewInt(5))
	bal := l.BalanceOf(want, alice)
	bal.SetUint64(1_000)
	if got := l.BalanceOf(want, alice); got.Uint64() != 5 {
		t.Fatalf("ledger aliased returned balance: %s", got.Dec())
	}
}

func TestSnapshotRevert(t *testing.T) {
	l := NewLedger()
	_ = l.Mint(want, alice, uint256.NewInt(50))
	snap := l.Snapshot()
	_ = l.Transfer(want, alice, bob, uint256.NewInt(50))
	_ = l.Mint(want, bob, uint256.NewInt(7))
	l.Revert(snap)
	if got := l.BalanceOf(want, alice); got.Uint64() != 50 {
		t.Fatalf("expected alice restored to 50, got %s", got.Dec())
	}
	if got := l.BalanceOf(want, bob); !got.IsZero() {
		t.Fatalf("expected bob restored to 0, got %s", got.Dec())
	}
	if got := l.TotalSupply(want); got.Uint64() != 50 {
		t.Fatalf("expected supply restored to 50, got %s", got.Dec())
	}
}

func TestTransferHookCanAbort(t *testing.T) {
	l := NewLedger()
	_ = l.Mint(want, alice, uint256.NewInt(5))
	errHook := errors.New("hook")
	calls := 0
	l.SetTransferHook(func(token, from, to common.Address, amount *uint256.Int) error {
		calls++
		return errHook
	})
	if err := l.Transfer(want, alice, bob, uint256.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should not invoke hook: %v", err)
	}
	if err := l.Transfer(want, alice, bob, uint256.NewInt(1)); !errors.Is(err, errHook) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one hook call, got %d", calls)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	store := state.NewStore(storage.NewMemDB())
	l := NewLedger()
	if err := l.Mint(want, alice, uint256.NewInt(75)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(want, alice, bob, uint256.NewInt(25)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Persist(store); err != nil {
		t.Fatalf("persist: %v", err)
	}
	restored := NewLedger()
	ok, err := restored.Load(store)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got := restored.BalanceOf(want, bob).Uint64(); got != 25 {
		t.Fatalf("expected bob 25, got %d", got)
	}
	if got := restored.TotalSupply(want).Uint64(); got != 75 {
		t.Fatalf("expected supply 75, got %d", got)
	}
	if ok, _ := NewLedger().Load(state.NewStore(storage.NewMemDB())); ok {
		t.Fatalf("expected empty store to report no ledger")
	}
}
