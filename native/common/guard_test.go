package common

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestGuardRejectsReentry(t *testing.T) {
	var g ReentrancyGuard
	err := Guard(&g, func() error {
		return Guard(&g, func() error { return nil })
	})
	if !errors.Is(err, ErrReentrancyDetected) {
		t.Fatalf("expected ErrReentrancyDetected, got %v", err)
	}
	if err := Guard(&g, func() error { return nil }); err != nil {
		t.Fatalf("guard not released after outer call: %v", err)
	}
}

func TestGuardReleasesOnError(t *testing.T) {
	var g ReentrancyGuard
	boom := errors.New("boom")
	if err := Guard(&g, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := g.Enter(); err != nil {
		t.Fatalf("guard still held: %v", err)
	}
}

func TestMulDiv(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	got, err := MulDiv(max, uint256.NewInt(3), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if !got.Eq(max) {
		t.Fatalf("expected max, got %s", got.Dec())
	}
	if _, err := MulDiv(max, uint256.NewInt(2), uint256.NewInt(1)); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	got, _ = MulDiv(uint256.NewInt(7), uint256.NewInt(10), uint256.NewInt(3))
	if got.Uint64() != 23 {
		t.Fatalf("expected floor 23, got %s", got.Dec())
	}
}

func TestApplyBps(t *testing.T) {
	cases := []struct {
		amount uint64
		bps    uint64
		want   uint64
	}{
		{amount: 10_000, bps: 10, want: 10},
		{amount: 999, bps: 10, want: 0},
		{amount: 1_000_000, bps: 450, want: 45_000},
		{amount: 5, bps: 20_000, want: 5},
		{amount: 0, bps: 100, want: 0},
	}
	for _, tc := range cases {
		if got := ApplyBps(uint256.NewInt(tc.amount), tc.bps); got.Uint64() != tc.want {
			t.Fatalf("ApplyBps(%d, %d) = %s, want %d", tc.amount, tc.bps, got.Dec(), tc.want)
		}
	}
}
