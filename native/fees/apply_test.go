package fees

import (
	"errors"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/holiman/uint256"
)

func TestApplyConservesProfit(t *testing.T) {
	split := DefaultSplit()
	for _, p := range []uint64{0, 1, 99, 10_000, 1_234_567, 1_000_000_000_000_000_000} {
		profit := uint256.NewInt(p)
		d := Apply(split, profit)
		sum := new(uint256.Int).Add(d.TotalFees(), d.Compound)
		if !sum.Eq(profit) {
			t.Fatalf("profit %d: legs sum to %s", p, sum.Dec())
		}
	}
}

func TestApplyLegs(t *testing.T) {
	d := Apply(Split{TreasuryBps: 300, StrategistBps: 100, CallFeeBps: 50}, uint256.NewInt(1_000_000))
	if d.Treasury.Uint64() != 30_000 || d.Strategist.Uint64() != 10_000 || d.Call.Uint64() != 5_000 {
		t.Fatalf("unexpected legs: %s %s %s", d.Treasury.Dec(), d.Strategist.Dec(), d.Call.Dec())
	}
	if d.Compound.Uint64() != 955_000 {
		t.Fatalf("expected compound 955000, got %s", d.Compound.Dec())
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultSplit().Validate(); err != nil {
		t.Fatalf("default split invalid: %v", err)
	}
	if err := (Split{TreasuryBps: 10_000}).Validate(); err != nil {
		t.Fatalf("full treasury split should be valid: %v", err)
	}
	if err := (Split{TreasuryBps: 9_000, CallFeeBps: 1_001}).Validate(); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit, got %v", err)
	}
	if err := (Split{StrategistBps: ^uint64(0)}).Validate(); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("expected ErrInvalidSplit for wrapped leg, got %v", err)
	}
}

func TestSplitDecodesFromTOML(t *testing.T) {
	var cfg struct {
		Fees Split `toml:"fees"`
	}
	doc := `
[fees]
TreasuryBps = 700
StrategistBps = 200
CallFeeBps = 100
`
	if _, err := toml.Decode(doc, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Fees.TotalBps() != 1_000 {
		t.Fatalf("expected 1000 total, got %d", cfg.Fees.TotalBps())
	}
}
