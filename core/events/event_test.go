package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestVaultDepositAttributes(t *testing.T) {
	vault := common.HexToAddress("0x01")
	holder := common.HexToAddress("0x02")
	evt := VaultDeposit{Vault: vault, Holder: holder, Amount: uint256.NewInt(1500)}.Event()
	if evt.Type != TypeVaultDeposit {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if got := evt.Attribute("holder"); got != holder.Hex() {
		t.Fatalf("holder attribute: got %q", got)
	}
	if got := evt.Attribute("amount"); got != "1500" {
		t.Fatalf("amount attribute: got %q", got)
	}
	if got := evt.Attribute("shares"); got != "0" {
		t.Fatalf("nil amounts should render as 0, got %q", got)
	}
}

func TestStrategyHarvestAttributes(t *testing.T) {
	evt := StrategyHarvest{Timestamp: 1_700_000_000, Profit: uint256.NewInt(42), Coalesced: true}.Event()
	if evt.Attribute("timestamp") != "1700000000" || evt.Attribute("profit") != "42" || evt.Attribute("coalesced") != "true" {
		t.Fatalf("unexpected attributes: %v", evt.Attributes)
	}
	clone := evt.Clone()
	clone.Attributes["profit"] = "0"
	if evt.Attribute("profit") != "42" {
		t.Fatalf("clone shares attribute map with original")
	}
}

func TestFanoutAndRecorder(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	fan := Fanout{first, nil, second}
	fan.Emit(VaultDeposit{})
	fan.Emit(StrategyRetired{})

	for _, r := range []*Recorder{first, second} {
		if len(r.Events()) != 2 {
			t.Fatalf("expected 2 events, got %d", len(r.Events()))
		}
		if len(r.OfType(TypeStrategyRetired)) != 1 {
			t.Fatalf("expected one retired event")
		}
	}
	first.Reset()
	if len(first.Events()) != 0 {
		t.Fatalf("reset did not clear events")
	}
	NoopEmitter{}.Emit(VaultDeposit{})
}
