package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin      = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
	strategist = common.HexToAddress("0x6ca3052E6D4b46c3437FA4C7235A0907805aaeC8")
	guardian   = common.HexToAddress("0x0000000000000000000000000000000000000600")
	stranger   = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

func TestDefaultTable(t *testing.T) {
	roles := NewRoles(admin, []common.Address{strategist}, []common.Address{guardian}, DefaultTable(true))

	cases := []struct {
		caller common.Address
		cap    Capability
		ok     bool
	}{
		{stranger, CapHarvest, true},
		{guardian, CapPause, true},
		{strategist, CapPause, false},
		{admin, CapPause, true},
		{guardian, CapPanic, true},
		{guardian, CapUnpause, true},
		{strategist, CapRetire, true},
		{guardian, CapRetire, false},
		{admin, CapRetire, true},
		{strategist, CapUpdateCadence, false},
		{admin, CapUpdateCadence, true},
		{stranger, CapSetFees, false},
		{admin, CapManageRoles, true},
	}
	for _, tc := range cases {
		err := roles.Authorize(tc.caller, tc.cap)
		if tc.ok && err != nil {
			t.Fatalf("%s should be allowed to %s: %v", tc.caller.Hex(), tc.cap, err)
		}
		if !tc.ok && !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s should be denied %s, got %v", tc.caller.Hex(), tc.cap, err)
		}
	}
}

func TestRestrictedHarvest(t *testing.T) {
	roles := NewRoles(admin, []common.Address{strategist}, nil, DefaultTable(false))
	if err := roles.Authorize(stranger, CapHarvest); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected stranger harvest to be denied, got %v", err)
	}
	if err := roles.Authorize(strategist, CapHarvest); err != nil {
		t.Fatalf("strategist harvest denied: %v", err)
	}
}

func TestZeroAdminNeverMatches(t *testing.T) {
	roles := NewRoles(common.Address{}, nil, nil, nil)
	if err := roles.Authorize(common.Address{}, CapSetFees); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("zero address must not act as admin, got %v", err)
	}
}

func TestGrantRevokeAndClone(t *testing.T) {
	roles := NewRoles(admin, nil, nil, nil)
	if err := roles.Grant(RoleGuardian, guardian); err != nil {
		t.Fatalf("grant: %v", err)
	}
	clone := roles.Clone()
	if err := roles.Revoke(RoleGuardian, guardian); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if roles.Has(guardian, RoleGuardian) {
		t.Fatalf("guardian still present after revoke")
	}
	if !clone.Has(guardian, RoleGuardian) {
		t.Fatalf("clone affected by revoke on original")
	}
	if err := roles.Revoke(RoleAdmin, admin); err == nil {
		t.Fatalf("expected admin revoke to fail")
	}
	if err := roles.Grant(RoleGuardian, common.Address{}); err == nil {
		t.Fatalf("expected zero address grant to fail")
	}
}
