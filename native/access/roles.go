// Package access centralises role-based authorisation for strategy entry
// points. Every operation names a capability and asks the table whether the
// caller holds a role that grants it.
package access

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnauthorized is returned when the caller lacks every role a capability requires.
var ErrUnauthorized = errors.New("access: unauthorized")

// Role identifies a class of caller.
type Role uint8

const (
	// RoleAnyone matches every caller.
	RoleAnyone Role = iota
	// RoleAdmin is the single administrative account.
	RoleAdmin
	// RoleStrategist accounts may harvest and retire.
	RoleStrategist
	// RoleGuardian accounts may pause and panic.
	RoleGuardian
)

func (r Role) String() string {
	switch r {
	case RoleAnyone:
		return "anyone"
	case RoleAdmin:
		return "admin"
	case RoleStrategist:
		return "strategist"
	case RoleGuardian:
		return "guardian"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Capability names a guarded operation.
type Capability string

const (
	CapHarvest       Capability = "harvest"
	CapPause         Capability = "pause"
	CapUnpause       Capability = "unpause"
	CapPanic         Capability = "panic"
	CapRetire        Capability = "retire"
	CapUpdateCadence Capability = "update_cadence"
	CapSetFees       Capability = "set_fees"
	CapManageRoles   Capability = "manage_roles"
)

// Table maps each capability to the roles that grant it.
type Table map[Capability][]Role

// DefaultTable returns the capability table used by strategies. When
// permissionlessHarvest is false only admins and strategists may harvest.
func DefaultTable(permissionlessHarvest bool) Table {
	harvest := []Role{RoleAnyone}
	if !permissionlessHarvest {
		harvest = []Role{RoleAdmin, RoleStrategist}
	}
	return Table{
		CapHarvest:       harvest,
		CapPause:         {RoleAdmin, RoleGuardian},
		CapUnpause:       {RoleAdmin, RoleGuardian},
		CapPanic:         {RoleAdmin, RoleGuardian},
		CapRetire:        {RoleAdmin, RoleStrategist},
		CapUpdateCadence: {RoleAdmin},
		CapSetFees:       {RoleAdmin},
		CapManageRoles:   {RoleAdmin},
	}
}

// Roles holds the role membership of a strategy.
type Roles struct {
	admin       common.Address
	strategists map[common.Address]struct{}
	guardians   map[common.Address]struct{}
	table       Table
}

// NewRoles constructs a role set. Zero addresses in the member lists are ignored.
func NewRoles(admin common.Address, strategists, guardians []common.Address, table Table) *Roles {
	r := &Roles{
		admin:       admin,
		strategists: make(map[common.Address]struct{}),
		guardians:   make(map[common.Address]struct{}),
		table:       table,
	}
	if r.table == nil {
		r.table = DefaultTable(true)
	}
	for _, s := range strategists {
		if s != (common.Address{}) {
			r.strategists[s] = struct{}{}
		}
	}
	for _, g := range guardians {
		if g != (common.Address{}) {
			r.guardians[g] = struct{}{}
		}
	}
	return r
}

// Admin returns the admin account.
func (r *Roles) Admin() common.Address { return r.admin }

// Has reports whether account holds role.
func (r *Roles) Has(account common.Address, role Role) bool {
	switch role {
	case RoleAnyone:
		return true
	case RoleAdmin:
		return account == r.admin && account != (common.Address{})
	case RoleStrategist:
		_, ok := r.strategists[account]
		return ok
	case RoleGuardian:
		_, ok := r.guardians[account]
		return ok
	default:
		return false
	}
}

// Authorize checks caller against the roles granting capability.
func (r *Roles) Authorize(caller common.Address, capability Capability) error {
	roles, ok := r.table[capability]
	if ok {
		for _, role := range roles {
			if r.Has(caller, role) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s may not %s", ErrUnauthorized, caller.Hex(), capability)
}

// Grant adds account to a strategist or guardian set.
func (r *Roles) Grant(role Role, account common.Address) error {
	if account == (common.Address{}) {
		return fmt.Errorf("access: zero address")
	}
	switch role {
	case RoleStrategist:
		r.strategists[account] = struct{}{}
	case RoleGuardian:
		r.guardians[account] = struct{}{}
	case RoleAdmin:
		r.admin = account
	default:
		return fmt.Errorf("access: role %s cannot be granted", role)
	}
	return nil
}

// Revoke removes account from a strategist or guardian set. The admin role
// can only be transferred through Grant.
func (r *Roles) Revoke(role Role, account common.Address) error {
	switch role {
	case RoleStrategist:
		delete(r.strategists, account)
	case RoleGuardian:
		delete(r.guardians, account)
	default:
		return fmt.Errorf("access: role %s cannot be revoked", role)
	}
	return nil
}

// Members returns the sorted members of role.
func (r *Roles) Members(role Role) []common.Address {
	var set map[common.Address]struct{}
	switch role {
	case RoleAdmin:
		return []common.Address{r.admin}
	case RoleStrategist:
		set = r.strategists
	case RoleGuardian:
		set = r.guardians
	default:
		return nil
	}
	out := make([]common.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Clone returns a deep copy sharing the immutable capability table.
func (r *Roles) Clone() *Roles {
	return NewRoles(r.admin, r.Members(RoleStrategist), r.Members(RoleGuardian), r.table)
}
