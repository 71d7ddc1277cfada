package strategy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/state"
	"cryptvault/native/access"
)

type logRecord struct {
	Timestamp    uint64
	AssetsBefore *big.Int
	AssetsAfter  *big.Int
}

type strategyRecord struct {
	State         uint8
	Admin         common.Address
	Strategists   []common.Address
	Guardians     []common.Address
	TreasuryBps   uint64
	StrategistBps uint64
	CallFeeBps    uint64
	Cadence       uint64
	Inception     uint64
	Anchor        uint64
	LastHarvest   uint64
	Log           []logRecord
}

func storageKey(addr common.Address) []byte {
	return []byte("strategy/" + addr.Hex())
}

// Persist writes the lifecycle state, roles, fee split and harvest log.
func (s *Strategy) Persist(store *state.Store) error {
	record := strategyRecord{
		State:         uint8(s.state),
		Admin:         s.roles.Admin(),
		Strategists:   s.roles.Members(access.RoleStrategist),
		Guardians:     s.roles.Members(access.RoleGuardian),
		TreasuryBps:   s.split.TreasuryBps,
		StrategistBps: s.split.StrategistBps,
		CallFeeBps:    s.split.CallFeeBps,
		Cadence:       s.cadence,
		Inception:     uint64(s.inception),
		Anchor:        uint64(s.anchor),
		LastHarvest:   uint64(s.lastHarvest),
	}
	for _, entry := range s.log.Entries() {
		record.Log = append(record.Log, logRecord{
			Timestamp:    uint64(entry.Timestamp),
			AssetsBefore: entry.AssetsBefore.ToBig(),
			AssetsAfter:  entry.AssetsAfter.ToBig(),
		})
	}
	if err := store.KVPut(storageKey(s.address), record); err != nil {
		return fmt.Errorf("strategy persist: %w", err)
	}
	return nil
}

// Load restores state written by Persist, reporting false when absent. Log
// entries beyond the configured capacity are dropped oldest first.
func (s *Strategy) Load(store *state.Store) (bool, error) {
	var record strategyRecord
	ok, err := store.KVGet(storageKey(s.address), &record)
	if err != nil || !ok {
		return ok, err
	}
	if record.State > uint8(StateRetired) {
		return false, fmt.Errorf("strategy load: unknown state %d", record.State)
	}
	log := newHarvestLog(s.log.Cap())
	anchor := int64(record.Anchor)
	for _, entry := range record.Log {
		before, overflowBefore := uint256.FromBig(orZero(entry.AssetsBefore))
		after, overflowAfter := uint256.FromBig(orZero(entry.AssetsAfter))
		if overflowBefore || overflowAfter {
			return false, fmt.Errorf("strategy load: log entry overflows 256 bits")
		}
		if evicted, ok := log.Push(HarvestLogEntry{Timestamp: int64(entry.Timestamp), AssetsBefore: before, AssetsAfter: after}); ok {
			anchor = evicted.Timestamp
		}
	}
	s.state = State(record.State)
	s.roles = access.NewRoles(record.Admin, record.Strategists, record.Guardians, s.table)
	s.split.TreasuryBps = record.TreasuryBps
	s.split.StrategistBps = record.StrategistBps
	s.split.CallFeeBps = record.CallFeeBps
	s.cadence = record.Cadence
	s.inception = int64(record.Inception)
	s.anchor = anchor
	s.lastHarvest = int64(record.LastHarvest)
	s.log = log
	return true, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
