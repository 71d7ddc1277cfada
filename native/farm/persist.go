package farm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/state"
)

type stakerRecord struct {
	Staker     common.Address
	Amount     *big.Int
	RewardDebt *big.Int
	Owed       *big.Int
}

type poolRecord struct {
	ID                uint64
	TotalStaked       *big.Int
	AccRewardPerShare *big.Int
	LastRewardTime    uint64
	Stakers           []stakerRecord
}

type farmRecord struct {
	Pools []poolRecord
}

func (f *SimFarm) storageKey() []byte {
	return []byte("farm/" + f.address.Hex())
}

// Persist writes pool accumulators and stakes. Emission settings are
// configuration and are re-applied through AddPool on start-up.
func (f *SimFarm) Persist(store *state.Store) error {
	ids := make([]uint64, 0, len(f.pools))
	for id := range f.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var record farmRecord
	for _, id := range ids {
		p := f.pools[id]
		entry := poolRecord{
			ID:                id,
			TotalStaked:       p.totalStaked.ToBig(),
			AccRewardPerShare: p.accRewardPerShare.ToBig(),
			LastRewardTime:    uint64(p.lastRewardTime),
		}
		stakers := make([]common.Address, 0, len(p.stakers))
		for addr := range p.stakers {
			stakers = append(stakers, addr)
		}
		sort.Slice(stakers, func(i, j int) bool { return stakers[i].Cmp(stakers[j]) < 0 })
		for _, addr := range stakers {
			s := p.stakers[addr]
			entry.Stakers = append(entry.Stakers, stakerRecord{
				Staker:     addr,
				Amount:     s.amount.ToBig(),
				RewardDebt: s.rewardDebt.ToBig(),
				Owed:       s.owed.ToBig(),
			})
		}
		record.Pools = append(record.Pools, entry)
	}
	if err := store.KVPut(f.storageKey(), record); err != nil {
		return fmt.Errorf("farm persist: %w", err)
	}
	return nil
}

// Load restores stakes for pools already added through AddPool. Stored pools
// that are no longer configured are ignored.
func (f *SimFarm) Load(store *state.Store) (bool, error) {
	var record farmRecord
	ok, err := store.KVGet(f.storageKey(), &record)
	if err != nil || !ok {
		return ok, err
	}
	for _, entry := range record.Pools {
		p, ok := f.pools[entry.ID]
		if !ok {
			continue
		}
		p.totalStaked = toUint256(entry.TotalStaked)
		p.accRewardPerShare = toUint256(entry.AccRewardPerShare)
		p.lastRewardTime = int64(entry.LastRewardTime)
		p.stakers = make(map[common.Address]*stakerInfo, len(entry.Stakers))
		for _, s := range entry.Stakers {
			p.stakers[s.Staker] = &stakerInfo{
				amount:     toUint256(s.Amount),
				rewardDebt: toUint256(s.RewardDebt),
				owed:       toUint256(s.Owed),
			}
		}
	}
	return true, nil
}

func toUint256(v *big.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(v)
	return out
}
