package farm

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/native/bank"
)

var (
	// ErrUnknownPool is returned for pool identifiers that were never added.
	ErrUnknownPool = errors.New("farm: unknown pool")
	// ErrWithdrawExceedsStake is returned when unstaking more than is staked.
	ErrWithdrawExceedsStake = errors.New("farm: withdraw exceeds stake")
)

// accPrecision scales the accumulated reward per staked unit.
var accPrecision = uint256.NewInt(1_000_000_000_000)

// PoolConfig describes a simulated pool.
type PoolConfig struct {
	Want            common.Address
	Reward          common.Address
	RewardPerSecond *uint256.Int
}

type stakerInfo struct {
	amount     *uint256.Int
	rewardDebt *uint256.Int
	owed       *uint256.Int
}

type pool struct {
	cfg               PoolConfig
	totalStaked       *uint256.Int
	accRewardPerShare *uint256.Int
	lastRewardTime    int64
	stakers           map[common.Address]*stakerInfo
}

// SimFarm is a MasterChef-style farm that emits a fixed amount of reward
// token per second, split pro rata across stakers. Staked want is held by the
// farm's own address in the shared ledger; rewards are minted on claim.
type SimFarm struct {
	ledger  *bank.Ledger
	address common.Address
	nowFn   func() time.Time
	pools   map[uint64]*pool
}

// NewSimFarm constructs a farm custodying stakes at address.
func NewSimFarm(ledger *bank.Ledger, address common.Address) *SimFarm {
	return &SimFarm{
		ledger:  ledger,
		address: address,
		nowFn:   func() time.Time { return time.Now().UTC() },
		pools:   make(map[uint64]*pool),
	}
}

// SetNowFunc overrides the time source. Passing nil restores the UTC clock.
func (f *SimFarm) SetNowFunc(now func() time.Time) {
	if now == nil {
		f.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	f.nowFn = now
}

// Address returns the custody address.
func (f *SimFarm) Address() common.Address { return f.address }

// AddPool registers a pool. Re-adding a pool replaces its emission settings
// but keeps the stakes.
func (f *SimFarm) AddPool(poolID uint64, cfg PoolConfig) {
	if cfg.RewardPerSecond == nil {
		cfg.RewardPerSecond = new(uint256.Int)
	}
	if existing, ok := f.pools[poolID]; ok {
		f.update(existing)
		existing.cfg = cfg
		return
	}
	f.pools[poolID] = &pool{
		cfg:               cfg,
		totalStaked:       new(uint256.Int),
		accRewardPerShare: new(uint256.Int),
		lastRewardTime:    f.nowFn().Unix(),
		stakers:           make(map[common.Address]*stakerInfo),
	}
}

func (f *SimFarm) pool(poolID uint64) (*pool, error) {
	p, ok := f.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPool, poolID)
	}
	return p, nil
}

// accrued returns the accumulator value at now without mutating the pool.
func (f *SimFarm) accrued(p *pool, now int64) *uint256.Int {
	acc := new(uint256.Int).Set(p.accRewardPerShare)
	if now <= p.lastRewardTime || p.totalStaked.IsZero() {
		return acc
	}
	elapsed := uint256.NewInt(uint64(now - p.lastRewardTime))
	reward := new(uint256.Int).Mul(elapsed, p.cfg.RewardPerSecond)
	perShare, _ := new(uint256.Int).MulDivOverflow(reward, accPrecision, p.totalStaked)
	return acc.Add(acc, perShare)
}

func (f *SimFarm) update(p *pool) {
	now := f.nowFn().Unix()
	p.accRewardPerShare = f.accrued(p, now)
	if now > p.lastRewardTime {
		p.lastRewardTime = now
	}
}

func (p *pool) staker(addr common.Address) *stakerInfo {
	s, ok := p.stakers[addr]
	if !ok {
		s = &stakerInfo{amount: new(uint256.Int), rewardDebt: new(uint256.Int), owed: new(uint256.Int)}
		p.stakers[addr] = s
	}
	return s
}

func earned(s *stakerInfo, acc *uint256.Int) *uint256.Int {
	gross, _ := new(uint256.Int).MulDivOverflow(s.amount, acc, accPrecision)
	if gross.Lt(s.rewardDebt) {
		return new(uint256.Int).Set(s.owed)
	}
	out := new(uint256.Int).Sub(gross, s.rewardDebt)
	return out.Add(out, s.owed)
}

func (f *SimFarm) settle(p *pool, s *stakerInfo) {
	s.owed = earned(s, p.accRewardPerShare)
}

func (f *SimFarm) resetDebt(p *pool, s *stakerInfo) {
	s.rewardDebt, _ = new(uint256.Int).MulDivOverflow(s.amount, p.accRewardPerShare, accPrecision)
}

// Deposit implements Farm.
func (f *SimFarm) Deposit(poolID uint64, from common.Address, amount *uint256.Int) error {
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	f.update(p)
	s := p.staker(from)
	f.settle(p, s)
	if amount != nil && !amount.IsZero() {
		if err := f.ledger.Transfer(p.cfg.Want, from, f.address, amount); err != nil {
			return fmt.Errorf("farm deposit: %w", err)
		}
		s.amount = new(uint256.Int).Add(s.amount, amount)
		p.totalStaked = new(uint256.Int).Add(p.totalStaked, amount)
	}
	f.resetDebt(p, s)
	return nil
}

// Withdraw implements Farm.
func (f *SimFarm) Withdraw(poolID uint64, to common.Address, amount *uint256.Int) error {
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	f.update(p)
	s := p.staker(to)
	if amount == nil {
		amount = new(uint256.Int)
	}
	if s.amount.Lt(amount) {
		return fmt.Errorf("%w: staked %s, requested %s", ErrWithdrawExceedsStake, s.amount.Dec(), amount.Dec())
	}
	f.settle(p, s)
	s.amount = new(uint256.Int).Sub(s.amount, amount)
	p.totalStaked = new(uint256.Int).Sub(p.totalStaked, amount)
	f.resetDebt(p, s)
	if err := f.ledger.Transfer(p.cfg.Want, f.address, to, amount); err != nil {
		return fmt.Errorf("farm withdraw: %w", err)
	}
	return nil
}

// Staked implements Farm.
func (f *SimFarm) Staked(poolID uint64, account common.Address) *uint256.Int {
	p, ok := f.pools[poolID]
	if !ok {
		return new(uint256.Int)
	}
	if s, ok := p.stakers[account]; ok {
		return new(uint256.Int).Set(s.amount)
	}
	return new(uint256.Int)
}

// Pending implements Farm.
func (f *SimFarm) Pending(poolID uint64, account common.Address) ([]RewardAmount, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return nil, err
	}
	s, ok := p.stakers[account]
	if !ok {
		return []RewardAmount{{Token: p.cfg.Reward, Amount: new(uint256.Int)}}, nil
	}
	acc := f.accrued(p, f.nowFn().Unix())
	return []RewardAmount{{Token: p.cfg.Reward, Amount: earned(s, acc)}}, nil
}

// Claim implements Farm.
func (f *SimFarm) Claim(poolID uint64, account common.Address) ([]RewardAmount, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return nil, err
	}
	f.update(p)
	s := p.staker(account)
	f.settle(p, s)
	owed := s.owed
	s.owed = new(uint256.Int)
	f.resetDebt(p, s)
	if err := f.ledger.Mint(p.cfg.Reward, account, owed); err != nil {
		return nil, fmt.Errorf("farm claim: %w", err)
	}
	return []RewardAmount{{Token: p.cfg.Reward, Amount: owed}}, nil
}

type farmSnapshot map[uint64]*pool

// Snapshot implements state.Journaled.
func (f *SimFarm) Snapshot() any {
	snap := make(farmSnapshot, len(f.pools))
	for id, p := range f.pools {
		clone := &pool{
			cfg:               p.cfg,
			totalStaked:       new(uint256.Int).Set(p.totalStaked),
			accRewardPerShare: new(uint256.Int).Set(p.accRewardPerShare),
			lastRewardTime:    p.lastRewardTime,
			stakers:           make(map[common.Address]*stakerInfo, len(p.stakers)),
		}
		for addr, s := range p.stakers {
			clone.stakers[addr] = &stakerInfo{
				amount:     new(uint256.Int).Set(s.amount),
				rewardDebt: new(uint256.Int).Set(s.rewardDebt),
				owed:       new(uint256.Int).Set(s.owed),
			}
		}
		snap[id] = clone
	}
	return snap
}

// Revert implements state.Journaled.
func (f *SimFarm) Revert(snapshot any) {
	if snap, ok := snapshot.(farmSnapshot); ok {
		f.pools = snap
	}
}
