package strategy

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/native/access"
	nativecommon "cryptvault/native/common"
	"cryptvault/native/fees"
	"cryptvault/observability/metrics"
)

// HarvestResult reports what a harvest realised.
type HarvestResult struct {
	Timestamp     int64
	AssetsBefore  *uint256.Int
	AssetsAfter   *uint256.Int
	Profit        *uint256.Int
	TreasuryFee   *uint256.Int
	StrategistFee *uint256.Int
	CallFee       *uint256.Int
	Compounded    *uint256.Int
	// Logged is false when there was no profit and the log was untouched.
	Logged    bool
	Coalesced bool
}

// run executes fn as one non-reentrant, all-or-nothing unit.
func (s *Strategy) run(operation string, fn func() error) error {
	err := nativecommon.Guard(&s.guard, func() error {
		return s.journal.Atomic(fn)
	})
	if err != nil {
		metrics.Strategy().IncError(operation, errorKind(err))
		s.logger.Debug("strategy operation rejected", "operation", operation, "error", err)
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrStrategyPaused):
		return "strategy_paused"
	case errors.Is(err, ErrStrategyRetired):
		return "strategy_retired"
	case errors.Is(err, ErrStrategyPanicked):
		return "strategy_panicked"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, access.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, nativecommon.ErrReentrancyDetected):
		return "reentrancy"
	default:
		return "other"
	}
}

// harvestable reports why a harvest cannot run in the current state.
func (s *Strategy) harvestable() error {
	switch s.state {
	case StatePanicked:
		return fmt.Errorf("%w: harvesting disabled while panicked", ErrStrategyPaused)
	case StateRetired:
		return ErrStrategyRetired
	default:
		return nil
	}
}

// Harvest claims farm rewards, converts them into want, pays the treasury,
// strategist and caller fees, compounds the remainder and records the
// harvest in the log. A harvest without profit succeeds without logging.
func (s *Strategy) Harvest(caller common.Address) (*HarvestResult, error) {
	var result *HarvestResult
	err := s.run("harvest", func() error {
		var err error
		result, err = s.harvest(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Strategy) harvest(caller common.Address) (*HarvestResult, error) {
	if err := s.roles.Authorize(caller, access.CapHarvest); err != nil {
		return nil, err
	}
	if err := s.harvestable(); err != nil {
		return nil, err
	}
	now := s.nowFn().Unix()
	before := s.BalanceOf()
	idleBefore := s.ledger.BalanceOf(s.want, s.address)

	if _, err := s.farm.Claim(s.poolID, s.address); err != nil {
		return nil, fmt.Errorf("strategy harvest: claim: %w", err)
	}
	for _, token := range s.rewardTokens {
		if token == s.want {
			continue
		}
		held := s.ledger.BalanceOf(token, s.address)
		if held.IsZero() {
			continue
		}
		if _, err := s.converter.Convert(token, s.address, held); err != nil {
			return nil, fmt.Errorf("strategy harvest: convert %s: %w", token.Hex(), err)
		}
	}
	idle := s.ledger.BalanceOf(s.want, s.address)
	profit := new(uint256.Int)
	if idle.Gt(idleBefore) {
		profit.Sub(idle, idleBefore)
	}
	result := &HarvestResult{
		Timestamp:     now,
		AssetsBefore:  before,
		AssetsAfter:   s.BalanceOf(),
		Profit:        profit,
		TreasuryFee:   new(uint256.Int),
		StrategistFee: new(uint256.Int),
		CallFee:       new(uint256.Int),
		Compounded:    new(uint256.Int),
	}
	if profit.IsZero() {
		return result, nil
	}

	dist := fees.Apply(s.split, profit)
	for _, leg := range []struct {
		to     common.Address
		amount *uint256.Int
	}{
		{s.treasury, dist.Treasury},
		{s.strategistRemitter, dist.Strategist},
		{caller, dist.Call},
	} {
		if err := s.ledger.Transfer(s.want, s.address, leg.to, leg.amount); err != nil {
			return nil, fmt.Errorf("strategy harvest: fee transfer: %w", err)
		}
	}
	if s.state == StateActive {
		if err := s.stakeIdle(); err != nil {
			return nil, err
		}
	}
	after := s.BalanceOf()

	coalesced := false
	if latest := s.log.Latest(); latest != nil && now-latest.Timestamp < int64(s.cadence) {
		// Restate the merged entry's starting assets so after/before carries
		// the compounded growth of both harvests and excludes capital that
		// moved in between.
		if !latest.AssetsAfter.IsZero() {
			rebased, overflow := new(uint256.Int).MulDivOverflow(before, latest.AssetsBefore, latest.AssetsAfter)
			if !overflow {
				latest.AssetsBefore = rebased
			}
		} else {
			latest.AssetsBefore = new(uint256.Int).Set(before)
		}
		latest.AssetsAfter = new(uint256.Int).Set(after)
		latest.Timestamp = now
		coalesced = true
	} else {
		entry := HarvestLogEntry{Timestamp: now, AssetsBefore: new(uint256.Int).Set(before), AssetsAfter: new(uint256.Int).Set(after)}
		if evicted, ok := s.log.Push(entry); ok {
			s.anchor = evicted.Timestamp
		}
	}
	s.lastHarvest = now

	result.AssetsAfter = after
	result.TreasuryFee = dist.Treasury
	result.StrategistFee = dist.Strategist
	result.CallFee = dist.Call
	result.Compounded = dist.Compound
	result.Logged = true
	result.Coalesced = coalesced

	evt := events.StrategyHarvest{
		Strategy:      s.address,
		Caller:        caller,
		Timestamp:     now,
		AssetsBefore:  new(uint256.Int).Set(before),
		AssetsAfter:   new(uint256.Int).Set(after),
		Profit:        new(uint256.Int).Set(profit),
		TreasuryFee:   new(uint256.Int).Set(dist.Treasury),
		StrategistFee: new(uint256.Int).Set(dist.Strategist),
		CallFee:       new(uint256.Int).Set(dist.Call),
		Coalesced:     coalesced,
	}
	s.journal.Defer(func() {
		s.emitter.Emit(evt)
		label := s.address.Hex()
		m := metrics.Strategy()
		m.ObserveHarvest(label, coalesced, evt.Profit.Float64(), evt.TreasuryFee.Float64(), evt.StrategistFee.Float64(), evt.CallFee.Float64(), now)
		if apr, err := s.AverageAPRAcrossLastNHarvests(s.log.Cap()); err == nil {
			m.SetAPR(label, apr)
		}
		s.logger.Info("harvest",
			"caller", caller.Hex(),
			"profit", evt.Profit.Dec(),
			"call_fee", evt.CallFee.Dec(),
			"assets_after", evt.AssetsAfter.Dec(),
			"coalesced", coalesced)
	})
	return result, nil
}

// EstimateHarvest predicts the profit and caller fee an immediate Harvest
// would realise. It does not mutate state.
func (s *Strategy) EstimateHarvest() (profit, callFee *uint256.Int, err error) {
	if err := s.harvestable(); err != nil {
		return nil, nil, err
	}
	pending, err := s.farm.Pending(s.poolID, s.address)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy estimate: %w", err)
	}
	owed := make(map[common.Address]*uint256.Int)
	for _, reward := range pending {
		if reward.Amount == nil {
			continue
		}
		if _, ok := owed[reward.Token]; !ok {
			owed[reward.Token] = new(uint256.Int)
		}
		owed[reward.Token].Add(owed[reward.Token], reward.Amount)
	}
	profit = new(uint256.Int)
	if direct, ok := owed[s.want]; ok {
		profit.Add(profit, direct)
	}
	for _, token := range s.rewardTokens {
		if token == s.want {
			continue
		}
		amount := s.ledger.BalanceOf(token, s.address)
		if claimed, ok := owed[token]; ok {
			amount.Add(amount, claimed)
		}
		if amount.IsZero() {
			continue
		}
		out, err := s.converter.Quote(token, amount)
		if err != nil {
			return nil, nil, fmt.Errorf("strategy estimate: quote %s: %w", token.Hex(), err)
		}
		profit.Add(profit, out)
	}
	return profit, fees.Apply(s.split, profit).Call, nil
}

// AverageAPRAcrossLastNHarvests returns the mean annualised return of the
// newest min(n, len) log entries in basis points. Each entry contributes
// (after-before)/before * SecondsPerYear/elapsed where elapsed runs from the
// previous entry, or from the log anchor for the oldest retained entry.
// Entries with no elapsed time or no starting assets are skipped. The mean is
// computed exactly and truncated toward zero once.
func (s *Strategy) AverageAPRAcrossLastNHarvests(n int) (int64, error) {
	entries := s.log.Entries()
	if len(entries) == 0 || n <= 0 {
		return 0, ErrInsufficientHistory
	}
	start := 0
	if n < len(entries) {
		start = len(entries) - n
	}
	prev := s.anchor
	if start > 0 {
		prev = entries[start-1].Timestamp
	}
	year := big.NewInt(SecondsPerYear)
	sum := new(big.Rat)
	counted := int64(0)
	for _, entry := range entries[start:] {
		elapsed := entry.Timestamp - prev
		prev = entry.Timestamp
		if elapsed <= 0 || entry.AssetsBefore.IsZero() {
			continue
		}
		before := entry.AssetsBefore.ToBig()
		num := new(big.Int).Sub(entry.AssetsAfter.ToBig(), before)
		num.Mul(num, year)
		den := new(big.Int).Mul(before, big.NewInt(elapsed))
		sum.Add(sum, new(big.Rat).SetFrac(num, den))
		counted++
	}
	if counted == 0 {
		return 0, ErrInsufficientHistory
	}
	sum.Mul(sum, big.NewRat(int64(nativecommon.BasisPoints), counted))
	bps := new(big.Int).Quo(sum.Num(), sum.Denom())
	switch {
	case bps.IsInt64():
		return bps.Int64(), nil
	case bps.Sign() > 0:
		return math.MaxInt64, nil
	default:
		return math.MinInt64, nil
	}
}
