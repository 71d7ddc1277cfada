package fees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	nativecommon "cryptvault/native/common"
)

// ErrInvalidSplit is returned when the harvest fee legs exceed 100%.
var ErrInvalidSplit = errors.New("fees: split exceeds 10000 bps")

// Split captures the basis-point legs taken from harvested profit. Whatever
// remains after the three legs compounds back into the farmed position.
type Split struct {
	TreasuryBps   uint64 `toml:"TreasuryBps" yaml:"treasury_bps" json:"treasuryBps"`
	StrategistBps uint64 `toml:"StrategistBps" yaml:"strategist_bps" json:"strategistBps"`
	CallFeeBps    uint64 `toml:"CallFeeBps" yaml:"call_fee_bps" json:"callFeeBps"`
}

// DefaultSplit mirrors a 4.5% total performance fee where the harvest caller
// receives a tenth and the strategist a quarter of the rest.
func DefaultSplit() Split {
	return Split{TreasuryBps: 304, StrategistBps: 101, CallFeeBps: 45}
}

// TotalBps returns the sum of the three legs.
func (s Split) TotalBps() uint64 {
	return s.TreasuryBps + s.StrategistBps + s.CallFeeBps
}

// Validate ensures the legs sum to at most 10000 bps.
func (s Split) Validate() error {
	// Each leg is checked first so the sum cannot wrap.
	if s.TreasuryBps > nativecommon.BasisPoints || s.StrategistBps > nativecommon.BasisPoints || s.CallFeeBps > nativecommon.BasisPoints {
		return fmt.Errorf("%w: leg above 10000", ErrInvalidSplit)
	}
	if total := s.TotalBps(); total > nativecommon.BasisPoints {
		return fmt.Errorf("%w: total %d", ErrInvalidSplit, total)
	}
	return nil
}

// Distribution summarises how a profit amount is routed.
type Distribution struct {
	Treasury   *uint256.Int
	Strategist *uint256.Int
	Call       *uint256.Int
	Compound   *uint256.Int
}

// TotalFees returns the amount leaving the strategy.
func (d Distribution) TotalFees() *uint256.Int {
	total := new(uint256.Int).Add(d.Treasury, d.Strategist)
	return total.Add(total, d.Call)
}

// Apply evaluates the split against profit. Each leg is floored independently
// and the compounded remainder absorbs the rounding dust, so
// Treasury+Strategist+Call+Compound always equals profit exactly. The split is
// assumed to be valid.
func Apply(split Split, profit *uint256.Int) Distribution {
	if profit == nil {
		profit = new(uint256.Int)
	}
	result := Distribution{
		Treasury:   nativecommon.ApplyBps(profit, split.TreasuryBps),
		Strategist: nativecommon.ApplyBps(profit, split.StrategistBps),
		Call:       nativecommon.ApplyBps(profit, split.CallFeeBps),
	}
	result.Compound = new(uint256.Int).Sub(profit, result.TotalFees())
	return result
}
