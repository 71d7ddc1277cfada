package farm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/native/bank"
)

var (
	// ErrUnsupportedToken is returned when no rate is configured for a token.
	ErrUnsupportedToken = errors.New("converter: unsupported token")
	// ErrInsufficientLiquidity is returned when the liquidity account cannot
	// cover the quoted output.
	ErrInsufficientLiquidity = errors.New("converter: insufficient liquidity")
)

// Rate is a want-per-reward exchange ratio expressed as Numerator/Denominator.
type Rate struct {
	Numerator   *uint256.Int
	Denominator *uint256.Int
}

// FixedRateConverter swaps reward tokens for want at configured fixed rates.
// Reward tokens are collected by the liquidity account, which pays the want
// output from its own balance.
type FixedRateConverter struct {
	mu        sync.RWMutex
	ledger    *bank.Ledger
	want      common.Address
	liquidity common.Address
	rates     map[common.Address]Rate
}

// NewFixedRateConverter constructs a converter paying want from liquidity.
func NewFixedRateConverter(ledger *bank.Ledger, want, liquidity common.Address) *FixedRateConverter {
	return &FixedRateConverter{
		ledger:    ledger,
		want:      want,
		liquidity: liquidity,
		rates:     make(map[common.Address]Rate),
	}
}

// SetRate configures the output ratio for token.
func (c *FixedRateConverter) SetRate(token common.Address, rate Rate) error {
	if rate.Numerator == nil || rate.Denominator == nil || rate.Denominator.IsZero() {
		return fmt.Errorf("converter: invalid rate for %s", token.Hex())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[token] = Rate{
		Numerator:   new(uint256.Int).Set(rate.Numerator),
		Denominator: new(uint256.Int).Set(rate.Denominator),
	}
	return nil
}

// Liquidity returns the account paying converted want.
func (c *FixedRateConverter) Liquidity() common.Address { return c.liquidity }

// Quote implements Converter. Converting want into want is the identity.
func (c *FixedRateConverter) Quote(token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return new(uint256.Int), nil
	}
	if token == c.want {
		return new(uint256.Int).Set(amount), nil
	}
	c.mu.RLock()
	rate, ok := c.rates[token]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, token.Hex())
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amount, rate.Numerator, rate.Denominator)
	if overflow {
		return nil, fmt.Errorf("converter: quote overflow for %s", token.Hex())
	}
	return out, nil
}

// Convert implements Converter.
func (c *FixedRateConverter) Convert(token, holder common.Address, amount *uint256.Int) (*uint256.Int, error) {
	out, err := c.Quote(token, amount)
	if err != nil {
		return nil, err
	}
	if token == c.want || out.IsZero() {
		return out, nil
	}
	if c.ledger.BalanceOf(c.want, c.liquidity).Lt(out) {
		return nil, fmt.Errorf("%w: need %s", ErrInsufficientLiquidity, out.Dec())
	}
	if err := c.ledger.Transfer(token, holder, c.liquidity, amount); err != nil {
		return nil, fmt.Errorf("converter: collect %s: %w", token.Hex(), err)
	}
	if err := c.ledger.Transfer(c.want, c.liquidity, holder, out); err != nil {
		return nil, fmt.Errorf("converter: pay out: %w", err)
	}
	return out, nil
}
