// Package vault implements the share ledger: holders deposit the want token
// for fungible shares, idle capital is forwarded to a single strategy and
// withdrawals burn shares for a pro-rata slice of the managed assets.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/core/state"
	"cryptvault/native/bank"
	nativecommon "cryptvault/native/common"
	"cryptvault/observability/logging"
)

var (
	ErrZeroAmount           = errors.New("vault: amount must be positive")
	ErrInsufficientShares   = errors.New("vault: insufficient shares")
	ErrInsufficientCapacity = errors.New("vault: deposit exceeds tvl cap")
	ErrStrategyPaused       = errors.New("vault: strategy paused")
	ErrStrategyRetired      = errors.New("vault: strategy retired")
	ErrUnauthorized         = errors.New("vault: caller is not the owner")
	ErrAlreadyInitialized   = errors.New("vault: strategy already initialized")
	ErrNotInitialized       = errors.New("vault: strategy not initialized")
	ErrVaultInsolvent       = errors.New("vault: shares outstanding against zero assets")
	ErrInvalidStrategy      = errors.New("vault: invalid strategy")
	ErrInvalidFee           = errors.New("vault: fee out of range")
	ErrWantToken            = errors.New("vault: cannot sweep the want token")
)

// MaxWithdrawFeeBps bounds the withdraw fee the owner may configure.
const MaxWithdrawFeeBps = 100

// Strategy is the part of a strategy the vault depends on. The vault holds
// only the strategy address and resolves it through the registry per call.
type Strategy interface {
	Address() common.Address
	Vault() common.Address
	Want() common.Address
	BalanceOf() *uint256.Int
	Paused() bool
	Retired() bool
	Deposit(caller common.Address) error
	Withdraw(caller common.Address, amount *uint256.Int) error
}

// Config carries the constructor parameters of a vault.
type Config struct {
	Name           string
	Symbol         string
	Want           common.Address
	Owner          common.Address
	DepositFeeBps  uint64
	WithdrawFeeBps uint64
	// TVLCap of nil means uncapped.
	TVLCap *uint256.Int
}

// Vault is the share ledger engine.
type Vault struct {
	address  common.Address
	name     string
	symbol   string
	want     common.Address
	owner    common.Address
	ledger   *bank.Ledger
	registry *state.Registry
	journal  *state.Journal
	guard    nativecommon.ReentrancyGuard
	emitter  events.Emitter
	logger   *slog.Logger

	strategy       common.Address
	totalShares    *uint256.Int
	shares         map[common.Address]*uint256.Int
	deposited      map[common.Address]*uint256.Int
	withdrawn      map[common.Address]*uint256.Int
	depositFeeBps  uint64
	withdrawFeeBps uint64
	tvlCap         *uint256.Int
}

// New constructs a vault living at address and registers it with journal so
// every operation is reverted as a unit on failure.
func New(address common.Address, cfg Config, ledger *bank.Ledger, registry *state.Registry, journal *state.Journal) (*Vault, error) {
	if ledger == nil || registry == nil || journal == nil {
		return nil, fmt.Errorf("vault: ledger, registry and journal are required")
	}
	if address == (common.Address{}) || cfg.Want == (common.Address{}) || cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("vault: address, want and owner are required")
	}
	if err := validateFees(cfg.DepositFeeBps, cfg.WithdrawFeeBps); err != nil {
		return nil, err
	}
	tvlCap := new(uint256.Int).SetAllOne()
	if cfg.TVLCap != nil {
		tvlCap.Set(cfg.TVLCap)
	}
	v := &Vault{
		address:        address,
		name:           cfg.Name,
		symbol:         cfg.Symbol,
		want:           cfg.Want,
		owner:          cfg.Owner,
		ledger:         ledger,
		registry:       registry,
		journal:        journal,
		emitter:        events.NoopEmitter{},
		logger:         logging.Discard(),
		totalShares:    new(uint256.Int),
		shares:         make(map[common.Address]*uint256.Int),
		deposited:      make(map[common.Address]*uint256.Int),
		withdrawn:      make(map[common.Address]*uint256.Int),
		depositFeeBps:  cfg.DepositFeeBps,
		withdrawFeeBps: cfg.WithdrawFeeBps,
		tvlCap:         tvlCap,
	}
	journal.Register(v)
	return v, nil
}

func validateFees(depositBps, withdrawBps uint64) error {
	if depositBps > nativecommon.BasisPoints {
		return fmt.Errorf("%w: deposit fee %d", ErrInvalidFee, depositBps)
	}
	if withdrawBps > MaxWithdrawFeeBps {
		return fmt.Errorf("%w: withdraw fee %d above %d", ErrInvalidFee, withdrawBps, MaxWithdrawFeeBps)
	}
	return nil
}

// SetEmitter wires the event sink. Passing nil disables emission.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// SetLogger wires the structured logger.
func (v *Vault) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	v.logger = logger.With("component", "vault", "vault", v.address.Hex())
}

func (v *Vault) Address() common.Address { return v.address }
func (v *Vault) Want() common.Address    { return v.want }
func (v *Vault) Owner() common.Address   { return v.owner }
func (v *Vault) Name() string            { return v.name }
func (v *Vault) Symbol() string          { return v.symbol }

// Strategy returns the wired strategy address, or the zero address.
func (v *Vault) Strategy() common.Address { return v.strategy }

func (v *Vault) DepositFeeBps() uint64  { return v.depositFeeBps }
func (v *Vault) WithdrawFeeBps() uint64 { return v.withdrawFeeBps }

// TvlCap returns the deposit cap; max uint256 when uncapped.
func (v *Vault) TvlCap() *uint256.Int { return new(uint256.Int).Set(v.tvlCap) }

// resolve returns the wired strategy handle, or nil when none is wired.
func (v *Vault) resolve() (Strategy, error) {
	if v.strategy == (common.Address{}) {
		return nil, nil
	}
	contract, err := v.registry.Lookup(v.strategy)
	if err != nil {
		return nil, err
	}
	strat, ok := contract.(Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, v.strategy.Hex())
	}
	return strat, nil
}

// Available is the idle want held by the vault.
func (v *Vault) Available() *uint256.Int {
	return v.ledger.BalanceOf(v.want, v.address)
}

// Balance is total assets: idle want plus what the strategy reports.
func (v *Vault) Balance() *uint256.Int {
	total := v.Available()
	strat, err := v.resolve()
	if err != nil || strat == nil {
		return total
	}
	return total.Add(total, strat.BalanceOf())
}

// TotalSupply returns the outstanding shares.
func (v *Vault) TotalSupply() *uint256.Int { return new(uint256.Int).Set(v.totalShares) }

// BalanceOf returns the shares held by holder.
func (v *Vault) BalanceOf(holder common.Address) *uint256.Int {
	return amountOf(v.shares, holder)
}

// CumulativeDeposits returns the want ever deposited by holder.
func (v *Vault) CumulativeDeposits(holder common.Address) *uint256.Int {
	return amountOf(v.deposited, holder)
}

// CumulativeWithdrawals returns the want ever paid out to holder.
func (v *Vault) CumulativeWithdrawals(holder common.Address) *uint256.Int {
	return amountOf(v.withdrawn, holder)
}

// GetPricePerFullShare returns assets per share scaled by 1e18, or 1e18 when
// no shares exist.
func (v *Vault) GetPricePerFullShare() *uint256.Int {
	if v.totalShares.IsZero() {
		return new(uint256.Int).Set(nativecommon.WadUnit)
	}
	pps, overflow := new(uint256.Int).MulDivOverflow(v.Balance(), nativecommon.WadUnit, v.totalShares)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return pps
}

// Holders lists every account with a non-zero share balance, sorted.
func (v *Vault) Holders() []common.Address {
	out := make([]common.Address, 0, len(v.shares))
	for holder, bal := range v.shares {
		if !bal.IsZero() {
			out = append(out, holder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func amountOf(book map[common.Address]*uint256.Int, holder common.Address) *uint256.Int {
	if amt, ok := book[holder]; ok {
		return new(uint256.Int).Set(amt)
	}
	return new(uint256.Int)
}

func addTo(book map[common.Address]*uint256.Int, holder common.Address, amount *uint256.Int) {
	current := amountOf(book, holder)
	book[holder] = current.Add(current, amount)
}

func subFrom(book map[common.Address]*uint256.Int, holder common.Address, amount *uint256.Int) {
	current := amountOf(book, holder)
	current.Sub(current, amount)
	if current.IsZero() {
		delete(book, holder)
		return
	}
	book[holder] = current
}

type vaultSnapshot struct {
	strategy       common.Address
	owner          common.Address
	totalShares    *uint256.Int
	shares         map[common.Address]*uint256.Int
	deposited      map[common.Address]*uint256.Int
	withdrawn      map[common.Address]*uint256.Int
	depositFeeBps  uint64
	withdrawFeeBps uint64
	tvlCap         *uint256.Int
}

func cloneBook(book map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(book))
	for k, v := range book {
		out[k] = new(uint256.Int).Set(v)
	}
	return out
}

// Snapshot implements state.Journaled.
func (v *Vault) Snapshot() any {
	return vaultSnapshot{
		strategy:       v.strategy,
		owner:          v.owner,
		totalShares:    new(uint256.Int).Set(v.totalShares),
		shares:         cloneBook(v.shares),
		deposited:      cloneBook(v.deposited),
		withdrawn:      cloneBook(v.withdrawn),
		depositFeeBps:  v.depositFeeBps,
		withdrawFeeBps: v.withdrawFeeBps,
		tvlCap:         new(uint256.Int).Set(v.tvlCap),
	}
}

// Revert implements state.Journaled.
func (v *Vault) Revert(snapshot any) {
	snap, ok := snapshot.(vaultSnapshot)
	if !ok {
		return
	}
	v.strategy = snap.strategy
	v.owner = snap.owner
	v.totalShares = snap.totalShares
	v.shares = snap.shares
	v.deposited = snap.deposited
	v.withdrawn = snap.withdrawn
	v.depositFeeBps = snap.depositFeeBps
	v.withdrawFeeBps = snap.withdrawFeeBps
	v.tvlCap = snap.tvlCap
}
