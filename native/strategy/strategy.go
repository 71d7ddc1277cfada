// Package strategy implements the single yield strategy behind a vault: it
// stakes want in an external farm, harvests and converts rewards, pays the
// fee waterfall, compounds the remainder and keeps a bounded harvest log from
// which the average APR is derived.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cryptvault/core/events"
	"cryptvault/core/state"
	"cryptvault/native/access"
	"cryptvault/native/bank"
	nativecommon "cryptvault/native/common"
	"cryptvault/native/farm"
	"cryptvault/native/fees"
	"cryptvault/observability/logging"
)

var (
	ErrStrategyPaused      = errors.New("strategy: paused")
	ErrStrategyRetired     = errors.New("strategy: retired")
	ErrStrategyPanicked    = errors.New("strategy: panicked")
	ErrInsufficientHistory = errors.New("strategy: insufficient harvest history")
	ErrNotVault            = errors.New("strategy: caller is not the vault")
	ErrInvalidConfig       = errors.New("strategy: invalid configuration")
)

const (
	// SecondsPerYear annualises per-harvest returns.
	SecondsPerYear = 31_536_000
	// DefaultLogCapacity is the harvest log size used when none is configured.
	DefaultLogCapacity = 30
	// DefaultHarvestLogCadence is the minimum spacing between log entries.
	DefaultHarvestLogCadence = 12 * 60 * 60
)

// State is the lifecycle state of a strategy.
type State uint8

const (
	StateActive State = iota
	StatePaused
	StatePanicked
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StatePanicked:
		return "panicked"
	case StateRetired:
		return "retired"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Config carries the constructor parameters of a strategy.
type Config struct {
	Vault                 common.Address
	Want                  common.Address
	PoolID                uint64
	RewardTokens          []common.Address
	Treasury              common.Address
	StrategistRemitter    common.Address
	Admin                 common.Address
	Strategists           []common.Address
	Guardians             []common.Address
	Fees                  fees.Split
	HarvestLogCadence     uint64
	LogCapacity           int
	PermissionlessHarvest bool
}

// Collaborators groups the external systems a strategy calls into.
type Collaborators struct {
	Ledger    *bank.Ledger
	Farm      farm.Farm
	Converter farm.Converter
	Journal   *state.Journal
}

// Strategy is the harvest engine bound to one vault.
type Strategy struct {
	address            common.Address
	vault              common.Address
	want               common.Address
	poolID             uint64
	rewardTokens       []common.Address
	treasury           common.Address
	strategistRemitter common.Address
	table              access.Table

	ledger    *bank.Ledger
	farm      farm.Farm
	converter farm.Converter
	journal   *state.Journal
	guard     nativecommon.ReentrancyGuard
	emitter   events.Emitter
	logger    *slog.Logger
	nowFn     func() time.Time

	state       State
	roles       *access.Roles
	split       fees.Split
	log         *harvestLog
	cadence     uint64
	inception   int64
	anchor      int64
	lastHarvest int64
}

// New constructs a strategy at address bound to cfg.Vault and registers it
// with the journal.
func New(address common.Address, cfg Config, deps Collaborators) (*Strategy, error) {
	if deps.Ledger == nil || deps.Farm == nil || deps.Converter == nil || deps.Journal == nil {
		return nil, fmt.Errorf("%w: ledger, farm, converter and journal are required", ErrInvalidConfig)
	}
	required := []struct {
		name string
		addr common.Address
	}{
		{"address", address},
		{"vault", cfg.Vault},
		{"want", cfg.Want},
		{"treasury", cfg.Treasury},
		{"strategist remitter", cfg.StrategistRemitter},
		{"admin", cfg.Admin},
	}
	for _, field := range required {
		if field.addr == (common.Address{}) {
			return nil, fmt.Errorf("%w: %s is the zero address", ErrInvalidConfig, field.name)
		}
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	capacity := cfg.LogCapacity
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	table := access.DefaultTable(cfg.PermissionlessHarvest)
	s := &Strategy{
		address:            address,
		vault:              cfg.Vault,
		want:               cfg.Want,
		poolID:             cfg.PoolID,
		rewardTokens:       append([]common.Address(nil), cfg.RewardTokens...),
		treasury:           cfg.Treasury,
		strategistRemitter: cfg.StrategistRemitter,
		table:              table,
		ledger:             deps.Ledger,
		farm:               deps.Farm,
		converter:          deps.Converter,
		journal:            deps.Journal,
		emitter:            events.NoopEmitter{},
		logger:             logging.Discard(),
		nowFn:              func() time.Time { return time.Now().UTC() },
		roles:              access.NewRoles(cfg.Admin, cfg.Strategists, cfg.Guardians, table),
		split:              cfg.Fees,
		log:                newHarvestLog(capacity),
		cadence:            cfg.HarvestLogCadence,
	}
	s.inception = s.nowFn().Unix()
	s.anchor = s.inception
	deps.Journal.Register(s)
	return s, nil
}

// SetNowFunc overrides the clock. Passing nil restores the UTC wall clock.
// The inception timestamp follows the new clock until the first harvest.
func (s *Strategy) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = now
	if s.log.Len() == 0 && s.lastHarvest == 0 {
		s.inception = now().Unix()
		s.anchor = s.inception
	}
}

// SetEmitter wires the event sink. Passing nil disables emission.
func (s *Strategy) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetLogger wires the structured logger.
func (s *Strategy) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	s.logger = logger.With("component", "strategy", "strategy", s.address.Hex())
}

func (s *Strategy) Address() common.Address { return s.address }
func (s *Strategy) Vault() common.Address   { return s.vault }
func (s *Strategy) Want() common.Address    { return s.want }
func (s *Strategy) PoolID() uint64          { return s.poolID }
func (s *Strategy) State() State            { return s.state }

// Paused reports whether new deposits are blocked (Paused or Panicked).
func (s *Strategy) Paused() bool { return s.state == StatePaused || s.state == StatePanicked }

// Retired reports whether the strategy has been decommissioned.
func (s *Strategy) Retired() bool { return s.state == StateRetired }

func (s *Strategy) Fees() fees.Split          { return s.split }
func (s *Strategy) HarvestLogCadence() uint64 { return s.cadence }
func (s *Strategy) Inception() int64          { return s.inception }
func (s *Strategy) LastHarvest() int64        { return s.lastHarvest }
func (s *Strategy) Roles() *access.Roles      { return s.roles.Clone() }
func (s *Strategy) Treasury() common.Address  { return s.treasury }

// RewardTokens returns the configured reward tokens.
func (s *Strategy) RewardTokens() []common.Address {
	return append([]common.Address(nil), s.rewardTokens...)
}

// BalanceOf is the want held idle by the strategy plus the want staked in the farm.
func (s *Strategy) BalanceOf() *uint256.Int {
	total := s.ledger.BalanceOf(s.want, s.address)
	return total.Add(total, s.farm.Staked(s.poolID, s.address))
}

// HarvestLog returns a copy of the retained entries, oldest first.
func (s *Strategy) HarvestLog() []HarvestLogEntry { return s.log.Entries() }

type strategySnapshot struct {
	state       State
	roles       *access.Roles
	split       fees.Split
	log         *harvestLog
	cadence     uint64
	inception   int64
	anchor      int64
	lastHarvest int64
}

// Snapshot implements state.Journaled.
func (s *Strategy) Snapshot() any {
	return strategySnapshot{
		state:       s.state,
		roles:       s.roles.Clone(),
		split:       s.split,
		log:         s.log.Clone(),
		cadence:     s.cadence,
		inception:   s.inception,
		anchor:      s.anchor,
		lastHarvest: s.lastHarvest,
	}
}

// Revert implements state.Journaled.
func (s *Strategy) Revert(snapshot any) {
	snap, ok := snapshot.(strategySnapshot)
	if !ok {
		return
	}
	s.state = snap.state
	s.roles = snap.roles
	s.split = snap.split
	s.log = snap.log
	s.cadence = snap.cadence
	s.inception = snap.inception
	s.anchor = snap.anchor
	s.lastHarvest = snap.lastHarvest
}
