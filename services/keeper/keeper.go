// Package keeper calls Harvest on a schedule whenever the expected call fee
// makes the transaction worthwhile.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cryptvault/core/state"
	"cryptvault/native/strategy"
	"cryptvault/observability/logging"
	"cryptvault/observability/metrics"
	telemetry "cryptvault/observability/otel"
)

// Skip reasons reported through metrics and Outcome.
const (
	SkipNoProfit       = "no_profit"
	SkipBelowMinProfit = "below_min_profit"
	SkipPaused         = "paused"
	SkipRetired        = "retired"
)

// Harvester is the slice of the strategy the keeper drives.
type Harvester interface {
	Address() common.Address
	EstimateHarvest() (profit, callFee *uint256.Int, err error)
	Harvest(caller common.Address) (*strategy.HarvestResult, error)
}

// Config parameterises a Keeper.
type Config struct {
	Schedule  string
	Caller    common.Address
	MinProfit *uint256.Int
	Timeout   time.Duration
}

// Outcome describes a single keeper run.
type Outcome struct {
	Strategy   common.Address
	Harvested  bool
	SkipReason string
	Result     *strategy.HarvestResult
}

// Keeper owns the cron schedule and the harvest decision.
type Keeper struct {
	cfg     Config
	journal *state.Journal
	target  func() Harvester
	logger  *slog.Logger
	tracer  trace.Tracer
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// New validates cfg and builds a keeper. target is resolved on every run so
// a replaced strategy is picked up without restarting the keeper.
func New(cfg Config, journal *state.Journal, target func() Harvester, logger *slog.Logger) (*Keeper, error) {
	if journal == nil || target == nil {
		return nil, fmt.Errorf("keeper: journal and target required")
	}
	if cfg.Caller == (common.Address{}) {
		return nil, fmt.Errorf("keeper: caller required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1h"
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("keeper: schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.MinProfit == nil {
		cfg.MinProfit = new(uint256.Int)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Keeper{
		cfg:     cfg,
		journal: journal,
		target:  target,
		logger:  logger.With("component", "keeper"),
		tracer:  telemetry.Tracer("keeper"),
		cron:    cron.New(),
	}, nil
}

// Start registers the harvest job and starts the scheduler. Runs stop being
// scheduled once ctx is cancelled or Stop is called.
func (k *Keeper) Start(ctx context.Context) error {
	_, err := k.cron.AddFunc(k.cfg.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
		defer cancel()
		if _, err := k.RunOnce(runCtx); err != nil {
			k.logger.Error("scheduled harvest failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("keeper: register job: %w", err)
	}
	k.cron.Start()
	k.logger.Info("keeper started", "schedule", k.cfg.Schedule, "caller", k.cfg.Caller.Hex())
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (k *Keeper) Stop() {
	<-k.cron.Stop().Done()
	k.logger.Info("keeper stopped")
}

// RunOnce estimates the pending harvest and executes it when the call fee
// reaches the configured minimum. Overlapping runs are skipped.
func (k *Keeper) RunOnce(ctx context.Context) (Outcome, error) {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return Outcome{SkipReason: "busy"}, nil
	}
	k.running = true
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		k.running = false
		k.mu.Unlock()
	}()

	target := k.target()
	if target == nil {
		return Outcome{}, fmt.Errorf("keeper: no strategy deployed")
	}
	out := Outcome{Strategy: target.Address()}
	ctx, span := k.tracer.Start(ctx, "keeper.harvest",
		trace.WithAttributes(telemetry.HarvestAttributes(out.Strategy, k.cfg.Caller)...))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	var profit, callFee *uint256.Int
	err := k.journal.View(func() error {
		var err error
		profit, callFee, err = target.EstimateHarvest()
		return err
	})
	if err != nil {
		if reason, ok := skipReason(err); ok {
			return k.skip(span, out, reason), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return out, fmt.Errorf("keeper: estimate: %w", err)
	}
	span.SetAttributes(
		attribute.String("estimate.profit", profit.Dec()),
		attribute.String("estimate.call_fee", callFee.Dec()),
	)
	if profit.IsZero() {
		return k.skip(span, out, SkipNoProfit), nil
	}
	if callFee.Lt(k.cfg.MinProfit) {
		return k.skip(span, out, SkipBelowMinProfit), nil
	}

	var result *strategy.HarvestResult
	err = k.journal.Exec(func() error {
		var err error
		result, err = target.Harvest(k.cfg.Caller)
		return err
	})
	if err != nil {
		if reason, ok := skipReason(err); ok {
			return k.skip(span, out, reason), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "harvest failed")
		return out, fmt.Errorf("keeper: harvest: %w", err)
	}
	out.Harvested = true
	out.Result = result
	span.SetAttributes(
		attribute.String("harvest.profit", result.Profit.Dec()),
		attribute.String("harvest.call_fee", result.CallFee.Dec()),
		attribute.Bool("harvest.coalesced", result.Coalesced),
	)
	k.logger.Info("harvest executed",
		"strategy", out.Strategy.Hex(),
		"profit", result.Profit.Dec(),
		"callFee", result.CallFee.Dec(),
		"logged", result.Logged)
	return out, nil
}

func (k *Keeper) skip(span trace.Span, out Outcome, reason string) Outcome {
	out.SkipReason = reason
	span.SetAttributes(attribute.String("skip.reason", reason))
	metrics.Strategy().IncSkipped(out.Strategy.Hex(), reason)
	k.logger.Debug("harvest skipped", "strategy", out.Strategy.Hex(), "reason", reason)
	return out
}

func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, strategy.ErrStrategyRetired):
		return SkipRetired, true
	case errors.Is(err, strategy.ErrStrategyPaused), errors.Is(err, strategy.ErrStrategyPanicked):
		return SkipPaused, true
	default:
		return "", false
	}
}
