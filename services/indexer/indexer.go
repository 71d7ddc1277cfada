// Package indexer archives committed vault and strategy events into SQL for
// off-chain reporting. The archive is never consulted by the engines.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptvault/core/events"
	"cryptvault/observability/logging"
)

// Open connects to the archive database. Driver is "sqlite" (pure Go) or
// "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return db, nil
}

// Indexer is an events.Emitter writing every event it receives to SQL.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New migrates the archive schema and returns an indexer bound to db.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = logging.Discard()
	}
	if err := db.AutoMigrate(&HarvestRecord{}, &LifecycleRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: log}, nil
}

// Emit implements events.Emitter. Write failures are logged and dropped so
// the archive can never block the engines.
func (ix *Indexer) Emit(e events.Event) {
	if ix == nil || e == nil {
		return
	}
	if err := ix.Record(context.Background(), e); err != nil {
		ix.logger.Warn("indexer write failed", "type", e.EventType(), "error", err)
	}
}

// Record archives e.
func (ix *Indexer) Record(ctx context.Context, e events.Event) error {
	if harvest, ok := e.(events.StrategyHarvest); ok {
		record := harvestRecord(harvest)
		return ix.db.WithContext(ctx).Create(&record).Error
	}
	payload := e.Event()
	if payload == nil {
		return nil
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	record := LifecycleRecord{Type: payload.Type, Attributes: string(attrs)}
	return ix.db.WithContext(ctx).Create(&record).Error
}

func harvestRecord(e events.StrategyHarvest) HarvestRecord {
	attrs := e.Event().Attributes
	return HarvestRecord{
		Strategy:      strings.ToLower(attrs["strategy"]),
		Caller:        strings.ToLower(attrs["caller"]),
		Timestamp:     e.Timestamp,
		AssetsBefore:  attrs["assetsBefore"],
		AssetsAfter:   attrs["assetsAfter"],
		Profit:        attrs["profit"],
		TreasuryFee:   attrs["treasuryFee"],
		StrategistFee: attrs["strategistFee"],
		CallFee:       attrs["callFee"],
		Coalesced:     e.Coalesced,
	}
}

// HistoryFilter narrows a History query. Zero values match everything.
type HistoryFilter struct {
	Strategy string
	Since    int64
	Limit    int
}

// History returns archived harvests, newest first.
func (ix *Indexer) History(ctx context.Context, filter HistoryFilter) ([]HarvestRecord, error) {
	query := ix.db.WithContext(ctx).Model(&HarvestRecord{})
	if filter.Strategy != "" {
		query = query.Where("strategy = ?", strings.ToLower(filter.Strategy))
	}
	if filter.Since > 0 {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var records []HarvestRecord
	if err := query.Order("timestamp DESC").Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("indexer: history: %w", err)
	}
	return records, nil
}

// Lifecycle returns archived non-harvest events of the given type, oldest first.
func (ix *Indexer) Lifecycle(ctx context.Context, eventType string, limit int) ([]LifecycleRecord, error) {
	query := ix.db.WithContext(ctx).Model(&LifecycleRecord{})
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []LifecycleRecord
	if err := query.Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("indexer: lifecycle: %w", err)
	}
	return records, nil
}
