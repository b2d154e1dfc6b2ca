package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QuoteRecord is one decoded snapshot entry
type QuoteRecord struct {
	ID         uint            `gorm:"primaryKey"`
	EventID    string          `gorm:"size:36;index"`
	SessionID  string          `gorm:"size:128"`
	Symbol     string          `gorm:"size:32;index:idx_quote_symbol_time"`
	Side       string          `gorm:"size:8"`
	Price      decimal.Decimal `gorm:"type:decimal(24,10)"`
	Position   int
	ReceivedAt time.Time `gorm:"index:idx_quote_symbol_time"`
}

// RejectRecord is one MarketDataRequestReject
type RejectRecord struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    string `gorm:"size:36;uniqueIndex"`
	SessionID  string `gorm:"size:128"`
	RequestID  string `gorm:"size:64;index"`
	ReasonCode string `gorm:"size:4"`
	Reason     string `gorm:"size:64"`
	Text       string
	ReceivedAt time.Time
}

// OpenJournalDB opens the journal database for driver "sqlite" or "postgres"
// and migrates the journal tables.
func OpenJournalDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&QuoteRecord{}, &RejectRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

// Journal stores snapshot entries and rejects
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewJournal wraps an open, migrated database
func NewJournal(db *gorm.DB, logger *zap.Logger) *Journal {
	return &Journal{db: db, logger: logger.Named("journal")}
}

// Name implements EventWriter
func (j *Journal) Name() string { return "journal" }

// Write implements EventWriter. Events other than snapshots and rejects are ignored.
func (j *Journal) Write(ctx context.Context, ev marketdata.Event) error {
	switch ev.Kind {
	case marketdata.EventSnapshot:
		if ev.Snapshot == nil || len(ev.Snapshot.Entries) == 0 {
			return nil
		}
		records := make([]QuoteRecord, 0, len(ev.Snapshot.Entries))
		for _, e := range ev.Snapshot.Entries {
			records = append(records, QuoteRecord{
				EventID:    ev.ID.String(),
				SessionID:  ev.SessionID,
				Symbol:     ev.Snapshot.Symbol,
				Side:       string(e.Side),
				Price:      e.Price,
				Position:   e.Position,
				ReceivedAt: ev.Time,
			})
		}
		if err := j.db.WithContext(ctx).Create(&records).Error; err != nil {
			return fmt.Errorf("insert quotes: %w", err)
		}
	case marketdata.EventReject:
		if ev.Reject == nil {
			return nil
		}
		rec := RejectRecord{
			EventID:    ev.ID.String(),
			SessionID:  ev.SessionID,
			RequestID:  ev.Reject.RequestID,
			ReasonCode: ev.Reject.ReasonCode,
			Reason:     marketdata.RejectReasonText(ev.Reject.ReasonCode),
			Text:       ev.Reject.Text,
			ReceivedAt: ev.Time,
		}
		if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return fmt.Errorf("insert reject: %w", err)
		}
	}
	return nil
}

// LatestQuotes returns up to limit entries for symbol, newest first
func (j *Journal) LatestQuotes(ctx context.Context, symbol string, limit int) ([]QuoteRecord, error) {
	var out []QuoteRecord
	err := j.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("received_at DESC").Order("position ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Close implements EventWriter
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
