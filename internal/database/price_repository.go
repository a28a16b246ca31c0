package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agri-price-tracker/internal/models"
)

// SaveMode selects what happens when a record's key already exists.
type SaveMode int

const (
	// ModeUpsert overwrites names, rank label, unit and price of an existing row.
	ModeUpsert SaveMode = iota
	// ModeInsertIgnore leaves an existing row untouched and counts a duplicate.
	ModeInsertIgnore
)

func (m SaveMode) String() string {
	if m == ModeInsertIgnore {
		return "insert-ignore"
	}
	return "upsert"
}

// ParseSaveMode accepts "upsert" and "insert-ignore" (or "ignore").
func ParseSaveMode(s string) (SaveMode, error) {
	switch s {
	case "", "upsert":
		return ModeUpsert, nil
	case "insert-ignore", "ignore":
		return ModeInsertIgnore, nil
	}
	return ModeUpsert, fmt.Errorf("unknown save mode %q", s)
}

var (
	priceKeyColumns = []clause.Column{
		{Name: "date"}, {Name: "item_code"}, {Name: "kind_code"}, {Name: "rank_code"}, {Name: "market_name"},
	}
	priceUpdateColumns = []string{"category_name", "item_name", "kind_name", "rank_label", "unit", "price"}

	errInvalidRecord = errors.New("record has no date or item code")
)

// Batch is everything one collection run hands to persistence.
type Batch struct {
	Prices  []models.PriceRecord
	Monthly []models.MonthlyTrendPoint
	Yearly  []models.YearlyTrendPoint
}

func (b Batch) Len() int {
	return len(b.Prices) + len(b.Monthly) + len(b.Yearly)
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeDuplicate
)

// PriceRepository is the row store of prices, trend points and run audits.
type PriceRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewPriceRepository(db *gorm.DB, logger *logrus.Logger) *PriceRepository {
	return &PriceRepository{db: db, logger: logger}
}

// SavePrices stores price records only.
func (r *PriceRepository) SavePrices(ctx context.Context, records []models.PriceRecord, mode SaveMode) (*models.CollectionRun, error) {
	return r.SaveCollection(ctx, Batch{Prices: records}, mode)
}

// SaveCollection writes the batch and one audit row in a single transaction.
// A failing record is rolled back to its savepoint and counted; the rest proceed.
// Trend points are always insert-or-ignore.
func (r *PriceRepository) SaveCollection(ctx context.Context, batch Batch, mode SaveMode) (*models.CollectionRun, error) {
	run := &models.CollectionRun{TotalFetched: batch.Len()}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range batch.Prices {
			rec := batch.Prices[i]
			if err := r.savepoint(tx, run, func(tx *gorm.DB) (outcome, error) {
				return savePrice(tx, rec, mode)
			}); err != nil {
				return err
			}
		}
		for i := range batch.Monthly {
			point := batch.Monthly[i]
			if err := r.savepoint(tx, run, func(tx *gorm.DB) (outcome, error) {
				return insertIgnore(tx, &point, "item_code", "period")
			}); err != nil {
				return err
			}
		}
		for i := range batch.Yearly {
			point := batch.Yearly[i]
			if err := r.savepoint(tx, run, func(tx *gorm.DB) (outcome, error) {
				return insertIgnore(tx, &point, "item_code", "year")
			}); err != nil {
				return err
			}
		}

		run.Status = models.RunStatus(run.ErrorCount)
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to record collection run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save collection: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id":     run.RunID,
		"mode":       mode.String(),
		"fetched":    run.TotalFetched,
		"inserted":   run.NewInserted,
		"updated":    run.Updated,
		"duplicates": run.DuplicatesSkipped,
		"errors":     run.ErrorCount,
	}).Info("collection saved")
	return run, nil
}

const savepointName = "record_write"

// savepoint runs one record write so that its failure only undoes itself.
// An error is returned only when the transaction itself is unusable.
func (r *PriceRepository) savepoint(tx *gorm.DB, run *models.CollectionRun, write func(tx *gorm.DB) (outcome, error)) error {
	if err := tx.SavePoint(savepointName).Error; err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	res, err := write(tx)
	if err != nil {
		run.ErrorCount++
		r.logger.Warnf("record write failed: %v", err)
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint: %w", rbErr)
		}
		return nil
	}

	switch res {
	case outcomeInserted:
		run.NewInserted++
	case outcomeUpdated:
		run.Updated++
	case outcomeDuplicate:
		run.DuplicatesSkipped++
	}
	return tx.Exec("RELEASE SAVEPOINT " + savepointName).Error
}

func savePrice(tx *gorm.DB, rec models.PriceRecord, mode SaveMode) (outcome, error) {
	if rec.Date == "" || rec.ItemCode == "" {
		return 0, errInvalidRecord
	}
	row := models.FromRecord(rec)

	if mode == ModeInsertIgnore {
		return insertIgnore(tx, &row, "date", "item_code", "kind_code", "rank_code", "market_name")
	}

	var existing int64
	key := rec.Key()
	if err := tx.Model(&models.PriceRow{}).
		Where("date = ? AND item_code = ? AND kind_code = ? AND rank_code = ? AND market_name = ?",
			key.Date, key.ItemCode, key.KindCode, key.RankCode, key.MarketName).
		Count(&existing).Error; err != nil {
		return 0, err
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   priceKeyColumns,
		DoUpdates: clause.AssignmentColumns(priceUpdateColumns),
	}).Create(&row).Error; err != nil {
		return 0, err
	}

	if existing > 0 {
		return outcomeUpdated, nil
	}
	return outcomeInserted, nil
}

func insertIgnore(tx *gorm.DB, value interface{}, keyColumns ...string) (outcome, error) {
	cols := make([]clause.Column, len(keyColumns))
	for i, c := range keyColumns {
		cols[i] = clause.Column{Name: c}
	}

	result := tx.Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).Create(value)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return outcomeDuplicate, nil
	}
	return outcomeInserted, nil
}
