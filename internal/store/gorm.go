package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/maltesIam/cyberdemo-sub000/internal/config"
	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/internal/store/model"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(
		zap.NewStdLog(zap.L()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	newDB, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening sqlite database")
	}

	sqlDB, err := newDB.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "configuring connections")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return newDB, nil
}

// DatabaseStore is the gorm-backed Store. It is not used standalone but as
// the mirror behind DurableStore.
type DatabaseStore struct {
	db      *gorm.DB
	jobs    *gormJobStore
	records *gormRecordStore
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{
		db:      db,
		jobs:    &gormJobStore{db: db},
		records: &gormRecordStore{db: db},
	}
}

func (s *DatabaseStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Job{}, &model.Record{})
}

func (s *DatabaseStore) Job() Job {
	return s.jobs
}

func (s *DatabaseStore) Record() Record {
	return s.records
}

func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormJobStore struct {
	db *gorm.DB
}

func (s *gormJobStore) Create(ctx context.Context, job *enrich.Job) error {
	row, err := model.JobFromDomain(job)
	if err != nil {
		return fmt.Errorf("serializing job: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (s *gormJobStore) Update(ctx context.Context, job *enrich.Job) error {
	row, err := model.JobFromDomain(job)
	if err != nil {
		return fmt.Errorf("serializing job: %w", err)
	}
	result := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", job.ID).Updates(map[string]any{
		"kind":            row.Kind,
		"status":          row.Status,
		"total_items":     row.TotalItems,
		"processed_items": row.ProcessedItems,
		"failed_items":    row.FailedItems,
		"started_at":      row.StartedAt,
		"completed_at":    row.CompletedAt,
		"error":           row.Error,
		"payload":         row.Payload,
	})
	if result.Error != nil {
		return fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *gormJobStore) Get(ctx context.Context, id uuid.UUID) (*enrich.Job, error) {
	var row model.Job
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return row.ToDomain()
}

type gormRecordStore struct {
	db *gorm.DB
}

func (s *gormRecordStore) Set(ctx context.Context, records []enrich.EnrichedRecord) error {
	for _, rec := range records {
		row, err := model.RecordFromDomain(rec)
		if err != nil {
			return fmt.Errorf("serializing record: %w", err)
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "risk_score", "risk_level", "updated_at", "payload"}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("upserting record: %w", err)
		}
	}
	return nil
}

func (s *gormRecordStore) GetByItem(ctx context.Context, itemID string) (*enrich.EnrichedRecord, error) {
	var row model.Record
	if err := s.db.WithContext(ctx).First(&row, "item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return row.ToDomain()
}
