package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/storage/models"
)

// ErrRecordNotFound is returned when a requested record does not exist.
var ErrRecordNotFound = gorm.ErrRecordNotFound

// MySQL is the relational persistence layer for resume records.
type MySQL struct {
	db *gorm.DB
}

// NewMySQL connects, tunes the pool and migrates the schema.
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("mysql not configured")
	}

	logLevel := gormlogger.Warn
	if cfg.LogLevel == "info" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := db.AutoMigrate(&models.ResumeRecord{}, &models.UploadedFileRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &MySQL{db: db}, nil
}

// Close releases the connection pool.
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StoreResumeRecord persists one screening outcome.
func (m *MySQL) StoreResumeRecord(ctx context.Context, record *models.ResumeRecord) error {
	if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("store resume record %s: %w", record.ID, err)
	}
	return nil
}

// StoreUploadedFile persists metadata for one raw upload.
func (m *MySQL) StoreUploadedFile(ctx context.Context, record *models.UploadedFileRecord) error {
	if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("store uploaded file %s: %w", record.ID, err)
	}
	return nil
}

// GetResumeRecords returns a user's records, newest first.
func (m *MySQL) GetResumeRecords(ctx context.Context, userID string, limit int) ([]models.ResumeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.ResumeRecord
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load resume records for %s: %w", userID, err)
	}
	return records, nil
}

// GetUploadedFiles returns a user's upload history, newest first.
func (m *MySQL) GetUploadedFiles(ctx context.Context, userID string, limit int) ([]models.UploadedFileRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.UploadedFileRecord
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load uploaded files for %s: %w", userID, err)
	}
	return records, nil
}

// GetUserStats aggregates a user's records per category.
func (m *MySQL) GetUserStats(ctx context.Context, userID string) (*models.CategoryStats, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row
	err := m.db.WithContext(ctx).
		Model(&models.ResumeRecord{}).
		Select("category, count(*) as count").
		Where("user_id = ?", userID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stats for %s: %w", userID, err)
	}

	stats := &models.CategoryStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Category {
		case "selected":
			stats.Selected = r.Count
		case "considered":
			stats.Considered = r.Count
		case "rejected":
			stats.Rejected = r.Count
		}
	}
	return stats, nil
}

// UpdateResumeCategory applies a manual recategorization to a persisted
// record. The in-memory batch result is never touched here.
func (m *MySQL) UpdateResumeCategory(ctx context.Context, recordID, category string) error {
	result := m.db.WithContext(ctx).
		Model(&models.ResumeRecord{}).
		Where("id = ?", recordID).
		Update("category", category)
	if result.Error != nil {
		return fmt.Errorf("update category for %s: %w", recordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update category for %s: %w", recordID, ErrRecordNotFound)
	}
	return nil
}

// DeleteUploadedFile removes one upload-history row.
func (m *MySQL) DeleteUploadedFile(ctx context.Context, fileID string) error {
	result := m.db.WithContext(ctx).Delete(&models.UploadedFileRecord{}, "id = ?", fileID)
	if result.Error != nil {
		return fmt.Errorf("delete uploaded file %s: %w", fileID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete uploaded file %s: %w", fileID, ErrRecordNotFound)
	}
	return nil
}
