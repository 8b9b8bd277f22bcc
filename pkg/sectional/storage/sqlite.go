//go:build !js && !wasm

// Package storage persists detection results in a local sqlite cache so a
// track analyzed under identical tuning never pays the O(beats^2) cost twice.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "sectional.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Analysis is one cached detection run. Payload holds the JSON-encoded
// result; the scalar columns exist so cached runs can be listed and pruned
// without decoding anything.
type Analysis struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)"`
	ContentHash  string  `gorm:"uniqueIndex:idx_content_hash;type:varchar(64)" json:"content_hash"`
	DurationSec  float64 `json:"duration_s"`
	TempoBPM     float64 `json:"tempo_bpm"`
	PresetGenre  string  `gorm:"index:idx_preset_genre" json:"preset_genre"`
	SectionCount int     `json:"section_count"`
	Payload      []byte  `json:"-"`
	CreatedAt    time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SECTIONAL_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Analysis{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveAnalysis upserts a cached run keyed by content hash.
func (c *DBClient) SaveAnalysis(contentHash string, durationSec, tempoBPM float64, presetGenre string, sectionCount int, payload []byte) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	var existing Analysis
	err := c.DB.Where("content_hash = ?", contentHash).First(&existing).Error
	if err == nil {
		existing.DurationSec = durationSec
		existing.TempoBPM = tempoBPM
		existing.PresetGenre = presetGenre
		existing.SectionCount = sectionCount
		existing.Payload = payload
		if err := c.DB.Save(&existing).Error; err != nil {
			return fmt.Errorf("updating cached analysis: %w", err)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("querying cached analysis: %w", err)
	}

	rec := Analysis{
		ID:           uuid.NewString(),
		ContentHash:  contentHash,
		DurationSec:  durationSec,
		TempoBPM:     tempoBPM,
		PresetGenre:  presetGenre,
		SectionCount: sectionCount,
		Payload:      payload,
	}
	if err := c.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("storing cached analysis: %w", err)
	}
	return nil
}

// GetAnalysisByHash returns the cached run for a content hash, or (nil, nil)
// on a cache miss.
func (c *DBClient) GetAnalysisByHash(contentHash string) (*Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rec Analysis
	err := c.DB.Where("content_hash = ?", contentHash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cached analysis: %w", err)
	}
	return &rec, nil
}

// ListAnalyses returns cached runs, most recent first.
func (c *DBClient) ListAnalyses(limit int) ([]Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []Analysis
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing cached analyses: %w", err)
	}
	return recs, nil
}

// DeleteAnalysisByHash removes one cached run.
func (c *DBClient) DeleteAnalysisByHash(contentHash string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.Where("content_hash = ?", contentHash).Delete(&Analysis{}).Error; err != nil {
		return fmt.Errorf("deleting cached analysis: %w", err)
	}
	return nil
}
