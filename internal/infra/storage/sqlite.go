package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"token_market/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/zeebo/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Error is the error class for storage failures.
var Error = errs.Class("storage")

var models = []interface{}{
	&domain.JournalEntry{},
	&domain.BalanceRecord{},
	&domain.SupplyRecord{},
	&domain.ApprovalRecord{},
	&domain.FundsRecord{},
	&domain.OrderRecord{},
	&domain.StateMeta{},
}

// Storage persists the command journal and working-state snapshots in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path. An empty path
// resolves to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, Error.New("failed to resolve DB path: %v", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, Error.New("failed to create DB directory: %v", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, Error.New("failed to connect to database: %v", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(models...); err != nil {
		return nil, Error.New("failed to migrate database: %v", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(sqlDB.Close())
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TokenMarket", "data", "market.db"), nil
}

// ======================================================================================
// Meta Operations
// ======================================================================================

func (s *Storage) getMeta(db *gorm.DB, key string) (string, bool, error) {
	var meta domain.StateMeta
	err := db.First(&meta, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil // Not found is not an error
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return meta.Value, true, nil
}
