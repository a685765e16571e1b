package database

import (
	"fmt"
	"time"

	"advisorledger/internal/config"
	"advisorledger/internal/model"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitMySQL opens the ledger database and configures the connection pool.
func InitMySQL(cfg *config.MySQLConfig, log zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(log, 200*time.Millisecond),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("mysql connected")
	return db, nil
}

// Migrate creates or updates every ledger table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// NewGormLogger routes gorm's SQL logging into zerolog. Statements slower than
// slow are logged at warn level, the rest at debug.
func NewGormLogger(log zerolog.Logger, slow time.Duration) logger.Interface {
	return &gormLogger{log: log.With().Str("component", "gorm").Logger(), slow: slow}
}
