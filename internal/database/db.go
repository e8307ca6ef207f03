package database

import (
	"fmt"

	"schoolhub/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table the server owns, in migration order
func Models() []interface{} {
	return []interface{}{
		&model.Role{},
		&model.RolePermission{},
		&model.User{},
		&model.RefreshToken{},
		&model.AuditLog{},

		&model.Exam{},
		&model.Question{},

		&model.FeeCategory{},
		&model.Invoice{},
		&model.Payment{},

		&model.JobOpening{},
		&model.Candidate{},
		&model.Interview{},
		&model.Feedback{},
		&model.Offer{},

		&model.Group{},
		&model.GroupMember{},
		&model.Message{},
		&model.GroupRead{},
	}
}

// NewConnection initializes a new connection pool using GORM and migrates
// the schema. A failed migration is logged, not fatal.
func NewConnection(dsn string, debug bool, logger *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}
