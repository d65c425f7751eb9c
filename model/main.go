package model

import (
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/logger"
)

var DB *gorm.DB
var LOG_DB *gorm.DB

func openDB(dsn string) (*gorm.DB, error) {
	switch {
	case dsn == "":
		common.UsingSQLite = true
		logger.Logger.Info("SQL_DSN not set, using SQLite", zap.String("path", config.SQLitePath))
		return gorm.Open(sqlite.Open(config.SQLitePath), &gorm.Config{PrepareStmt: true})
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		common.UsingPostgreSQL = true
		logger.Logger.Info("using PostgreSQL as database")
		return gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{PrepareStmt: true})
	default:
		common.UsingMySQL = true
		logger.Logger.Info("using MySQL as database")
		return gorm.Open(mysql.Open(dsn), &gorm.Config{PrepareStmt: true})
	}
}

// InitDB opens the main database and migrates every entity.
func InitDB() {
	db, err := openDB(config.SQLDSN)
	if err != nil {
		logger.Logger.Fatal("failed to initialize database", zap.Error(err))
	}
	DB = db

	if err := migrate(DB); err != nil {
		logger.Logger.Fatal("failed to migrate database", zap.Error(err))
	}
}

// InitLogDB points the log table at LOG_SQL_DSN when set, else the main DB.
func InitLogDB() {
	if config.LogSQLDSN == "" {
		LOG_DB = DB
		return
	}
	logger.Logger.Info("using secondary database for logs")
	db, err := openDB(config.LogSQLDSN)
	if err != nil {
		logger.Logger.Fatal("failed to initialize log database", zap.Error(err))
	}
	LOG_DB = db
	if err := LOG_DB.AutoMigrate(&Log{}); err != nil {
		logger.Logger.Fatal("failed to migrate log database", zap.Error(err))
	}
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Organization{},
		&Project{},
		&ApiKey{},
		&ProviderKey{},
		&CustomProvider{},
		&Log{},
		&Transaction{},
		&Lock{},
	)
	if err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

func CloseDB() error {
	if LOG_DB != nil && LOG_DB != DB {
		if sqlDB, err := LOG_DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "close database")
}
