package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds the database connection settings
type Config struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SQLitePath   string
	AutoMigrate  bool
	MaxOpenConns int
	LogQueries   bool
}

// LoadConfig reads the database settings from the environment
func LoadConfig() *Config {
	return &Config{
		Driver:       env.GetEnv("DB_DRIVER", DriverMySQL),
		Host:         env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:         env.GetEnv("DB_PORT", "3306"),
		User:         env.GetEnv("DB_USER", ""),
		Password:     env.GetEnv("DB_PASSWORD", ""),
		Name:         env.GetEnv("DB_NAME", ""),
		SQLitePath:   env.GetEnv("DB_SQLITE_PATH", "animora.db"),
		AutoMigrate:  env.GetEnvBool("DB_AUTO_MIGRATE", false),
		MaxOpenConns: env.GetEnvInt("DB_MAX_OPEN_CONNS", 20),
		LogQueries:   env.IsDev(),
	}
}

// DSN returns the driver specific data source name
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverMySQL:
		return mysql.New(mysql.Config{
			DSN:                       c.DSN(), // data source name
			DefaultStringSize:         256,     // default size for string fields
			DisableDatetimePrecision:  true,    // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,    // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,    // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,   // auto configure based on currently MySQL version
		}), nil
	case DriverSQLite:
		return sqlite.Open(c.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open connects to the configured database, retrying while the server comes up.
// The returned handle is owned by the caller and must be closed with Close.
func Open(cfg *Config) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{}
	if !cfg.LogQueries {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var db *gorm.DB
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}

		log.Warnf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return db, nil
}

// Migrate creates or updates the billing tables from the GORM models.
// Production schemas are managed by cmd/migrate; this is for dev and tests.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.Subscription{},
		&models.SubscriptionPlan{},
		&models.CreditPack{},
		&models.WebhookEvent{},
		&models.PaymentRecord{},
	)
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
