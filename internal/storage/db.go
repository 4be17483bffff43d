package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leviathan/internal/config"
	"leviathan/internal/logger"
	"leviathan/internal/models"
)

// Models lists every table owned by this process, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.GuildConfig{},
		&models.Infraction{},
		&models.Reminder{},
		&models.Giveaway{},
		&models.GiveawayEntry{},
	}
}

// Open connects to the database described by cfg.Database.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: NewGormLogger(cfg.Logger.Level),
	}

	switch cfg.Database.Driver {
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
			cfg.Database.Charset,
		)

		logger.Infof("Connecting to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

		db, err := gorm.Open(mysql.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQL DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)

		logger.Infof("Database connection established successfully")
		return db, nil

	case config.DriverSQLite:
		logger.Infof("Opening sqlite database: %s", cfg.Database.Path)
		return OpenSQLite(cfg.Database.Path, gormCfg)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// OpenSQLite opens a sqlite database. A single connection is kept so that
// ":memory:" databases survive for the lifetime of the handle.
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: NewGormLogger("WARNING")}
	}

	db, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}
	return nil
}

// TableStatus describes one table for the migrate status command.
type TableStatus struct {
	Table  string
	Exists bool
	Rows   int64
}

// Status reports whether each table exists and how many rows it holds.
func Status(db *gorm.DB) ([]TableStatus, error) {
	var out []TableStatus
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse %T: %w", m, err)
		}
		st := TableStatus{Table: stmt.Schema.Table, Exists: db.Migrator().HasTable(m)}
		if st.Exists {
			if err := db.Model(m).Count(&st.Rows).Error; err != nil {
				return nil, fmt.Errorf("failed to count %s: %w", st.Table, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// Reset drops every table in reverse order and migrates again.
func Reset(db *gorm.DB) error {
	all := Models()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", all[i], err)
		}
	}
	return Migrate(db)
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
