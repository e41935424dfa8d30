// Package database opens the race-results store: Postgres when
// configured, with a SQLite fallback so results survive even without a
// reachable server.
package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles the results database connection.
type Manager struct {
	DB             *gorm.DB
	SqlDB          *sql.DB
	IsValid        bool
	UsingLocal     bool
	SqliteFilePath string
	Logger         zerolog.Logger
}

// NewManager creates a new database manager. sqlitePath may be empty
// for an in-memory store.
func NewManager(log zerolog.Logger, sqlitePath string) *Manager {
	return &Manager{
		SqliteFilePath: sqlitePath,
		Logger:         log,
	}
}

// Connect opens the configured backend. "postgres" falls back to SQLite
// when the server is unreachable; anything else goes straight to SQLite.
func (m *Manager) Connect() error {
	var err error

	if viper.GetString("results.backend") == "postgres" {
		m.DB, err = OpenPostgres()
		if err == nil {
			if err = m.ping(); err == nil {
				m.Logger.Info().Msg("Connected to Postgres results store")
				m.IsValid = true
				m.SqlDB.SetMaxOpenConns(10)
				return nil
			}
		}
		m.Logger.Error().Err(err).Msg("Postgres unavailable, falling back to SQLite")
	}

	m.UsingLocal = true
	m.DB, err = OpenSqlite(m.SqliteFilePath)
	if err != nil {
		return fmt.Errorf("failed to open local SQLite store: %s", err)
	}
	if err = m.ping(); err != nil {
		return fmt.Errorf("failed to validate SQLite store: %s", err)
	}
	m.IsValid = true
	return nil
}

func (m *Manager) ping() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %s", err)
	}
	m.SqlDB = sqlDB
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// OpenPostgres opens the Postgres results database from viper config.
func OpenPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("results.host"),
		viper.GetString("results.port"),
		viper.GetString("results.username"),
		viper.GetString("results.password"),
		viper.GetString("results.database"),
	)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite opens a SQLite database, in-memory when path is empty.
func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}
	return db, nil
}
