package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/DRSN-tech/visual-search/db"
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// SQLiteDatabase — локальный каталог в одном файле.
type SQLiteDatabase struct {
	DB   *sql.DB
	path string
}

// Open открывает (или создаёт) файл базы. Режим WAL и busy_timeout позволяют
// читать параллельно с единственным писателем.
func Open(cfg *cfg.SQLiteCfg) (*SQLiteDatabase, error) {
	const op = "SQLiteDatabase.Open"

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	sqlDb, err := sql.Open(driverName, dsn(cfg.Path))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	sqlDb.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := sqlDb.PingContext(ctx); err != nil {
		_ = sqlDb.Close()
		return nil, e.Wrap(op, err)
	}

	return &SQLiteDatabase{DB: sqlDb, path: cfg.Path}, nil
}

func (s *SQLiteDatabase) Path() string {
	return s.path
}

func (s *SQLiteDatabase) Close() error {
	return s.DB.Close()
}

// RunMigrations применяет встроенные миграции из db/migrations/sqlite.
// migrate закрывает своё соединение, поэтому для него открывается отдельное.
func (s *SQLiteDatabase) RunMigrations(logger logger.Logger) error {
	const op = "SQLiteDatabase.RunMigrations"

	src, err := iofs.New(db.Migrations, db.SQLiteMigrationsDir)
	if err != nil {
		return e.Wrap(op, err)
	}

	sqlDb, err := sql.Open(driverName, dsn(s.path))
	if err != nil {
		return e.Wrap(op, err)
	}

	driver, err := sqlite.WithInstance(sqlDb, &sqlite.Config{})
	if err != nil {
		_ = sqlDb.Close()
		return e.Wrap(op, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		_ = sqlDb.Close()
		return e.Wrap(op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return e.Wrap(op, err)
	}

	logger.Infof("sqlite migrations applied successfully: %s", s.path)
	return nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
