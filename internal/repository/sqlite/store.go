// Package sqlite is the embedded store: the same repository contracts as the
// postgres package, backed by gorm over the pure-Go modernc SQLite driver. It runs
// local development without a database server and backs the integration tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/asjjun/naejango/internal/repository"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// gormLogConfig keeps gorm quiet except for real problems. Lookups that find
// nothing return nil, nil from this package, so ErrRecordNotFound is routine
// and not worth a log line.
var gormLogConfig = logger.Config{
	SlowThreshold:             200 * time.Millisecond,
	LogLevel:                  logger.Warn,
	IgnoreRecordNotFoundError: true,
	Colorful:                  false,
}

type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the database at path. A path of ":memory:" or a
// "file:" DSN is passed through unchanged.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !isURI(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(gormsqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{
		Logger:  logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), gormLogConfig),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows one writer. A single connection also keeps an in-memory
	// database alive for the life of the store.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &channelRow{}, &chatRow{}, &messageRow{}, &chatMessageRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func isURI(path string) bool {
	return len(path) >= 5 && path[:5] == "file:"
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Repos() repository.Repositories {
	return reposFor(s.db)
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

func reposFor(db *gorm.DB) repository.Repositories {
	return repository.Repositories{
		Channels:     &ChannelStore{db: db},
		Chats:        &ChatStore{db: db},
		Messages:     &MessageStore{db: db},
		ChatMessages: &ChatMessageStore{db: db},
		Users:        &UserStore{db: db},
	}
}

// insertError wraps an INSERT failure for op. A unique or primary key conflict
// becomes repository.ErrDuplicate, matching the postgres store.
func insertError(op string, err error) error {
	var sqlErr *moderncsqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
