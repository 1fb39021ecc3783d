package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asjjun/naejango/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every store works
// either against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Repos() repository.Repositories {
	return reposFor(s.pool)
}

// WithTx runs fn in a READ COMMITTED transaction. pgx.BeginTxFunc commits on a nil
// return and rolls back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(reposFor(tx))
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

func reposFor(db DBTX) repository.Repositories {
	return repository.Repositories{
		Channels:     NewChannelStore(db),
		Chats:        NewChatStore(db),
		Messages:     NewMessageStore(db),
		ChatMessages: NewChatMessageStore(db),
		Users:        NewUserStore(db),
	}
}

// uniqueViolation is the SQLSTATE postgres reports when a unique index rejects a row.
const uniqueViolation = "23505"

// insertError wraps an INSERT failure for op. A unique violation becomes
// repository.ErrDuplicate so the caller can tell "someone else created it first"
// apart from a broken database.
func insertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
