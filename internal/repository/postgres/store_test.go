package postgres

import (
	"errors"
	"testing"

	"github.com/asjjun/naejango/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestInsertError(t *testing.T) {
	t.Run("should report a unique violation as a duplicate", func(t *testing.T) {
		err := insertError("insert chat", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "chats_channel_id_owner_id_key"})
		require.ErrorIs(t, err, repository.ErrDuplicate)
		require.ErrorContains(t, err, "insert chat")
	})

	t.Run("should pass other failures through", func(t *testing.T) {
		fk := &pgconn.PgError{Code: "23503"}
		err := insertError("insert chat", fk)
		require.NotErrorIs(t, err, repository.ErrDuplicate)
		require.ErrorIs(t, err, fk)

		boom := errors.New("connection reset")
		require.ErrorIs(t, insertError("insert user", boom), boom)
	})
}
