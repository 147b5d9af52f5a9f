package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/schoolnotify/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.False(t, pg.IsForeignKeyViolationError(nil))

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("query: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(errors.New("other")))
	assert.False(t, pg.IsNotFoundError(nil))
}

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}
