package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestJSONB_Scan(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		var v JSONB[[]string]
		require.NoError(t, v.Scan([]byte(`["a","b"]`)))
		assert.True(t, v.Valid)
		assert.Equal(t, []string{"a", "b"}, v.Data)
	})

	t.Run("null", func(t *testing.T) {
		v := NewJSONB([]string{"x"})
		require.NoError(t, v.Scan(nil))
		assert.False(t, v.Valid)
		assert.Nil(t, v.Data)
	})

	t.Run("unsupported source", func(t *testing.T) {
		var v JSONB[[]string]
		assert.Error(t, v.Scan(42))
	})

	t.Run("null value", func(t *testing.T) {
		value, err := JSONB[[]string]{}.Value()
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}

func TestGetTx_JoinsTransactionFromContext(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := NewDatabaseInstance(sqlx.NewDb(mockDB, "postgres"), testLogger())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE things").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, outer, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)

	innerCtx, inner, err := db.GetTx(ctx, nil)
	require.NoError(t, err)

	_, err = db.Querier(innerCtx).ExecContext(innerCtx, "UPDATE things SET x = 1")
	require.NoError(t, err)

	// joined transactions never close the outer one
	require.NoError(t, inner.Commit(innerCtx))
	require.NoError(t, inner.Rollback(innerCtx))
	assert.True(t, outer.IsOpen())

	require.NoError(t, outer.Commit(ctx))
	require.NoError(t, outer.Rollback(ctx))
	assert.False(t, outer.IsOpen())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_rules.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	_, err = getLatestVersion(t.TempDir())
	assert.Error(t, err)
}

type builderRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func TestBuilders(t *testing.T) {
	rows := NewStruct(new(builderRow))

	t.Run("select", func(t *testing.T) {
		sb := rows.SelectFrom("widgets")
		sb.Where(sb.Equal("id", "w1"))
		query, args := sb.Build()
		assert.Regexp(t, `^SELECT .*id, .*name FROM widgets WHERE id = \$1$`, query)
		assert.Equal(t, []any{"w1"}, args)

		count := NewSelectBuilder()
		count.Select("COUNT(*)").From("widgets")
		count.Where(count.Equal("name", "a"), count.IsNull("deleted_at"))
		query, _ = count.Build()
		assert.Equal(t, "SELECT COUNT(*) FROM widgets WHERE name = $1 AND deleted_at IS NULL", query)
	})

	t.Run("update", func(t *testing.T) {
		ub := NewUpdateBuilder()
		ub.Update("widgets")
		ub.Set(ub.Assign("name", "b"))
		ub.Where(ub.Equal("id", "w1"))
		query, args := ub.Build()
		assert.Equal(t, "UPDATE widgets SET name = $1 WHERE id = $2", query)
		assert.Equal(t, []any{"b", "w1"}, args)
	})

	t.Run("delete", func(t *testing.T) {
		db := NewDeleteBuilder()
		db.DeleteFrom("widgets")
		db.Where(db.Equal("id", "w1"))
		query, args := db.Build()
		assert.Equal(t, "DELETE FROM widgets WHERE id = $1", query)
		assert.Equal(t, []any{"w1"}, args)
	})

	t.Run("upsert returning", func(t *testing.T) {
		ib := rows.InsertInto("widgets", builderRow{ID: "w1", Name: "a"})
		ub := ib.OnConflict("id")
		ub.Set(ub.Assign("name", Excluded("name")))
		ib.Returning("id")
		query, _ := ib.Build()
		assert.Regexp(t, `ON CONFLICT \(id\) DO UPDATE .*name = EXCLUDED\.name`, query)
		assert.True(t, strings.HasSuffix(query, "RETURNING id"), query)
	})
}
