package fielddefinition_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/fielddefinition"
	"github.com/Ramsey-B/clover/pkg/database"
	clerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

var columns = []string{"id", "tenant_id", "entity_kind", "slug", "name", "declared_type", "required", "options", "display_order", "is_system", "active", "validation_rules", "created_at", "updated_at", "deleted_at"}

func newRepository(t *testing.T) (*fielddefinition.Repository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewDatabaseInstance(sqlx.NewDb(mockDB, "postgres"), logger)
	return fielddefinition.NewRepository(db, logger), mock
}

func assertStatus(t *testing.T, status int, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err))
}

func TestRepository_Upsert(t *testing.T) {
	definition := models.FieldDefinition{
		ID:           "def-1",
		TenantID:     "tenant-1",
		EntityKind:   models.EntityKindContact,
		Slug:         "email-domain",
		Name:         "Email domain",
		DeclaredType: models.DeclaredTypeSingleSelect,
		Options:      []string{"gmail.com", "hotmail.com"},
		Active:       true,
	}

	t.Run("writes the row", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO field_definitions (.+) ON CONFLICT \\(id\\) DO UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		saved, err := repo.Upsert(context.Background(), definition)
		require.NoError(t, err)
		assert.False(t, saved.CreatedAt.IsZero())
		assert.Equal(t, saved.CreatedAt, saved.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("slug collision is a validation error", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO field_definitions").WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := repo.Upsert(context.Background(), definition)
		assert.True(t, clerrors.IsValidationError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database failure", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO field_definitions").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := repo.Upsert(context.Background(), definition)
		assertStatus(t, http.StatusInternalServerError, err)
	})
}

func TestRepository_Get(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepository(t)
		rows := sqlmock.NewRows(columns).AddRow(
			"def-1", "tenant-1", "contato", "email-domain", "Email domain", "single_select", true,
			"{gmail.com,hotmail.com}", 2, false, true, `{"normalizers":["lowercase"]}`, now, now, nil,
		)
		mock.ExpectQuery("SELECT (.+) FROM field_definitions WHERE (.+) deleted_at IS NULL").
			WithArgs("tenant-1", "def-1").
			WillReturnRows(rows)

		definition, err := repo.Get(context.Background(), "tenant-1", "def-1")
		require.NoError(t, err)
		assert.Equal(t, models.EntityKindContact, definition.EntityKind)
		assert.Equal(t, models.DeclaredTypeSingleSelect, definition.DeclaredType)
		assert.Equal(t, []string{"gmail.com", "hotmail.com"}, definition.Options)
		assert.Equal(t, 2, definition.DisplayOrder)
		assert.True(t, definition.Required)
		assert.Equal(t, []any{"lowercase"}, definition.ValidationRules["normalizers"])
		assert.Nil(t, definition.DeletedAt)
		assert.Equal(t, "custom_email-domain", definition.Key())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectQuery("SELECT (.+) FROM field_definitions").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "tenant-1", "missing")
		assertStatus(t, http.StatusNotFound, err)
	})
}

func TestRepository_GetByIDs(t *testing.T) {
	deleted := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("includes deleted definitions", func(t *testing.T) {
		repo, mock := newRepository(t)
		rows := sqlmock.NewRows([]string{"id", "tenant_id", "entity_kind", "declared_type", "active", "deleted_at"}).
			AddRow("def-1", "tenant-1", "contato", "decimal", true, nil).
			AddRow("def-2", "tenant-1", "contato", "date", false, deleted)
		mock.ExpectQuery("SELECT (.+) FROM field_definitions WHERE (.+) IN").
			WithArgs("tenant-1", "def-1", "def-2").
			WillReturnRows(rows)

		definitions, err := repo.GetByIDs(context.Background(), "tenant-1", []string{"def-1", "def-2"})
		require.NoError(t, err)
		require.Len(t, definitions, 2)
		assert.True(t, definitions["def-1"].IsUsable())
		require.NotNil(t, definitions["def-2"].DeletedAt)
		assert.False(t, definitions["def-2"].IsUsable())
	})

	t.Run("no ids skips the query", func(t *testing.T) {
		repo, mock := newRepository(t)
		definitions, err := repo.GetByIDs(context.Background(), "tenant-1", nil)
		require.NoError(t, err)
		assert.Empty(t, definitions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_List(t *testing.T) {
	repo, mock := newRepository(t)
	rows := sqlmock.NewRows([]string{"id", "slug", "is_system", "display_order"}).
		AddRow("def-sys", "origin", true, 5).
		AddRow("def-1", "budget", false, 0)
	mock.ExpectQuery("SELECT (.+) FROM field_definitions WHERE (.+) ORDER BY is_system DESC, display_order, name").
		WithArgs("tenant-1", "contato", true).
		WillReturnRows(rows)

	definitions, err := repo.List(context.Background(), "tenant-1", models.EntityKindContact)
	require.NoError(t, err)
	require.Len(t, definitions, 2)
	assert.Equal(t, "def-sys", definitions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SlugExists(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM field_definitions").
		WithArgs("tenant-1", "contato", "budget").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.SlugExists(context.Background(), "tenant-1", models.EntityKindContact, "budget")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_Deactivate(t *testing.T) {
	t.Run("soft deletes", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectExec("UPDATE field_definitions SET active = (.+), deleted_at = (.+) WHERE").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Deactivate(context.Background(), "tenant-1", "def-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already deleted", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectExec("UPDATE field_definitions").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Deactivate(context.Background(), "tenant-1", "def-1")
		assertStatus(t, http.StatusNotFound, err)
	})
}
