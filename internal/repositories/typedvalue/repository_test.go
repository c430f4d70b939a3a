package typedvalue_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/typedvalue"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func newRepository(t *testing.T) (*typedvalue.Repository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewDatabaseInstance(sqlx.NewDb(mockDB, "postgres"), logger)
	return typedvalue.NewRepository(db, logger), mock
}

func TestRepository_UpsertMany(t *testing.T) {
	value := models.TypedValue{ID: "v1", TenantID: "tenant-1", FieldDefinitionID: "def-1", EntityKind: models.EntityKindContact, EntityID: "c1"}
	value.SetStored(models.ListValue{"vip", "inbound"})

	t.Run("replaces every value column on conflict", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO typed_values (.+) ON CONFLICT \\(field_definition_id, entity_kind, entity_id\\) DO UPDATE (.+)text_value = EXCLUDED.text_value(.+)json_value = EXCLUDED.json_value(.+) RETURNING id, field_definition_id, created_at").
			WillReturnRows(sqlmock.NewRows([]string{"id", "field_definition_id", "created_at"}).
				AddRow("v1", "def-1", time.Now()))
		mock.ExpectCommit()

		written, err := repo.UpsertMany(context.Background(), []models.TypedValue{value})
		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.Equal(t, "v1", written[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing slot keeps its row id", func(t *testing.T) {
		repo, mock := newRepository(t)
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		fresh := value
		fresh.ID = "generated-id"
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO typed_values (.+) RETURNING id, field_definition_id, created_at").
			WillReturnRows(sqlmock.NewRows([]string{"id", "field_definition_id", "created_at"}).
				AddRow("stored-id", "def-1", created))
		mock.ExpectCommit()

		written, err := repo.UpsertMany(context.Background(), []models.TypedValue{fresh})
		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.Equal(t, "stored-id", written[0].ID)
		assert.Equal(t, created, written[0].CreatedAt)
		assert.Equal(t, models.ListValue{"vip", "inbound"}, written[0].Stored())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing to write", func(t *testing.T) {
		repo, mock := newRepository(t)
		written, err := repo.UpsertMany(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, written)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database failure", func(t *testing.T) {
		repo, mock := newRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO typed_values").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		_, err := repo.UpsertMany(context.Background(), []models.TypedValue{value})
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetAll(t *testing.T) {
	repo, mock := newRepository(t)
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "field_definition_id", "entity_kind", "entity_id", "text_value", "number_value", "date_value", "boolean_value", "json_value"}).
		AddRow("v1", "def-text", "contato", "c1", "gmail.com", nil, nil, nil, nil).
		AddRow("v2", "def-number", "contato", "c1", nil, 1500.5, nil, nil, nil).
		AddRow("v3", "def-date", "contato", "c1", nil, nil, date, nil, nil).
		AddRow("v4", "def-list", "contato", "c1", nil, nil, nil, nil, `["vip"]`).
		AddRow("v5", "def-empty", "contato", "c1", nil, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM typed_values WHERE").
		WithArgs("tenant-1", "contato", "c1").
		WillReturnRows(rows)

	values, err := repo.GetAll(context.Background(), "tenant-1", models.EntityKindContact, "c1")
	require.NoError(t, err)
	require.Len(t, values, 5)

	assert.Equal(t, models.TextValue("gmail.com"), values["def-text"].Stored())
	assert.Equal(t, models.NumberValue(1500.5), values["def-number"].Stored())
	assert.Equal(t, models.DateValue(date), values["def-date"].Stored())
	assert.Equal(t, models.ListValue{"vip"}, values["def-list"].Stored())
	assert.Nil(t, values["def-empty"].Stored())

	for id, value := range values {
		assert.LessOrEqual(t, len(value.PopulatedColumns()), 1, id)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectExec("DELETE FROM typed_values WHERE").
		WithArgs("tenant-1", "def-1", "contato", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "tenant-1", "def-1", models.EntityKindContact, "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteEntity(t *testing.T) {
	repo, mock := newRepository(t)
	mock.ExpectExec("DELETE FROM typed_values WHERE").
		WithArgs("tenant-1", "contato", "c1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteEntity(context.Background(), "tenant-1", models.EntityKindContact, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
