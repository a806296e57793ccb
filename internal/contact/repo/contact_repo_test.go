package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

const lockPerson = `SELECT id FROM persons WHERE id = \$1 FOR UPDATE`

func setupMockRepo(t *testing.T) (sqlmock.Sqlmock, *ContactRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewContactRepo(sqlx.NewDb(db, "postgres"), nil)
}

func TestAdd_PrimaryClearsThenInsertsInOneTx(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE emails SET is_primary = false WHERE person_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO emails \(person_id, address, is_primary\)`).
		WithArgs(int64(7), "ana@x.com", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	c, err := repo.Add(context.Background(), entity.KindEmail, 7, "ana@x.com", true)

	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, entity.KindEmail, c.Kind)
	assert.True(t, c.IsPrimary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdd_NonPrimaryLeavesOtherRows(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO phones \(person_id, number, is_primary\)`).
		WithArgs(int64(7), "(11) 98765-4321", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	c, err := repo.Add(context.Background(), entity.KindPhone, 7, "(11) 98765-4321", false)

	require.NoError(t, err)
	assert.Equal(t, int64(9), c.ID)
	assert.False(t, c.IsPrimary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdd_UnknownPersonRollsBack(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Add(context.Background(), entity.KindEmail, 404, "x@y.com", true)

	require.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NotErrorIs(t, err, sentinel.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdd_InsertFailureRollsBackClear(t *testing.T) {
	mock, repo := setupMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE emails SET is_primary = false`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO emails`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Add(context.Background(), entity.KindEmail, 7, "ana@x.com", true)

	require.ErrorIs(t, err, sentinel.ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPrimary_ClearsThenSets(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE phones SET is_primary = false WHERE person_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE phones SET is_primary = true WHERE id = \$1 AND person_id = \$2`).
		WithArgs(int64(12), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetPrimary(context.Background(), entity.KindPhone, 7, 12))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPrimary_ForeignContactStillCommitsClear(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE emails SET is_primary = false`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE emails SET is_primary = true`).
		WithArgs(int64(99), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.SetPrimary(context.Background(), entity.KindEmail, 7, 99))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPrimary_FailureRollsBack(t *testing.T) {
	mock, repo := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPerson).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE emails SET is_primary = false`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE emails SET is_primary = true`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.SetPrimary(context.Background(), entity.KindEmail, 7, 3)

	require.ErrorIs(t, err, sentinel.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Run("removes row", func(t *testing.T) {
		mock, repo := setupMockRepo(t)
		mock.ExpectExec(`DELETE FROM emails WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(context.Background(), entity.KindEmail, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock, repo := setupMockRepo(t)
		mock.ExpectExec(`DELETE FROM phones WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), entity.KindPhone, 3)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteAllForPerson(t *testing.T) {
	mock, repo := setupMockRepo(t)
	mock.ExpectExec(`DELETE FROM phones WHERE person_id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAllForPerson(context.Background(), entity.KindPhone, 7)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPrimary(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock, repo := setupMockRepo(t)
		mock.ExpectQuery(`SELECT id, person_id, address AS value, is_primary FROM emails WHERE person_id = \$1 AND is_primary`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "value", "is_primary"}).
				AddRow(3, 7, "ana@x.com", true))

		c, err := repo.GetPrimary(context.Background(), entity.KindEmail, 7)

		require.NoError(t, err)
		assert.Equal(t, &entity.Contact{ID: 3, PersonID: 7, Kind: entity.KindEmail, Value: "ana@x.com", IsPrimary: true}, c)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		mock, repo := setupMockRepo(t)
		mock.ExpectQuery(`FROM phones WHERE person_id = \$1 AND is_primary`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "value", "is_primary"}))

		_, err := repo.GetPrimary(context.Background(), entity.KindPhone, 7)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListAll_InsertionOrder(t *testing.T) {
	mock, repo := setupMockRepo(t)
	mock.ExpectQuery(`SELECT id, person_id, number AS value, is_primary FROM phones WHERE person_id = \$1 ORDER BY id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "value", "is_primary"}).
			AddRow(1, 7, "11987654321", true).
			AddRow(4, 7, "1133334444", false))

	list, err := repo.ListAll(context.Background(), entity.KindPhone, 7)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, entity.KindPhone, list[1].Kind)
	assert.Equal(t, "1133334444", list[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	mock, repo := setupMockRepo(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM emails`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.Count(context.Background(), entity.KindEmail)

	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownKind(t *testing.T) {
	_, repo := setupMockRepo(t)
	_, err := repo.Count(context.Background(), entity.Kind("fax"))
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}
