package dbexec

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardExecutor_QueryContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM res_partner").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	rows, err := NewStandardExecutor(db).QueryContext(context.Background(), "SELECT id FROM res_partner WHERE id = ?", 1)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, cols)

	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(1), id)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStandardExecutor_ErrorReturnsNilRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	rows, err := NewStandardExecutor(db).QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, rows)
}

func TestStandardExecutor_NilHandle(t *testing.T) {
	_, err := NewStandardExecutor(nil).QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)

	var executor *StandardExecutor
	_, err = executor.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
