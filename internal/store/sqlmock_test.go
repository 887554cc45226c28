package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{db: db, now: time.Now}, mock
}

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *SQLiteStore) error
		errMsg    string
	}{
		{
			name: "list query fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id FROM projects").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.ListProjects(context.Background())
				return err
			},
			errMsg: "list projects",
		},
		{
			name: "begin fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.ApplyConfig(context.Background(), 1, nil, core.NewProjectConfig())
			},
			errMsg: "begin transaction",
		},
		{
			name: "insert fails and rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("INSERT INTO projects").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			call: func(s *SQLiteStore) error {
				_, err := s.CreateProject(context.Background(), core.ProjectMeta{Name: "p"}, nil, core.NewProjectConfig())
				return err
			},
			errMsg: "insert project",
		},
		{
			name: "variable update fails and rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE projects SET downsampling").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("UPDATE variable_configs").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			call: func(s *SQLiteStore) error {
				cfg := core.NewProjectConfig()
				cfg.Variables["mass"] = core.VariableConfig{}
				return s.ApplyConfig(context.Background(), 1, nil, cfg)
			},
			errMsg: `update variable "mass"`,
		},
		{
			name: "touch scan of rows affected",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE projects SET last_opened").
					WillReturnResult(sqlmock.NewErrorResult(assert.AnError))
			},
			call: func(s *SQLiteStore) error {
				return s.TouchProject(context.Background(), 1, time.Now())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			err := tt.call(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, assert.AnError)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_BadTimestamp(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "favourite", "downsampling", "created", "last_opened"}).
			AddRow(int64(7), "p", "", false, 1.0, "yesterday", nil))

	_, err := s.GetProject(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse timestamp")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	s := &SQLiteStore{db: db}
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NoError(t, (&SQLiteStore{}).Close())
}
