package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	return &UserRepository{db: db, logger: zap.NewNop()}, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "name", "role", "permissions", "institution_id",
		"password_hash", "status", "last_login_at", "created_at", "updated_at",
	})
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("found user has all fields populated", func(t *testing.T) {
		id := uuid.New()
		institutionID := uuid.New()
		lastLogin := time.Now().Add(-time.Hour)
		now := time.Now()

		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("ana@school.example").
			WillReturnRows(userRows().AddRow(
				id.String(), "ana@school.example", "Ana", "TEACHER",
				"{courses.view,courses.edit}", institutionID.String(),
				"hashed", "ACTIVE", lastLogin, now, now,
			))

		user, err := repo.GetByEmail(ctx, "ana@school.example")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "Ana", user.Name)
		assert.Equal(t, "TEACHER", user.Role)
		assert.Equal(t, []string{"courses.view", "courses.edit"}, user.Permissions)
		require.NotNil(t, user.InstitutionID)
		assert.Equal(t, institutionID, *user.InstitutionID)
		require.NotNil(t, user.LastLoginAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null permissions become an empty slice", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("new@school.example").
			WillReturnRows(userRows().AddRow(
				id.String(), "new@school.example", "New", "STUDENT",
				nil, nil, "hashed", "ACTIVE", nil, now, now,
			))

		user, err := repo.GetByEmail(ctx, "new@school.example")
		require.NoError(t, err)
		assert.NotNil(t, user.Permissions)
		assert.Empty(t, user.Permissions)
		assert.Nil(t, user.InstitutionID)
		assert.Nil(t, user.LastLoginAt)
	})

	t.Run("absent user is an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("ghost@school.example").
			WillReturnRows(userRows())

		_, err := repo.GetByEmail(ctx, "ghost@school.example")
		assert.Error(t, err)
	})
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(userRows().AddRow(
			id.String(), "ana@school.example", "Ana", "TEACHER",
			"{courses.view}", nil, "hashed", "ACTIVE", nil, now, now,
		))

	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 0).
		WillReturnRows(userRows().
			AddRow(uuid.NewString(), "a@school.example", "A", "TEACHER",
				"{courses.view}", nil, "hashed", "ACTIVE", nil, now, now).
			AddRow(uuid.NewString(), "b@school.example", "B", "STUDENT",
				nil, nil, "hashed", "INACTIVE", nil, now, now))

	users, err := repo.List(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@school.example", users[0].Email)
	assert.Empty(t, users[1].Permissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastLogin(t *testing.T) {
	t.Run("stamps an existing user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := uuid.New()
		at := time.Now()

		mock.ExpectExec(`UPDATE users SET last_login_at = \$2, updated_at = \$2 WHERE id = \$1`).
			WithArgs(id, at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateLastLogin(context.Background(), id, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails when no row matches", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := uuid.New()
		at := time.Now()

		mock.ExpectExec(`UPDATE users SET last_login_at = \$2, updated_at = \$2 WHERE id = \$1`).
			WithArgs(id, at).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Error(t, repo.UpdateLastLogin(context.Background(), id, at))
	})
}
