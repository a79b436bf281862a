package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/models"
)

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "approved", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "jordan", "jordan@example.com", "hash", string(models.RoleStudent), true, now, now, now)
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash, role, approved, last_login, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("jordan@example.com").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "jordan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jordan", user.Username)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, user.Approved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserExistsByEmailOrUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT 1 FROM users WHERE").
		WithArgs("jordan@example.com", "jordan").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByEmailOrUsername(context.Background(), "jordan@example.com", "jordan")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM users WHERE").
		WithArgs("new@example.com", "new").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err = repo.ExistsByEmailOrUsername(context.Background(), "new@example.com", "new")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Username:     "jordan",
		Email:        "jordan@example.com",
		PasswordHash: "hash",
		Role:         models.RoleStudent,
		Approved:     true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRefreshTokenLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateRefreshToken(context.Background(), &models.RefreshToken{
		ID: "rt1", UserID: "u1", Token: "opaque", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow("rt1", "u1", "opaque", now.Add(time.Hour), now, false, nil, "", "")
	mock.ExpectQuery("SELECT id, user_id, token, expires_at").
		WithArgs("opaque").
		WillReturnRows(rows)

	token, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "u1", token.UserID)
	assert.False(t, token.Revoked)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WithArgs(sqlmock.AnyArg(), "rt1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
