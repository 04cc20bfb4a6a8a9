package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database/models"
)

var (
	accountCols = []string{
		"id", "username", "email", "password_hash", "role", "is_official",
		"totp_secret", "totp_enabled", "created_at", "last_login",
	}
	studentCols = []string{"id", "account_id", "school_id", "class_id", "grade", "student_code"}
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func q(query string) string { return regexp.QuoteMeta(query) }

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	acc := account.Account{
		Username:     "alice",
		Email:        "alice@coventry.ac.uk",
		Role:         account.RoleStudent,
		PasswordHash: []byte("hash"),
	}
	profile := account.Profile{StudentCode: "ABC1234", Grade: 3}

	t.Run("account & profile in one transaction", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`INSERT INTO "accounts" ("username","email","password_hash","role","is_official") VALUES (`)).
			WithArgs("alice", "alice@coventry.ac.uk", []byte("hash"), "student", false).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(7, "alice", "alice@coventry.ac.uk", []byte("hash"), "student", false, nil, false, now, nil))
		mock.ExpectQuery(q(`INSERT INTO "students" ("account_id","grade","student_code") VALUES (`)).
			WithArgs(int64(7), int64(3), "ABC1234").
			WillReturnRows(sqlmock.NewRows(studentCols).AddRow(1, 7, nil, nil, 3, "ABC1234"))
		mock.ExpectCommit()

		created, err := repo.Create(ctx, acc, profile)
		require.NoError(t, err)
		assert.Equal(t, int64(7), created.ID)
		assert.Equal(t, account.RoleStudent, created.Role)
		assert.False(t, created.TwoFactorEnabled)
		assert.True(t, created.LastLogin.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate student code rolls the account back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`INSERT INTO "accounts"`)).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(7, "alice", "alice@coventry.ac.uk", []byte("hash"), "student", false, nil, false, now, nil))
		mock.ExpectQuery(q(`INSERT INTO "students"`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: models.StudentsStudentCodeKey, Message: "duplicate key"})
		mock.ExpectRollback()

		_, err := repo.Create(ctx, acc, profile)
		assert.Equal(t, account.ErrStudentCodeExists, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`INSERT INTO "accounts"`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: models.AccountsEmailKey, Message: "duplicate key"})
		mock.ExpectRollback()

		_, err := repo.Create(ctx, acc, profile)
		assert.Equal(t, account.ErrEmailExists, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByRoleAndEmail(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "accounts" WHERE `)).
		WithArgs("alice@coventry.ac.uk", "teacher").
		WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := repo.GetByRoleAndEmail(ctx, account.RoleTeacher, "alice@coventry.ac.uk")
	assert.Equal(t, account.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SecondFactor(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	row := func(secret interface{}, enabled bool) *sqlmock.Rows {
		return sqlmock.NewRows(accountCols).
			AddRow(7, "alice", "alice@coventry.ac.uk", []byte("hash"), "student", false, secret, enabled, now, nil)
	}

	t.Run("enable sets secret & flag together", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`SELECT * FROM "accounts" WHERE "id"=$1`)).WithArgs(int64(7)).WillReturnRows(row(nil, false))
		mock.ExpectQuery(q(`UPDATE "accounts" SET `)).
			WithArgs("SECRET", true, int64(7)).
			WillReturnRows(row("SECRET", true))
		mock.ExpectCommit()

		require.NoError(t, repo.EnableSecondFactor(ctx, 7, "SECRET"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("disable clears both", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`SELECT * FROM "accounts" WHERE "id"=$1`)).WithArgs(int64(7)).WillReturnRows(row("SECRET", true))
		mock.ExpectQuery(q(`UPDATE "accounts" SET `)).
			WithArgs(nil, false, int64(7)).
			WillReturnRows(row(nil, false))
		mock.ExpectCommit()

		require.NoError(t, repo.DisableSecondFactor(ctx, 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewAccountRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q(`SELECT * FROM "accounts" WHERE "id"=$1`)).WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows(accountCols))
		mock.ExpectRollback()

		assert.Equal(t, account.ErrNotFound, repo.EnableSecondFactor(ctx, 8, "SECRET"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
