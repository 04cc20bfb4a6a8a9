package account_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/tests"
)

type fixture struct {
	svc     account.Service
	repo    account.Repository
	pending account.PendingStore
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := testutil.NewConfig()
	db := dummydb.Open()
	f := fixture{
		repo:    dummydb.NewAccountRepository(db),
		pending: dummydb.NewPendingStore(db),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger()),
	}
	f.svc = account.NewService(f.repo, f.pending, f.mailSvc, conf.Auth)
	return f
}

func code(t *testing.T, secret string) string {
	t.Helper()
	c, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return c
}

func randomSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Other", AccountName: "other@x.com"})
	require.NoError(t, err)
	return key.Secret()
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

	tests := []struct {
		name    string
		role    account.Role
		email   string
		pwd     string
		wantErr error
	}{
		{name: "valid credentials", role: account.RoleStudent, email: "a@x.com", pwd: "pw123"},
		{name: "email is cleaned", role: account.RoleStudent, email: "  A@X.com ", pwd: "pw123"},
		{name: "role mismatch", role: account.RoleTeacher, email: "a@x.com", pwd: "pw123", wantErr: account.ErrInvalidCredentials},
		{name: "wrong password", role: account.RoleStudent, email: "a@x.com", pwd: "wrong", wantErr: account.ErrInvalidCredentials},
		{name: "unknown email", role: account.RoleStudent, email: "b@x.com", pwd: "pw123", wantErr: account.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Authenticate(ctx, tt.role, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, res.SecondFactorRequired())
			assert.Equal(t, acc.ID, res.Account.ID)
			assert.False(t, res.Account.LastLogin.IsZero())
		})
	}

	t.Run("last login is persisted", func(t *testing.T) {
		stored, err := f.repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.False(t, stored.LastLogin.IsZero())
	})
}

func TestService_SecondFactorLogin(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleCommunity, "bob", "bob@x.com", "pw123")
	secret := randomSecret(t)
	require.NoError(t, f.repo.EnableSecondFactor(ctx, acc.ID, secret))

	res, err := f.svc.Authenticate(ctx, account.RoleCommunity, "bob@x.com", "pw123")
	require.NoError(t, err)
	require.True(t, res.SecondFactorRequired())

	stored, err := f.repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastLogin.IsZero(), "no session before the second factor")

	_, err = f.svc.VerifyLogin(ctx, res.Challenge, "12345")
	assert.Equal(t, account.ErrInvalidCode, err)
	_, err = f.svc.VerifyLogin(ctx, res.Challenge, code(t, randomSecret(t)))
	assert.Equal(t, account.ErrInvalidCode, err)

	// retry with the right code
	verified, err := f.svc.VerifyLogin(ctx, res.Challenge, code(t, secret))
	require.NoError(t, err)
	assert.Equal(t, acc.ID, verified.ID)
	assert.False(t, verified.LastLogin.IsZero())

	// the pending login is consumed
	_, err = f.svc.VerifyLogin(ctx, res.Challenge, code(t, secret))
	assert.Equal(t, account.ErrPendingExpired, err)
	_, err = f.svc.VerifyLogin(ctx, "unknown", code(t, secret))
	assert.Equal(t, account.ErrPendingExpired, err)
}

func TestService_Enrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("code from the issued secret enables", func(t *testing.T) {
		f := setup(t)
		acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

		enr, err := f.svc.BeginEnrollment(ctx, acc)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(enr.URI, "otpauth://totp/Darasa:a@x.com?"))
		assert.Contains(t, enr.URI, "secret="+enr.Secret)
		assert.Contains(t, enr.URI, "issuer=Darasa")
		assert.NotEmpty(t, enr.QRCode)

		stored, err := f.repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.False(t, stored.TwoFactorEnabled)
		assert.Empty(t, stored.TOTPSecret, "pending secret is not committed")

		acc, err = f.svc.ConfirmEnrollment(ctx, acc, code(t, enr.Secret))
		require.NoError(t, err)
		assert.True(t, acc.TwoFactorEnabled)

		stored, err = f.repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, stored.TwoFactorEnabled)
		assert.Equal(t, enr.Secret, stored.TOTPSecret)

		_, err = f.pending.GetEnrollment(ctx, acc.ID)
		assert.Equal(t, account.ErrPendingExpired, err)

		_, err = f.svc.BeginEnrollment(ctx, acc)
		assert.Equal(t, account.ErrSecondFactorEnabled, err)
	})

	t.Run("code from another secret fails", func(t *testing.T) {
		f := setup(t)
		acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

		_, err := f.svc.BeginEnrollment(ctx, acc)
		require.NoError(t, err)

		_, err = f.svc.ConfirmEnrollment(ctx, acc, code(t, randomSecret(t)))
		assert.Equal(t, account.ErrInvalidCode, err)

		stored, err := f.repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.False(t, stored.TwoFactorEnabled)
		assert.Empty(t, stored.TOTPSecret)
	})

	t.Run("a new enrollment replaces the pending secret", func(t *testing.T) {
		f := setup(t)
		acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

		first, err := f.svc.BeginEnrollment(ctx, acc)
		require.NoError(t, err)
		second, err := f.svc.BeginEnrollment(ctx, acc)
		require.NoError(t, err)
		require.NotEqual(t, first.Secret, second.Secret)

		_, err = f.svc.ConfirmEnrollment(ctx, acc, code(t, first.Secret))
		assert.Equal(t, account.ErrInvalidCode, err)
		_, err = f.svc.ConfirmEnrollment(ctx, acc, code(t, second.Secret))
		assert.NoError(t, err)
	})

	t.Run("no pending enrollment", func(t *testing.T) {
		f := setup(t)
		acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

		_, err := f.svc.ConfirmEnrollment(ctx, acc, "123456")
		assert.Equal(t, account.ErrPendingExpired, err)
	})
}

func TestService_PendingAndCommittedSecretsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleTeacher, "carol", "carol@x.com", "pw123")

	committed := randomSecret(t)
	pending := randomSecret(t)
	require.NoError(t, f.repo.EnableSecondFactor(ctx, acc.ID, committed))
	require.NoError(t, f.pending.PutEnrollment(ctx, acc.ID, pending, time.Minute))

	res, err := f.svc.Authenticate(ctx, account.RoleTeacher, "carol@x.com", "pw123")
	require.NoError(t, err)

	_, err = f.svc.VerifyLogin(ctx, res.Challenge, code(t, pending))
	assert.Equal(t, account.ErrInvalidCode, err)
	_, err = f.svc.VerifyLogin(ctx, res.Challenge, code(t, committed))
	assert.NoError(t, err)

	// and the other way around: a pending enrollment ignores the previously committed secret
	other := testutil.CreateAccount(t, f.repo, account.RoleTeacher, "dave", "dave@x.com", "pw123")
	enr, err := f.svc.BeginEnrollment(ctx, other)
	require.NoError(t, err)
	_, err = f.svc.ConfirmEnrollment(ctx, other, code(t, committed))
	assert.Equal(t, account.ErrInvalidCode, err)
	_, err = f.svc.ConfirmEnrollment(ctx, other, code(t, enr.Secret))
	assert.NoError(t, err)
}

func TestService_DisableSecondFactor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleStudent, "alice", "a@x.com", "pw123")

	enr, err := f.svc.BeginEnrollment(ctx, acc)
	require.NoError(t, err)
	acc, err = f.svc.ConfirmEnrollment(ctx, acc, code(t, enr.Secret))
	require.NoError(t, err)

	acc, err = f.svc.DisableSecondFactor(ctx, acc)
	require.NoError(t, err)
	assert.False(t, acc.TwoFactorEnabled)
	assert.Empty(t, acc.TOTPSecret)

	stored, err := f.repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TOTPSecret)

	// login no longer requires a second factor
	res, err := f.svc.Authenticate(ctx, account.RoleStudent, "a@x.com", "pw123")
	require.NoError(t, err)
	assert.False(t, res.SecondFactorRequired())

	// enabled & disabled notifications
	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].TextContent, "has been enabled")
	assert.Contains(t, msgs[1].TextContent, "has been disabled")

	// disabling is unconditional
	_, err = f.svc.DisableSecondFactor(ctx, acc)
	assert.NoError(t, err)
	assert.Len(t, f.mailSvc.SentMessages(), 2)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, "coventry.ac.uk")

	na := account.NewAccount{
		Role:            " Student",
		Username:        "Alice_1",
		Email:           "Alice@Coventry.ac.uk ",
		Password:        "Str0ng!Passw0rd",
		PasswordConfirm: "Str0ng!Passw0rd",
		Grade:           9,
		StudentCode:     "ABC1234",
	}
	require.NoError(t, na.Validate(ctx, validate, f.svc))
	assert.Equal(t, account.RoleStudent, na.Role)
	assert.Equal(t, "alice@coventry.ac.uk", na.Email)

	acc, err := f.svc.Register(ctx, na)
	require.NoError(t, err)
	assert.NotZero(t, acc.ID)
	assert.Equal(t, "alice_1", acc.Username)
	assert.NoError(t, acc.CheckPassword("Str0ng!Passw0rd"))

	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Welcome", msgs[0].Subject)
	assert.Contains(t, msgs[0].TextContent, "Your student account is ready")

	t.Run("email taken", func(t *testing.T) {
		dup := na
		dup.Username = "alice_2"
		err := dup.Validate(ctx, validate, f.svc)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})

	t.Run("student code taken", func(t *testing.T) {
		dup := na
		dup.Username = "alice_3"
		dup.Email = "alice3@coventry.ac.uk"
		_, err := f.svc.Register(ctx, dup)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "student_code", vErr.Fields[0].Field)
	})
}

func TestNewAccount_Validate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, "coventry.ac.uk")

	valid := func() account.NewAccount {
		return account.NewAccount{
			Role:            account.RoleTeacher,
			Username:        "teacher",
			Email:           "teacher@coventry.ac.uk",
			Password:        "Str0ng!Passw0rd",
			PasswordConfirm: "Str0ng!Passw0rd",
		}
	}

	tests := []struct {
		name    string
		mutate  func(na *account.NewAccount)
		wantErr map[string]string
	}{
		{name: "valid", mutate: func(na *account.NewAccount) {}},
		{
			name:    "community may use any domain",
			mutate:  func(na *account.NewAccount) { na.Role = account.RoleCommunity; na.Email = "member@gmail.com" },
			wantErr: nil,
		},
		{
			name:    "unknown role",
			mutate:  func(na *account.NewAccount) { na.Role = "admin" },
			wantErr: map[string]string{"role": "role must be one of [student teacher community]"},
		},
		{
			name:    "institution email",
			mutate:  func(na *account.NewAccount) { na.Email = "teacher@gmail.com" },
			wantErr: map[string]string{"email": "students and teachers must register with a @coventry.ac.uk email address"},
		},
		{
			name:    "short password",
			mutate:  func(na *account.NewAccount) { na.Password = "Ab1!"; na.PasswordConfirm = "Ab1!" },
			wantErr: map[string]string{"password": "password must contain at least 8 characters"},
		},
		{
			name:    "numeric password",
			mutate:  func(na *account.NewAccount) { na.Password = "12345678"; na.PasswordConfirm = "12345678" },
			wantErr: map[string]string{"password": "password cannot be entirely numeric"},
		},
		{
			name:   "simple password",
			mutate: func(na *account.NewAccount) { na.Password = "password1"; na.PasswordConfirm = "password1" },
			wantErr: map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			},
		},
		{
			name:    "password like the username",
			mutate:  func(na *account.NewAccount) { na.Password = "Teacher1!"; na.PasswordConfirm = "Teacher1!" },
			wantErr: map[string]string{"password": "password cannot be similar to the username or email"},
		},
		{
			name:    "confirmation mismatch",
			mutate:  func(na *account.NewAccount) { na.PasswordConfirm = "other" },
			wantErr: map[string]string{"password_confirm": "password_confirm does not match"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := valid()
			tt.mutate(&na)
			err := na.Validate(ctx, validate, f.svc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "got %v", err)
			assert.Equal(t, tt.wantErr, core.TranslateErrors(vErrs, translator))
		})
	}
}
