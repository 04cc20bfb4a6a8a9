package account_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/tests"
)

func TestService_UpdateUsername(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleCommunity, "alice", "a@x.com", "pw123")
	testutil.CreateAccount(t, f.repo, account.RoleCommunity, "bob", "b@x.com", "pw123")

	t.Run("taken", func(t *testing.T) {
		_, err := f.svc.UpdateUsername(ctx, acc, account.UsernameUpdate{Username: "bob"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, account.ErrUsernameExists, vErr.Err)
		assert.Equal(t, "username", vErr.Fields[0].Field)
	})

	t.Run("unchanged", func(t *testing.T) {
		got, err := f.svc.UpdateUsername(ctx, acc, account.UsernameUpdate{Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("renamed", func(t *testing.T) {
		got, err := f.svc.UpdateUsername(ctx, acc, account.UsernameUpdate{Username: "alicia"})
		require.NoError(t, err)
		assert.Equal(t, "alicia", got.Username)

		stored, err := f.svc.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "alicia", stored.Username)
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleTeacher, "teacher", "t@x.com", "Old-passw0rd")
	newPwd := "New-passw0rd"

	err := f.svc.ChangePassword(ctx, acc, account.PasswordChange{CurrentPassword: "nope", Password: newPwd})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, account.ErrWrongPassword, vErr.Err)
	assert.Equal(t, "current_password", vErr.Fields[0].Field)
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.ChangePassword(ctx, acc, account.PasswordChange{CurrentPassword: "Old-passw0rd", Password: newPwd}))

	_, err = f.svc.Authenticate(ctx, account.RoleTeacher, "t@x.com", "Old-passw0rd")
	assert.Equal(t, account.ErrInvalidCredentials, err)
	_, err = f.svc.Authenticate(ctx, account.RoleTeacher, "t@x.com", newPwd)
	assert.NoError(t, err)

	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "password_changed", msgs[0].TemplateName)
	assert.Contains(t, msgs[0].TextContent, "teacher")
}

func TestPasswordChange_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, "")
	acc := account.Account{Username: "alicewonder", Email: "alice@x.com"}

	tag := func(t *testing.T, err error) string {
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		return vErrs[0].Tag()
	}

	pc := account.PasswordChange{CurrentPassword: "old", Password: "short", PasswordConfirm: "short"}
	assert.Equal(t, "pwdminlen", tag(t, pc.Validate(validate, acc)))

	pc = account.PasswordChange{CurrentPassword: "old", Password: "Alicewonder1!", PasswordConfirm: "Alicewonder1!"}
	assert.Equal(t, "pwdtoosim", tag(t, pc.Validate(validate, acc)))

	pc = account.PasswordChange{CurrentPassword: "old", Password: "Passw0rd!x", PasswordConfirm: "Passw0rd!y"}
	assert.Equal(t, "eqfield", tag(t, pc.Validate(validate, acc)))

	pc.PasswordConfirm = pc.Password
	assert.NoError(t, pc.Validate(validate, acc))
}

func TestUsernameUpdate_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, "")

	uu := account.UsernameUpdate{Username: "  NewName "}
	require.NoError(t, uu.Validate(validate))
	assert.Equal(t, "newname", uu.Username)

	uu = account.UsernameUpdate{Username: "no spaces allowed"}
	assert.Error(t, uu.Validate(validate))
}
