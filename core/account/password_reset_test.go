package account_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/tests"
)

var resetLinkRegex = regexp.MustCompile(`/password-reset/([A-Za-z0-9_-]+)/([A-Za-z0-9_=-]+)`)

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	acc := testutil.CreateAccount(t, f.repo, account.RoleTeacher, "teacher", "t@x.com", "Old-passw0rd")

	assert.Equal(t, account.ErrNotFound, f.svc.RequestPasswordReset(ctx, "nobody@x.com"))
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " T@x.com"))
	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "t@x.com", msgs[0].To[0].Address)
	assert.Equal(t, "password_reset", msgs[0].TemplateName)

	match := resetLinkRegex.FindStringSubmatch(msgs[0].TextContent)
	require.Len(t, match, 3, msgs[0].TextContent)
	uid, token := match[1], match[2]
	assert.Equal(t, account.EncodeUID(acc), uid)

	invalid := func(t *testing.T, err error) {
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, account.ErrInvalidResetToken, vErr.Err)
		assert.Equal(t, "token", vErr.Fields[0].Field)
	}

	newPwd := "New-passw0rd"
	t.Run("bad uid", func(t *testing.T) {
		invalid(t, f.svc.ConfirmPasswordReset(ctx, account.PasswordReset{UID: "!!", Token: token, Password: newPwd}))
		invalid(t, f.svc.ConfirmPasswordReset(ctx, account.PasswordReset{UID: account.EncodeUID(account.Account{ID: 999}), Token: token, Password: newPwd}))
	})
	t.Run("bad token", func(t *testing.T) {
		invalid(t, f.svc.ConfirmPasswordReset(ctx, account.PasswordReset{UID: uid, Token: "HE4TS-sig", Password: newPwd}))
	})

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, account.PasswordReset{UID: uid, Token: token, Password: newPwd}))
	_, err := f.svc.Authenticate(ctx, account.RoleTeacher, "t@x.com", newPwd)
	assert.NoError(t, err)

	t.Run("token is single use", func(t *testing.T) {
		invalid(t, f.svc.ConfirmPasswordReset(ctx, account.PasswordReset{UID: uid, Token: token, Password: "Other-passw0rd"}))
	})
}

func TestPasswordReset_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, "")

	pr := account.PasswordReset{UID: " MQ ", Token: "tok", Password: "password", PasswordConfirm: "password"}
	err := pr.Validate(validate)
	require.Error(t, err)
	assert.Equal(t, "MQ", pr.UID)

	pr = account.PasswordReset{UID: "MQ", Token: "tok", Password: "Passw0rd!x", PasswordConfirm: "Passw0rd!y"}
	assert.Error(t, pr.Validate(validate))

	pr.PasswordConfirm = pr.Password
	assert.NoError(t, pr.Validate(validate))
}
