package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

type accountApi struct {
	svc      account.Service
	auth     *jwtAuth
	validate *validator.Validate
	logger   core.Logger
}

func registerAccountAPI(
	g *echo.Group,
	jwt, ctxAccount, rateLimit echo.MiddlewareFunc,
	auth *jwtAuth,
	deps ServerDeps,
) {
	api := accountApi{
		svc:      deps.AccountSvc,
		auth:     auth,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register, rateLimit)
	ag.POST("/login", api.login, rateLimit)
	ag.POST("/2fa/verify", api.verifyLogin, rateLimit)
	ag.POST("/password-reset", api.requestPasswordReset, rateLimit)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, rateLimit)

	// authed endpoints
	authed := ag.Group("", jwt, ctxAccount)
	authed.POST("/token-refresh", api.refreshToken)
	authed.GET("/2fa/setup", api.beginEnrollment)
	authed.POST("/2fa/enable", api.confirmEnrollment)
	authed.DELETE("/2fa", api.disableSecondFactor)

	mg := g.Group("/accounts/me", jwt, ctxAccount)
	mg.GET("", api.retrieve)
	mg.PUT("", api.updateUsername)
	mg.POST("/password", api.changePassword)
	mg.DELETE("", api.destroy)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	acc, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Authenticate(ctx.Request().Context(), data.Role, data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == account.ErrInvalidCredentials {
			loginAttempts.WithLabelValues(data.Role.String(), loginFailed).Inc()
			return account.ErrInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}

	if res.SecondFactorRequired() {
		loginAttempts.WithLabelValues(data.Role.String(), loginChallenged).Inc()
		return ctx.JSON(http.StatusOK, LoginResponse{MFARequired: true, Challenge: res.Challenge})
	}

	token, err := api.auth.sessionToken(res.Account)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	loginAttempts.WithLabelValues(data.Role.String(), loginSucceeded).Inc()
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) verifyLogin(ctx echo.Context) error {
	var data VerifyLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.svc.VerifyLogin(ctx.Request().Context(), data.Challenge, data.Code)
	if err != nil {
		secondFactorEvents.WithLabelValues("verify", loginFailed).Inc()
		return err
	}
	token, err := api.auth.sessionToken(acc)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	secondFactorEvents.WithLabelValues("verify", loginSucceeded).Inc()
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.PasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordReset")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ConfirmPasswordReset(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) beginEnrollment(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	enr, err := api.svc.BeginEnrollment(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "beginning second factor enrollment")
	}
	secondFactorEvents.WithLabelValues("setup", loginSucceeded).Inc()
	return ctx.JSON(http.StatusOK, enr)
}

func (api *accountApi) confirmEnrollment(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data CodeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CodeRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	acc, err = api.svc.ConfirmEnrollment(ctx.Request().Context(), acc, data.Code)
	if err != nil {
		secondFactorEvents.WithLabelValues("enable", loginFailed).Inc()
		return errors.Wrap(err, "confirming second factor enrollment")
	}
	secondFactorEvents.WithLabelValues("enable", loginSucceeded).Inc()
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) disableSecondFactor(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	acc, err = api.svc.DisableSecondFactor(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "disabling second factor")
	}
	secondFactorEvents.WithLabelValues("disable", loginSucceeded).Inc()
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) updateUsername(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data account.UsernameUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UsernameUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	acc, err = api.svc.UpdateUsername(ctx.Request().Context(), acc, data)
	if err != nil {
		return errors.Wrap(err, "updating username")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}

	var data account.PasswordChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordChange")
	}
	if err = data.Validate(api.validate, acc); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), acc, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *accountApi) destroy(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), acc.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}
