package echoapi

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

type (
	LoginRequest struct {
		Role     account.Role `json:"role" validate:"required,oneof=student teacher community"`
		Email    string       `json:"email" validate:"required"`
		Password string       `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token       string `json:"token,omitempty"`
		MFARequired bool   `json:"mfa_required,omitempty"`
		Challenge   string `json:"challenge,omitempty"`
	}

	VerifyLoginRequest struct {
		Challenge string `json:"challenge" validate:"required"`
		Code      string `json:"code" validate:"required,otpcode"`
	}

	CodeRequest struct {
		Code string `json:"code" validate:"required,otpcode"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (data *LoginRequest) Validate(validate *validator.Validate) error {
	data.Role = account.Role(core.CleanString(string(data.Role), true /* lower */))
	data.Email = core.CleanString(data.Email, true /* lower */)
	return validate.Struct(data)
}

func (data *VerifyLoginRequest) Validate(validate *validator.Validate) error {
	data.Code = core.CleanString(data.Code)
	return validate.Struct(data)
}

func (data *CodeRequest) Validate(validate *validator.Validate) error {
	data.Code = core.CleanString(data.Code)
	return validate.Struct(data)
}

func (data *PasswordResetRequest) Validate(validate *validator.Validate) error {
	data.Email = core.CleanString(data.Email, true /* lower */)
	return validate.Struct(data)
}

// paramID parses the int64 path parameter `name`; malformed IDs match nothing.
func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// bindUpload returns the optional file sent as `field` of a multipart form, and a func closing it.
func bindUpload(ctx echo.Context, field string) (*core.Upload, func(), error) {
	noop := func() {}

	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, errors.Wrap(err, "reading multipart form")
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*core.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "opening uploaded file")
	}
	return &core.Upload{Filename: fh.Filename, Content: f}, func() { _ = f.Close() }, nil
}
