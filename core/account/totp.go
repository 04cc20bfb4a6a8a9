package account

import (
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	codeDigits   = 6
	codePeriod   = 30 // seconds
	codeSkew     = 1  // accepted steps around the current one
	qrCodeSizePx = 256
)

var nowFunc = time.Now // mockable

// newEnrollment generates a fresh secret for email and its provisioning URI & QR code.
func newEnrollment(issuer, email string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: email,
		Period:      codePeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "generating totp key")
	}
	return enrollmentFromKey(key)
}

func enrollmentFromKey(key *otp.Key) (Enrollment, error) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrCodeSizePx)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "encoding qr code")
	}
	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: base64.StdEncoding.EncodeToString(png),
	}, nil
}

// validCode reports whether code is valid for secret at the current time step (or an adjacent one).
func validCode(code, secret string) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, nowFunc().UTC(), totp.ValidateOpts{
		Period:    codePeriod,
		Skew:      codeSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
