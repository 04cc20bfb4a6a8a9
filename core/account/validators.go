package account

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/darasa/core"
)

var (
	otpCodeTag  = "otpcode"
	otpCodeText = fmt.Sprintf("code must be made of %d digits", codeDigits)

	institutionEmailTag = "institutionemail"
	institutionEmailFmt = "students and teachers must register with a @%s email address"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the username or email"
)

// InitValidators registers the account validations on validate.
// Students and teachers must register with an email on institutionDomain (no restriction when empty).
func InitValidators(validate *validator.Validate, translator ut.Translator, institutionDomain string) {
	_ = validate.RegisterValidation(otpCodeTag, otpCodeValidation)
	core.RegisterCustomTranslation(validate, translator, otpCodeTag, otpCodeText)

	validate.RegisterStructValidation(newAccountStructValidation(institutionDomain), NewAccount{})
	validate.RegisterStructValidation(passwordResetStructValidation, PasswordReset{})
	validate.RegisterStructValidation(passwordChangeStructValidation, PasswordChange{})
	core.RegisterCustomTranslation(validate, translator, institutionEmailTag, fmt.Sprintf(institutionEmailFmt, institutionDomain))
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// otpCodeValidation accepts codes of exactly codeDigits ASCII digits.
func otpCodeValidation(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return len(code) == codeDigits && core.IsDigits(code)
}

func newAccountStructValidation(institutionDomain string) validator.StructLevelFunc {
	suffix := "@" + strings.ToLower(institutionDomain)

	return func(sl validator.StructLevel) {
		na, ok := sl.Current().Interface().(NewAccount)
		if !ok {
			return
		}
		if institutionDomain != "" && (na.Role == RoleStudent || na.Role == RoleTeacher) &&
			!strings.HasSuffix(na.Email, suffix) {
			sl.ReportError(na.Email, "email", "Email", institutionEmailTag, "")
		}
		validatePassword(na.Password, na.Username, na.Email, sl)
	}
}

func passwordResetStructValidation(sl validator.StructLevel) {
	if pr, ok := sl.Current().Interface().(PasswordReset); ok {
		validatePassword(pr.Password, "", "", sl)
	}
}

func passwordChangeStructValidation(sl validator.StructLevel) {
	if pc, ok := sl.Current().Interface().(PasswordChange); ok {
		validatePassword(pc.Password, pc.username, pc.email, sl)
	}
}

// validatePassword applies the password policy:
// - minLen: 8
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - not similar to the username or email
func validatePassword(pwd, uname, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
	if pwd == "" {
		return // reported as required
	}

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digitCount int
	var hasUpper, hasLower bool
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		switch {
		case unicode.IsDigit(char):
			digitCount++
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		}
	}
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	ratio := func(attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pwd), ""), strings.Split(attr, "")).QuickRatio()
	}
	if ratio(uname) >= pwdMaxSim || ratio(email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
	}
}
