package account

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound            = errors.New("account not found")
	ErrEmailExists         = errors.New("an account with this email already exists")
	ErrUsernameExists      = errors.New("an account with this username already exists")
	ErrStudentCodeExists   = errors.New("a student with this code already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidCode         = errors.New("invalid authentication code")
	ErrPendingExpired      = errors.New("verification has expired, please start again")
	ErrSecondFactorEnabled = errors.New("two-factor authentication is already enabled")
	ErrInvalidResetToken   = errors.New("the password reset link is invalid or has expired")
	ErrWrongPassword       = errors.New("current password is incorrect")

	dummyHash     []byte
	dummyHashOnce sync.Once
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken.
		CheckUniqueness(ctx context.Context, username, email string) error
		// Create persists acc and its role Profile together.
		Create(ctx context.Context, acc Account, profile Profile) (Account, error)
		GetByID(ctx context.Context, id int64) (Account, error)
		GetByEmail(ctx context.Context, email string) (Account, error)
		GetByRoleAndEmail(ctx context.Context, role Role, email string) (Account, error)
		SetLastLogin(ctx context.Context, id int64, at time.Time) error
		SetPasswordHash(ctx context.Context, id int64, hash []byte) error
		// SetUsername returns ErrUsernameExists when taken by another account.
		SetUsername(ctx context.Context, id int64, username string) error
		// EnableSecondFactor commits secret & sets the enabled flag in a single write.
		EnableSecondFactor(ctx context.Context, id int64, secret string) error
		// DisableSecondFactor clears the secret & the enabled flag in a single write.
		DisableSecondFactor(ctx context.Context, id int64) error
		Delete(ctx context.Context, id int64) error
	}

	// PendingStore holds the short-lived second factor state: logins awaiting their code (by challenge token)
	// and issued secrets awaiting confirmation (by account ID). Missing or expired entries are ErrPendingExpired.
	PendingStore interface {
		PutLogin(ctx context.Context, challenge string, pl PendingLogin, ttl time.Duration) error
		GetLogin(ctx context.Context, challenge string) (PendingLogin, error)
		DeleteLogin(ctx context.Context, challenge string) error
		PutEnrollment(ctx context.Context, accountID int64, secret string, ttl time.Duration) error
		GetEnrollment(ctx context.Context, accountID int64) (string, error)
		DeleteEnrollment(ctx context.Context, accountID int64) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, username, email string) error
		Register(ctx context.Context, na NewAccount) (Account, error)
		GetByID(ctx context.Context, id int64) (Account, error)
		GetByEmail(ctx context.Context, email string) (Account, error)
		Delete(ctx context.Context, id int64) error
		ResetPassword(ctx context.Context, email, pwd string) error
		// RequestPasswordReset mails a password reset link to the owner of email.
		RequestPasswordReset(ctx context.Context, email string) error
		ConfirmPasswordReset(ctx context.Context, pr PasswordReset) error
		UpdateUsername(ctx context.Context, acc Account, uu UsernameUpdate) (Account, error)
		ChangePassword(ctx context.Context, acc Account, pc PasswordChange) error

		// Authenticate checks role-scoped credentials. Any mismatch is ErrInvalidCredentials.
		Authenticate(ctx context.Context, role Role, email, pwd string) (LoginResult, error)
		// VerifyLogin completes a pending login with its second factor code.
		VerifyLogin(ctx context.Context, challenge, code string) (Account, error)

		BeginEnrollment(ctx context.Context, acc Account) (Enrollment, error)
		ConfirmEnrollment(ctx context.Context, acc Account, code string) (Account, error)
		DisableSecondFactor(ctx context.Context, acc Account) (Account, error)
	}

	service struct {
		repo    Repository
		pending PendingStore
		mailSvc core.EmailService
		conf    core.AuthConfig
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, pending PendingStore, mailSvc core.EmailService, conf core.AuthConfig) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(pending, "pending"),
		vala.IsNotNil(mailSvc, "mailSvc"),
	).CheckAndPanic()

	return &service{
		repo:    repo,
		pending: pending,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email); err != nil {
		return uniquenessError(err)
	}
	return nil
}

// uniquenessError turns a uniqueness error into a field ValidationError.
func uniquenessError(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	case ErrStudentCodeExists:
		field = "student_code"
	default:
		return err
	}
	return core.NewFieldValidationError(field, errors.Cause(err))
}

func (svc *service) Register(ctx context.Context, na NewAccount) (Account, error) {
	acc := Account{
		Username:  na.Username,
		Email:     na.Email,
		Role:      na.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	acc, err := svc.repo.Create(ctx, acc, na.Profile())
	if err != nil {
		return Account{}, uniquenessError(err)
	}
	svc.sendMail(acc, "Welcome", "welcome")
	return acc, nil
}

func (svc *service) GetByID(ctx context.Context, id int64) (Account, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	if err := svc.pending.DeleteEnrollment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting pending enrollment")
	}
	return svc.repo.Delete(ctx, id)
}

func (svc *service) ResetPassword(ctx context.Context, email, pwd string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPasswordHash(ctx, acc.ID, acc.PasswordHash)
}

func (svc *service) UpdateUsername(ctx context.Context, acc Account, uu UsernameUpdate) (Account, error) {
	if uu.Username == acc.Username {
		return acc, nil
	}
	if err := svc.repo.SetUsername(ctx, acc.ID, uu.Username); err != nil {
		return Account{}, uniquenessError(err)
	}
	acc.Username = uu.Username
	return acc, nil
}

// ChangePassword checks the current password against the stored hash before replacing it.
func (svc *service) ChangePassword(ctx context.Context, acc Account, pc PasswordChange) error {
	stored, err := svc.repo.GetByID(ctx, acc.ID)
	if err != nil {
		return err
	}
	if err = stored.CheckPassword(pc.CurrentPassword); err != nil {
		return core.NewFieldValidationError("current_password", ErrWrongPassword)
	}
	if err = stored.SetPassword(pc.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if err = svc.repo.SetPasswordHash(ctx, stored.ID, stored.PasswordHash); err != nil {
		return err
	}
	svc.sendMail(stored, "Password changed", "password_changed")
	return nil
}

// passwordResetData is the data of the password_reset mail template.
type passwordResetData struct {
	Username string
	UID      string
	Token    string
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := makeResetToken(acc, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Username, Address: acc.Email}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{Username: acc.Username, UID: EncodeUID(acc), Token: token},
	})
	return nil
}

func (svc *service) ConfirmPasswordReset(ctx context.Context, pr PasswordReset) error {
	invalid := core.NewFieldValidationError("token", ErrInvalidResetToken)

	id, err := decodeUID(pr.UID)
	if err != nil {
		return invalid
	}
	acc, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if err = verifyResetToken(acc, svc.conf.SecretKey, pr.Token, svc.conf.PasswordResetTimeout); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return invalid
		}
		return err
	}

	if err = acc.SetPassword(pr.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPasswordHash(ctx, acc.ID, acc.PasswordHash)
}

func (svc *service) Authenticate(ctx context.Context, role Role, email, pwd string) (LoginResult, error) {
	acc, err := svc.repo.GetByRoleAndEmail(ctx, role, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return LoginResult{}, errors.Wrap(err, "finding account by role and email")
		}
		// compare anyway so that unknown accounts take as long as wrong passwords
		_ = bcrypt.CompareHashAndPassword(getDummyHash(), []byte(pwd))
		return LoginResult{}, ErrInvalidCredentials
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !acc.TwoFactorEnabled {
		acc, err = svc.setLastLogin(ctx, acc)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Account: acc}, nil
	}

	challenge := uuid.NewString()
	pl := PendingLogin{AccountID: acc.ID, Role: acc.Role}
	if err = svc.pending.PutLogin(ctx, challenge, pl, svc.conf.PendingLoginTTL); err != nil {
		return LoginResult{}, errors.Wrap(err, "storing pending login")
	}
	return LoginResult{Account: acc, Challenge: challenge}, nil
}

func (svc *service) VerifyLogin(ctx context.Context, challenge, code string) (Account, error) {
	pl, err := svc.pending.GetLogin(ctx, challenge)
	if err != nil {
		return Account{}, err
	}

	acc, err := svc.repo.GetByID(ctx, pl.AccountID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrPendingExpired
		}
		return Account{}, errors.Wrap(err, "finding pending account")
	}
	if acc.Role != pl.Role || !acc.TwoFactorEnabled {
		return Account{}, ErrPendingExpired
	}
	if !validCode(code, acc.TOTPSecret) {
		return Account{}, ErrInvalidCode // the pending login is kept for a retry
	}

	if err = svc.pending.DeleteLogin(ctx, challenge); err != nil {
		return Account{}, errors.Wrap(err, "deleting pending login")
	}
	return svc.setLastLogin(ctx, acc)
}

func (svc *service) setLastLogin(ctx context.Context, acc Account) (Account, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, acc.ID, now); err != nil {
		return Account{}, errors.Wrap(err, "setting last login")
	}
	acc.LastLogin = now
	return acc, nil
}

// BeginEnrollment issues a new secret for acc, replacing any previously pending one.
// The account itself is untouched until ConfirmEnrollment.
func (svc *service) BeginEnrollment(ctx context.Context, acc Account) (Enrollment, error) {
	if acc.TwoFactorEnabled {
		return Enrollment{}, ErrSecondFactorEnabled
	}

	enr, err := newEnrollment(svc.conf.TOTPIssuer, acc.Email)
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.pending.PutEnrollment(ctx, acc.ID, enr.Secret, svc.conf.PendingEnrollmentTTL); err != nil {
		return Enrollment{}, errors.Wrap(err, "storing pending enrollment")
	}
	return enr, nil
}

func (svc *service) ConfirmEnrollment(ctx context.Context, acc Account, code string) (Account, error) {
	if acc.TwoFactorEnabled {
		return Account{}, ErrSecondFactorEnabled
	}

	secret, err := svc.pending.GetEnrollment(ctx, acc.ID)
	if err != nil {
		return Account{}, err
	}
	if !validCode(code, secret) {
		return Account{}, ErrInvalidCode
	}

	if err = svc.repo.EnableSecondFactor(ctx, acc.ID, secret); err != nil {
		return Account{}, errors.Wrap(err, "enabling second factor")
	}
	if err = svc.pending.DeleteEnrollment(ctx, acc.ID); err != nil {
		return Account{}, errors.Wrap(err, "deleting pending enrollment")
	}

	acc.TOTPSecret = secret
	acc.TwoFactorEnabled = true
	svc.sendMail(acc, "Two-factor authentication enabled", "second_factor")
	return acc, nil
}

func (svc *service) DisableSecondFactor(ctx context.Context, acc Account) (Account, error) {
	if err := svc.repo.DisableSecondFactor(ctx, acc.ID); err != nil {
		return Account{}, errors.Wrap(err, "disabling second factor")
	}
	if err := svc.pending.DeleteEnrollment(ctx, acc.ID); err != nil {
		return Account{}, errors.Wrap(err, "deleting pending enrollment")
	}

	wasEnabled := acc.TwoFactorEnabled
	acc.TOTPSecret = ""
	acc.TwoFactorEnabled = false
	if wasEnabled {
		svc.sendMail(acc, "Two-factor authentication disabled", "second_factor")
	}
	return acc, nil
}

func (svc *service) sendMail(acc Account, subject, tmpl string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Username, Address: acc.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: acc,
	})
}

func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	})
	return dummyHash
}
