package account

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

type Role string

// Roles
const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleCommunity Role = "community"
)

var Roles = []Role{RoleStudent, RoleTeacher, RoleCommunity}

func (r Role) IsValid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

type Account struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	IsOfficial       bool      `json:"is_official"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TOTPSecret       string    `json:"-"` // committed secret, empty unless TwoFactorEnabled
	PasswordHash     []byte    `json:"-"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	LastLogin        time.Time `json:"last_login"` // UTC
}

func (acc *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	return nil
}

func (acc *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(pwd))
}

func (acc *Account) IsStudent() bool   { return acc.Role == RoleStudent }
func (acc *Account) IsTeacher() bool   { return acc.Role == RoleTeacher }
func (acc *Account) IsCommunity() bool { return acc.Role == RoleCommunity }

// Profile holds the role-specific fields of the 1:1 profile created along with an Account.
type Profile struct {
	SchoolID    int64  `json:"school_id,omitempty"`
	Grade       int    `json:"grade,omitempty"`        // students
	StudentCode string `json:"student_code,omitempty"` // students
	DisplayName string `json:"display_name,omitempty"` // community
}

// NewAccount contains information needed to register a new Account.
type NewAccount struct {
	Role            Role   `json:"role" validate:"required,oneof=student teacher community"`
	Username        string `json:"username" validate:"required,min=3,max=250,alphanum_"`
	Email           string `json:"email" validate:"required,email,max=250"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        int64  `json:"school_id" validate:"omitempty,min=1"`
	Grade           int    `json:"grade" validate:"omitempty,min=1,max=13"`
	StudentCode     string `json:"student_code" validate:"omitempty,len=7,alphanum"`
	DisplayName     string `json:"display_name" validate:"omitempty,max=250"`
}

func (na *NewAccount) Clean() {
	na.Role = Role(core.CleanString(string(na.Role), true /* lower */))
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.StudentCode = core.CleanString(na.StudentCode)
	na.DisplayName = core.CleanString(na.DisplayName)
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	na.Clean()
	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, na.Username, na.Email)
}

func (na NewAccount) Profile() Profile {
	p := Profile{SchoolID: na.SchoolID}
	switch na.Role {
	case RoleStudent:
		p.Grade = na.Grade
		p.StudentCode = na.StudentCode
	case RoleCommunity:
		p.DisplayName = na.DisplayName
	}
	return p
}

// PasswordReset sets a new password with the token sent by RequestPasswordReset.
type PasswordReset struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (pr *PasswordReset) Validate(validate *validator.Validate) error {
	pr.UID = core.CleanString(pr.UID)
	pr.Token = core.CleanString(pr.Token)
	return validate.Struct(pr)
}

// UsernameUpdate renames an Account.
type UsernameUpdate struct {
	Username string `json:"username" validate:"required,min=3,max=250,alphanum_"`
}

func (uu *UsernameUpdate) Validate(validate *validator.Validate) error {
	uu.Username = core.CleanString(uu.Username, true /* lower */)
	return validate.Struct(uu)
}

// PasswordChange sets a new password, given the current one.
type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	username, email string // of the account, for the similarity check
}

func (pc *PasswordChange) Validate(validate *validator.Validate, acc Account) error {
	pc.username = acc.Username
	pc.email = acc.Email
	return validate.Struct(pc)
}

// LoginResult is the outcome of valid credentials: either a session may be established for Account,
// or a second factor is required and Challenge identifies the pending login.
type LoginResult struct {
	Account   Account
	Challenge string
}

func (r LoginResult) SecondFactorRequired() bool { return r.Challenge != "" }

// PendingLogin is a login whose credentials were valid, awaiting its second factor.
type PendingLogin struct {
	AccountID int64 `json:"account_id"`
	Role      Role  `json:"role"`
}

// Enrollment is an issued, not yet confirmed, second factor secret.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`     // otpauth://totp/...
	QRCode string `json:"qr_code"` // base64 PNG
}
