package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
)

type accountRepository struct {
	db       *crud.Facade
	accounts accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	f := crud.New(db)
	return &accountRepository{db: f, accounts: accountsOf(f)}
}

func (repo accountRepository) unboil(acc *models.Account) account.Account {
	if acc == nil {
		return account.Account{}
	}
	return account.Account{
		ID:               acc.ID,
		Username:         acc.Username,
		Email:            acc.Email,
		Role:             account.Role(acc.Role),
		IsOfficial:       acc.IsOfficial,
		TwoFactorEnabled: acc.TOTPEnabled,
		TOTPSecret:       acc.TOTPSecret.String,
		PasswordHash:     acc.PasswordHash,
		CreatedAt:        acc.CreatedAt,
		LastLogin:        acc.LastLogin.Time,
	}
}

// trapErr maps façade errors to account errors.
func (repo accountRepository) trapErr(err error, msg string) error {
	switch {
	case errors.Is(err, crud.ErrNotFound):
		return account.ErrNotFound
	case crud.IsUniqueViolation(err, models.AccountsUsernameKey):
		return account.ErrUsernameExists
	case crud.IsUniqueViolation(err, models.AccountsEmailKey):
		return account.ErrEmailExists
	case crud.IsUniqueViolation(err, models.StudentsStudentCodeKey):
		return account.ErrStudentCodeExists
	}
	return errors.Wrap(err, msg)
}

func (repo accountRepository) CheckUniqueness(ctx context.Context, username, email string) error {
	n, err := repo.accounts.Count(ctx, models.AccountFields{Username: null.StringFrom(username)})
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if n > 0 {
		return account.ErrUsernameExists
	}

	n, err = repo.accounts.Count(ctx, models.AccountFields{Email: null.StringFrom(email)})
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if n > 0 {
		return account.ErrEmailExists
	}
	return nil
}

func (repo accountRepository) Create(ctx context.Context, acc account.Account, profile account.Profile) (account.Account, error) {
	var created *models.Account
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		var err error
		created, err = accountsOf(tf).Create(ctx, models.AccountFields{
			Username:     null.StringFrom(acc.Username),
			Email:        null.StringFrom(acc.Email),
			PasswordHash: null.BytesFrom(acc.PasswordHash),
			Role:         null.StringFrom(acc.Role.String()),
			IsOfficial:   null.BoolFrom(acc.IsOfficial),
		})
		if err != nil {
			return err
		}
		return createProfile(ctx, tf, created.ID, acc.Role, profile)
	})
	if err != nil {
		return account.Account{}, repo.trapErr(err, "creating account")
	}
	return repo.unboil(created), nil
}

func createProfile(ctx context.Context, tf *crud.Facade, accountID int64, role account.Role, p account.Profile) error {
	var err error
	schoolID := null.NewInt64(p.SchoolID, p.SchoolID != 0)
	switch role {
	case account.RoleStudent:
		_, err = studentsOf(tf).Create(ctx, models.StudentFields{
			AccountID:   null.Int64From(accountID),
			SchoolID:    schoolID,
			Grade:       null.NewInt(p.Grade, p.Grade != 0),
			StudentCode: null.NewString(p.StudentCode, p.StudentCode != ""),
		})
	case account.RoleTeacher:
		_, err = teachersOf(tf).Create(ctx, models.TeacherFields{
			AccountID: null.Int64From(accountID),
			SchoolID:  schoolID,
		})
	case account.RoleCommunity:
		_, err = membersOf(tf).Create(ctx, models.CommunityMemberFields{
			AccountID:   null.Int64From(accountID),
			DisplayName: null.NewString(p.DisplayName, p.DisplayName != ""),
		})
	}
	return err
}

func (repo accountRepository) GetByID(ctx context.Context, id int64) (account.Account, error) {
	acc, err := repo.accounts.Get(ctx, id)
	if err != nil {
		return account.Account{}, repo.trapErr(err, "getting account by id")
	}
	return repo.unboil(acc), nil
}

func (repo accountRepository) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	acc, err := repo.accounts.First(ctx, models.AccountFields{Email: null.StringFrom(email)})
	if err != nil {
		return account.Account{}, repo.trapErr(err, "getting account by email")
	}
	return repo.unboil(acc), nil
}

func (repo accountRepository) GetByRoleAndEmail(ctx context.Context, role account.Role, email string) (account.Account, error) {
	acc, err := repo.accounts.First(ctx, models.AccountFields{
		Email: null.StringFrom(email),
		Role:  null.StringFrom(role.String()),
	})
	if err != nil {
		return account.Account{}, repo.trapErr(err, "getting account by role and email")
	}
	return repo.unboil(acc), nil
}

func (repo accountRepository) update(ctx context.Context, id int64, fields models.AccountFields, msg string) error {
	if _, err := repo.accounts.Update(ctx, id, fields); err != nil {
		return repo.trapErr(err, msg)
	}
	return nil
}

func (repo accountRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	return repo.update(ctx, id, models.AccountFields{LastLogin: null.TimeFrom(at.UTC())}, "setting last login")
}

func (repo accountRepository) SetPasswordHash(ctx context.Context, id int64, hash []byte) error {
	return repo.update(ctx, id, models.AccountFields{PasswordHash: null.BytesFrom(hash)}, "setting password")
}

func (repo accountRepository) SetUsername(ctx context.Context, id int64, username string) error {
	return repo.update(ctx, id, models.AccountFields{Username: null.StringFrom(username)}, "setting username")
}

func (repo accountRepository) EnableSecondFactor(ctx context.Context, id int64, secret string) error {
	s := null.StringFrom(secret)
	fields := models.AccountFields{TOTPSecret: &s, TOTPEnabled: null.BoolFrom(true)}
	return repo.update(ctx, id, fields, "enabling second factor")
}

func (repo accountRepository) DisableSecondFactor(ctx context.Context, id int64) error {
	fields := models.AccountFields{TOTPSecret: &null.String{}, TOTPEnabled: null.BoolFrom(false)}
	return repo.update(ctx, id, fields, "disabling second factor")
}

// Delete removes the account; its profile & records go with it (ON DELETE CASCADE).
func (repo accountRepository) Delete(ctx context.Context, id int64) error {
	if err := repo.accounts.Delete(ctx, id); err != nil {
		return repo.trapErr(err, "deleting account")
	}
	return nil
}
