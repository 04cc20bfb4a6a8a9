package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) checkUniqueness(username, email string) error {
	for _, acc := range repo.db.table {
		if acc.Username == username {
			return account.ErrUsernameExists
		}
		if acc.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CheckUniqueness(_ context.Context, username, email string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(username, email)
}

func (repo *accountRepository) Create(_ context.Context, acc account.Account, profile account.Profile) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkUniqueness(acc.Username, acc.Email); err != nil {
		return account.Account{}, err
	}
	if profile.StudentCode != "" {
		for _, p := range repo.db.profiles {
			if p.StudentCode == profile.StudentCode {
				return account.Account{}, account.ErrStudentCodeExists
			}
		}
	}

	repo.db.pkCount++
	acc.ID = repo.db.pkCount
	repo.db.table[acc.ID] = &acc
	repo.db.profiles[acc.ID] = profile
	return acc, nil
}

func (repo *accountRepository) GetByID(_ context.Context, id int64) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acc, ok := repo.db.table[id]; ok {
		return *acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acc := range repo.db.table {
		if acc.Email == email {
			return *acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetByRoleAndEmail(_ context.Context, role account.Role, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acc := range repo.db.table {
		if acc.Role == role && acc.Email == email {
			return *acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) update(id int64, fn func(acc *account.Account)) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acc, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	fn(acc)
	return nil
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id int64, at time.Time) error {
	return repo.update(id, func(acc *account.Account) { acc.LastLogin = at })
}

func (repo *accountRepository) SetPasswordHash(_ context.Context, id int64, hash []byte) error {
	return repo.update(id, func(acc *account.Account) { acc.PasswordHash = hash })
}

func (repo *accountRepository) SetUsername(_ context.Context, id int64, username string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acc, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	for _, other := range repo.db.table {
		if other.ID != id && other.Username == username {
			return account.ErrUsernameExists
		}
	}
	acc.Username = username
	return nil
}

func (repo *accountRepository) EnableSecondFactor(_ context.Context, id int64, secret string) error {
	return repo.update(id, func(acc *account.Account) {
		acc.TOTPSecret = secret
		acc.TwoFactorEnabled = true
	})
}

func (repo *accountRepository) DisableSecondFactor(_ context.Context, id int64) error {
	return repo.update(id, func(acc *account.Account) {
		acc.TOTPSecret = ""
		acc.TwoFactorEnabled = false
	})
}

func (repo *accountRepository) Delete(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return account.ErrNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.profiles, id)
	return nil
}
