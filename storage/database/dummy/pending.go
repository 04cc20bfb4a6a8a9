package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core/account"
)

type pendingStore struct {
	db *pendingTable
}

var _ account.PendingStore = (*pendingStore)(nil)

func NewPendingStore(db *DB) account.PendingStore {
	return &pendingStore{db: db.pending}
}

func (s *pendingStore) PutLogin(_ context.Context, challenge string, pl account.PendingLogin, ttl time.Duration) error {
	s.db.Lock()
	defer s.db.Unlock()
	s.db.logins[challenge] = pendingEntry{login: pl, expiresAt: nowFunc().Add(ttl)}
	return nil
}

func (s *pendingStore) GetLogin(_ context.Context, challenge string) (account.PendingLogin, error) {
	s.db.Lock()
	defer s.db.Unlock()

	entry, ok := s.db.logins[challenge]
	if !ok || !nowFunc().Before(entry.expiresAt) {
		delete(s.db.logins, challenge)
		return account.PendingLogin{}, account.ErrPendingExpired
	}
	return entry.login, nil
}

func (s *pendingStore) DeleteLogin(_ context.Context, challenge string) error {
	s.db.Lock()
	defer s.db.Unlock()
	delete(s.db.logins, challenge)
	return nil
}

func (s *pendingStore) PutEnrollment(_ context.Context, accountID int64, secret string, ttl time.Duration) error {
	s.db.Lock()
	defer s.db.Unlock()
	s.db.enrollments[accountID] = pendingEntry{secret: secret, expiresAt: nowFunc().Add(ttl)}
	return nil
}

func (s *pendingStore) GetEnrollment(_ context.Context, accountID int64) (string, error) {
	s.db.Lock()
	defer s.db.Unlock()

	entry, ok := s.db.enrollments[accountID]
	if !ok || !nowFunc().Before(entry.expiresAt) {
		delete(s.db.enrollments, accountID)
		return "", account.ErrPendingExpired
	}
	return entry.secret, nil
}

func (s *pendingStore) DeleteEnrollment(_ context.Context, accountID int64) error {
	s.db.Lock()
	defer s.db.Unlock()
	delete(s.db.enrollments, accountID)
	return nil
}
