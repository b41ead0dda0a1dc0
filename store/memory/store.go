// Package memory provides an in-process CredentialStore. It backs the test
// suite and small deployments; production setups use the postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seralith/authgate"
)

// Store keeps accounts in memory behind one mutex, which gives every
// operation the per-account atomicity the engine requires.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]authgate.Account
	emailID map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]authgate.Account),
		emailID: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneAccount(a authgate.Account) authgate.Account {
	out := a
	if a.PasswordHistory != nil {
		out.PasswordHistory = make([]string, len(a.PasswordHistory))
		copy(out.PasswordHistory, a.PasswordHistory)
	}
	return out
}

// FindByEmail implements [authgate.CredentialStore].
func (s *Store) FindByEmail(_ context.Context, email string) (authgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailID[normalizeEmail(email)]
	if !ok {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// FindByID implements [authgate.CredentialStore].
func (s *Store) FindByID(_ context.Context, id string) (authgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// Insert implements [authgate.CredentialStore]. The uniqueness check and
// the write happen under one lock.
func (s *Store) Insert(_ context.Context, account authgate.Account) error {
	email := normalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailID[email]; exists {
		return authgate.ErrEmailExists
	}
	account.Email = email
	s.byID[account.ID] = cloneAccount(account)
	s.emailID[email] = account.ID
	return nil
}

// Update implements [authgate.CredentialStore].
func (s *Store) Update(_ context.Context, account authgate.Account) error {
	email := normalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[account.ID]
	if !ok {
		return authgate.ErrAccountNotFound
	}
	if current.Email != email {
		if _, taken := s.emailID[email]; taken {
			return authgate.ErrEmailExists
		}
		delete(s.emailID, current.Email)
		s.emailID[email] = account.ID
	}
	account.Email = email
	s.byID[account.ID] = cloneAccount(account)
	return nil
}

// RecordLoginFailure implements [authgate.CredentialStore]. The increment
// and the lock decision are one step under the store mutex, so concurrent
// failures never lose increments. Every failure at or past the threshold
// starts a fresh lock window, covering counters left above the threshold
// by a lapsed lock.
func (s *Store) RecordLoginFailure(_ context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (authgate.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}

	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= threshold {
		account.LockedUntil = now.Add(lockFor)
	}
	s.byID[id] = account
	return cloneAccount(account), nil
}

// ClearLockout implements [authgate.CredentialStore].
func (s *Store) ClearLockout(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return authgate.ErrAccountNotFound
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = time.Time{}
	s.byID[id] = account
	return nil
}

// List implements [authgate.CredentialStore]. Accounts come back ordered
// by creation time, oldest first.
func (s *Store) List(_ context.Context) ([]authgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]authgate.Account, 0, len(s.byID))
	for _, account := range s.byID {
		out = append(out, cloneAccount(account))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
