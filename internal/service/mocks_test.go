package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
	failWith  error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, u := range m.usersByID {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return domain.User{}, m.failWith
	}
	for _, u := range m.usersByID {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *mockUserRepo) GetByVerificationToken(_ context.Context, token string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.VerificationToken != "" && u.VerificationToken == token })
}

func (m *mockUserRepo) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	return m.find(func(u domain.User) bool {
		return u.PasswordResetToken != "" && u.PasswordResetToken == tokenHash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	_, err := m.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) && u.ID != excludeID })
	return err == nil, nil
}

func (m *mockUserRepo) ExistsByUsername(_ context.Context, username, excludeID string) (bool, error) {
	_, err := m.find(func(u domain.User) bool { return u.Username == username && u.ID != excludeID })
	return err == nil, nil
}

// update aplica fn solo si cond se cumple, igual que un UPDATE ... WHERE.
func (m *mockUserRepo) update(id string, cond func(domain.User) bool, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.usersByID[id]
	if !ok || (cond != nil && !cond(u)) {
		return pgx.ErrNoRows
	}
	fn(&u)
	m.usersByID[id] = u
	return nil
}

func (m *mockUserRepo) MarkEmailVerified(_ context.Context, id, token string) error {
	return m.update(id,
		func(u domain.User) bool { return u.VerificationToken == token },
		func(u *domain.User) {
			u.IsEmailVerified = true
			u.VerificationToken = ""
		})
}

func (m *mockUserRepo) SetVerificationToken(_ context.Context, id, token string) error {
	return m.update(id, nil, func(u *domain.User) { u.VerificationToken = token })
}

func (m *mockUserRepo) SetPasswordReset(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return m.update(id, nil, func(u *domain.User) {
		u.PasswordResetToken = tokenHash
		u.PasswordResetExpires = &expiresAt
	})
}

func (m *mockUserRepo) CompletePasswordReset(_ context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	return m.update(id,
		func(u domain.User) bool {
			return u.PasswordResetToken == tokenHash && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
		},
		func(u *domain.User) {
			u.PasswordHash = passwordHash
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
		})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, nil, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, user domain.User) error {
	m.mu.Lock()
	for _, u := range m.usersByID {
		if u.ID == user.ID {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) {
			m.mu.Unlock()
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			m.mu.Unlock()
			return repository.ErrDuplicateUsername
		}
	}
	m.mu.Unlock()
	return m.update(user.ID, nil, func(u *domain.User) {
		u.Username = user.Username
		u.Email = user.Email
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.IsEmailVerified = user.IsEmailVerified
		u.VerificationToken = user.VerificationToken
	})
}

func (m *mockUserRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.usersByID, id)
}

type sentEmail struct {
	kind      string
	to        string
	token     string
	expiresAt time.Time
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockEmailSender) SendEmailVerification(_ context.Context, toEmail, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{kind: "verify", to: toEmail, token: token})
	return m.err
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, toEmail, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{kind: "reset", to: toEmail, token: token, expiresAt: expiresAt})
	return m.err
}

func (m *mockEmailSender) last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentEmail{}
	}
	return m.sent[len(m.sent)-1]
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string) bool { return true }
