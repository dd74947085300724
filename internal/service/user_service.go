package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/email"
	"pantry-to-plate/internal/repository"
)

// UserService coordina reglas de negocio para el perfil de usuario.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NotFound(msgUserNotFound)
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile aplica los campos presentes en update. Cambiar el email
// vuelve la cuenta a no verificada y envía un token nuevo.
func (s *UserService) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	var newUsername, newEmail string
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if err := validateUsername(username); err != nil {
			return domain.User{}, err
		}
		if username != user.Username {
			newUsername = username
		}
	}
	if update.Email != nil {
		emailAddr := normalizeEmail(*update.Email)
		if err := validateEmail(emailAddr); err != nil {
			return domain.User{}, err
		}
		if emailAddr != user.Email {
			newEmail = emailAddr
		}
	}

	if err := ensureAvailable(ctx, s.users, newEmail, newUsername, user.ID); err != nil {
		return domain.User{}, err
	}

	if newUsername != "" {
		user.Username = newUsername
	}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if newEmail != "" {
		token, err := NewSideToken()
		if err != nil {
			return domain.User{}, fmt.Errorf("verification token: %w", err)
		}
		user.Email = newEmail
		user.IsEmailVerified = false
		user.VerificationToken = token
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NotFound(msgUserNotFound)
		}
		return domain.User{}, mapDuplicate(err, "update profile")
	}

	if newEmail != "" && s.emailSender != nil {
		if err := s.emailSender.SendEmailVerification(ctx, user.Email, user.VerificationToken); err != nil {
			s.logger.Warn("send email verification failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}
	return user, nil
}
