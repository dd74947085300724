package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/email"
	"pantry-to-plate/internal/repository"
)

const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidSideToken   = "invalid or expired token"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgEmailTaken         = "email already in use"
	msgUsernameTaken      = "username already in use"
	msgNoUserForEmail     = "no user found with that email"
	msgUserNotFound       = "user not found"
	msgWrongPassword      = "current password is incorrect"
	msgTooManyRequests    = "too many requests, try again later"

	tokenTypeBearer = "Bearer"
)

// AuthService coordina registro, login, tokens de un solo uso y sesiones.
type AuthService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	hasher       PasswordHasher
	tokens       *TokenIssuer
	emailSender  email.Sender
	resetLimiter RequestLimiter
	now          func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	emailSender email.Sender,
	resetLimiter RequestLimiter,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetLimiter == nil {
		resetLimiter = NewRequestLimiter(ResetTokenTTL, 3)
	}
	return &AuthService{
		logger:       logger,
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		emailSender:  emailSender,
		resetLimiter: resetLimiter,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	if username == "" || emailAddr == "" || input.Password == "" {
		return domain.User{}, domain.BadRequest("please provide username, email and password")
	}
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := validateEmail(emailAddr); err != nil {
		return domain.User{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return domain.User{}, err
	}

	if err := ensureAvailable(ctx, s.users, emailAddr, username, ""); err != nil {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	verificationToken, err := NewSideToken()
	if err != nil {
		return domain.User{}, fmt.Errorf("verification token: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             emailAddr,
		PasswordHash:      passwordHash,
		FirstName:         strings.TrimSpace(input.FirstName),
		LastName:          strings.TrimSpace(input.LastName),
		Role:              domain.RoleUser,
		VerificationToken: verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, mapDuplicate(err, "create user")
	}

	s.sendVerification(ctx, user.Email, verificationToken)
	return user, nil
}

// Login responde con el mismo error para email desconocido y contraseña
// incorrecta, y en ambos casos paga el costo de un bcrypt.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, domain.BadRequest("please provide email and password")
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.VerifyDummy(ctx, password)
			return domain.User{}, domain.Unauthorized(msgInvalidCredentials)
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.User{}, domain.Unauthorized(msgInvalidCredentials)
	}
	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, domain.BadRequest(msgInvalidSideToken)
	}

	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.BadRequest(msgInvalidSideToken)
		}
		return domain.User{}, fmt.Errorf("get user by verification token: %w", err)
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.BadRequest(msgInvalidSideToken)
		}
		return domain.User{}, fmt.Errorf("mark email verified: %w", err)
	}

	user.IsEmailVerified = true
	user.VerificationToken = ""
	return user, nil
}

// ResendVerification emite un token nuevo para una cuenta sin verificar.
// No revela si la cuenta existe o ya está verificada.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.BadRequest("please provide email")
	}
	if !s.resetLimiter.Allow(ctx, "verify:"+emailAddr) {
		return domain.TooManyRequests(msgTooManyRequests)
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}
	if user.IsEmailVerified {
		return nil
	}

	token, err := NewSideToken()
	if err != nil {
		return fmt.Errorf("verification token: %w", err)
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("set verification token: %w", err)
	}
	s.sendVerification(ctx, user.Email, token)
	return nil
}

// RequestPasswordReset guarda el hash de un token nuevo y devuelve el token
// crudo. Cada llamada reemplaza al token anterior.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return "", domain.BadRequest("please provide email")
	}
	if !s.resetLimiter.Allow(ctx, "reset:"+emailAddr) {
		return "", domain.TooManyRequests(msgTooManyRequests)
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFound(msgNoUserForEmail)
		}
		return "", fmt.Errorf("get user by email: %w", err)
	}

	raw, err := NewSideToken()
	if err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	expiresAt := s.now().Add(ResetTokenTTL)
	if err := s.users.SetPasswordReset(ctx, user.ID, HashSideToken(raw), expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFound(msgNoUserForEmail)
		}
		return "", fmt.Errorf("set password reset: %w", err)
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordReset(ctx, user.Email, raw, expiresAt); err != nil {
			s.logger.Warn("send password reset failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}
	return raw, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.BadRequest(msgInvalidSideToken)
	}
	if newPassword == "" {
		return domain.BadRequest("please provide password")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	tokenHash := HashSideToken(token)
	user, err := s.users.GetByResetToken(ctx, tokenHash, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BadRequest(msgInvalidSideToken)
		}
		return fmt.Errorf("get user by reset token: %w", err)
	}

	passwordHash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.CompletePasswordReset(ctx, user.ID, tokenHash, passwordHash, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BadRequest(msgInvalidSideToken)
		}
		return fmt.Errorf("complete password reset: %w", err)
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return domain.BadRequest("please provide current password and new password")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(msgUserNotFound)
		}
		return fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.Unauthorized(msgWrongPassword)
	}

	passwordHash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(msgUserNotFound)
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) IssueSession(userID string) (domain.Session, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Refresh emite un par nuevo. El refresh token usado sigue siendo válido
// hasta su expiración: no hay lista de revocación.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.Session{}, domain.Unauthorized(msgInvalidRefresh)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.Unauthorized(msgInvalidRefresh)
		}
		return domain.Session{}, fmt.Errorf("get user: %w", err)
	}
	return s.IssueSession(userID)
}

func (s *AuthService) sendVerification(ctx context.Context, to, token string) {
	if s.emailSender == nil {
		return
	}
	if err := s.emailSender.SendEmailVerification(ctx, to, token); err != nil {
		s.logger.Warn("send email verification failed", zap.Error(err), zap.String("email", to))
	}
}

// ensureAvailable revisa email y username por separado para que cada
// conflicto tenga su propio mensaje. excludeID deja fuera al propio usuario.
func ensureAvailable(ctx context.Context, users repository.UserRepository, emailAddr, username, excludeID string) error {
	if emailAddr != "" {
		taken, err := users.ExistsByEmail(ctx, emailAddr, excludeID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return domain.Conflict(msgEmailTaken)
		}
	}
	if username != "" {
		taken, err := users.ExistsByUsername(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return domain.Conflict(msgUsernameTaken)
		}
	}
	return nil
}

// mapDuplicate traduce la violación de unicidad que cierra la carrera entre
// el chequeo previo y la escritura.
func mapDuplicate(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return domain.Conflict(msgEmailTaken)
	case errors.Is(err, repository.ErrDuplicateUsername):
		return domain.Conflict(msgUsernameTaken)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
