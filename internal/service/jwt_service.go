package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "pantry-to-plate"

	// ResetTokenTTL es la vigencia fija de un token de reseteo de contraseña.
	ResetTokenTTL = 10 * time.Minute

	sideTokenBytes = 32
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")

	ErrSigningSecretMissing = errors.New("signing secret missing")
	ErrSigningSecretShared  = errors.New("access and refresh secrets must differ")
)

// TokenConfig agrupa los secretos y vigencias de los dos dominios de firma.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

type signingDomain struct {
	secret    []byte
	ttl       time.Duration
	tokenType string
}

// TokenIssuer emite y valida access y refresh tokens JWT. Cada tipo tiene su
// propio secreto, así filtrar uno no permite falsificar el otro.
type TokenIssuer struct {
	access  signingDomain
	refresh signingDomain
	issuer  string
	now     func() time.Time
}

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, ErrSigningSecretMissing
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSigningSecretShared
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = defaultIssuer
	}
	return &TokenIssuer{
		access:  signingDomain{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL, tokenType: tokenTypeAccess},
		refresh: signingDomain{secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL, tokenType: tokenTypeRefresh},
		issuer:  cfg.Issuer,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// AccessTTL expone la vigencia de los access tokens para expires_in.
func (s *TokenIssuer) AccessTTL() time.Duration {
	return s.access.ttl
}

func (s *TokenIssuer) IssueAccess(userID string) (string, error) {
	return s.sign(s.access, userID)
}

func (s *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return s.sign(s.refresh, userID)
}

// VerifyAccess devuelve el subject de un access token válido.
func (s *TokenIssuer) VerifyAccess(token string) (string, error) {
	return s.verify(s.access, token)
}

// VerifyRefresh devuelve el subject de un refresh token válido.
func (s *TokenIssuer) VerifyRefresh(token string) (string, error) {
	return s.verify(s.refresh, token)
}

func (s *TokenIssuer) sign(d signingDomain, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrTokenInvalid
	}
	now := s.now()
	claims := Claims{
		TokenType: d.tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}

func (s *TokenIssuer) verify(d signingDomain, tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrTokenInvalid
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return d.secret, nil
	})
	if err != nil {
		// La firma se comprueba antes que exp, así un token ajeno nunca
		// se reporta como expirado.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if claims.TokenType != d.tokenType {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// NewSideToken genera un secreto aleatorio, URL-safe, para verificación de
// email o reseteo de contraseña.
func NewSideToken() (string, error) {
	buf := make([]byte, sideTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSideToken es el hash que se persiste en lugar del token crudo.
func HashSideToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
