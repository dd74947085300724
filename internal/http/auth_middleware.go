package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
	"pantry-to-plate/internal/service"
)

const currentUserKey = "current_user"

const (
	codeMissingToken = "missing_token"
	codeTokenExpired = "token_expired"
	codeTokenInvalid = "token_invalid"
	codeUserNotFound = "user_not_found"
)

// AccessVerifier valida access tokens y devuelve el id del usuario.
type AccessVerifier interface {
	VerifyAccess(token string) (string, error)
}

// UserLookup resuelve el subject de un token a un usuario vigente.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// Authenticate exige un bearer access token válido cuyo subject siga
// existiendo y deja el usuario en el contexto.
func Authenticate(logger *zap.Logger, tokens AccessVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWith(c, http.StatusUnauthorized, codeMissingToken, "you are not logged in, please log in to get access")
			return
		}

		userID, err := tokens.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				abortWith(c, http.StatusUnauthorized, codeTokenExpired, "your token has expired, please refresh or log in again")
				return
			}
			abortWith(c, http.StatusUnauthorized, codeTokenInvalid, "invalid token, please log in again")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || domain.KindOf(err) == domain.KindNotFound {
				abortWith(c, http.StatusUnauthorized, codeUserNotFound, "the user belonging to this token no longer exists")
				return
			}
			respondError(c, logger, "resolve token subject", err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireRole se encadena después de Authenticate.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, string(domain.KindUnauthorized), "you are not logged in, please log in to get access")
			return
		}
		if !user.HasRole(roles...) {
			abortWith(c, http.StatusForbidden, string(domain.KindForbidden), "you do not have permission to perform this action")
			return
		}
		c.Next()
	}
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
