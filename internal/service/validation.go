package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"pantry-to-plate/internal/domain"
)

const (
	minPasswordLen = 8
	// bcrypt ignora todo lo que pase de 72 bytes.
	maxPasswordLen = 72
)

var validate = validator.New()

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return domain.BadRequest("please provide a valid email")
	}
	return nil
}

func validateUsername(username string) error {
	if err := validate.Var(username, "min=3,max=30"); err != nil {
		return domain.BadRequest("username must be between 3 and 30 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return domain.BadRequest("password must be between 8 and 72 bytes")
	}
	return nil
}
