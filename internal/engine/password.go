package engine

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var errInvalidPassword = apiError(http.StatusBadRequest, "INVALID_PASSWORD_LENGTH", "Password must be between 8 and 72 characters")

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash *string, password string) bool {
	if hash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

func validatePasswordLength(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return errInvalidPassword
	}
	return nil
}
