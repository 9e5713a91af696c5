package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
)

// HashPassword derives the stored bcrypt hash for a plain password. bcrypt
// silently truncates past 72 bytes, so over-long input is rejected instead.
func HashPassword(password string) (string, error) {
	if len(password) > MAX_PASSWORD_LENGTH {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Password so long, maximum length is %d", MAX_PASSWORD_LENGTH),
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash plain password to hashed password: %w", err)
	}
	return string(hashed), nil
}

// ComparePasswords reports whether the plain password matches the stored hash.
func ComparePasswords(hashedPwd string, plainPwd string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPwd), []byte(plainPwd)) == nil
}
