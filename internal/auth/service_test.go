package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
)

func TestHashPassword(t *testing.T) {
	plain := "messi10"

	hash, err := HashPassword(plain)
	require.NoError(t, err)

	require.True(t, ComparePasswords(hash, plain))
	require.False(t, ComparePasswords(hash, "wrong-password"))
}

func TestHashPasswordRejectsOverlongInput(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MAX_PASSWORD_LENGTH+1))
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrInvalidInput))
}

func TestValidateUserFields(t *testing.T) {
	valid := NewUser{
		UserName:      "john_doe",
		Email:         "john.doe@gmail.com",
		PasswordPlain: "secret",
	}
	require.NoError(t, valid.ValidateUserFields())

	badName := valid
	badName.UserName = "John Doe!"
	require.Error(t, badName.ValidateUserFields())

	badEmail := valid
	badEmail.Email = "not-an-email"
	require.Error(t, badEmail.ValidateUserFields())

	noPassword := valid
	noPassword.PasswordPlain = ""
	require.Error(t, noPassword.ValidateUserFields())
}
