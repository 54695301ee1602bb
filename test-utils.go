package surveyforge

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/surveyforge/surveyforge/config"
)

const (
	adminUserID  = 1
	viewerUserID = 2
)

func createToken(t *testing.T, userID int64, role string, secret string) string {
	t.Helper()

	auth := NewAuth(config.AuthConfig{Secret: secret})

	accessToken, err := auth.CreateToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute * 15)),
		},
		UserID:   userID,
		Username: "tester",
		Role:     role,
	})
	require.NoError(t, err)

	return accessToken
}
