package surveyforge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/surveyforge/surveyforge/config"
)

var (
	errAuthTokenIsInvalid  = errors.New("authorization token is invalid")
	errFailedRoleDetection = errors.New("failed role detection")
)

const (
	authorizationHeader = "Authorization"
	bearerSchema        = "Bearer"

	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Auth struct {
	cfg config.AuthConfig
}

func NewAuth(cfg config.AuthConfig) *Auth {
	return &Auth{
		cfg: cfg,
	}
}

// ValidateREST extracts the identity from the Authorization header. A
// missing header yields the anonymous identity (0, "") without error.
func (s *Auth) ValidateREST(ctx *gin.Context) (int64, string, error) {
	header := ctx.GetHeader(authorizationHeader)

	if len(header) == 0 {
		return 0, "", nil
	}

	tokenString := strings.TrimPrefix(header, bearerSchema+" ")

	return s.ValidateToken(tokenString)
}

func (s *Auth) ValidateToken(tokenString string) (int64, string, error) {
	if len(tokenString) == 0 {
		return 0, "", errAuthTokenIsInvalid
	}

	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", errAuthTokenIsInvalid, token.Header["alg"])
		}

		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", errAuthTokenIsInvalid, err)
	}

	if claims.Role == "" {
		return 0, "", fmt.Errorf("%w: subject: `%v`", errFailedRoleDetection, claims.Subject)
	}

	return claims.UserID, claims.Role, nil
}

// CreateToken issues a signed access token.
func (s *Auth) CreateToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.cfg.Secret))
}
