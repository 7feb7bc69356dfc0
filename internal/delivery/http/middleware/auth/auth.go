package http_auth_middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	http_common "github.com/cinematch/core/internal/delivery/http/common"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

const ContextUserID = "auth_user_id"

// Middleware verifies the Authorization bearer JWT and exposes the
// subject user id to handlers. Token issuance lives in a separate
// auth service; this side only verifies.
type Middleware struct {
	secret []byte
}

func New(secret string) *Middleware {
	return &Middleware{secret: []byte(secret)}
}

func (m *Middleware) UserIDFromToken(token string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return userID, nil
}

func (m *Middleware) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, http_common.ErrorResponse{
				Message: "bearer token required",
			})
			return
		}

		userID, err := m.UserIDFromToken(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, http_common.ErrorResponse{
				Message: "invalid token",
			})
			return
		}

		ctx.Set(ContextUserID, userID)
		ctx.Next()
	}
}

// UserID reads the authenticated user set by Handler.
func UserID(ctx *gin.Context) (uuid.UUID, bool) {
	v, ok := ctx.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok
}
