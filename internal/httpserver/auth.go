package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adforge/slotmarket/internal/role"
)

const (
	contextKeyUserID = "auth_user_id"
	contextKeyRole   = "auth_role"
)

var errMissingToken = errors.New("missing bearer token")

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware validates the bearer token and stores the caller's identity
// and role on the request context.
func authMiddleware(signingKey string, issuer string) gin.HandlerFunc {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(signingKey), nil
	}
	return func(ctx *gin.Context) {
		rawToken, err := bearerToken(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(rawToken, claims, keyFunc,
			jwt.WithIssuer(issuer),
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		callerRole, err := role.Parse(claims.Role)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "unknown role"))
			return
		}
		if claims.Subject == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing subject"))
			return
		}
		ctx.Set(contextKeyUserID, claims.Subject)
		ctx.Set(contextKeyRole, callerRole)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, error) {
	header := ctx.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMissingToken
	}
	return strings.TrimPrefix(header, prefix), nil
}

func callerIdentity(ctx *gin.Context) (string, role.Role) {
	userID := ctx.GetString(contextKeyUserID)
	roleValue, _ := ctx.Get(contextKeyRole)
	callerRole, _ := roleValue.(role.Role)
	return userID, callerRole
}
