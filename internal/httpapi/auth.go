package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

const (
	contextKeyClaims    = "auth_claims"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

var ErrInvalidAuthConfig = errors.New("invalid auth config")

// Authenticator validates tauth session tokens carried by the session cookie.
// Mobile clients may send the same token as a bearer header instead.
type Authenticator struct {
	validator  *sessionvalidator.Validator
	cookieName string
}

// NewAuthenticator builds an Authenticator for tokens signed with signingKey.
func NewAuthenticator(signingKey string, issuer string, cookieName string) (*Authenticator, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("%w: signing key is empty", ErrInvalidAuthConfig)
	}
	cookieName = strings.TrimSpace(cookieName)
	if cookieName == "" {
		return nil, fmt.Errorf("%w: cookie name is empty", ErrInvalidAuthConfig)
	}
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(signingKey),
		Issuer:     issuer,
		CookieName: cookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuthConfig, err)
	}
	return &Authenticator{validator: validator, cookieName: cookieName}, nil
}

// Middleware rejects requests without a valid session and stores the claims
// under auth_claims.
func (authenticator *Authenticator) Middleware() gin.HandlersChain {
	return gin.HandlersChain{authenticator.bearerAsCookie, authenticator.validator.GinMiddleware(contextKeyClaims)}
}

// bearerAsCookie copies a bearer token into the session cookie when the
// request carries no cookie of its own.
func (authenticator *Authenticator) bearerAsCookie(ctx *gin.Context) {
	if _, err := ctx.Request.Cookie(authenticator.cookieName); err == nil {
		ctx.Next()
		return
	}
	header := strings.TrimSpace(ctx.GetHeader(authorizationHeader))
	if token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); token != "" && strings.HasPrefix(header, bearerPrefix) {
		ctx.Request.AddCookie(&http.Cookie{Name: authenticator.cookieName, Value: token})
	}
	ctx.Next()
}

func currentUser(ctx *gin.Context) (booking.UserID, bool) {
	value, ok := ctx.Get(contextKeyClaims)
	if !ok {
		return booking.UserID{}, false
	}
	claims, ok := value.(*sessionvalidator.Claims)
	if !ok || claims == nil {
		return booking.UserID{}, false
	}
	userID, err := booking.NewUserID(claims.GetUserID())
	if err != nil {
		return booking.UserID{}, false
	}
	return userID, true
}
