package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Context keys set by RequireAuth
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	contextGrants   = "grants"
)

var errMissingToken = errors.New("authorization is missing")

// ParseToken validates an HS256 access token and returns its claims.
// sub and role must both be present.
func ParseToken(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if role, _ := claims["role"].(string); role == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Auth holds what the auth middlewares need: the signing key, the grants
// resolver and the cookie policy
type Auth struct {
	secret  []byte
	access  service.AccessService
	secure  bool
	logger  *zap.Logger
	refresh time.Duration
	ttl     time.Duration
}

// NewAuth builds the middleware set. secure switches cookies to
// SameSite=None; Secure for cross-origin production deployments.
func NewAuth(secret []byte, access service.AccessService, accessTTL, refreshTTL time.Duration, secure bool, logger *zap.Logger) *Auth {
	return &Auth{
		secret:  secret,
		access:  access,
		secure:  secure,
		logger:  logger,
		ttl:     accessTTL,
		refresh: refreshTTL,
	}
}

// tokenFrom reads the access_token cookie, falling back to a Bearer header
func tokenFrom(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireAuth validates the JWT and stores the user id and role on the context
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFrom(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthorized: "+err.Error()))
			return
		}
		claims, err := ParseToken(tokenString, a.secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		c.Set(ContextUserID, claims["sub"].(string))
		c.Set(ContextUserRole, claims["role"].(string))
		c.Next()
	}
}

// grants loads the caller's role grants once per request
func (a *Auth) grants(c *gin.Context) (*service.Grants, bool) {
	if g, ok := c.Get(contextGrants); ok {
		return g.(*service.Grants), true
	}
	g, err := a.access.Grants(c.Request.Context(), UserRole(c))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: role no longer exists"))
			return nil, false
		}
		a.logger.Error("failed to resolve role grants", zap.String("role", UserRole(c)), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
		return nil, false
	}
	c.Set(contextGrants, g)
	return g, true
}

// RequirePermission lets the request through when the caller's role has
// action on module at any scope. "owned" passes here; this API has no
// per-record owner to narrow it further. Must run after RequireAuth.
func (a *Auth) RequirePermission(module string, action model.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, ok := a.grants(c)
		if !ok {
			return
		}
		if !g.Can(module, action) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				response.Error(http.StatusForbidden, "Access denied: missing '"+string(action)+"' permission on '"+module+"'"))
			return
		}
		c.Next()
	}
}

// RequireMethodPermission is RequirePermission with the action taken from
// the HTTP method: GET view, POST add, PUT and PATCH update, DELETE delete
func (a *Auth) RequireMethodPermission(module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		action, ok := methodAction[c.Request.Method]
		if !ok {
			action = model.ActionView
		}
		a.RequirePermission(module, action)(c)
	}
}

var methodAction = map[string]model.Action{
	http.MethodGet:    model.ActionView,
	http.MethodHead:   model.ActionView,
	http.MethodPost:   model.ActionAdd,
	http.MethodPut:    model.ActionUpdate,
	http.MethodPatch:  model.ActionUpdate,
	http.MethodDelete: model.ActionDelete,
}

// RequireModule blocks requests to a module switched off for the caller's role
func (a *Auth) RequireModule(key modules.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, ok := a.grants(c)
		if !ok {
			return
		}
		if !g.Modules[key] {
			c.AbortWithStatusJSON(http.StatusForbidden,
				response.Error(http.StatusForbidden, "Access denied: module '"+string(key)+"' is disabled for your role"))
			return
		}
		c.Next()
	}
}

// ModuleEnabled reports whether module key is switched on for role. Unknown
// roles see nothing. For callers outside a gin route, such as the socket upgrade.
func (a *Auth) ModuleEnabled(ctx context.Context, role string, key modules.Key) (bool, error) {
	g, err := a.access.Grants(ctx, role)
	if errors.Is(err, service.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.Modules[key], nil
}

// LoadGrants resolves the caller's grants without checking any of them, for
// handlers that shape their output by role. Read them with CurrentGrants.
func (a *Auth) LoadGrants() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.grants(c); !ok {
			return
		}
		c.Next()
	}
}

// CurrentGrants returns grants loaded by an earlier guard, nil if none ran
func CurrentGrants(c *gin.Context) *service.Grants {
	if g, ok := c.Get(contextGrants); ok {
		return g.(*service.Grants)
	}
	return nil
}

// UserID returns the authenticated user's id, or "" before RequireAuth
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// UserRole returns the authenticated user's role name
func UserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}

func (a *Auth) cookiePolicy(c *gin.Context) bool {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	if a.secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	return a.secure
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (a *Auth) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	secure := a.cookiePolicy(c)
	c.SetCookie("access_token", accessToken, int(a.ttl.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, int(a.refresh.Seconds()), "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (a *Auth) ClearTokenCookies(c *gin.Context) {
	secure := a.cookiePolicy(c)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}
