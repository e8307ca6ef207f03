package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-1", "role": role, "exp": time.Now().Add(time.Hour).Unix()}
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(sign(t, testSecret, validClaims("Teacher")), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "Teacher", claims["role"])

	_, err = ParseToken(sign(t, []byte("other"), validClaims("Teacher")), testSecret)
	assert.Error(t, err)

	expired := validClaims("Teacher")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = ParseToken(sign(t, testSecret, expired), testSecret)
	assert.Error(t, err)

	_, err = ParseToken(sign(t, testSecret, jwt.MapClaims{"sub": "user-1"}), testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}

type stubAccess struct {
	grants map[string]*service.Grants
	calls  int
}

func (s *stubAccess) Grants(_ context.Context, role string) (*service.Grants, error) {
	s.calls++
	g, ok := s.grants[role]
	if !ok {
		return nil, service.ErrNotFound
	}
	return g, nil
}

func (s *stubAccess) Invalidate(context.Context, string) {}

func newTestRouter(access service.AccessService, guards ...gin.HandlerFunc) *gin.Engine {
	auth := NewAuth(testSecret, access, time.Hour, 24*time.Hour, false, zap.NewNop())
	r := gin.New()
	handlers := append([]gin.HandlerFunc{auth.RequireAuth()}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	r.Any("/x", handlers...)
	return r
}

func do(r http.Handler, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newTestRouter(&stubAccess{})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "garbage").Code)

	w := do(r, http.MethodGet, sign(t, testSecret, validClaims("Teacher")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: sign(t, testSecret, validClaims("Teacher"))})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "cookie takes the place of the header")
}

func teacherGrants() *service.Grants {
	return &service.Grants{
		Role:    "Teacher",
		Modules: modules.Visibility{modules.Exams: true},
		Permissions: map[string]map[model.Action]model.Access{
			"exams": {
				model.ActionView:   model.AccessAll,
				model.ActionAdd:    model.AccessOwned,
				model.ActionUpdate: model.AccessOwned,
				model.ActionDelete: model.AccessNone,
			},
		},
	}
}

func TestRequireMethodPermission(t *testing.T) {
	access := &stubAccess{grants: map[string]*service.Grants{"Teacher": teacherGrants()}}
	auth := NewAuth(testSecret, access, time.Hour, time.Hour, false, zap.NewNop())
	r := newTestRouter(access, auth.RequireMethodPermission("exams"))
	token := sign(t, testSecret, validClaims("Teacher"))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, token).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, token).Code, "owned passes the route guard")
	assert.Equal(t, http.StatusOK, do(r, http.MethodPatch, token).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, token).Code)

	ghost := sign(t, testSecret, validClaims("Ghost"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, ghost).Code)
}

func TestRequireModuleLoadsGrantsOnce(t *testing.T) {
	access := &stubAccess{grants: map[string]*service.Grants{"Teacher": teacherGrants()}}
	auth := NewAuth(testSecret, access, time.Hour, time.Hour, false, zap.NewNop())
	token := sign(t, testSecret, validClaims("Teacher"))

	r := newTestRouter(access, auth.RequireModule(modules.Exams), auth.RequirePermission("exams", model.ActionView))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, token).Code)
	assert.Equal(t, 1, access.calls)

	r = newTestRouter(access, auth.RequireModule(modules.Fees))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, token).Code)
}

func TestCurrentGrants(t *testing.T) {
	access := &stubAccess{grants: map[string]*service.Grants{"Teacher": teacherGrants()}}
	auth := NewAuth(testSecret, access, time.Hour, time.Hour, false, zap.NewNop())

	var seen *service.Grants
	r := gin.New()
	r.GET("/x", auth.RequireAuth(), auth.LoadGrants(), func(c *gin.Context) {
		seen = CurrentGrants(c)
		c.Status(http.StatusNoContent)
	})
	w := do(r, http.MethodGet, sign(t, testSecret, validClaims("Teacher")))
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "Teacher", seen.Role)
}
