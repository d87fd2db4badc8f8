package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "restock/internal/core/context"
	"restock/internal/core/id"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "restock-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID:         id.New().String(),
		OrganizationID: id.New().String(),
		Email:          "cashier@example.com",
		Roles:          []string{"stock_operator"},
	}
}

func TestValidateToken(t *testing.T) {
	v := NewTokenValidator(testSecret, "restock-identity")
	claims := validClaims()

	user, err := v.ValidateToken(signToken(t, testSecret, claims))
	require.NoError(t, err)

	assert.Equal(t, claims.UserID, user.UserID.String())
	assert.Equal(t, claims.OrganizationID, user.OrganizationID.String())
	assert.Equal(t, "cashier@example.com", user.Email)
	assert.Equal(t, []string{"stock_operator"}, user.Roles)
	assert.False(t, user.IsAdmin)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	v := NewTokenValidator(testSecret, "")

	_, err := v.ValidateToken(signToken(t, "other-secret", validClaims()))
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	v := NewTokenValidator(testSecret, "restock-identity")
	claims := validClaims()
	claims.Issuer = "someone-else"

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateTokenMissingOrganization(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.OrganizationID = ""

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateTokenRejectsNone(t *testing.T) {
	v := NewTokenValidator(testSecret, "")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ValidateToken(unsigned)
	assert.Error(t, err)
}

func newAuthRouter(v *TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(Auth(v))
	r.GET("/whoami", func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": user.UserID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	r := newAuthRouter(v)

	t.Run("valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewTokenValidator(testSecret, "")

	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(Auth(v))
	r.POST("/admin-only", RequireRole("manager"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	operator := signToken(t, testSecret, validClaims())

	manager := validClaims()
	manager.Roles = []string{"manager"}
	managerToken := signToken(t, testSecret, manager)

	req := httptest.NewRequest(http.MethodPost, "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+operator)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+managerToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
