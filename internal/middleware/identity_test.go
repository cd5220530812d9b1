package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub uint64) string {
    t.Helper()
    claims := jwt.MapClaims{
        "sub":  sub,
        "role": "CUSTOMER",
        "exp":  time.Now().Add(time.Hour).Unix(),
    }
    s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
    require.NoError(t, err)
    return s
}

func runChain(t *testing.T, req *http.Request, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, echo.Context) {
    t.Helper()
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    for i := len(mws) - 1; i >= 0; i-- {
        h = mws[i](h)
    }
    require.NoError(t, h(c))
    return rec, c
}

func TestOwnerKeyFromJWT(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    req.Header.Set("Authorization", "Bearer "+signedToken(t, 42))

    rec, c := runChain(t, req, OptionalJWTAuth(testSecret), OwnerKey())

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "user:42", c.Get("owner_key"))
}

func TestOwnerKeyFromGuestToken(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    req.Header.Set(GuestTokenHeader, "3f1c9f0e-7c44-4b5a-9a1d-2b8f0c6d1e55")

    rec, c := runChain(t, req, OptionalJWTAuth(testSecret), OwnerKey())

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "guest:3f1c9f0e-7c44-4b5a-9a1d-2b8f0c6d1e55", c.Get("owner_key"))
}

func TestOwnerKeyRejectsAnonymous(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/", nil)

    rec, _ := runChain(t, req, OptionalJWTAuth(testSecret), OwnerKey())
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnerKeyRejectsShortGuestToken(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    req.Header.Set(GuestTokenHeader, "abc")

    rec, _ := runChain(t, req, OptionalJWTAuth(testSecret), OwnerKey())
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalJWTAuthRejectsInvalidToken(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    req.Header.Set("Authorization", "Bearer not-a-token")

    rec, _ := runChain(t, req, OptionalJWTAuth(testSecret))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTAuthPassesWithoutToken(t *testing.T) {
    req := httptest.NewRequest(http.MethodGet, "/", nil)

    rec, c := runChain(t, req, OptionalJWTAuth(testSecret))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Nil(t, c.Get("user_id"))
}
