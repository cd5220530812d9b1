package middleware

// identity.go resolves the owner key for seat leases.  Authenticated
// requests derive it from the JWT subject; guests supply a client-side
// token in the X-Guest-Token header.  The owner key is the identity
// under which seat leases are acquired and later released, so the same
// key must be presented for the whole lock-to-payment flow.

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// GuestTokenHeader carries the guest's self-issued identity token.
const GuestTokenHeader = "X-Guest-Token"

// OptionalJWTAuth parses a Bearer token when one is present and stores
// the subject and role claims in the context, exactly like JWTAuth.
// Requests without a token pass through untouched; an invalid token is
// still rejected so clients notice expired sessions instead of being
// silently downgraded to guests.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return next(c)
            }
            raw := strings.TrimPrefix(auth, "Bearer ")
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            if claims, ok := tok.Claims.(jwt.MapClaims); ok {
                c.Set("user_id", claims["sub"])
                c.Set("role", claims["role"])
            }
            return next(c)
        }
    }
}

// OwnerKey computes the lease owner key for the request and stores it
// under "owner_key".  Authenticated users get "user:<id>"; guests must
// send a non-trivial X-Guest-Token and get "guest:<token>".  Requests
// with neither identity are rejected because a lease without a
// releasable owner would orphan the seat until the TTL fires.
func OwnerKey() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if key := ownerKeyFromContext(c); key != "" {
                c.Set("owner_key", key)
                return next(c)
            }
            return c.JSON(http.StatusBadRequest, echo.Map{
                "error": "authentication or " + GuestTokenHeader + " header required",
            })
        }
    }
}

func ownerKeyFromContext(c echo.Context) string {
    if uid := currentUserID(c); uid != "anon" {
        return "user:" + uid
    }
    token := strings.TrimSpace(c.Request().Header.Get(GuestTokenHeader))
    // Too-short tokens are likely guessable or accidental; refuse them.
    if len(token) < 16 || len(token) > 128 {
        return ""
    }
    return "guest:" + token
}
