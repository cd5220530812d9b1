package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in getUserID
    "strconv" // strconv converts strings to numeric types

    "github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        // JWT numeric claims decode as float64
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// optionalUserID returns a pointer to the authenticated user's ID, or
// nil for guest requests.
func optionalUserID(c echo.Context) *uint64 {
    if uid, err := getUserID(c); err == nil && uid != 0 {
        return &uid
    }
    return nil
}

// getOwnerKey reads the lease owner key set by the OwnerKey middleware.
func getOwnerKey(c echo.Context) (string, error) {
    if s, ok := c.Get("owner_key").(string); ok && s != "" {
        return s, nil
    }
    return "", errors.New("missing owner key in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid " + name)
    }
    return id, nil
}
