package utils

import (
	"github.com/labstack/echo/v4"
)

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// ErrorResponse writes the {"status":"error","message":...} body used by every endpoint.
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{"status": "error", "message": message})
}
