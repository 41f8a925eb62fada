package middleware

import (
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CORSConfig returns CORS middleware for the editor UI. By default only the
// local dev servers the UI runs on may call the API; CLOUDPAD_UI_ORIGIN
// overrides the allowed origin for a hosted UI.
func CORSConfig() echo.MiddlewareFunc {
	origin := os.Getenv("CLOUDPAD_UI_ORIGIN")
	if origin == "" {
		return middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
			AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
			MaxAge:           86400,
		})
	}

	allowed := []string{origin}
	if strings.HasPrefix(origin, "https://") {
		// Keep plain http only for local origins.
		if host := strings.TrimPrefix(origin, "https://"); strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
			allowed = append(allowed, "http://"+host)
		}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowed,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

// SecurityHeaders adds baseline security headers to all API responses. The
// API serves JSON only, so scripts and embedding are locked down outright.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
