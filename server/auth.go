package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

const accessTokenLifetime = 24 * time.Hour

func makeToken(subject string, exp time.Time) jwt.Token {
	tok := jwt.New()
	tok.Set("scope", "dirt.access")
	tok.Set("sub", subject)
	tok.Set("iat", time.Now().Unix())
	tok.Set("exp", exp.Unix())

	return tok
}

func (s *Server) createAuthTokenForUser(user *models.User) (string, error) {
	tok := makeToken(strconv.FormatUint(uint64(user.ID), 10), time.Now().Add(accessTokenLifetime))

	sig, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.jwtSigningKey))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}

	return string(sig), nil
}

func (s *Server) userFromToken(ctx context.Context, raw string) (*models.User, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.jwtSigningKey), jwt.WithValidate(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnauthorized, err)
	}

	uid, err := strconv.ParseUint(tok.Subject(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", models.ErrUnauthorized)
	}

	user, err := s.cstore.GetUser(ctx, uint(uid))
	if err != nil {
		if models.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown user", models.ErrUnauthorized)
		}
		return nil, err
	}

	return user, nil
}

// authMiddleware resolves the calling user from a bearer token and rejects
// calls without one before any state changes. Routes in the skipper run
// unauthenticated.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if publicRoute(c) {
			return next(c)
		}

		hdr := c.Request().Header.Get("Authorization")
		if hdr == "" || !strings.HasPrefix(hdr, "Bearer ") {
			return fmt.Errorf("%w: missing bearer token", models.ErrUnauthorized)
		}

		user, err := s.userFromToken(c.Request().Context(), strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			return err
		}

		c.SetRequest(c.Request().WithContext(withUser(c.Request().Context(), user)))
		return next(c)
	}
}

func publicRoute(c echo.Context) bool {
	switch c.Path() {
	case "/health", "/metrics", "/account.create", "/session.create":
		return true
	case "/content.list", "/reputation.get":
		return true
	default:
		return false
	}
}
