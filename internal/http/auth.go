package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer  = "catatan-keuangan"
	userIDKey    = "userID"
	bearerPrefix = "Bearer"
)

var errInvalidToken = errors.New("invalid token")

// tokens issues and verifies HS256 session tokens whose subject is the user id.
type tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokens(secret string, ttl time.Duration, now func() time.Time) *tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &tokens{secret: []byte(secret), ttl: ttl, now: now}
}

func (t *tokens) issue(userID int64) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (t *tokens) parse(raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || claims.ExpiresAt == nil {
		return 0, errInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidToken
	}
	return id, nil
}

// requireAuth accepts "Authorization: Bearer <token>" and, for download
// links, a token query parameter.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if header := c.GetHeader("Authorization"); header != "" {
			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, bearerPrefix) {
				abortError(c, http.StatusUnauthorized, "invalid authorization header")
				return
			}
			raw = strings.TrimSpace(value)
		} else {
			raw = c.Query("token")
		}
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := s.tokens.parse(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		// The user may have been removed from a snapshot-restored store.
		if _, err := s.ledger.Store().GetUser(c.Request.Context(), userID); err != nil {
			abortError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
