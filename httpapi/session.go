package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookie   = "token"
	ctxSessionEmail = "sessionEmail"
)

type SessionClaims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// SessionManager issues and verifies the HS256 session cookie.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

func (m *SessionManager) Issue(email string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		Email: email,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *SessionManager) Verify(token string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

func (m *SessionManager) setCookie(c *gin.Context, value string, maxAge int) {
	if m.secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteStrictMode)
	}
	c.SetCookie(SessionCookie, value, maxAge, "/", "", m.secure, true)
}

// RequireSession rejects requests without a valid session cookie.
func (m *SessionManager) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized access"})
			return
		}
		claims, err := m.Verify(token)
		if err != nil {
			logFromContext(c).WithField("reason", err.Error()).Info("session rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized access"})
			return
		}
		c.Set(ctxSessionEmail, claims.Email)
		c.Next()
	}
}

// ownsResource aborts with 403 when the session belongs to another owner.
func ownsResource(c *gin.Context, ownerEmail string) bool {
	email := c.GetString(ctxSessionEmail)
	if email == "" || strings.EqualFold(email, ownerEmail) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden access"})
	return false
}

// RequireAdmin lets through only sessions whose email is in admins. It must
// run after RequireSession.
func RequireAdmin(admins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		allowed[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[strings.ToLower(c.GetString(ctxSessionEmail))]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden access"})
			return
		}
		c.Next()
	}
}

// sessionRequest backs /jwt, which stands in for the external credential
// service: it trusts the posted email and only mints the session cookie.
type sessionRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Server) issueSession(c *gin.Context) {
	var req sessionRequest
	if !bind(c, &req) {
		return
	}
	token, err := s.sessions.Issue(req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	s.sessions.setCookie(c, token, int(s.sessions.ttl.Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
