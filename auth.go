package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookie = "session"

var ErrInvalidSession = errors.New("invalid session")

// ========================
// PASSWORDS
// ========================

// bcrypt only reads 72 bytes, so passwords are digested to a fixed 44 first.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}

// dummyHash stands in for a missing account so unknown emails cost one bcrypt
// comparison like known ones.
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("no such user")
	if err != nil {
		panic(err)
	}
	return hash
})

// VerifyLogin reports whether password belongs to u. A nil u always fails.
func VerifyLogin(u *User, password string) bool {
	if u == nil {
		CheckPassword(dummyHash(), password)
		return false
	}
	return CheckPassword(u.Password, password)
}

// ========================
// SESSION TOKENS
// ========================

type SessionClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

func GenerateToken(secret []byte, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(secret []byte, tokenString string) (uint, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidSession
	}
	return claims.UserID, nil
}

// ========================
// SESSION MANAGER
// ========================

// UserLoader resolves a session's user id to a User.
type UserLoader interface {
	UserByID(ctx context.Context, id uint) (*User, error)
}

// SessionManager keeps the logged-in user id in a signed cookie.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	users  UserLoader
}

func NewSessionManager(secret string, ttl time.Duration, secure bool, users UserLoader) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		users:  users,
	}
}

// Login starts an authenticated session for u.
func (m *SessionManager) Login(c *gin.Context, u *User) error {
	token, err := GenerateToken(m.secret, u.ID, m.ttl)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
	return nil
}

func (m *SessionManager) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", m.secure, true)
}

// Load returns the user behind the request's session cookie. A missing or
// invalid cookie, or a user that no longer exists, yields ErrInvalidSession.
func (m *SessionManager) Load(c *gin.Context) (*User, error) {
	raw, err := c.Cookie(sessionCookie)
	if err != nil || raw == "" {
		return nil, ErrInvalidSession
	}

	userID, err := ParseToken(m.secret, raw)
	if err != nil {
		return nil, err
	}

	u, err := m.users.UserByID(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidSession
	}
	return u, err
}
