package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "current_user"

// LoadUser attaches the session's user, if any, to the context.
func LoadUser(sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := sessions.Load(c)
		switch {
		case err == nil:
			c.Set(currentUserKey, u)
		case errors.Is(err, ErrInvalidSession):
			// anonymous
		default:
			serverError(c, err)
			return
		}
		c.Next()
	}
}

// LoginRequired sends anonymous visitors to the login page.
func LoginRequired(sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUser(c); !ok {
			sessions.AddFlash(c, "Please log in to access this page.")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentUser returns the authenticated user for this request.
func currentUser(c *gin.Context) (*User, bool) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok && u != nil
}
