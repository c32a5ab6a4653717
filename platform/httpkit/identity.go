// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the caller's identity. Anonymous visitors are valid
// callers for most of the funnel, so an unauthenticated identity is not an
// error by itself.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// IsAuthenticated returns true if the caller presented a valid token.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	userID        uuid.UUID
	authenticated bool
}

func (i *identity) UserID() uuid.UUID {
	return i.userID
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// Anonymous returns an unauthenticated identity.
func Anonymous() Identity {
	return &identity{authenticated: false}
}

// Authenticated returns an identity for the given user ID.
func Authenticated(userID uuid.UUID) Identity {
	return &identity{userID: userID, authenticated: true}
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	return &identity{userID: uid, authenticated: true}
}

// MustGetIdentity extracts the Identity from a Gin context and aborts with
// 401 when the caller is not authenticated. Returns nil after aborting.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		Error(c, http.StatusUnauthorized, "authentication required", nil)
		c.Abort()
		return nil
	}
	return id
}
