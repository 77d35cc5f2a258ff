package sessions

import (
	"errors"
	"leica/authority"
	"leica/bizerror"
	"leica/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()

	errMissingIdentity = errors.New("identity.id is required")
)

// SessionGrant is pushed by the identity provider after it authenticated a user.
type SessionGrant struct {
	Token    string           `json:"token" validate:"required,min=16"`
	Identity session.Identity `json:"identity"`
	Roles    authority.Roles  `json:"roles" validate:"required,min=1"`
}

func RegisterSessionsRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	r.Group("/v1/session", middleWares...).GET("", handleDetailSession)

	g := r.Group("/v1/sessions", middleWares...)
	g.POST("", handleGrantSession)
	g.DELETE("", handleLogout)
}

// handleDetailSession returns the caller's session and extends its lifetime.
func handleDetailSession(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	if !s.Permanent && time.Since(s.SigningTime) >= session.TokenExpiration {
		session.TokenCache.Delete(s.Token)
		panic(bizerror.ErrUnauthenticated)
	}
	refreshed := s.Clone()
	refreshed.SigningTime = time.Now()
	refreshed.Context = nil
	session.Register(refreshed.Token, &refreshed)
	c.JSON(http.StatusOK, &refreshed)
}

// handleGrantSession lets the system principal register a session for a user.
func handleGrantSession(c *gin.Context) {
	caller := session.ExtractSessionFromGinContext(c)
	if !caller.Roles.Has(authority.RoleSystem) {
		panic(bizerror.ErrForbidden)
	}
	grant := SessionGrant{}
	if err := c.ShouldBindJSON(&grant); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := validate.Struct(&grant); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if grant.Identity.ID == "" {
		panic(&bizerror.ErrBadParam{Cause: errMissingIdentity})
	}
	s := &session.Session{Identity: grant.Identity, Roles: grant.Roles}
	session.Register(grant.Token, s)
	c.JSON(http.StatusCreated, s)
}

func handleLogout(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	session.TokenCache.Delete(s.Token)
	c.SetCookie(session.KeySecToken, "", -1, "/", "", false, false)
	c.AbortWithStatus(http.StatusNoContent)
}
