package session

import (
	"context"
	"leica/authority"
	"time"

	"github.com/google/uuid"
)

// Session is the acting principal of one request.
type Session struct {
	Token       string          `json:"token"`
	Identity    Identity        `json:"identity"`
	Roles       authority.Roles `json:"roles"`
	SigningTime time.Time       `json:"-"`
	// Permanent sessions never expire, see RegisterPermanent.
	Permanent bool `json:"-"`

	Context context.Context `json:"-"`
}

// Identity.ID is the user id issued by the identity provider, usually a uuid.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

func (s *Session) PrincipalID() string {
	return s.Identity.ID
}

func (s *Session) PrincipalRoles() authority.Roles {
	return s.Roles
}

func (s *Session) Clone() Session {
	c := *s
	c.Roles = append(authority.Roles(nil), s.Roles...)
	return c
}

// Ctx never returns nil.
func (s *Session) Ctx() context.Context {
	if s.Context == nil {
		return context.Background()
	}
	return s.Context
}

// SystemID is the actor id recorded for transitions fired by the system itself.
var SystemID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("leica.system")).String()

// System is the session of batch jobs and message consumers.
func System(ctx context.Context) *Session {
	return &Session{
		Token:    "system",
		Identity: Identity{ID: SystemID, Name: "system", Nickname: "System"},
		Roles:    authority.NewRoles(authority.RoleSystem),
		Context:  ctx,
	}
}
