package testinfra

import (
	"context"
	"io"
	"leica/authority"
	"leica/session"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BuildSession builds the session of a user holding roles. An empty uid gets a
// random one.
func BuildSession(uid string, roles ...authority.Role) *session.Session {
	if uid == "" {
		uid = uuid.New().String()
	}
	return &session.Session{
		Token:    uuid.New().String(),
		Identity: session.Identity{ID: uid, Name: "user-" + uid},
		Roles:    authority.NewRoles(roles...),
		Context:  context.Background(),
	}
}

// LoginAs registers a session for the returned token.
func LoginAs(uid string, roles ...authority.Role) (string, *session.Session) {
	s := BuildSession(uid, roles...)
	session.Register(s.Token, s)
	return s.Token, s
}

// ExecuteRequest runs req through engine and returns status and body.
func ExecuteRequest(req *http.Request, engine *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp
}
