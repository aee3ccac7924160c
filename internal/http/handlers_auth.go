package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

type sessionResponse struct {
	User      core.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleRegister(c *gin.Context) {
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	u, err := s.ledger.Register(c.Request.Context(), p.Get("username"), p.GetRaw("password"))
	if err != nil {
		respondError(c, "register", err)
		return
	}
	s.respondSession(c, http.StatusCreated, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	u, err := s.ledger.Authenticate(c.Request.Context(), p.Get("username"), p.GetRaw("password"))
	if err != nil {
		respondError(c, "login", err)
		return
	}
	s.respondSession(c, http.StatusOK, u)
}

func (s *Server) respondSession(c *gin.Context, status int, u core.User) {
	token, expires, err := s.tokens.issue(u.ID)
	if err != nil {
		respondError(c, "issue token", err)
		return
	}
	c.JSON(status, sessionResponse{User: u, Token: token, ExpiresAt: expires.UTC()})
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.ledger.Store().GetUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, u)
}
