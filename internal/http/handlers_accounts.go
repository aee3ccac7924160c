package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

func (s *Server) handleListAccounts(c *gin.Context) {
	list, err := s.ledger.ListAccounts(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "list accounts", err)
		return
	}
	if list == nil {
		list = []core.Account{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "create account", err)
		return
	}
	typ := core.AccountType(strings.ToLower(p.Get("type")))
	a, err := s.ledger.CreateAccount(c.Request.Context(), currentUser(c), p.Get("name"), typ)
	if err != nil {
		respondError(c, "create account", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "get account", err)
		return
	}
	a, err := s.ledger.GetAccount(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get account", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleUpdateAccount(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	id, err := pathID(c)
	if err != nil {
		respondError(c, "update account", err)
		return
	}
	if _, err := s.ledger.GetAccount(ctx, userID, id); err != nil {
		respondError(c, "update account", err)
		return
	}
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "update account", err)
		return
	}

	var patch core.AccountPatch
	if p.Has("name") {
		name := p.Get("name")
		patch.Name = &name
	}
	if p.Has("type") {
		typ := core.AccountType(strings.ToLower(p.Get("type")))
		patch.Type = &typ
	}
	if err := s.ledger.UpdateAccount(ctx, userID, id, patch); err != nil {
		respondError(c, "update account", err)
		return
	}
	s.handleGetAccount(c)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "delete account", err)
		return
	}
	if err := s.ledger.DeleteAccount(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, "delete account", err)
		return
	}
	c.Status(http.StatusNoContent)
}
