package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

func (s *Server) handleListCategories(c *gin.Context) {
	typ, err := queryTransactionType(c, "type", "")
	if err != nil {
		respondError(c, "list categories", err)
		return
	}
	list, err := s.ledger.ListCategories(c.Request.Context(), currentUser(c), typ)
	if err != nil {
		respondError(c, "list categories", err)
		return
	}
	if list == nil {
		list = []core.Category{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateCategory(c *gin.Context) {
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "create category", err)
		return
	}
	cat, err := s.ledger.CreateCategory(c.Request.Context(), currentUser(c), core.Category{
		Name: p.Get("name"),
		Type: core.TransactionType(strings.ToLower(p.Get("type"))),
		Icon: p.Get("icon"),
	})
	if err != nil {
		respondError(c, "create category", err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (s *Server) handleSeedCategories(c *gin.Context) {
	n, err := s.ledger.SeedCategories(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "seed categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": n})
}

func (s *Server) handleGetCategory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "get category", err)
		return
	}
	cat, err := s.ledger.GetCategory(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get category", err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (s *Server) handleUpdateCategory(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	id, err := pathID(c)
	if err != nil {
		respondError(c, "update category", err)
		return
	}
	if _, err := s.ledger.GetCategory(ctx, userID, id); err != nil {
		respondError(c, "update category", err)
		return
	}
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "update category", err)
		return
	}

	var patch core.CategoryPatch
	if p.Has("name") {
		name := p.Get("name")
		patch.Name = &name
	}
	if p.Has("type") {
		typ := core.TransactionType(strings.ToLower(p.Get("type")))
		patch.Type = &typ
	}
	if p.Has("icon") {
		icon := p.Get("icon")
		patch.Icon = &icon
	}
	if err := s.ledger.UpdateCategory(ctx, userID, id, patch); err != nil {
		respondError(c, "update category", err)
		return
	}
	s.handleGetCategory(c)
}

func (s *Server) handleDeleteCategory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "delete category", err)
		return
	}
	if err := s.ledger.DeleteCategory(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, "delete category", err)
		return
	}
	c.Status(http.StatusNoContent)
}
