package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

func (s *Server) handleListTransactions(c *gin.Context) {
	var f storage.TransactionFilter
	var err error
	if f.From, err = queryDate(c, "from", core.Date{}); err != nil {
		respondError(c, "list transactions", err)
		return
	}
	if f.To, err = queryDate(c, "to", core.Date{}); err != nil {
		respondError(c, "list transactions", err)
		return
	}
	if f.Type, err = queryTransactionType(c, "type", ""); err != nil {
		respondError(c, "list transactions", err)
		return
	}
	for _, q := range []struct {
		key string
		dst *int64
	}{{"accountId", &f.AccountID}, {"categoryId", &f.CategoryID}} {
		if v := c.Query(q.key); v != "" {
			if *q.dst, err = parseID(q.key, v); err != nil {
				respondError(c, "list transactions", err)
				return
			}
		}
	}

	list, err := s.ledger.ListTransactions(c.Request.Context(), currentUser(c), f)
	if err != nil {
		respondError(c, "list transactions", err)
		return
	}
	if list == nil {
		list = []core.Transaction{}
	}
	c.JSON(http.StatusOK, list)
}

// transactionType reads the type field, falling back to the category's type
// when the field is absent.
func (s *Server) transactionType(ctx context.Context, userID int64, p *RequestBodyParser, categoryID int64) (core.TransactionType, error) {
	if v := p.Get("type"); v != "" {
		return core.TransactionType(strings.ToLower(v)), nil
	}
	cat, err := s.ledger.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return "", core.Invalid("categoryId", "unknown category")
	}
	return cat.Type, nil
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "create transaction", err)
		return
	}

	var in ledger.NewTransaction
	if in.AccountID, err = parseID("accountId", p.Get("accountId")); err != nil {
		respondError(c, "create transaction", err)
		return
	}
	if in.CategoryID, err = parseID("categoryId", p.Get("categoryId")); err != nil {
		respondError(c, "create transaction", err)
		return
	}
	if in.Amount, err = parseAmountField("amount", p.Get("amount")); err != nil {
		respondError(c, "create transaction", err)
		return
	}
	if v := p.Get("date"); v != "" {
		if in.Date, err = parseDateField("date", v); err != nil {
			respondError(c, "create transaction", err)
			return
		}
	} else {
		in.Date = core.DateOf(s.now())
	}
	if in.DestinationAccountID, err = optionalID(p, "destinationAccountId"); err != nil {
		respondError(c, "create transaction", err)
		return
	}
	if in.Type, err = s.transactionType(ctx, userID, p, in.CategoryID); err != nil {
		respondError(c, "create transaction", err)
		return
	}
	in.Note = p.Get("note")

	t, err := s.ledger.CreateTransaction(ctx, userID, in)
	if err != nil {
		respondError(c, "create transaction", err)
		return
	}
	s.txLog.LogTransactionCreated(ctx, userID, t.ID, string(t.Type), t.AccountID, t.Amount.String())
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "get transaction", err)
		return
	}
	t, err := s.ledger.GetTransaction(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get transaction", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// transactionPatch builds a patch from the fields present in the body. An
// empty destinationAccountId clears the destination.
func transactionPatch(p *RequestBodyParser) (core.TransactionPatch, error) {
	var patch core.TransactionPatch
	for _, f := range []struct {
		key string
		dst **int64
	}{{"accountId", &patch.AccountID}, {"categoryId", &patch.CategoryID}} {
		if !p.Has(f.key) {
			continue
		}
		id, err := parseID(f.key, p.Get(f.key))
		if err != nil {
			return patch, err
		}
		*f.dst = &id
	}
	if p.Has("type") {
		typ := core.TransactionType(strings.ToLower(p.Get("type")))
		patch.Type = &typ
	}
	if p.Has("amount") {
		amount, err := parseAmountField("amount", p.Get("amount"))
		if err != nil {
			return patch, err
		}
		patch.Amount = &amount
	}
	if p.Has("date") {
		date, err := parseDateField("date", p.Get("date"))
		if err != nil {
			return patch, err
		}
		patch.Date = &date
	}
	if p.Has("note") {
		note := p.Get("note")
		patch.Note = &note
	}
	if p.Has("destinationAccountId") {
		dest, err := optionalID(p, "destinationAccountId")
		if err != nil {
			return patch, err
		}
		if dest == nil {
			patch.ClearDestination = true
		} else {
			patch.DestinationAccountID = dest
		}
	}
	return patch, nil
}

func (s *Server) handleUpdateTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	id, err := pathID(c)
	if err != nil {
		respondError(c, "update transaction", err)
		return
	}
	if _, err := s.ledger.GetTransaction(ctx, userID, id); err != nil {
		respondError(c, "update transaction", err)
		return
	}
	p, err := parseBody(c)
	if err != nil {
		respondError(c, "update transaction", err)
		return
	}
	patch, err := transactionPatch(p)
	if err != nil {
		respondError(c, "update transaction", err)
		return
	}
	if err := s.ledger.UpdateTransaction(ctx, userID, id, patch); err != nil {
		respondError(c, "update transaction", err)
		return
	}
	s.handleGetTransaction(c)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "delete transaction", err)
		return
	}
	if err := s.ledger.DeleteTransaction(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, "delete transaction", err)
		return
	}
	c.Status(http.StatusNoContent)
}
