package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/ledger"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/log"
	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/storage"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg})
}

// inputSentinels are caller mistakes reported without a field.
var inputSentinels = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidType,
	core.ErrEmptyName,
	core.ErrMissingDestination,
	core.ErrSameAccount,
	core.ErrUnexpectedDest,
}

// statusOf maps a service error to its HTTP status.
func statusOf(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, storage.ErrInUse),
		errors.Is(err, ledger.ErrUsernameTaken),
		errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	for _, sentinel := range inputSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Unexpected errors are
// logged and replaced by a generic message.
func respondError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}

	switch status {
	case http.StatusBadRequest:
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			body = errorBody{Error: ve.Reason, Field: ve.Field}
		}
	case http.StatusNotFound:
		body.Error = "not found"
	case http.StatusConflict:
		switch {
		case errors.Is(err, storage.ErrInUse):
			body.Error = storage.ErrInUse.Error()
		default:
			body = errorBody{Error: ledger.ErrUsernameTaken.Error(), Field: "username"}
		}
	case http.StatusUnauthorized:
		body.Error = ledger.ErrInvalidCredentials.Error()
	case http.StatusInternalServerError:
		ctx := c.Request.Context()
		log.FromContext(ctx).ErrorContext(ctx, "Request failed",
			log.FieldOperation, op,
			log.FieldUserID, currentUser(c),
			log.FieldError, err)
		body.Error = "internal server error"
	}
	c.AbortWithStatusJSON(status, body)
}
