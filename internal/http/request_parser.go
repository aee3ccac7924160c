// Package http serves the ledger, analytics and export operations as a JSON
// API over gin.
//
// This file implements utilities for parsing and validating request data.
// Bodies may be JSON or form-encoded; every field is read as a string and
// validated by the core parsers.
package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields as trimmed strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the body of r.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = core.Invalid("", "malformed JSON body")
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = core.Invalid("", "malformed form body")
	}
	return p.err
}

// Has reports whether the body carries key, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetRaw returns a value exactly as sent. Secrets use it so that
// whitespace and other characters reach the hasher unchanged.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// sanitizeInput trims whitespace and strips control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// parseBody reads and parses the request body.
func parseBody(c *gin.Context) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(c.Request)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(field, "must be a positive integer")
	}
	return id, nil
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (int64, error) {
	return parseID("id", c.Param("id"))
}

func parseAmountField(field, s string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, core.Invalid(field, "must be a positive number")
	}
	return d, nil
}

func parseDateField(field, s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// optionalID parses an id field that may be absent or empty.
func optionalID(p *RequestBodyParser, field string) (*int64, error) {
	v := p.Get(field)
	if v == "" {
		return nil, nil
	}
	id, err := parseID(field, v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryDate parses an optional date query parameter.
func queryDate(c *gin.Context, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, nil
	}
	return parseDateField(key, v)
}

// queryInt parses an optional integer query parameter bounded to [lo, hi].
func queryInt(c *gin.Context, key string, def, lo, hi int) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, core.Invalid(key, fmt.Sprintf("must be an integer between %d and %d", lo, hi))
	}
	return n, nil
}

// queryTransactionType parses an optional type query parameter.
func queryTransactionType(c *gin.Context, key string, def core.TransactionType) (core.TransactionType, error) {
	v := strings.ToLower(strings.TrimSpace(c.Query(key)))
	if v == "" {
		return def, nil
	}
	t := core.TransactionType(v)
	if !t.Valid() {
		return "", core.Invalid(key, "must be one of income, expense, transfer")
	}
	return t, nil
}
