package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"contabils/internal/core"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser reads a JSON object or a form-encoded body once and
// serves its fields as strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

// NewRequestBodyParser reads and parses the body of r.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if p.err == nil {
		p.err = p.parse()
	}
	return p
}

func (p *RequestBodyParser) parse() error {
	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidInput, err)
		}
		return nil
	}
	if trimmed[0] == '[' || trimmed[0] == '"' {
		return fmt.Errorf("%w: body must be a JSON object", core.ErrInvalidInput)
	}
	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return fmt.Errorf("%w: malformed form: %v", core.ErrInvalidInput, err)
	}
	p.formData = form
	return nil
}

// Err reports a read or parse failure.
func (p *RequestBodyParser) Err() error {
	return p.err
}

// Get returns a string field. Fields of any other JSON type read as empty,
// which the validators then reject.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		s, _ := p.jsonData[key].(string)
		return sanitizeInput(s)
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Amount returns a monetary field, accepting a string or a JSON number.
func (p *RequestBodyParser) Amount(key string) string {
	if p.jsonData != nil {
		if n, ok := p.jsonData[key].(json.Number); ok {
			return n.String()
		}
	}
	return p.Get(key)
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding space.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
