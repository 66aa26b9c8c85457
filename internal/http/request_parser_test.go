package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contabils/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return NewRequestBodyParser(httptest.NewRecorder(), r)
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields map[string]string
	}{
		{
			name:   "json object",
			body:   `{"type":"expense","amount":"45,90","category":"Mercado"}`,
			fields: map[string]string{"type": "expense", "amount": "45,90", "category": "Mercado", "missing": ""},
		},
		{
			name:   "json number amount",
			body:   ` {"amount": 45.9}`,
			fields: map[string]string{"amount": "45.9"},
		},
		{
			name:   "non string fields read as empty",
			body:   `{"category":12,"type":null,"date":["2024-03-01"]}`,
			fields: map[string]string{"category": "", "type": "", "date": ""},
		},
		{
			name:   "form body",
			body:   "type=income&amount=10%2C50&description=b%C3%B4nus",
			fields: map[string]string{"type": "income", "amount": "10,50", "description": "bônus"},
		},
		{
			name:   "control characters stripped",
			body:   `{"description":"  fei\u0000ra\u0007 "}`,
			fields: map[string]string{"description": "feira"},
		},
		{
			name:   "empty body",
			body:   "",
			fields: map[string]string{"type": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parse(t, tt.body)
			require.NoError(t, p.Err())
			for k, want := range tt.fields {
				got := p.Get(k)
				if k == "amount" {
					got = p.Amount(k)
				}
				assert.Equal(t, want, got, k)
			}
		})
	}
}

func TestRequestBodyParser_Rejects(t *testing.T) {
	for _, body := range []string{`{"type":`, `["expense"]`, `"expense"`, "a=%zz"} {
		p := parse(t, body)
		assert.ErrorIs(t, p.Err(), core.ErrInvalidInput, body)
	}

	big := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	assert.Error(t, parse(t, big).Err())
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb\nc", sanitizeInput(" a\tb\nc\x1b "))
	assert.Equal(t, "", sanitizeInput("\x00\x01"))
	assert.Equal(t, "Saúde 🩺", sanitizeInput("Saúde 🩺"))
}
