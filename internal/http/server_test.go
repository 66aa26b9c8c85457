package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"contabils/internal/auth"
	"contabils/internal/export"
	applog "contabils/internal/log"
	"contabils/internal/services"
	"contabils/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSecret = "handler-secret"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func newTestServer(t *testing.T, mutate ...func(*Deps)) *Server {
	t.Helper()
	store := memory.NewSeeded()
	deps := Deps{
		Catalog:  services.NewCatalogService(store),
		Ledger:   services.NewLedgerService(store, nil),
		Exporter: export.NewExporter("contabils", time.UTC),
		Store:    store,
		Resolver: auth.NewBearerResolver(auth.NewJWTVerifier(testSecret, "authenticated")),
		Public: PublicConfig{
			IdentityURL:  "https://id.example.com",
			ShellVersion: "v1",
			AuthMode:     "jwt",
		},
		WorkerScript: []byte("self.addEventListener('install', () => {});"),
		Static: fstest.MapFS{
			"index.html":           {Data: []byte("<!doctype html><title>Contabils</title>")},
			"app.js":               {Data: []byte("console.log('app')")},
			"manifest.webmanifest": {Data: []byte(`{"name":"Contabils"}`)},
		},
		Logger:             applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		RateLimitPerMinute: 1000,
		Now:                func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&deps)
	}
	s := NewServer(":0", deps)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, subject, "", "authenticated", time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, s *Server, method, target, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rd)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/categories", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[[]categoryDTO](t, rr)
	assert.NotEmpty(t, all)

	income := decode[[]categoryDTO](t, do(t, s, http.MethodGet, "/api/categories?type=income", "", ""))
	for _, c := range income {
		assert.Contains(t, []string{"income", "both"}, c.Kind, c.Name)
	}
	assert.Less(t, len(income), len(all))

	// listing twice yields the same catalog
	again := decode[[]categoryDTO](t, do(t, s, http.MethodGet, "/api/categories", "", ""))
	assert.Equal(t, all, again)

	rr = do(t, s, http.MethodPost, "/api/categories", "", `{"name":"Viagem","emoji":"✈️","kind":"expense"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	rr = do(t, s, http.MethodPost, "/api/categories", "", `{"name":"Viagem","emoji":"✈️","kind":"expense"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Categoria já existe ou erro ao salvar", decode[errorBody](t, rr).Error)

	rr = do(t, s, http.MethodPost, "/api/categories", "", `{"name":"X","emoji":"✈️","kind":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Kind inválido", decode[errorBody](t, rr).Error)
}

func TestTransactionsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	for _, c := range []struct{ method, target string }{
		{http.MethodGet, "/api/transactions"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodDelete, "/api/transactions/1"},
		{http.MethodGet, "/api/summary"},
		{http.MethodGet, "/export.xlsx"},
	} {
		t.Run(c.method+" "+c.target, func(t *testing.T) {
			rr := do(t, s, c.method, c.target, "", "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Não autenticado", decode[errorBody](t, rr).Error)

			rr = do(t, s, c.method, c.target, "Bearer expired-or-garbage", "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Sessão inválida ou expirada", decode[errorBody](t, rr).Error)
		})
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)
	authz := bearer(t, "u1")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad type", `{"type":"transfer","amount":"10","category":"Mercado","date":"2024-03-01"}`, "Tipo inválido"},
		{"type checked first", `{"type":"x","amount":"-1","category":"","date":"nope"}`, "Tipo inválido"},
		{"zero amount", `{"type":"expense","amount":"0","category":"Mercado","date":"2024-03-01"}`, "Valor inválido"},
		{"negative amount", `{"type":"expense","amount":-5,"category":"Mercado","date":"2024-03-01"}`, "Valor inválido"},
		{"exponent amount", `{"type":"expense","amount":"1e70000000","category":"Mercado","date":"2024-03-01"}`, "Valor inválido"},
		{"exponent number", `{"type":"expense","amount":1e400,"category":"Mercado","date":"2024-03-01"}`, "Valor inválido"},
		{"amount over cap", `{"type":"income","amount":"92233720368547758,07","category":"Salário","date":"2024-03-01"}`, "Valor inválido"},
		{"missing category", `{"type":"expense","amount":"10","category":"  ","date":"2024-03-01"}`, "Categoria inválida"},
		{"numeric category", `{"type":"expense","amount":"10","category":7,"date":"2024-03-01"}`, "Categoria inválida"},
		{"bad date", `{"type":"expense","amount":"10","category":"Mercado","date":"01/03/2024"}`, "Data inválida (YYYY-MM-DD)"},
		{"impossible date", `{"type":"expense","amount":"10","category":"Mercado","date":"2024-02-30"}`, "Data inválida (YYYY-MM-DD)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/api/transactions", authz, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, decode[errorBody](t, rr).Error)
		})
	}

	rows := decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions?month=2024-03", authz, ""))
	assert.Empty(t, rows, "rejected input must not be stored")
}

func TestLedgerFlow(t *testing.T) {
	s := newTestServer(t)
	u1, u2 := bearer(t, "u1"), bearer(t, "u2")

	rr := do(t, s, http.MethodPost, "/api/transactions", u1,
		`{"type":"expense","amount":"45,90","category":"Mercado","description":"feira","date":"2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[struct {
		OK bool  `json:"ok"`
		ID int64 `json:"id"`
	}](t, rr)
	assert.True(t, created.OK)
	assert.Positive(t, created.ID)

	rr = do(t, s, http.MethodPost, "/api/transactions", u1,
		`{"type":"income","amount":1200.5,"category":"Salário","date":"2024-03-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rows := decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions", u1, ""))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-05", rows[0].DateISO, "newest first")
	assert.Equal(t, transactionDTO{
		ID: created.ID, Type: "expense", AmountCents: 4590, Category: "Mercado",
		Description: "feira", DateISO: "2024-03-01", MonthKey: "2024-03",
	}, rows[1])

	filtered := decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions?month=2024-03&category=Mercado", u1, ""))
	assert.Len(t, filtered, 1)

	sum := decode[summaryDTO](t, do(t, s, http.MethodGet, "/api/summary", u1, ""))
	assert.Equal(t, summaryDTO{Month: "2024-03", Income: 120050, Expense: 4590, Balance: 115460}, sum)

	empty := decode[summaryDTO](t, do(t, s, http.MethodGet, "/api/summary?month=2023-01", u1, ""))
	assert.Equal(t, summaryDTO{Month: "2023-01"}, empty)

	// u2 sees nothing and cannot delete u1's row
	assert.Empty(t, decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions", u2, "")))
	rr = do(t, s, http.MethodDelete, "/api/transactions/"+itoa(created.ID), u2, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Transação não encontrada", decode[errorBody](t, rr).Error)
	assert.Len(t, decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions", u1, "")), 2)

	rr = do(t, s, http.MethodDelete, "/api/transactions/"+itoa(created.ID), u1, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	assert.Len(t, decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions", u1, "")), 1)

	rr = do(t, s, http.MethodDelete, "/api/transactions/abc", u1, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "ID inválido", decode[errorBody](t, rr).Error)
}

func TestNegativeBalance(t *testing.T) {
	s := newTestServer(t)
	u := bearer(t, "u1")
	rr := do(t, s, http.MethodPost, "/api/transactions", u, `{"type":"expense","amount":"10.00","category":"Lazer","date":"2024-03-02"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	sum := decode[summaryDTO](t, do(t, s, http.MethodGet, "/api/summary?month=2024-03", u, ""))
	assert.Equal(t, int64(-1000), sum.Balance)
}

func TestInvalidMonth(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/api/transactions?month=2024-13", "/api/summary?month=march", "/export.xlsx?month=2024-3"} {
		rr := do(t, s, http.MethodGet, target, bearer(t, "u1"), "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "Mês inválido (YYYY-MM)", decode[errorBody](t, rr).Error, target)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	u := bearer(t, "u1")
	for _, body := range []string{
		`{"type":"expense","amount":"45.90","category":"Mercado","date":"2024-03-01"}`,
		`{"type":"income","amount":"100","category":"Freela","date":"2024-03-02"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions", u, body).Code)
	}

	rr := do(t, s, http.MethodGet, "/export.xlsx?month=2024-03&category=Mercado", u, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="contabils_extrato_2024-03_Mercado.xlsx"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, itoa(int64(rr.Body.Len())), rr.Header().Get("Content-Length"))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Equal(t, "Mercado", rows[1][2])
	assert.Equal(t, "Filtro: Mercado", rows[3][3])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"db":1}`, rr.Body.String())
	assert.Equal(t, "ok", do(t, s, http.MethodGet, "/healthz", "", "").Body.String())
	assert.Equal(t, "ready", do(t, s, http.MethodGet, "/readyz", "", "").Body.String())

	down := newTestServer(t, func(d *Deps) { d.Store = failingPinger{} })
	rr = do(t, down, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":"db down"}`, rr.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "", "").Code)
}

func TestShellRoutes(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<title>Contabils</title>")

	rr = do(t, s, http.MethodGet, "/index.html", "", "")
	assert.Equal(t, http.StatusOK, rr.Code, "index.html is served, not redirected")

	rr = do(t, s, http.MethodGet, "/manifest.webmanifest", "", "")
	assert.Equal(t, "application/manifest+json", rr.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/missing.css", "", "").Code)

	rr = do(t, s, http.MethodGet, "/sw.js", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "javascript")

	rr = do(t, s, http.MethodGet, "/api/config", "", "")
	assert.JSONEq(t, `{"identity_url":"https://id.example.com","identity_anon_key":"","shell_version":"v1","auth_mode":"jwt"}`, rr.Body.String())

	rr = do(t, s, http.MethodGet, "/api/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestMiddlewareChain(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://id.example.com")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestSingleUserMode(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Resolver = auth.NewFixedResolver("") })
	rr := do(t, s, http.MethodPost, "/api/transactions", "",
		`{"type":"expense","amount":"5","category":"Pet","date":"2024-03-03"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, decode[[]transactionDTO](t, do(t, s, http.MethodGet, "/api/transactions", "", "")), 1)
}

func TestRateLimitOnMutations(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.RateLimitPerMinute = 2 })
	body := `{"name":"","emoji":"","kind":""}`
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/categories", "", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/categories", "", body).Code)
	rr := do(t, s, http.MethodPost, "/api/categories", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/categories", "", "").Code)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
